package sim

// Queue is a FIFO with optional capacity, used between processes.
//
// Get suspends while the queue is empty and Put suspends while it is full.
// A capacity of zero means unbounded.
type Queue[T any] struct {
	items    []T
	capacity int
	notEmpty *Event
	notFull  *Event
}

// NewQueue returns an empty queue.
func NewQueue[T any](name string, capacity int) *Queue[T] {
	q := &Queue[T]{
		capacity: capacity,
		notEmpty: NewEvent(name + ".not_empty"),
		notFull:  NewEvent(name + ".not_full"),
	}
	q.notFull.Set()
	return q
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int { return len(q.items) }

// Capacity returns the configured capacity (0 = unbounded).
func (q *Queue[T]) Capacity() int { return q.capacity }

// Empty reports whether the queue holds no items.
func (q *Queue[T]) Empty() bool { return len(q.items) == 0 }

// Full reports whether a bounded queue is at capacity.
func (q *Queue[T]) Full() bool {
	return q.capacity > 0 && len(q.items) >= q.capacity
}

// TryPut appends v unless the queue is full.
func (q *Queue[T]) TryPut(v T) bool {
	if q.Full() {
		return false
	}
	q.items = append(q.items, v)
	q.update()
	return true
}

// Put appends v, suspending p while the queue is full.
func (q *Queue[T]) Put(p *Proc, v T) {
	for q.Full() {
		if p.Wait(q.notFull) < 0 {
			return
		}
	}
	q.TryPut(v)
}

// TryGet removes and returns the head item.
func (q *Queue[T]) TryGet() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	q.update()
	return v, true
}

// Get removes and returns the head item, suspending p while the queue is
// empty. The boolean is false only if p was killed while waiting.
func (q *Queue[T]) Get(p *Proc) (T, bool) {
	for q.Empty() {
		if p.Wait(q.notEmpty) < 0 {
			var zero T
			return zero, false
		}
	}
	return q.TryGet()
}

// Peek returns the head item without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	return q.items[0], true
}

// Items returns a copy of the queued items in order.
func (q *Queue[T]) Items() []T {
	return append([]T(nil), q.items...)
}

func (q *Queue[T]) update() {
	if len(q.items) > 0 {
		q.notEmpty.Set()
	} else {
		q.notEmpty.Clear()
	}
	if q.Full() {
		q.notFull.Clear()
	} else {
		q.notFull.Set()
	}
}
