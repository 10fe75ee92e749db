package sim

// Trigger is something a process can wait on.
//
// Triggers are one-shot notifications: a process must be waiting when the
// trigger fires to observe it. Events that are already set satisfy a wait
// immediately.
type Trigger interface {
	String() string
	isSet() bool
	arm(w *waiter, idx int)
	disarm(w *waiter)
}

// waiter is one suspended Wait call.
type waiter struct {
	p     *Proc
	armed []Trigger
	woken bool
}

func (w *waiter) wake(idx int) {
	if w.woken {
		return
	}
	w.woken = true
	for _, t := range w.armed {
		t.disarm(w)
	}
	w.armed = nil
	w.p.schedule(idx)
}

type waitEntry struct {
	w   *waiter
	idx int
}

// waitList is the waiter bookkeeping shared by every trigger kind.
type waitList struct {
	entries []waitEntry
}

func (l *waitList) arm(w *waiter, idx int) {
	l.entries = append(l.entries, waitEntry{w: w, idx: idx})
}

func (l *waitList) disarm(w *waiter) {
	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.w != w {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(l.entries); i++ {
		l.entries[i] = waitEntry{}
	}
	l.entries = kept
}

// fire wakes every waiter in arming order.
func (l *waitList) fire() {
	entries := l.entries
	l.entries = nil
	for _, e := range entries {
		e.w.wake(e.idx)
	}
}

func (l *waitList) waiting() int { return len(l.entries) }

// Event is a level-style notification: Set wakes every waiter and stays
// set until Clear. Waiting on a set Event returns immediately.
//
// Setting and then immediately clearing an Event notifies only the processes
// already waiting, which is how one-shot edges are modelled.
type Event struct {
	waitList
	name string
	set  bool
}

// NewEvent returns a cleared event.
func NewEvent(name string) *Event {
	return &Event{name: name}
}

// Set marks the event and wakes all waiters.
func (e *Event) Set() {
	e.set = true
	e.fire()
}

// Clear resets the event.
func (e *Event) Clear() { e.set = false }

// IsSet reports whether the event is set.
func (e *Event) IsSet() bool { return e.set }

// Name returns the event name.
func (e *Event) Name() string { return e.name }

func (e *Event) String() string { return "Event(" + e.name + ")" }
func (e *Event) isSet() bool    { return e.set }

// Timer fires once simulated time reaches its deadline.
type Timer struct {
	waitList
	k         *Kernel
	at        Time
	seq       uint64
	scheduled bool
	fired     bool
}

// Deadline returns the absolute time the timer fires at.
func (t *Timer) Deadline() Time { return t.at }

func (t *Timer) String() string { return "Timer(" + t.at.String() + ")" }
func (t *Timer) isSet() bool    { return t.fired }

func (t *Timer) arm(w *waiter, idx int) {
	t.waitList.arm(w, idx)
	if !t.scheduled && !t.fired {
		t.scheduled = true
		t.k.pushTimer(t)
	}
}

// edge is a signal edge trigger.
type edge struct {
	waitList
	sig  *Signal
	kind string
}

func (e *edge) String() string { return e.kind + "(" + e.sig.name + ")" }
func (e *edge) isSet() bool    { return false }
