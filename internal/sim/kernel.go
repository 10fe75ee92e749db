package sim

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ErrStalled is returned by Run when the root process is still suspended but
// no process is runnable and no timer is pending.
var ErrStalled = errors.New("simulation stalled")

// ErrTimeLimit is returned by Run when simulated time would pass the limit
// set with WithTimeLimit.
var ErrTimeLimit = errors.New("simulation time limit exceeded")

// ProcFunc is the body of a process.
type ProcFunc func(p *Proc) error

// KernelOption configures a Kernel.
type KernelOption func(*Kernel)

// WithLogger sets the kernel logger. Defaults to a discard logger.
func WithLogger(l *slog.Logger) KernelOption {
	return func(k *Kernel) {
		k.logger = l
	}
}

// WithTimeLimit bounds simulated time. Zero means no limit.
func WithTimeLimit(t Time) KernelOption {
	return func(k *Kernel) {
		k.limit = t
	}
}

// Kernel owns simulated time and the baton.
type Kernel struct {
	now    Time
	seq    uint64
	nextID int
	limit  Time

	ready  []*Proc
	timers timerHeap
	dirty  []*Signal
	procs  []*Proc

	current *Proc
	yield   chan struct{}
	logger  *slog.Logger
}

// NewKernel returns a kernel at time zero.
func NewKernel(opts ...KernelOption) *Kernel {
	k := &Kernel{
		yield:  make(chan struct{}),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Now returns the current simulated time.
func (k *Kernel) Now() Time { return k.now }

// Logger returns the kernel logger.
func (k *Kernel) Logger() *slog.Logger { return k.logger }

// Timer returns a trigger firing d after the current time.
// A non-positive d fires at the current time once it is waited on.
func (k *Kernel) Timer(d Time) *Timer {
	if d < 0 {
		d = 0
	}
	k.seq++
	return &Timer{k: k, at: k.now + d, seq: k.seq}
}

// Spawn creates a process that becomes runnable immediately.
// It may be called before Run or by the running process.
func (k *Kernel) Spawn(name string, fn ProcFunc) *Proc {
	k.nextID++
	p := &Proc{
		k:      k,
		id:     k.nextID,
		name:   name,
		resume: make(chan int),
		done:   NewEvent(name + ".done"),
	}
	k.procs = append(k.procs, p)
	go p.main(fn)
	p.schedule(0)
	return p
}

// Run spawns root and drives the simulation until root finishes.
//
// Processes still alive when root finishes are killed before Run returns.
// The returned error is root's error, ctx.Err(), ErrStalled or ErrTimeLimit.
func (k *Kernel) Run(ctx context.Context, name string, root ProcFunc) error {
	rp := k.Spawn(name, root)
	err := k.loop(ctx, rp)
	k.killAll()
	if err != nil {
		return err
	}
	return rp.err
}

func (k *Kernel) loop(ctx context.Context, root *Proc) error {
	for !root.finished {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(k.ready) > 0 {
			p := k.ready[0]
			k.ready[0] = nil
			k.ready = k.ready[1:]
			k.step(p)
			continue
		}
		if len(k.dirty) > 0 {
			k.applyWrites()
			continue
		}
		ok, err := k.advance()
		if err != nil {
			return err
		}
		if !ok {
			k.logger.Debug("simulation stalled", "time", k.now, "root", root.name)
			return fmt.Errorf("%w at %s waiting on %s", ErrStalled, k.now, root.name)
		}
	}
	return nil
}

// step hands the baton to p and blocks until p suspends or exits.
func (k *Kernel) step(p *Proc) {
	p.queued = false
	idx := p.wakeIdx
	if p.killed {
		idx = wakeKill
	}
	k.current = p
	p.resume <- idx
	<-k.yield
	k.current = nil
}

// advance moves time to the next armed timer and fires every timer due then.
func (k *Kernel) advance() (bool, error) {
	for k.timers.Len() > 0 {
		next := k.timers[0]
		if next.waiting() == 0 {
			heap.Pop(&k.timers)
			next.scheduled = false
			next.fired = true
			continue
		}
		if k.limit > 0 && next.at > k.limit {
			return false, fmt.Errorf("%w: next event at %s, limit %s", ErrTimeLimit, next.at, k.limit)
		}
		k.now = next.at
		for k.timers.Len() > 0 && k.timers[0].at == k.now {
			t := heap.Pop(&k.timers).(*Timer)
			t.scheduled = false
			t.fired = true
			t.fire()
		}
		return true, nil
	}
	return false, nil
}

func (k *Kernel) pushTimer(t *Timer) {
	heap.Push(&k.timers, t)
}

// killAll drives every live process to exit. Processes spawned by deferred
// functions during the unwind are killed too.
func (k *Kernel) killAll() {
	for {
		var live []*Proc
		for _, p := range k.procs {
			if !p.finished {
				live = append(live, p)
			}
		}
		if len(live) == 0 {
			k.ready = nil
			return
		}
		for _, p := range live {
			if p.finished {
				continue
			}
			p.killed = true
			p.disarm()
			k.step(p)
		}
	}
}

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) { *h = append(*h, x.(*Timer)) }

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
