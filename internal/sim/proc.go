package sim

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// wakeKill is the resume value that makes a process exit.
const wakeKill = -1

// Proc is a cooperative process.
//
// Methods that suspend (Wait, Sleep, Settle, Yield, Join) must only be
// called by the process itself.
type Proc struct {
	k      *Kernel
	id     int
	name   string
	resume chan int

	wakeIdx  int
	queued   bool
	waiter   *waiter
	started  bool
	finished bool
	killed   bool
	err      error
	done     *Event
}

// PanicError is a process panic converted into an error.
type PanicError struct {
	Proc  string
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("process %s panicked: %v", e.Proc, e.Value)
}

func (p *Proc) main(fn ProcFunc) {
	defer func() {
		if r := recover(); r != nil {
			p.err = &PanicError{Proc: p.name, Value: r, Stack: debug.Stack()}
		}
		p.finished = true
		p.waiter = nil
		p.done.Set()
		p.k.yield <- struct{}{}
	}()
	if idx := <-p.resume; idx == wakeKill {
		return
	}
	p.started = true
	p.err = fn(p)
}

// Name returns the process name.
func (p *Proc) Name() string { return p.name }

// ID returns the process id, unique within its kernel.
func (p *Proc) ID() int { return p.id }

// Kernel returns the owning kernel.
func (p *Proc) Kernel() *Kernel { return p.k }

// Now returns the current simulated time.
func (p *Proc) Now() Time { return p.k.now }

// Done returns a trigger that is set once the process has finished.
func (p *Proc) Done() Trigger { return p.done }

// Finished reports whether the process has exited.
func (p *Proc) Finished() bool { return p.finished }

// Killed reports whether the process was killed.
func (p *Proc) Killed() bool { return p.killed }

// Err returns the process result once finished. A killed process reports nil.
func (p *Proc) Err() error { return p.err }

// Spawn starts a new process on the same kernel.
func (p *Proc) Spawn(name string, fn ProcFunc) *Proc {
	return p.k.Spawn(name, fn)
}

// Wait suspends until one of the triggers fires and returns its index.
// The remaining triggers are disarmed. A trigger that is already set (a set
// Event, a finished process's Done) satisfies the wait without suspending.
//
// A process that has been killed and is unwinding returns -1 immediately.
func (p *Proc) Wait(triggers ...Trigger) int {
	if len(triggers) == 0 {
		panic("sim: Wait requires at least one trigger")
	}
	if p.killed {
		return wakeKill
	}
	for i, t := range triggers {
		if t.isSet() {
			return i
		}
	}
	w := &waiter{p: p, armed: triggers}
	for i, t := range triggers {
		t.arm(w, i)
	}
	p.waiter = w
	return p.suspend()
}

// Sleep suspends for d of simulated time.
func (p *Proc) Sleep(d Time) {
	p.Wait(p.k.Timer(d))
}

// Settle waits one time unit so every deferred write of the current step
// has been applied.
func (p *Proc) Settle() {
	p.Sleep(Picosecond)
}

// Yield lets every other runnable process run before continuing, without
// advancing time.
func (p *Proc) Yield() {
	if p.killed {
		return
	}
	p.schedule(0)
	p.suspend()
}

// Join waits for q to finish and returns its error.
func (p *Proc) Join(q *Proc) error {
	p.Wait(q.Done())
	return q.err
}

// Kill terminates the process at its current suspension point. Its
// deferred functions run. Killing a finished process is a no-op; a process
// killing itself exits immediately.
func (p *Proc) Kill() {
	if p.finished {
		return
	}
	if p.k.current == p {
		p.killed = true
		runtime.Goexit()
	}
	p.killed = true
	p.disarm()
	if !p.queued {
		p.schedule(wakeKill)
	}
}

func (p *Proc) disarm() {
	if w := p.waiter; w != nil && !w.woken {
		w.woken = true
		for _, t := range w.armed {
			t.disarm(w)
		}
		w.armed = nil
	}
	p.waiter = nil
}

func (p *Proc) schedule(idx int) {
	p.wakeIdx = idx
	if p.queued {
		return
	}
	p.queued = true
	p.k.ready = append(p.k.ready, p)
}

func (p *Proc) suspend() int {
	p.k.yield <- struct{}{}
	idx := <-p.resume
	p.waiter = nil
	if idx == wakeKill {
		runtime.Goexit()
	}
	return idx
}
