package task

import (
	"fmt"
	"log/slog"

	"github.com/roach88/vrtb/internal/fault"
	"github.com/roach88/vrtb/internal/sim"
)

// State is a task lifecycle state.
type State int

const (
	Created State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StopMode selects how Stop terminates the body.
type StopMode int

const (
	// Cooperative sets the stop event and waits for the body to return.
	Cooperative StopMode = iota

	// Forced kills the body at its current suspension point.
	Forced
)

// Lifecycle is anything the bench can start and stop.
type Lifecycle interface {
	Name() string
	Start(p *sim.Proc) error
	Stop(p *sim.Proc) error
	Children() []Lifecycle
}

// Body is a task's main loop. Cooperative bodies return once StopEvent fires.
type Body func(p *sim.Proc, t *Task) error

// Option configures a Task.
type Option func(*Task)

// WithChildren sets the ordered subtasks. Children start before and stop
// after the parent body.
func WithChildren(children ...Lifecycle) Option {
	return func(t *Task) {
		t.children = append(t.children, children...)
	}
}

// WithStopMode selects cooperative (default) or forced termination.
func WithStopMode(m StopMode) Option {
	return func(t *Task) {
		t.mode = m
	}
}

// WithVerify sets the post-condition hook run after the body and children
// have stopped. AssertionErrors returned here are reported as cleanup-stage
// assertion failures.
func WithVerify(fn func(p *sim.Proc) error) Option {
	return func(t *Task) {
		t.verify = fn
	}
}

// WithReady makes Start wait until the body calls MarkReady.
func WithReady() Option {
	return func(t *Task) {
		t.ready = sim.NewEvent(t.name + ".ready")
	}
}

// WithLogger sets the task logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Task) {
		t.logger = l
	}
}

// Task runs a body as a simulation process and owns an ordered list of
// subtasks.
//
// Lifecycle: Created -> Running -> Stopping -> Stopped. Stop always leaves
// the task Stopped and reports every fault raised by the body, the
// children and the verify hook.
type Task struct {
	name     string
	body     Body
	children []Lifecycle
	mode     StopMode
	verify   func(p *sim.Proc) error
	ready    *sim.Event
	stop     *sim.Event
	logger   *slog.Logger

	state       State
	proc        *sim.Proc
	errReported bool
}

// New returns a task in the Created state.
func New(name string, body Body, opts ...Option) *Task {
	t := &Task{
		name:   name,
		body:   body,
		stop:   sim.NewEvent(name + ".stop"),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name implements Lifecycle.
func (t *Task) Name() string { return t.name }

// Children implements Lifecycle.
func (t *Task) Children() []Lifecycle { return append([]Lifecycle(nil), t.children...) }

// State returns the lifecycle state.
func (t *Task) State() State { return t.state }

// Logger returns the task logger.
func (t *Task) Logger() *slog.Logger { return t.logger }

// StopEvent fires when a cooperative stop is requested. Bodies race it
// against whatever they wait on.
func (t *Task) StopEvent() sim.Trigger { return t.stop }

// StopRequested reports whether Stop has been called.
func (t *Task) StopRequested() bool { return t.stop.IsSet() }

// MarkReady signals that setup is complete. It is a no-op for tasks
// created without WithReady.
func (t *Task) MarkReady() {
	if t.ready != nil {
		t.ready.Set()
	}
}

// Start starts the children depth-first in order, then spawns the body and
// yields once so that a body failing during initialization surfaces here.
// With WithReady, Start returns only after MarkReady or body exit.
func (t *Task) Start(p *sim.Proc) error {
	if t.state != Created {
		return fmt.Errorf("task %s: cannot start in state %s", t.name, t.state)
	}
	for _, c := range t.children {
		if err := c.Start(p); err != nil {
			t.state = Running
			return fault.AddNote(err, fmt.Sprintf("raised while starting %s", t.name))
		}
	}

	t.state = Running
	t.proc = p.Spawn(t.name, func(bp *sim.Proc) error {
		return t.body(bp, t)
	})
	p.Yield()

	if t.ready != nil && !t.proc.Finished() {
		p.Wait(t.ready, t.proc.Done())
	}
	if t.proc.Finished() {
		if err := t.proc.Err(); err != nil {
			t.errReported = true
			return err
		}
		if t.ready != nil && !t.ready.IsSet() {
			return fmt.Errorf("task %s: body exited before becoming ready", t.name)
		}
	}
	t.logger.Debug("task started", "task", t.name, "time", p.Now())
	return nil
}

// Stop terminates the task and returns its faults.
//
// It requests termination (stop event or kill), joins the body, stops the
// children in order and then runs the verify hook. The result is nil, the
// only fault when exactly one was raised and no child faulted, or a
// fault.Group. Stopping a task that never started is a no-op; stopping
// twice returns nil.
func (t *Task) Stop(p *sim.Proc) (err error) {
	if t.state == Stopping || t.state == Stopped {
		return nil
	}
	started := t.state == Running
	t.state = Stopping
	defer func() {
		t.state = Stopped
		if r := recover(); r != nil {
			err = fault.Merge("Exceptions occurred during cleanup of "+t.name,
				err, fmt.Errorf("panic during cleanup of %s: %v", t.name, r))
		}
	}()

	var faults []error
	if started && t.proc != nil {
		if t.mode == Forced {
			t.proc.Kill()
		} else {
			t.stop.Set()
		}
		if bodyErr := p.Join(t.proc); bodyErr != nil && !t.errReported {
			faults = append(faults, fault.AddNote(bodyErr, "raised during body of "+t.name))
		}
	}

	childFaulted := false
	for _, c := range t.children {
		if cerr := c.Stop(p); cerr != nil {
			childFaulted = true
			faults = append(faults, cerr)
		}
	}

	if started && t.verify != nil {
		if verr := t.runVerify(p); verr != nil {
			if fault.IsAssertion(verr) {
				verr = &fault.Group{
					Message: "A cleanup-stage assertion failed in " + t.name,
					Errs:    []error{verr},
				}
			} else {
				verr = fault.AddNote(verr, "raised during cleanup of "+t.name)
			}
			faults = append(faults, verr)
		}
	}

	t.logger.Debug("task stopped", "task", t.name, "time", p.Now(), "faults", len(faults))
	switch {
	case len(faults) == 0:
		return nil
	case len(faults) == 1 && !childFaulted:
		return faults[0]
	default:
		return fault.Merge("Exceptions occurred during cleanup of "+t.name, faults...)
	}
}

func (t *Task) runVerify(p *sim.Proc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("verify hook of %s panicked: %v", t.name, r)
		}
	}()
	return t.verify(p)
}

// Walk visits l and every descendant depth-first in child order.
func Walk(l Lifecycle, fn func(Lifecycle)) {
	fn(l)
	for _, c := range l.Children() {
		Walk(c, fn)
	}
}
