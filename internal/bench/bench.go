// Package bench orchestrates a test: it owns the clock and the root tasks,
// resets the design, starts everything, runs the test body and tears
// everything down, surfacing every fault as one aggregated error.
package bench

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/vrtb/internal/fault"
	"github.com/roach88/vrtb/internal/sim"
	"github.com/roach88/vrtb/internal/task"
)

// ClockTask is the id under which the bench registers its clock.
const ClockTask = "clock"

// Group messages used when aggregating faults.
const (
	MsgSetupFailed = "Test setup failed"
	MsgTestFailed  = "Test failed"
)

// Notes attached to faults as they propagate out of the bench.
const (
	NoteRaisedInBody = "Raised in TB body"
	NoteNotAssertion = "CRITICAL: Not an assertion error, test may be ill defined"
)

type pending struct {
	id string
	l  task.Lifecycle
}

type options struct {
	period sim.Time
	clock  task.Clock
	logger *slog.Logger
	tasks  []pending
}

// Option configures a Bench.
type Option func(*options)

// WithClockPeriod sets the period of the auto-created clock.
func WithClockPeriod(d sim.Time) Option {
	return func(o *options) {
		o.period = d
	}
}

// WithClock replaces the auto-created clock.
func WithClock(c task.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTask registers a root task at construction, after the clock.
func WithTask(id string, l task.Lifecycle) Option {
	return func(o *options) {
		o.tasks = append(o.tasks, pending{id: id, l: l})
	}
}

// WithConfig applies the clock period from cfg.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		if cfg.ClockPeriod > 0 {
			o.period = cfg.ClockPeriod
		}
	}
}

// Bench owns the root tasks of a test, keyed by unique id.
//
// Tasks start in registration order, the clock first. They stop in the
// same order except that the clock always stops last, so agents never wait
// on a clock that has already gone.
type Bench struct {
	design *sim.Design
	clock  task.Clock
	logger *slog.Logger
	order  []string
	tasks  map[string]task.Lifecycle
	state  task.State
}

// New returns a bench over design. Unless WithClock is given, the clock is
// a SignalClock when the design has a 1-bit "clk" signal and a
// SyntheticClock otherwise.
func New(design *sim.Design, opts ...Option) (*Bench, error) {
	o := options{period: task.DefaultPeriod, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.period < 2 {
		return nil, fault.NewConfigError(fault.ErrCodeInvalidConfig, "clock period %s is too short", o.period)
	}

	b := &Bench{
		design: design,
		logger: o.logger.With("component", "bench"),
		tasks:  make(map[string]task.Lifecycle),
	}

	b.clock = o.clock
	if b.clock == nil {
		topts := []task.Option{task.WithLogger(o.logger)}
		if clk, ok := design.Lookup("clk"); ok && clk.Width() == 1 {
			b.clock = task.NewSignalClock(ClockTask, clk, o.period, topts...)
		} else {
			b.clock = task.NewSyntheticClock(ClockTask, o.period, topts...)
		}
	}
	if err := b.Add(ClockTask, b.clock); err != nil {
		return nil, err
	}
	for _, p := range o.tasks {
		if err := b.Add(p.id, p.l); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Add registers a root task under id and binds the bench clock to every
// task in its tree that needs one. Ids are unique.
func (b *Bench) Add(id string, l task.Lifecycle) error {
	if _, dup := b.tasks[id]; dup {
		return fault.NewConfigError(fault.ErrCodeDuplicateTask, "Task id [%s] already in use", id)
	}
	if b.state != task.Created {
		return fmt.Errorf("bench: cannot add task %s after the bench was entered", id)
	}
	b.tasks[id] = l
	b.order = append(b.order, id)
	task.BindClock(l, b.clock)
	return nil
}

// Design returns the design under test.
func (b *Bench) Design() *sim.Design { return b.design }

// Clock returns the bench clock.
func (b *Bench) Clock() task.Clock { return b.clock }

// Task returns the root task registered under id.
func (b *Bench) Task(id string) (task.Lifecycle, bool) {
	l, ok := b.tasks[id]
	return l, ok
}

// IDs returns the task ids in registration order.
func (b *Bench) IDs() []string { return append([]string(nil), b.order...) }

// Logger returns the bench logger.
func (b *Bench) Logger() *slog.Logger { return b.logger }

// Enter resets the design and starts every task in registration order.
// Start failures do not stop later tasks from starting; all of them are
// returned in a Group "Test setup failed". A failed reset skips the starts.
func (b *Bench) Enter(p *sim.Proc) error {
	if b.state != task.Created {
		return fmt.Errorf("bench: already entered")
	}
	b.state = task.Running
	b.logger.Info("setting up bench", "tasks", len(b.order), "time", p.Now())

	var faults []error
	if err := Reset(p, b.design); err != nil {
		faults = append(faults, err)
	} else {
		for _, id := range b.order {
			if err := b.tasks[id].Start(p); err != nil {
				faults = append(faults, err)
			}
		}
	}
	if len(faults) > 0 {
		return fault.Merge(MsgSetupFailed, faults...)
	}
	b.logger.Info("bench setup done", "time", p.Now())
	return nil
}

// Exit stops every task and aggregates bodyErr with the cleanup faults.
//
// bodyErr, if any, is noted "Raised in TB body", and additionally flagged
// when it is not an assertion failure. Each task fault is noted with its
// task id. The result is nil or a Group "Test failed".
func (b *Bench) Exit(p *sim.Proc, bodyErr error) error {
	b.logger.Info("cleaning up", "time", p.Now())

	var faults []error
	if bodyErr != nil {
		e := fault.AddNote(bodyErr, NoteRaisedInBody)
		if !fault.IsAssertion(bodyErr) {
			e = fault.AddNote(e, NoteNotAssertion)
		}
		faults = append(faults, e)
	}
	if cleanup := b.stopTasks(p); cleanup != nil {
		faults = append(faults, cleanup)
	}
	if len(faults) > 0 {
		return fault.Merge(MsgTestFailed, faults...)
	}
	b.logger.Info("cleanup done", "time", p.Now())
	return nil
}

func (b *Bench) stopTasks(p *sim.Proc) error {
	b.state = task.Stopping
	defer func() { b.state = task.Stopped }()

	ids := make([]string, 0, len(b.order))
	for _, id := range b.order {
		if id != ClockTask {
			ids = append(ids, id)
		}
	}
	if _, ok := b.tasks[ClockTask]; ok {
		ids = append(ids, ClockTask)
	}

	var faults []error
	for _, id := range ids {
		if err := b.tasks[id].Stop(p); err != nil {
			faults = append(faults, fault.AddNote(err, fmt.Sprintf("Raised in task [%s]", id)))
		}
	}
	switch len(faults) {
	case 0:
		return nil
	case 1:
		return fault.Merge("An exception occurred during TB cleanup", faults...)
	default:
		return fault.Merge("Exceptions occurred during TB cleanup", faults...)
	}
}

// Run enters the bench, runs body and exits. If Enter fails, the tasks that
// did start are still stopped; their faults join the setup failure under
// "Test failed".
func (b *Bench) Run(p *sim.Proc, body func(p *sim.Proc) error) error {
	if err := b.Enter(p); err != nil {
		if b.state != task.Running {
			return err
		}
		if cleanup := b.stopTasks(p); cleanup != nil {
			return fault.Merge(MsgTestFailed, err, cleanup)
		}
		return err
	}
	return b.Exit(p, runBody(p, body))
}

// Execute runs the bench as the root process of its design's kernel.
func (b *Bench) Execute(ctx context.Context, body func(p *sim.Proc) error) error {
	return b.design.Kernel().Run(ctx, "bench", func(p *sim.Proc) error {
		return b.Run(p, body)
	})
}

func runBody(p *sim.Proc, body func(p *sim.Proc) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in test body: %v", r)
		}
	}()
	return body(p)
}
