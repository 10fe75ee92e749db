package vr

import (
	"fmt"
	"log/slog"

	"github.com/roach88/vrtb/internal/codec"
	"github.com/roach88/vrtb/internal/fault"
	"github.com/roach88/vrtb/internal/sim"
	"github.com/roach88/vrtb/internal/task"
)

// driver is the part shared by producers and consumers: the task loop,
// the queue, the enable flag and the monitor child.
type driver struct {
	*task.Task
	task.Clocked

	iface     Interface
	schema    *codec.Schema
	queue     *sim.Queue[codec.Value]
	monitor   *Monitor
	logger    *slog.Logger
	mode      string
	enabled   bool
	transfers int

	setup   func() error
	onEdge  func(p *sim.Proc, clk task.Clock) error
	cleanup func() error
	state   func() QueueState
}

func newDriver(mode, name string, iface Interface, schema *codec.Schema, opts []Option) (*driver, error) {
	if err := iface.Validate(); err != nil {
		return nil, err
	}
	if _, err := codec.BitWidth(schema); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	if o.name != "" {
		name = o.name
	}
	if o.capacity < 0 {
		return nil, fmt.Errorf("%s %s: negative capacity %d", mode, name, o.capacity)
	}
	d := &driver{
		iface:   iface,
		schema:  schema,
		queue:   sim.NewQueue[codec.Value](name, o.capacity),
		logger:  o.logger.With("component", mode, "agent", name),
		mode:    mode,
		enabled: !o.disabled,
	}
	d.monitor = NewMonitor(name, iface, schema, WithSink(o.sink), WithLogger(o.logger))
	d.Task = task.New(name, d.run,
		task.WithChildren(d.monitor),
		task.WithReady(),
		task.WithVerify(d.verify),
		task.WithLogger(d.logger),
	)
	return d, nil
}

func (d *driver) run(p *sim.Proc, t *task.Task) error {
	clk := d.Clock()
	if clk == nil {
		return fmt.Errorf("%s %s: no clock bound", d.mode, t.Name())
	}
	d.logger.Info("started driving the valid/ready interface", "mode", d.mode)

	if err := d.setup(); err != nil {
		return err
	}
	p.Settle()
	t.MarkReady()

	for !t.StopRequested() {
		if err := d.onEdge(p, clk); err != nil {
			return err
		}
		p.Wait(clk.RisingEdge(), t.StopEvent())
	}

	if err := d.cleanup(); err != nil {
		return err
	}
	d.logger.Info("stopped driving the valid/ready interface", "mode", d.mode, "transfers", d.transfers)
	return nil
}

func (d *driver) verify(*sim.Proc) error {
	if st := d.state(); st != Empty {
		return fault.Assertf("there are elements left in the %s queue of %s: %d queued (%s)",
			d.mode, d.Name(), d.queue.Len(), st)
	}
	return nil
}

// Interface returns the driven interface.
func (d *driver) Interface() Interface { return d.iface }

// Schema returns the data schema.
func (d *driver) Schema() *codec.Schema { return d.schema }

// Monitor returns the agent's monitor child.
func (d *driver) Monitor() *Monitor { return d.monitor }

// Transfers returns the number of completed handshakes seen by the agent.
func (d *driver) Transfers() int { return d.transfers }

// QueueState reports whether the agent still holds data.
func (d *driver) QueueState() QueueState { return d.state() }

// Enabled reports whether the agent is driving.
func (d *driver) Enabled() bool { return d.enabled }

// Enable lets the agent drive.
func (d *driver) Enable() { d.enabled = true }

// Disable stops the agent from offering or accepting data and returns a
// guard that restores the previous state:
//
//	defer agent.Disable().Restore()
func (d *driver) Disable() *Guard {
	g := &Guard{d: d, prev: d.enabled}
	d.enabled = false
	return g
}

// WithDisabled runs fn with the agent disabled and restores the previous
// state on every exit path, including panics.
func (d *driver) WithDisabled(fn func() error) error {
	defer d.Disable().Restore()
	return fn()
}

func (d *driver) checkSchema(v codec.Value) error {
	if !v.Schema().SameLayout(d.schema) {
		return &codec.SchemaError{
			Code:    codec.ErrCodeWidthMismatch,
			Schema:  d.schema.String(),
			Message: fmt.Sprintf("%s %s carries %s, got a %s value", d.mode, d.Name(), d.schema, v.Schema()),
		}
	}
	return nil
}

// Guard restores an agent's enabled state.
type Guard struct {
	d    *driver
	prev bool
	done bool
}

// Restore puts back the enabled state captured by Disable. Calling it more
// than once has no further effect.
func (g *Guard) Restore() {
	if g.done {
		return
	}
	g.done = true
	g.d.enabled = g.prev
}
