package network

import (
	"fmt"
	"iter"
	"log/slog"

	"github.com/roach88/vrtb/internal/codec"
	"github.com/roach88/vrtb/internal/layouts"
	"github.com/roach88/vrtb/internal/sim"
	"github.com/roach88/vrtb/internal/task"
	"github.com/roach88/vrtb/internal/trace"
	"github.com/roach88/vrtb/internal/vr"
)

// Driver stands in for the network on the far side of the adapter.
//
// Messages the design sends are captured in order and read back with
// GetSingleSent or GetSent. Messages passed to Receive are delivered to the
// design in order.
type Driver interface {
	task.Lifecycle

	Implementation() Implementation
	GetSingleSent(p *sim.Proc) codec.Value
	GetSent(p *sim.Proc, n int) iter.Seq[codec.Value]
	Receive(p *sim.Proc, messages ...codec.Value) error
	DisableSends() *vr.Guard
	DisableRecvs() *vr.Guard
}

type options struct {
	logger *slog.Logger
	sink   trace.Sink
}

// Option configures a Driver.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithSink records every transfer on the network ports.
func WithSink(s trace.Sink) Option {
	return func(o *options) {
		o.sink = s
	}
}

// New builds the binding for impl over d.
func New(impl Implementation, d *sim.Design, opts ...Option) (Driver, error) {
	impl, err := Parse(string(impl))
	if err != nil {
		return nil, err
	}
	var drv *VRDriver
	if impl == OpenPiton {
		drv, err = NewOpenPitonDriver(d, opts...)
	} else {
		drv, err = NewBusDriver(d, opts...)
	}
	if err != nil {
		return nil, err
	}
	return drv, nil
}

// Converter translates one value between layouts.
type Converter func(codec.Value) (codec.Value, error)

// VRDriver is a Driver over a pair of valid/ready ports. The send port
// consumes what the design sends; the receive port produces what the design
// receives.
type VRDriver struct {
	*task.Task
	task.Clocked

	impl     Implementation
	sendPort *vr.Consumer
	recvPort *vr.Producer
	captured *sim.Queue[codec.Value]
	pending  *sim.Queue[codec.Value]
	logger   *slog.Logger

	toMessage  Converter
	toRecvData Converter
}

func newVRDriver(impl Implementation, send *vr.Consumer, recv *vr.Producer, toMessage, toRecvData Converter, logger *slog.Logger) *VRDriver {
	d := &VRDriver{
		impl:       impl,
		sendPort:   send,
		recvPort:   recv,
		captured:   sim.NewQueue[codec.Value](string(impl)+".captured", 0),
		pending:    sim.NewQueue[codec.Value](string(impl)+".pending", 0),
		logger:     logger.With("component", "network", "network", string(impl)),
		toMessage:  toMessage,
		toRecvData: toRecvData,
	}
	d.Task = task.New(string(impl)+".network", d.run,
		task.WithChildren(send, recv),
		task.WithLogger(logger),
	)
	return d
}

// run moves at most one value in each direction per rising edge.
func (d *VRDriver) run(p *sim.Proc, t *task.Task) error {
	clk := d.Clock()
	if clk == nil {
		return fmt.Errorf("network %s: no clock bound", d.impl)
	}
	for !t.StopRequested() {
		if data, ok := d.sendPort.TryDequeue(); ok {
			msg, err := d.toMessage(data)
			if err != nil {
				return fmt.Errorf("network %s: decoding sent data: %w", d.impl, err)
			}
			d.captured.TryPut(msg)
			d.logger.Debug("captured message", "message", msg.String(), "time", p.Now())
		}
		if msg, ok := d.pending.TryGet(); ok {
			data, err := d.toRecvData(msg)
			if err != nil {
				return fmt.Errorf("network %s: encoding message: %w", d.impl, err)
			}
			if err := d.recvPort.EnqueueValues(p, data); err != nil {
				return err
			}
		}
		p.Wait(clk.RisingEdge(), t.StopEvent())
	}
	return nil
}

// Implementation returns the binding name.
func (d *VRDriver) Implementation() Implementation { return d.impl }

// SendPort returns the consumer on the design's outgoing interface.
func (d *VRDriver) SendPort() *vr.Consumer { return d.sendPort }

// RecvPort returns the producer on the design's incoming interface.
func (d *VRDriver) RecvPort() *vr.Producer { return d.recvPort }

// GetSingleSent returns the next message the design sent, suspending p
// until there is one.
func (d *VRDriver) GetSingleSent(p *sim.Proc) codec.Value {
	v, _ := d.captured.Get(p)
	return v
}

// GetSent yields n sent messages in order; a negative n yields forever.
func (d *VRDriver) GetSent(p *sim.Proc, n int) iter.Seq[codec.Value] {
	return func(yield func(codec.Value) bool) {
		for i := 0; n < 0 || i < n; i++ {
			v, ok := d.captured.Get(p)
			if !ok || !yield(v) {
				return
			}
		}
	}
}

// Receive queues messages for delivery to the design.
func (d *VRDriver) Receive(p *sim.Proc, messages ...codec.Value) error {
	want := layouts.Message()
	for _, m := range messages {
		if !m.Schema().SameLayout(want) {
			return &codec.SchemaError{
				Code:    codec.ErrCodeWidthMismatch,
				Schema:  want.String(),
				Message: fmt.Sprintf("network %s receives %s values, got %s", d.impl, want, m.Schema()),
			}
		}
	}
	for _, m := range messages {
		d.pending.Put(p, m)
	}
	return nil
}

// DisableSends stops the network from accepting what the design sends.
func (d *VRDriver) DisableSends() *vr.Guard { return d.sendPort.Disable() }

// DisableRecvs stops the network from offering messages to the design.
func (d *VRDriver) DisableRecvs() *vr.Guard { return d.recvPort.Disable() }

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) agentOptions() []vr.Option {
	return []vr.Option{vr.WithLogger(o.logger), vr.WithSink(o.sink)}
}

func signals(d *sim.Design, names ...string) ([]*sim.Signal, error) {
	out := make([]*sim.Signal, len(names))
	for i, n := range names {
		s, err := d.Signal(n)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
