package vr

import (
	"fmt"
	"log/slog"

	"github.com/roach88/vrtb/internal/codec"
	"github.com/roach88/vrtb/internal/sim"
	"github.com/roach88/vrtb/internal/task"
)

// Relay forwards every value accepted by a consumer to a producer, once per
// rising edge, optionally converting it. It stands in for design logic that
// moves data between two interfaces.
type Relay struct {
	*task.Task
	task.Clocked

	from    *Consumer
	to      *Producer
	convert func(codec.Value) (codec.Value, error)
	logger  *slog.Logger
	moved   int
}

// NewRelay returns a relay owning from and to as children. A nil convert
// forwards values unchanged, which requires both agents to share a schema.
func NewRelay(name string, from *Consumer, to *Producer, convert func(codec.Value) (codec.Value, error), opts ...Option) (*Relay, error) {
	if convert == nil && !from.Schema().SameLayout(to.Schema()) {
		return nil, fmt.Errorf("relay %s: %s -> %s needs a converter", name, from.Schema(), to.Schema())
	}
	o := buildOptions(opts)
	r := &Relay{
		from:    from,
		to:      to,
		convert: convert,
		logger:  o.logger.With("component", "relay", "relay", name),
	}
	r.Task = task.New(name, r.run,
		task.WithChildren(from, to),
		task.WithLogger(r.logger),
	)
	return r, nil
}

// Moved returns the number of values forwarded.
func (r *Relay) Moved() int { return r.moved }

func (r *Relay) run(p *sim.Proc, t *task.Task) error {
	clk := r.Clock()
	if clk == nil {
		return fmt.Errorf("relay %s: no clock bound", t.Name())
	}
	for !t.StopRequested() {
		for {
			v, ok := r.from.TryDequeue()
			if !ok {
				break
			}
			if r.convert != nil {
				var err error
				if v, err = r.convert(v); err != nil {
					return fmt.Errorf("relay %s: %w", t.Name(), err)
				}
			}
			if err := r.to.EnqueueValues(p, v); err != nil {
				return err
			}
			r.moved++
		}
		p.Wait(clk.RisingEdge(), t.StopEvent())
	}
	r.logger.Debug("relay stopped", "moved", r.moved)
	return nil
}
