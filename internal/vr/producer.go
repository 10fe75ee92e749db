package vr

import (
	"github.com/roach88/vrtb/internal/codec"
	"github.com/roach88/vrtb/internal/sim"
	"github.com/roach88/vrtb/internal/task"
)

// Producer drives the valid and data lines of an interface from a queue.
//
// At each falling edge with valid low, an enabled producer pops the head of
// its queue, drives it onto the data target and raises valid. The value
// stays latched until a rising edge samples valid && ready; valid then
// drops and the next value is latched at the following falling edge.
type Producer struct {
	*driver
	latched bool
}

// NewProducer returns a producer named after the interface's producer
// endpoint.
func NewProducer(iface Interface, schema *codec.Schema, opts ...Option) (*Producer, error) {
	pr := &Producer{}
	d, err := newDriver("producer", agentName(iface.Producer()), iface, schema, opts)
	if err != nil {
		return nil, err
	}
	pr.driver = d
	d.setup = pr.setup
	d.onEdge = pr.onEdge
	d.cleanup = pr.cleanup
	d.state = pr.queueState
	return pr, nil
}

// EnqueueValues queues values for transmission in order. Values must carry
// the producer's schema; a bounded queue suspends p while full.
func (pr *Producer) EnqueueValues(p *sim.Proc, values ...codec.Value) error {
	for _, v := range values {
		if err := pr.checkSchema(v); err != nil {
			return err
		}
	}
	for _, v := range values {
		pr.queue.Put(p, v)
	}
	return nil
}

// EnqueueQuick builds a value with codec.Quick and queues it.
func (pr *Producer) EnqueueQuick(p *sim.Proc, args ...any) error {
	v, err := codec.Quick(pr.schema, args...)
	if err != nil {
		return err
	}
	return pr.EnqueueValues(p, v)
}

// Pending returns the number of values not yet transferred, including a
// latched head.
func (pr *Producer) Pending() int {
	n := pr.queue.Len()
	if pr.latched {
		n++
	}
	return n
}

func (pr *Producer) setup() error {
	if err := pr.iface.Valid.SetUint(0); err != nil {
		return err
	}
	return codec.ToSignals(codec.Zeroed(pr.schema), pr.iface.Data)
}

func (pr *Producer) onEdge(p *sim.Proc, clk task.Clock) error {
	if pr.iface.Fire() {
		pr.latched = false
		pr.transfers++
		if err := pr.iface.Valid.SetUint(0); err != nil {
			return err
		}
	}

	p.Wait(clk.FallingEdge())

	if pr.iface.Valid.High() || !pr.enabled {
		return nil
	}
	v, ok := pr.queue.TryGet()
	if !ok {
		return nil
	}
	if err := codec.ToSignals(v, pr.iface.Data); err != nil {
		return err
	}
	pr.latched = true
	return pr.iface.Valid.SetUint(1)
}

func (pr *Producer) cleanup() error {
	return pr.iface.Valid.SetImmediateUint(0)
}

func (pr *Producer) queueState() QueueState {
	switch {
	case pr.queue.Empty() && !pr.latched:
		return Empty
	case pr.queue.Full():
		return Full
	default:
		return Partial
	}
}
