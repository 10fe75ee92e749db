package vr

import (
	"fmt"
	"iter"

	"github.com/roach88/vrtb/internal/codec"
	"github.com/roach88/vrtb/internal/sim"
	"github.com/roach88/vrtb/internal/task"
)

// Consumer drives the ready line of an interface and queues every value it
// accepts.
//
// Ready is recomputed at each falling edge: enabled && queue not full, or,
// when the interface uses ready-as-ack, additionally only while valid is
// high.
type Consumer struct {
	*driver
}

// NewConsumer returns a consumer named after the interface's consumer
// endpoint.
func NewConsumer(iface Interface, schema *codec.Schema, opts ...Option) (*Consumer, error) {
	c := &Consumer{}
	d, err := newDriver("consumer", agentName(iface.Consumer()), iface, schema, opts)
	if err != nil {
		return nil, err
	}
	c.driver = d
	d.setup = c.setup
	d.onEdge = c.onEdge
	d.cleanup = c.cleanup
	d.state = c.queueState
	return c, nil
}

// DequeueValue returns the oldest accepted value, suspending p until one
// arrives.
func (c *Consumer) DequeueValue(p *sim.Proc) codec.Value {
	v, _ := c.queue.Get(p)
	return v
}

// TryDequeue returns the oldest accepted value if one is queued.
func (c *Consumer) TryDequeue() (codec.Value, bool) {
	return c.queue.TryGet()
}

// DequeueValues yields n accepted values in order, suspending p between
// them as needed. A negative n yields forever. The sequence is lazy and can
// be ranged over again to continue from the queue's current head.
func (c *Consumer) DequeueValues(p *sim.Proc, n int) iter.Seq[codec.Value] {
	return func(yield func(codec.Value) bool) {
		for i := 0; n < 0 || i < n; i++ {
			v, ok := c.queue.Get(p)
			if !ok || !yield(v) {
				return
			}
		}
	}
}

// Pending returns the number of accepted values not yet dequeued.
func (c *Consumer) Pending() int { return c.queue.Len() }

func (c *Consumer) setup() error {
	return c.iface.Ready.SetUint(0)
}

func (c *Consumer) onEdge(p *sim.Proc, clk task.Clock) error {
	if c.iface.Fire() {
		v, err := codec.FromSignals(c.schema, c.iface.Data)
		if err != nil {
			return err
		}
		if !c.queue.TryPut(v) {
			return fmt.Errorf("consumer %s: transfer accepted while queue full", c.Name())
		}
		c.transfers++
	}

	p.Wait(clk.FallingEdge())

	canConsume := c.enabled && !c.queue.Full()
	ready := canConsume
	if c.iface.ReadyIsAck {
		ready = c.iface.Valid.High() && canConsume
	}
	var bit uint64
	if ready {
		bit = 1
	}
	return c.iface.Ready.SetUint(bit)
}

func (c *Consumer) cleanup() error {
	return c.iface.Ready.SetImmediateUint(0)
}

func (c *Consumer) queueState() QueueState {
	switch {
	case c.queue.Empty():
		return Empty
	case c.queue.Full():
		return Full
	default:
		return Partial
	}
}
