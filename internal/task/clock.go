package task

import (
	"github.com/roach88/vrtb/internal/sim"
)

// DefaultPeriod is the clock period used when none is configured.
const DefaultPeriod = 10 * sim.Nanosecond

// Clock is a source of rising and falling edge notifications.
//
// Edges are not buffered: a process observes an edge only if it is waiting
// when the edge occurs.
type Clock interface {
	Lifecycle
	RisingEdge() sim.Trigger
	FallingEdge() sim.Trigger
	Period() sim.Time
}

// NeedsClock is implemented by tasks that synchronize on the bench clock.
type NeedsClock interface {
	BindClock(c Clock)
}

// Clocked is embedded by tasks that need the bench clock.
type Clocked struct {
	clock Clock
}

// BindClock implements NeedsClock.
func (c *Clocked) BindClock(clk Clock) { c.clock = clk }

// Clock returns the bound clock, or nil before binding.
func (c *Clocked) Clock() Clock { return c.clock }

// BindClock walks the task tree rooted at l and binds c to every task
// implementing NeedsClock.
func BindClock(l Lifecycle, c Clock) {
	Walk(l, func(n Lifecycle) {
		if nc, ok := n.(NeedsClock); ok {
			nc.BindClock(c)
		}
	})
}

// SyntheticClock produces edge notifications without driving a physical
// signal. It alternates rising and falling notifications every half period.
type SyntheticClock struct {
	*Task
	period sim.Time
	rise   *sim.Event
	fall   *sim.Event
}

// NewSyntheticClock returns a stopped synthetic clock.
func NewSyntheticClock(name string, period sim.Time, opts ...Option) *SyntheticClock {
	c := &SyntheticClock{
		period: period,
		rise:   sim.NewEvent(name + ".rise"),
		fall:   sim.NewEvent(name + ".fall"),
	}
	c.Task = New(name, c.run, opts...)
	return c
}

func (c *SyntheticClock) run(p *sim.Proc, t *Task) error {
	half := c.period / 2
	for {
		c.rise.Set()
		c.rise.Clear()
		if p.Wait(p.Kernel().Timer(half), t.StopEvent()) == 1 {
			return nil
		}
		c.fall.Set()
		c.fall.Clear()
		if p.Wait(p.Kernel().Timer(c.period-half), t.StopEvent()) == 1 {
			return nil
		}
	}
}

// RisingEdge implements Clock.
func (c *SyntheticClock) RisingEdge() sim.Trigger { return c.rise }

// FallingEdge implements Clock.
func (c *SyntheticClock) FallingEdge() sim.Trigger { return c.fall }

// Period implements Clock.
func (c *SyntheticClock) Period() sim.Time { return c.period }

// SignalClock drives a physical 1-bit clock signal and reports its edges.
type SignalClock struct {
	*Task
	clk    *sim.Signal
	period sim.Time
}

// NewSignalClock returns a stopped clock driving clk.
func NewSignalClock(name string, clk *sim.Signal, period sim.Time, opts ...Option) *SignalClock {
	c := &SignalClock{clk: clk, period: period}
	c.Task = New(name, c.run, opts...)
	return c
}

func (c *SignalClock) run(p *sim.Proc, t *Task) error {
	half := c.period / 2
	gen := p.Spawn(t.Name()+".generator", func(gp *sim.Proc) error {
		for {
			if err := c.clk.SetUint(1); err != nil {
				return err
			}
			gp.Sleep(half)
			if err := c.clk.SetUint(0); err != nil {
				return err
			}
			gp.Sleep(c.period - half)
		}
	})
	if p.Wait(t.StopEvent(), gen.Done()) == 1 {
		return gen.Err()
	}
	gen.Kill()
	p.Join(gen)
	return nil
}

// Signal returns the driven clock signal.
func (c *SignalClock) Signal() *sim.Signal { return c.clk }

// RisingEdge implements Clock.
func (c *SignalClock) RisingEdge() sim.Trigger { return c.clk.RisingEdge() }

// FallingEdge implements Clock.
func (c *SignalClock) FallingEdge() sim.Trigger { return c.clk.FallingEdge() }

// Period implements Clock.
func (c *SignalClock) Period() sim.Time { return c.period }
