package bench

import (
	"fmt"

	"github.com/roach88/vrtb/internal/fault"
	"github.com/roach88/vrtb/internal/sim"
	"github.com/roach88/vrtb/internal/task"
)

// Reset pulses the active-low rst_n signal: low, one settling step, high,
// one settling step. Designs without rst_n are left alone.
func Reset(p *sim.Proc, d *sim.Design) error {
	rst, ok := d.Lookup("rst_n")
	if !ok {
		return nil
	}
	d.Kernel().Logger().Info("asserting reset", "signal", rst.Name(), "time", p.Now())
	if err := rst.SetUint(0); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	p.Settle()
	if err := rst.SetUint(1); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	p.Settle()
	return nil
}

// Flush raises the design's flush input for one rising edge of c.
func Flush(p *sim.Proc, d *sim.Design, c task.Clock) error {
	sig, err := d.Signal("flush")
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := sig.SetUint(1); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	p.Wait(c.RisingEdge())
	if err := sig.SetUint(0); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	p.Wait(c.RisingEdge())
	return nil
}

// Flush raises the design's flush input for one cycle of the bench clock.
func (b *Bench) Flush(p *sim.Proc) error {
	return Flush(p, b.design, b.clock)
}

// PollUntil calls attempt up to max times, once per rising edge of c
// starting with the next edge, until it reports done. An attempt error ends
// polling. Running out of attempts is an assertion failure.
func PollUntil(p *sim.Proc, c task.Clock, max int, attempt func() (bool, error)) error {
	for i := 0; i < max; i++ {
		p.Wait(c.RisingEdge())
		done, err := attempt()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return fault.Assertf("condition not reached after %d attempts", max)
}
