package task

import (
	"github.com/roach88/vrtb/internal/fault"
	"github.com/roach88/vrtb/internal/sim"
)

// Edges waits for n occurrences of trig.
func Edges(p *sim.Proc, trig sim.Trigger, n int) {
	for i := 0; i < n; i++ {
		p.Wait(trig)
	}
}

// EdgesHolding waits n rising edges and checks cond after each one. Edges
// are numbered from zero in the failure message.
func EdgesHolding(p *sim.Proc, c Clock, n int, cond func() bool, msg string) error {
	details := ""
	if msg != "" {
		details = ": " + msg
	}
	for i := 0; i < n; i++ {
		p.Wait(c.RisingEdge())
		if !cond() {
			return fault.Assertf("Assertion violation in rising edge #%d%s", i, details)
		}
	}
	return nil
}

// Within races triggers against n rising edges of c and returns the index
// of the trigger that fired first. Running out of edges is an assertion
// failure.
func Within(p *sim.Proc, c Clock, n int, triggers ...sim.Trigger) (int, error) {
	all := make([]sim.Trigger, 0, len(triggers)+1)
	all = append(all, triggers...)
	all = append(all, c.RisingEdge())
	for i := 0; i < n; i++ {
		idx := p.Wait(all...)
		if idx < len(triggers) {
			return idx, nil
		}
	}
	return -1, fault.Assertf("no trigger fired within %d cycles", n)
}

// Eventually checks cond at each of up to n rising edges and succeeds at the
// first edge where it holds.
func Eventually(p *sim.Proc, c Clock, n int, cond func() bool, msg string) error {
	for i := 0; i < n; i++ {
		p.Wait(c.RisingEdge())
		if cond() {
			return nil
		}
	}
	return fault.Assertf("%s: not satisfied within %d cycles", msg, n)
}
