package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vrtb/internal/fault"
	"github.com/roach88/vrtb/internal/sim"
)

var discard = WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

// runSim runs fn as the root process of a fresh kernel. Processes run off
// the test goroutine, so fn reports failures by returning them.
func runSim(t *testing.T, fn sim.ProcFunc) {
	t.Helper()
	require.NoError(t, sim.NewKernel().Run(context.Background(), "test", fn))
}

// stopAfterStart starts tk, optionally lets time pass, and returns the
// error of stopping it.
func stopAfterStart(t *testing.T, tk *Task, settle sim.Time) error {
	t.Helper()
	var stopErr error
	runSim(t, func(p *sim.Proc) error {
		if err := tk.Start(p); err != nil {
			return err
		}
		if settle > 0 {
			p.Sleep(settle)
		}
		stopErr = tk.Stop(p)
		return nil
	})
	return stopErr
}

// idle is a cooperative body that waits for stop.
func idle(p *sim.Proc, t *Task) error {
	p.Wait(t.StopEvent())
	return nil
}

func TestTask_LifecycleOrder(t *testing.T) {
	var events []string
	mk := func(name string, children ...Lifecycle) *Task {
		return New(name, func(p *sim.Proc, tk *Task) error {
			events = append(events, "body "+name)
			p.Wait(tk.StopEvent())
			events = append(events, "exit "+name)
			return nil
		}, WithChildren(children...), WithVerify(func(*sim.Proc) error {
			events = append(events, "verify "+name)
			return nil
		}), discard)
	}
	child := mk("child")
	parent := mk("parent", child)

	var running []State
	runSim(t, func(p *sim.Proc) error {
		if err := parent.Start(p); err != nil {
			return err
		}
		running = []State{parent.State(), child.State()}
		p.Sleep(10)
		return parent.Stop(p)
	})

	assert.Equal(t, []State{Running, Running}, running)
	assert.Equal(t, []string{
		"body child", "body parent",
		"exit parent", "exit child", "verify child", "verify parent",
	}, events)
	assert.Equal(t, Stopped, parent.State())
	assert.Equal(t, Stopped, child.State())
}

func TestTask_StopReturnsSingleFault(t *testing.T) {
	boom := errors.New("boom")
	tk := New("solo", func(p *sim.Proc, t *Task) error {
		p.Wait(t.StopEvent())
		return boom
	}, discard)

	err := stopAfterStart(t, tk, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var g *fault.Group
	assert.False(t, errors.As(err, &g), "a single fault is returned unwrapped")
	assert.Equal(t, []string{"raised during body of solo"}, fault.Notes(err))
}

func TestTask_StopGroupsMultipleFaults(t *testing.T) {
	child := New("child", idle, WithVerify(func(*sim.Proc) error {
		return fault.Assertf("child queue not empty")
	}), discard)
	parent := New("parent", func(p *sim.Proc, t *Task) error {
		p.Wait(t.StopEvent())
		return errors.New("parent body failed")
	}, WithChildren(child), discard)

	err := stopAfterStart(t, parent, 0)
	require.Error(t, err)

	var g *fault.Group
	require.ErrorAs(t, err, &g)
	assert.Equal(t, "Exceptions occurred during cleanup of parent", g.Message)
	require.Len(t, g.Errs, 2)

	leaves := fault.Flatten(err)
	require.Len(t, leaves, 2)
	assert.Equal(t, "parent body failed", leaves[0].Err.Error())
	assert.True(t, fault.IsAssertion(leaves[1].Err))
	assert.Contains(t, leaves[1].Path, "A cleanup-stage assertion failed in child")
}

func TestTask_OnlyChildFaultIsStillGrouped(t *testing.T) {
	child := New("child", func(p *sim.Proc, t *Task) error {
		p.Wait(t.StopEvent())
		return errors.New("child failed")
	}, discard)
	parent := New("parent", idle, WithChildren(child), discard)

	err := stopAfterStart(t, parent, 0)
	var g *fault.Group
	require.ErrorAs(t, err, &g)
	assert.Equal(t, "Exceptions occurred during cleanup of parent", g.Message)
}

func TestTask_VerifyAssertionIsWrapped(t *testing.T) {
	tk := New("agent", idle, WithVerify(func(*sim.Proc) error {
		return fault.Assertf("queue not empty")
	}), discard)

	err := stopAfterStart(t, tk, 0)
	var g *fault.Group
	require.ErrorAs(t, err, &g)
	assert.Equal(t, "A cleanup-stage assertion failed in agent", g.Message)
	require.Len(t, g.Errs, 1)
	assert.True(t, fault.IsAssertion(g.Errs[0]))
}

func TestTask_ForcedStopKillsBody(t *testing.T) {
	cleaned := false
	tk := New("stubborn", func(p *sim.Proc, t *Task) error {
		defer func() { cleaned = true }()
		for {
			p.Sleep(1)
		}
	}, WithStopMode(Forced), discard)

	assert.NoError(t, stopAfterStart(t, tk, 5))
	assert.True(t, cleaned)
}

func TestTask_StartSurfacesInitFailure(t *testing.T) {
	tk := New("broken", func(p *sim.Proc, t *Task) error {
		return errors.New("bad setup")
	}, discard)

	var startErr, stopErr error
	runSim(t, func(p *sim.Proc) error {
		startErr = tk.Start(p)
		stopErr = tk.Stop(p)
		return nil
	})
	assert.EqualError(t, startErr, "bad setup")
	// The failure is reported once, by Start.
	assert.NoError(t, stopErr)
}

func TestTask_StartWaitsForReady(t *testing.T) {
	tk := New("slow", func(p *sim.Proc, t *Task) error {
		p.Sleep(7)
		t.MarkReady()
		p.Wait(t.StopEvent())
		return nil
	}, WithReady(), discard)

	var readyAt sim.Time
	runSim(t, func(p *sim.Proc) error {
		if err := tk.Start(p); err != nil {
			return err
		}
		readyAt = p.Now()
		return tk.Stop(p)
	})
	assert.Equal(t, sim.Time(7), readyAt)
}

func TestTask_StopIsIdempotentAndNoopWhenNeverStarted(t *testing.T) {
	verified := false
	tk := New("unused", idle, WithVerify(func(*sim.Proc) error {
		verified = true
		return fault.Assertf("should not run")
	}), discard)

	runSim(t, func(p *sim.Proc) error {
		return errors.Join(tk.Stop(p), tk.Stop(p))
	})
	assert.False(t, verified)
	assert.Equal(t, Stopped, tk.State())
}

func TestTask_StartTwiceFails(t *testing.T) {
	tk := New("once", idle, discard)
	var second error
	runSim(t, func(p *sim.Proc) error {
		if err := tk.Start(p); err != nil {
			return err
		}
		second = tk.Start(p)
		return tk.Stop(p)
	})
	assert.Error(t, second)
}

func TestTask_VerifyPanicIsReported(t *testing.T) {
	tk := New("panicky", idle, WithVerify(func(*sim.Proc) error {
		panic("bad hook")
	}), discard)

	err := stopAfterStart(t, tk, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad hook")
}
