package vr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vrtb/internal/codec"
	"github.com/roach88/vrtb/internal/fault"
	"github.com/roach88/vrtb/internal/sim"
	"github.com/roach88/vrtb/internal/task"
	"github.com/roach88/vrtb/internal/trace"
)

var (
	wordLayout = codec.Record("Word", codec.F("value", codec.Leaf(16)))
	word       = wordLayout.WithQuickOrder("value")
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// loopback wires a producer straight into a consumer over one interface.
type loopback struct {
	k    *sim.Kernel
	clk  *task.SyntheticClock
	prod *Producer
	cons *Consumer
	rec  *trace.Recorder
}

func newLoopback(t *testing.T, readyIsAck bool, consOpts ...Option) *loopback {
	t.Helper()
	k := sim.NewKernel()
	d := sim.NewDesign(k)
	iface := Interface{
		Valid:        d.MustAdd("val", 1),
		Ready:        d.MustAdd("rdy", 1),
		Data:         d.MustAdd("data", 16),
		ReadyIsAck:   readyIsAck,
		ProducerName: "TB send",
		ConsumerName: "TB recv",
	}
	rec := trace.NewRecorder()

	prod, err := NewProducer(iface, word, WithSink(rec), WithLogger(quiet))
	require.NoError(t, err)
	cons, err := NewConsumer(iface, word, append([]Option{WithLogger(quiet)}, consOpts...)...)
	require.NoError(t, err)

	clk := task.NewSyntheticClock("clock", task.DefaultPeriod, task.WithLogger(quiet))
	task.BindClock(prod, clk)
	task.BindClock(cons, clk)
	return &loopback{k: k, clk: clk, prod: prod, cons: cons, rec: rec}
}

// run starts the clock and both agents, runs body, then stops everything
// with the clock last. It returns the body error joined with teardown faults.
func (l *loopback) run(t *testing.T, body func(p *sim.Proc) error) error {
	t.Helper()
	return l.k.Run(context.Background(), "test", func(p *sim.Proc) error {
		for _, tk := range []task.Lifecycle{l.clk, l.prod, l.cons} {
			if err := tk.Start(p); err != nil {
				return err
			}
		}
		bodyErr := body(p)
		stopErr := fault.Merge("teardown", l.prod.Stop(p), l.cons.Stop(p), l.clk.Stop(p))
		return errors.Join(bodyErr, stopErr)
	})
}

func values(t *testing.T, ns ...int) []codec.Value {
	t.Helper()
	out := make([]codec.Value, len(ns))
	for i, n := range ns {
		v, err := codec.Quick(word, n)
		require.NoError(t, err)
		out[i] = v
	}
	return out
}

func TestAgents_NamedAfterEndpoints(t *testing.T) {
	l := newLoopback(t, false)
	assert.Equal(t, "TBsend", l.prod.Name())
	assert.Equal(t, "TBrecv", l.cons.Name())
	assert.Equal(t, "TBsend.monitor", l.prod.Monitor().Name())
}

func TestTransfer_ExactlyOnceInOrder(t *testing.T) {
	l := newLoopback(t, false)
	const n = 20
	sent := make([]int, n)
	for i := range sent {
		sent[i] = i * 3
	}

	var got []uint64
	in := values(t, sent...)
	err := l.run(t, func(p *sim.Proc) error {
		if err := l.prod.EnqueueValues(p, in...); err != nil {
			return err
		}
		for v := range l.cons.DequeueValues(p, n) {
			got = append(got, v.Uint("value"))
		}
		return nil
	})
	require.NoError(t, err)

	want := make([]uint64, n)
	for i, s := range sent {
		want[i] = uint64(s)
	}
	assert.Equal(t, want, got)
	assert.Equal(t, n, l.prod.Transfers())
	assert.Equal(t, n, l.cons.Transfers())
	assert.Equal(t, n, l.prod.Monitor().Observed())
	assert.Len(t, l.rec.Transfers(), n)
	assert.Equal(t, Empty, l.prod.QueueState())
}

func TestTransfer_OnePerCycle(t *testing.T) {
	l := newLoopback(t, false)
	in := values(t, 1, 2, 3, 4)
	err := l.run(t, func(p *sim.Proc) error {
		if err := l.prod.EnqueueValues(p, in...); err != nil {
			return err
		}
		for range l.cons.DequeueValues(p, 4) {
		}
		return nil
	})
	require.NoError(t, err)

	trs := l.rec.Transfers()
	require.Len(t, trs, 4)
	period := int64(task.DefaultPeriod)
	for i := 1; i < len(trs); i++ {
		assert.Equal(t, period, trs[i].TimePS-trs[i-1].TimePS, "back-to-back transfers on consecutive edges")
	}
	assert.Equal(t, "TB send", trs[0].Producer)
	assert.Equal(t, "TB recv", trs[0].Consumer)
}

func TestBackpressure(t *testing.T) {
	l := newLoopback(t, false)
	const cycles = 6

	in := values(t, 7, 8, 9)
	err := l.run(t, func(p *sim.Proc) error {
		guard := l.cons.Disable()
		if err := l.prod.EnqueueValues(p, in...); err != nil {
			return err
		}
		task.Edges(p, l.clk.RisingEdge(), cycles)
		assert.Equal(t, 0, l.cons.Transfers())
		assert.Equal(t, 0, l.prod.Monitor().Observed())
		assert.Equal(t, Partial, l.prod.QueueState())
		assert.False(t, l.cons.Enabled())

		guard.Restore()
		assert.True(t, l.cons.Enabled())

		first := l.cons.DequeueValue(p)
		assert.Equal(t, uint64(7), first.Uint("value"))
		for range l.cons.DequeueValues(p, 2) {
		}
		return nil
	})
	require.NoError(t, err)
}

func TestWithDisabled_RestoresOnPanic(t *testing.T) {
	l := newLoopback(t, false)
	assert.Panics(t, func() {
		_ = l.prod.WithDisabled(func() error {
			assert.False(t, l.prod.Enabled())
			panic("inside")
		})
	})
	assert.True(t, l.prod.Enabled())

	// Nested guards restore in reverse order.
	outer := l.prod.Disable()
	inner := l.prod.Disable()
	inner.Restore()
	assert.False(t, l.prod.Enabled())
	outer.Restore()
	outer.Restore()
	assert.True(t, l.prod.Enabled())
}

func TestReadyIsAck(t *testing.T) {
	l := newLoopback(t, true)
	var readyWithoutValid bool

	in := values(t, 11, 12)
	err := l.run(t, func(p *sim.Proc) error {
		// Idle: ready must stay low while valid is low.
		for i := 0; i < 3; i++ {
			p.Wait(l.clk.RisingEdge())
			if l.cons.Interface().Ready.High() && !l.cons.Interface().Valid.High() {
				readyWithoutValid = true
			}
		}
		if err := l.prod.EnqueueValues(p, in...); err != nil {
			return err
		}
		var got []uint64
		for v := range l.cons.DequeueValues(p, 2) {
			got = append(got, v.Uint("value"))
		}
		assert.Equal(t, []uint64{11, 12}, got)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, readyWithoutValid)
}

func TestConsumerCapacity_StallsProducer(t *testing.T) {
	l := newLoopback(t, false, WithCapacity(2))
	in := values(t, 1, 2, 3, 4)
	err := l.run(t, func(p *sim.Proc) error {
		if err := l.prod.EnqueueValues(p, in...); err != nil {
			return err
		}
		task.Edges(p, l.clk.RisingEdge(), 8)
		assert.Equal(t, Full, l.cons.QueueState())
		assert.Equal(t, 2, l.cons.Transfers())
		assert.Equal(t, 2, l.prod.Pending())

		var got []uint64
		for v := range l.cons.DequeueValues(p, 4) {
			got = append(got, v.Uint("value"))
		}
		assert.Equal(t, []uint64{1, 2, 3, 4}, got)
		return nil
	})
	require.NoError(t, err)
}

func TestTeardown_DrainedQueueAssertion(t *testing.T) {
	l := newLoopback(t, false)
	in := values(t, 1, 2)
	err := l.run(t, func(p *sim.Proc) error {
		l.cons.Disable()
		if err := l.prod.EnqueueValues(p, in...); err != nil {
			return err
		}
		task.Edges(p, l.clk.RisingEdge(), 3)
		return nil
	})
	require.Error(t, err)

	var groups []string
	for _, leaf := range fault.Flatten(err) {
		assert.True(t, fault.IsAssertion(leaf.Err))
		groups = append(groups, leaf.Path[len(leaf.Path)-1])
	}
	assert.Equal(t, []string{"A cleanup-stage assertion failed in TBsend"}, groups)
	assert.Contains(t, err.Error(), "there are elements left in the producer queue of TBsend")
}

func TestTeardown_UndequeuedConsumerValues(t *testing.T) {
	l := newLoopback(t, false)
	in := values(t, 5)
	err := l.run(t, func(p *sim.Proc) error {
		if err := l.prod.EnqueueValues(p, in...); err != nil {
			return err
		}
		task.Edges(p, l.clk.RisingEdge(), 4)
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consumer queue of TBrecv")
}

func TestEnqueue_SchemaMismatch(t *testing.T) {
	l := newLoopback(t, false)
	other := codec.Record("Other", codec.F("value", codec.Leaf(16)))
	err := l.run(t, func(p *sim.Proc) error {
		err := l.prod.EnqueueValues(p, codec.Zeroed(other))
		assert.True(t, codec.IsSchemaError(err, codec.ErrCodeWidthMismatch))
		assert.Equal(t, Empty, l.prod.QueueState())
		return nil
	})
	require.NoError(t, err)
}

func TestEnqueue_AcceptsValuesOfTheUnorderedLayout(t *testing.T) {
	l := newLoopback(t, false)
	in, err := codec.FromFlat(wordLayout, map[string]any{"value": 0x1234})
	require.NoError(t, err)

	var got codec.Value
	err = l.run(t, func(p *sim.Proc) error {
		if err := l.prod.EnqueueValues(p, in); err != nil {
			return err
		}
		got = l.cons.DequeueValue(p)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, got.Equal(in))
	assert.Equal(t, uint64(0x1234), got.Uint("value"))
}

func TestProducer_EnqueueQuick(t *testing.T) {
	l := newLoopback(t, false)
	err := l.run(t, func(p *sim.Proc) error {
		if err := l.prod.EnqueueQuick(p, 0xBEEF); err != nil {
			return err
		}
		v := l.cons.DequeueValue(p)
		assert.Equal(t, uint64(0xBEEF), v.Uint("value"))

		assert.Error(t, l.prod.EnqueueQuick(p, 1, 2))
		return nil
	})
	require.NoError(t, err)
}

func TestAgent_CleanupDrivesLinesLow(t *testing.T) {
	l := newLoopback(t, false)
	iface := l.prod.Interface()
	err := l.run(t, func(p *sim.Proc) error {
		task.Edges(p, l.clk.RisingEdge(), 2)
		assert.True(t, iface.Ready.High())
		if err := l.cons.Stop(p); err != nil {
			return err
		}
		assert.False(t, iface.Ready.High())
		return nil
	})
	require.NoError(t, err)
}

func TestInterface_Validate(t *testing.T) {
	d := sim.NewDesign(sim.NewKernel())
	_, err := NewProducer(Interface{Valid: d.MustAdd("v", 1), Data: d.MustAdd("d", 16)}, word)
	assert.ErrorContains(t, err, "missing ready signal")

	_, err = NewConsumer(Interface{Valid: d.MustAdd("v", 1), Ready: d.MustAdd("wide", 2), Data: d.MustAdd("d", 16)}, word)
	assert.ErrorContains(t, err, "2 bits wide")

	assert.Equal(t, "DUT", Interface{}.Producer())
}
