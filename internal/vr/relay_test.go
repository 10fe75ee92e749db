package vr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vrtb/internal/codec"
	"github.com/roach88/vrtb/internal/fault"
	"github.com/roach88/vrtb/internal/sim"
	"github.com/roach88/vrtb/internal/task"
	"github.com/roach88/vrtb/internal/trace"
)

// relayChain builds src -> relay -> dst over two interfaces.
func relayChain(t *testing.T, convert func(codec.Value) (codec.Value, error)) (*sim.Kernel, *task.SyntheticClock, *Producer, *Relay, *Consumer, *trace.Recorder) {
	t.Helper()
	k := sim.NewKernel(sim.WithTimeLimit(10 * sim.Microsecond))
	d := sim.NewDesign(k)
	link := func(prefix string) Interface {
		return Interface{
			Valid: d.MustAdd(prefix+"_val", 1),
			Ready: d.MustAdd(prefix+"_rdy", 1),
			Data:  d.MustAdd(prefix+"_data", 16),
		}
	}
	a, b := link("a"), link("b")
	rec := trace.NewRecorder()

	src, err := NewProducer(a, word, WithName("src"), WithSink(rec), WithLogger(quiet))
	require.NoError(t, err)
	in, err := NewConsumer(a, word, WithName("relay_in"), WithLogger(quiet))
	require.NoError(t, err)
	out, err := NewProducer(b, word, WithName("relay_out"), WithLogger(quiet))
	require.NoError(t, err)
	dst, err := NewConsumer(b, word, WithName("dst"), WithSink(rec), WithLogger(quiet))
	require.NoError(t, err)

	r, err := NewRelay("relay", in, out, convert, WithLogger(quiet))
	require.NoError(t, err)

	clk := task.NewSyntheticClock("clock", task.DefaultPeriod, task.WithLogger(quiet))
	for _, l := range []task.Lifecycle{src, r, dst} {
		task.BindClock(l, clk)
	}
	return k, clk, src, r, dst, rec
}

func runRelay(t *testing.T, k *sim.Kernel, clk *task.SyntheticClock, tasks []task.Lifecycle, body func(p *sim.Proc) error) error {
	t.Helper()
	return k.Run(context.Background(), "test", func(p *sim.Proc) error {
		if err := clk.Start(p); err != nil {
			return err
		}
		for _, l := range tasks {
			if err := l.Start(p); err != nil {
				return err
			}
		}
		bodyErr := body(p)
		var faults []error
		for _, l := range tasks {
			faults = append(faults, l.Stop(p))
		}
		faults = append(faults, clk.Stop(p))
		if bodyErr != nil {
			return bodyErr
		}
		return fault.Merge("teardown", faults...)
	})
}

func TestRelay_ForwardsInOrder(t *testing.T) {
	k, clk, src, r, dst, rec := relayChain(t, nil)

	var got []uint64
	in := values(t, 10, 42, 5)
	err := runRelay(t, k, clk, []task.Lifecycle{src, r, dst}, func(p *sim.Proc) error {
		if err := src.EnqueueValues(p, in...); err != nil {
			return err
		}
		for v := range dst.DequeueValues(p, 3) {
			got = append(got, v.Uint("value"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 42, 5}, got)
	assert.Equal(t, 3, r.Moved())
	assert.Len(t, rec.OnLink("src"), 3)
	assert.Len(t, rec.OnLink("dst"), 3)
}

func TestRelay_Converts(t *testing.T) {
	inc := func(v codec.Value) (codec.Value, error) {
		return codec.Quick(word, v.Uint("value")+1)
	}
	k, clk, src, r, dst, _ := relayChain(t, inc)

	in := values(t, 1)
	err := runRelay(t, k, clk, []task.Lifecycle{src, r, dst}, func(p *sim.Proc) error {
		if err := src.EnqueueValues(p, in...); err != nil {
			return err
		}
		assert.Equal(t, uint64(2), dst.DequeueValue(p).Uint("value"))
		return nil
	})
	require.NoError(t, err)
}

func TestRelay_ConvertErrorFailsTask(t *testing.T) {
	bad := func(codec.Value) (codec.Value, error) {
		return codec.Value{}, assert.AnError
	}
	k, clk, src, r, dst, _ := relayChain(t, bad)

	in := values(t, 1)
	err := runRelay(t, k, clk, []task.Lifecycle{src, r, dst}, func(p *sim.Proc) error {
		if err := src.EnqueueValues(p, in...); err != nil {
			return err
		}
		task.Edges(p, clk.RisingEdge(), 6)
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNewRelay_SchemaMismatchNeedsConverter(t *testing.T) {
	d := sim.NewDesign(sim.NewKernel())
	wide := codec.Record("Wide", codec.F("value", codec.Leaf(32)))
	in, err := NewConsumer(Interface{Valid: d.MustAdd("v", 1), Ready: d.MustAdd("r", 1), Data: d.MustAdd("d", 16)}, word)
	require.NoError(t, err)
	out, err := NewProducer(Interface{Valid: d.MustAdd("v2", 1), Ready: d.MustAdd("r2", 1), Data: d.MustAdd("d2", 32)}, wide)
	require.NoError(t, err)

	_, err = NewRelay("r", in, out, nil)
	assert.ErrorContains(t, err, "needs a converter")
}
