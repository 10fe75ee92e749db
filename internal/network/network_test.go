package network

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
	"github.com/roach88/vrtb/internal/layouts"
	"github.com/roach88/vrtb/internal/sim"
	"github.com/roach88/vrtb/internal/task"
	"github.com/roach88/vrtb/internal/trace"
	"github.com/roach88/vrtb/internal/vr"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Implementation
		wantErr bool
	}{
		{in: "bus", want: Bus},
		{in: "BUS", want: Bus},
		{in: " openpiton ", want: OpenPiton},
		{in: "OpenPiton", want: OpenPiton},
		{in: "", wantErr: true},
		{in: "mesh", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, fault.IsConfigError(err, fault.ErrCodeUnknownNetwork))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeclare(t *testing.T) {
	tests := []struct {
		impl  Implementation
		ports map[string]int
	}{
		{Bus, map[string]int{"bus_val_o": 1, "bus_msg_o": 64, "bus_src_i": 32, "bus_rdy_o": 1}},
		{OpenPiton, map[string]int{"noc_out_data": FlitWidth, "noc_in_val": 1, "noc_in_rdy": 1}},
	}
	for _, tt := range tests {
		t.Run(string(tt.impl), func(t *testing.T) {
			d := sim.NewDesign(sim.NewKernel())
			require.NoError(t, Declare(tt.impl, d))
			for name, width := range tt.ports {
				s, ok := d.Lookup(name)
				require.True(t, ok, name)
				assert.Equal(t, width, s.Width(), name)
			}
		})
	}

	err := Declare("ring", sim.NewDesign(sim.NewKernel()))
	assert.True(t, fault.IsConfigError(err, fault.ErrCodeUnknownNetwork))
}

func TestNew_MissingPorts(t *testing.T) {
	d := sim.NewDesign(sim.NewKernel())
	drv, err := New(Bus, d)
	require.Error(t, err)
	assert.Nil(t, drv)
}

func TestFlitToMessage(t *testing.T) {
	// tag 0xdeadbeef, payload 0x1122334455667788, chip id 0xab at [41:34];
	// the source address field [95:64] is ignored on the way out.
	raw := codec.Concat(
		codec.MustVector(64, 0x1122334455667788),
		codec.MustVector(32, 0xdeadbeef),
		codec.MustVector(32, 0xffffffff),
		codec.Zero(22),
		codec.MustVector(8, 0xab),
		codec.Zero(34),
	)
	flit := codec.MustQuick(layouts.OpenpitonData(), raw)

	msg, err := FlitToMessage(flit)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xab), msg.Uint("meta-address"))
	assert.Equal(t, uint64(0xdeadbeef), msg.Uint("meta-tag"))
	assert.Equal(t, uint64(0x1122334455667788), msg.Uint("data"))
}

func TestMessageToFlit(t *testing.T) {
	msg := codec.MustQuick(layouts.Message(), 0x12345678, 0xcafe, 0x99)

	flit, err := MessageToFlit(msg)
	require.NoError(t, err)
	raw, err := flit.Get("raw")
	require.NoError(t, err)

	assert.Equal(t, uint64(0x99), raw.Slice(191, 128).Uint64())
	assert.Equal(t, uint64(0xcafe), raw.Slice(127, 96).Uint64())
	assert.Equal(t, uint64(0x12345678), raw.Slice(95, 64).Uint64())
	assert.True(t, raw.Slice(63, 0).IsZero())
}

// netHarness plays the design side of a binding with plain agents.
type netHarness struct {
	k      *sim.Kernel
	clk    *task.SyntheticClock
	drv    *VRDriver
	out    *vr.Producer
	in     *vr.Consumer
	rec    *trace.Recorder
	design *sim.Design
}

func newBusHarness(t *testing.T) *netHarness {
	t.Helper()
	k := sim.NewKernel(sim.WithTimeLimit(50 * sim.Microsecond))
	d := sim.NewDesign(k)
	require.NoError(t, Declare(Bus, d))

	rec := trace.NewRecorder()
	drv, err := NewBusDriver(d, WithLogger(quiet), WithSink(rec))
	require.NoError(t, err)

	outData, err := d.Alias(map[string]any{
		"meta": map[string]any{"tag": "bus_tag_o", "address": "bus_dst_o"},
		"data": "bus_msg_o",
	})
	require.NoError(t, err)
	inData, err := d.Alias(map[string]any{
		"meta": map[string]any{"tag": "bus_tag_i", "address": "bus_src_i"},
		"data": "bus_msg_i",
	})
	require.NoError(t, err)

	sig := func(name string) *sim.Signal {
		s, err := d.Signal(name)
		require.NoError(t, err)
		return s
	}
	out, err := vr.NewProducer(vr.Interface{
		Valid: sig("bus_val_o"), Ready: sig("bus_ack_i"), Data: outData, ReadyIsAck: true,
	}, layouts.Message(), vr.WithLogger(quiet), vr.WithName("design_out"))
	require.NoError(t, err)
	in, err := vr.NewConsumer(vr.Interface{
		Valid: sig("bus_val_i"), Ready: sig("bus_rdy_o"), Data: inData,
	}, layouts.Message(), vr.WithLogger(quiet), vr.WithName("design_in"))
	require.NoError(t, err)

	clk := task.NewSyntheticClock("clock", task.DefaultPeriod, task.WithLogger(quiet))
	for _, l := range []task.Lifecycle{drv, out, in} {
		task.BindClock(l, clk)
	}
	return &netHarness{k: k, clk: clk, drv: drv, out: out, in: in, rec: rec, design: d}
}

func (h *netHarness) run(t *testing.T, body func(p *sim.Proc) error) error {
	t.Helper()
	return h.k.Run(context.Background(), "test", func(p *sim.Proc) error {
		for _, l := range []task.Lifecycle{h.clk, h.drv, h.out, h.in} {
			if err := l.Start(p); err != nil {
				return err
			}
		}
		bodyErr := body(p)
		stopErr := fault.Merge("teardown", h.drv.Stop(p), h.out.Stop(p), h.in.Stop(p), h.clk.Stop(p))
		return errors.Join(bodyErr, stopErr)
	})
}

func TestBusDriver_CapturesInOrder(t *testing.T) {
	h := newBusHarness(t)
	msgs := []codec.Value{
		codec.MustQuick(layouts.Message(), 1, 10, 100),
		codec.MustQuick(layouts.Message(), 2, 20, 200),
		codec.MustQuick(layouts.Message(), 3, 30, 300),
	}

	err := h.run(t, func(p *sim.Proc) error {
		if err := h.out.EnqueueValues(p, msgs...); err != nil {
			return err
		}
		i := 0
		for got := range h.drv.GetSent(p, len(msgs)) {
			assert.True(t, got.Equal(msgs[i]), "message %d", i)
			i++
		}
		return nil
	})
	require.NoError(t, err)

	link := h.rec.OnLink("bus_o")
	require.Len(t, link, 3)
	assert.Equal(t, BusEndpoint, link[0].Consumer)
}

func TestBusDriver_Receive(t *testing.T) {
	h := newBusHarness(t)
	msg := codec.MustQuick(layouts.Message(), 7, 8, 9)

	err := h.run(t, func(p *sim.Proc) error {
		if err := h.drv.Receive(p, msg); err != nil {
			return err
		}
		got := h.in.DequeueValue(p)
		assert.True(t, got.Equal(msg))
		return nil
	})
	require.NoError(t, err)

	link := h.rec.OnLink("bus_i")
	require.Len(t, link, 1)
	assert.Equal(t, BusEndpoint, link[0].Producer)
}

func TestBusDriver_OneMessagePerEdge(t *testing.T) {
	h := newBusHarness(t)
	msgs := []codec.Value{
		codec.MustQuick(layouts.Message(), 1, 1, 1),
		codec.MustQuick(layouts.Message(), 2, 2, 2),
	}

	err := h.run(t, func(p *sim.Proc) error {
		if err := h.drv.Receive(p, msgs...); err != nil {
			return err
		}
		for range 2 {
			h.in.DequeueValue(p)
		}
		return nil
	})
	require.NoError(t, err)

	link := h.rec.OnLink("bus_i")
	require.Len(t, link, 2)
	assert.Greater(t, link[1].TimePS, link[0].TimePS)
}

func TestBusDriver_DisableRecvs(t *testing.T) {
	h := newBusHarness(t)
	msg := codec.MustQuick(layouts.Message(), 4, 5, 6)

	err := h.run(t, func(p *sim.Proc) error {
		guard := h.drv.DisableRecvs()
		if err := h.drv.Receive(p, msg); err != nil {
			return err
		}
		task.Edges(p, h.clk.RisingEdge(), 8)
		assert.Zero(t, h.in.Pending())
		guard.Restore()
		got := h.in.DequeueValue(p)
		assert.True(t, got.Equal(msg))
		return nil
	})
	require.NoError(t, err)
}

func TestVRDriver_Implementation(t *testing.T) {
	for _, impl := range Implementations() {
		d := sim.NewDesign(sim.NewKernel())
		require.NoError(t, Declare(impl, d))
		drv, err := New(impl, d, WithLogger(quiet))
		require.NoError(t, err)
		assert.Equal(t, impl, drv.Implementation())
		assert.Equal(t, string(impl)+".network", drv.Name())
	}
}
