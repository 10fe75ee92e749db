package testutil

import (
	"fmt"

	"github.com/roach88/vrtb/internal/bench"
	"github.com/roach88/vrtb/internal/codec"
	"github.com/roach88/vrtb/internal/layouts"
	"github.com/roach88/vrtb/internal/network"
	"github.com/roach88/vrtb/internal/sim"
	"github.com/roach88/vrtb/internal/task"
	"github.com/roach88/vrtb/internal/vr"
)

// NewLoopbackDesign returns a design with a physical clock, an active-low
// reset, the adapter loopback ports and the ports of the impl binding.
func NewLoopbackDesign(k *sim.Kernel, impl network.Implementation) (*sim.Design, error) {
	d := sim.NewDesign(k)
	if _, err := d.Add("clk", 1); err != nil {
		return nil, err
	}
	if _, err := d.Add("rst_n", 1); err != nil {
		return nil, err
	}
	if err := bench.DeclareAdapter(d, impl); err != nil {
		return nil, err
	}
	return d, nil
}

// LoopbackAdapter stands in for the network adapter hardware. Messages
// entering the loopback port leave on the network; messages arriving from
// the network leave on the loopback port.
type LoopbackAdapter struct {
	*task.Task

	Out *vr.Relay
	In  *vr.Relay
}

// NewLoopbackAdapter builds the adapter model over a design made by
// NewLoopbackDesign. Its agents record nothing unless opts add a sink.
func NewLoopbackAdapter(d *sim.Design, impl network.Implementation, opts ...vr.Option) (*LoopbackAdapter, error) {
	impl, err := network.Parse(string(impl))
	if err != nil {
		return nil, err
	}
	var missing error
	sig := func(name string) *sim.Signal {
		s, err := d.Signal(name)
		if err != nil && missing == nil {
			missing = err
		}
		return s
	}
	named := func(name string) []vr.Option {
		return append(append([]vr.Option(nil), opts...), vr.WithName(name))
	}

	for _, s := range bench.LoopbackSignals {
		sig(s.Name)
	}
	if missing != nil {
		return nil, fmt.Errorf("loopback adapter: %w", missing)
	}

	loopIn, err := vr.NewConsumer(vr.Interface{
		Valid:        sig("loopback_interface_valid"),
		Ready:        sig("interface_loopback_ready"),
		Data:         sig("loopback_interface_data"),
		ProducerName: bench.LoopbackEndpoint,
	}, layouts.InterfaceSendData(), named("adapter_loopback_in")...)
	if err != nil {
		return nil, err
	}
	loopOut, err := vr.NewProducer(vr.Interface{
		Valid:        sig("interface_loopback_valid"),
		Ready:        sig("loopback_interface_ready"),
		Data:         sig("interface_loopback_data"),
		ConsumerName: bench.LoopbackEndpoint,
	}, layouts.InterfaceReceiveData(), named("adapter_loopback_out")...)
	if err != nil {
		return nil, err
	}

	var (
		netOut         *vr.Producer
		netIn          *vr.Consumer
		encode, decode func(codec.Value) (codec.Value, error)
	)
	switch impl {
	case network.Bus:
		outData, err := d.Alias(map[string]any{
			"meta": map[string]any{"tag": "bus_tag_o", "address": "bus_dst_o"},
			"data": "bus_msg_o",
		})
		if err != nil {
			return nil, err
		}
		inData, err := d.Alias(map[string]any{
			"meta": map[string]any{"tag": "bus_tag_i", "address": "bus_src_i"},
			"data": "bus_msg_i",
		})
		if err != nil {
			return nil, err
		}
		if netOut, err = vr.NewProducer(vr.Interface{
			Valid:        sig("bus_val_o"),
			Ready:        sig("bus_ack_i"),
			Data:         outData,
			ReadyIsAck:   true,
			ConsumerName: network.BusEndpoint,
		}, layouts.Message(), named("adapter_bus_o")...); err != nil {
			return nil, err
		}
		if netIn, err = vr.NewConsumer(vr.Interface{
			Valid:        sig("bus_val_i"),
			Ready:        sig("bus_rdy_o"),
			Data:         inData,
			ProducerName: network.BusEndpoint,
		}, layouts.Message(), named("adapter_bus_i")...); err != nil {
			return nil, err
		}
		encode, decode = unwrapMessage, wrapMessage

	case network.OpenPiton:
		outData, err := d.Alias(map[string]any{"raw": "noc_out_data"})
		if err != nil {
			return nil, err
		}
		inData, err := d.Alias(map[string]any{"raw": "noc_in_data"})
		if err != nil {
			return nil, err
		}
		if netOut, err = vr.NewProducer(vr.Interface{
			Valid:        sig("noc_out_val"),
			Ready:        sig("noc_out_rdy"),
			Data:         outData,
			ConsumerName: network.NoCEndpoint,
		}, layouts.OpenpitonData(), named("adapter_noc_out")...); err != nil {
			return nil, err
		}
		if netIn, err = vr.NewConsumer(vr.Interface{
			Valid:        sig("noc_in_val"),
			Ready:        sig("noc_in_rdy"),
			Data:         inData,
			ProducerName: network.NoCEndpoint,
		}, layouts.OpenpitonData(), named("adapter_noc_in")...); err != nil {
			return nil, err
		}
		encode = func(v codec.Value) (codec.Value, error) {
			m, err := unwrapMessage(v)
			if err != nil {
				return codec.Value{}, err
			}
			return outgoingFlit(m)
		}
		decode = func(v codec.Value) (codec.Value, error) {
			m, err := incomingMessage(v)
			if err != nil {
				return codec.Value{}, err
			}
			return wrapMessage(m)
		}
	}

	if missing != nil {
		return nil, fmt.Errorf("loopback adapter: %w", missing)
	}

	out, err := vr.NewRelay("adapter_out", loopIn, netOut, encode, opts...)
	if err != nil {
		return nil, err
	}
	in, err := vr.NewRelay("adapter_in", netIn, loopOut, decode, opts...)
	if err != nil {
		return nil, err
	}

	a := &LoopbackAdapter{Out: out, In: in}
	a.Task = task.New("loopback_adapter", func(p *sim.Proc, t *task.Task) error {
		p.Wait(t.StopEvent())
		return nil
	}, task.WithChildren(out, in))
	return a, nil
}

func unwrapMessage(v codec.Value) (codec.Value, error) {
	m, ok := v.Field("message")
	if !ok {
		return codec.Value{}, fmt.Errorf("%s has no message field", v.Schema())
	}
	return m, nil
}

func wrapMessage(m codec.Value) (codec.Value, error) {
	return codec.FromFlat(layouts.InterfaceReceiveData(), map[string]any{"message": m})
}

// outgoingFlit places a message the way the NoC binding decodes it: the
// low 8 address bits in raw[41:34], tag in raw[127:96], payload in
// raw[191:128].
func outgoingFlit(m codec.Value) (codec.Value, error) {
	addr, err := m.Get("meta-address")
	if err != nil {
		return codec.Value{}, err
	}
	if !addr.Slice(31, 8).IsZero() {
		return codec.Value{}, fmt.Errorf("address %s does not fit a chip id", addr.Hex())
	}
	tag, err := m.Get("meta-tag")
	if err != nil {
		return codec.Value{}, err
	}
	data, err := m.Get("data")
	if err != nil {
		return codec.Value{}, err
	}
	raw := codec.Concat(data, tag, codec.Zero(54), addr.Slice(7, 0), codec.Zero(34))
	return codec.Quick(layouts.OpenpitonData(), raw)
}

// incomingMessage reverses network.MessageToFlit.
func incomingMessage(flit codec.Value) (codec.Value, error) {
	raw, err := flit.Get("raw")
	if err != nil {
		return codec.Value{}, err
	}
	return codec.FromFlat(layouts.Message(), map[string]any{
		"meta-address": raw.Slice(95, 64),
		"meta-tag":     raw.Slice(127, 96),
		"data":         raw.Slice(191, 128),
	})
}
