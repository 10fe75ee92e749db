package bench

import (
	"fmt"
	"iter"

	"github.com/roach88/vrtb/internal/codec"
	"github.com/roach88/vrtb/internal/layouts"
	"github.com/roach88/vrtb/internal/network"
	"github.com/roach88/vrtb/internal/sim"
	"github.com/roach88/vrtb/internal/trace"
	"github.com/roach88/vrtb/internal/vr"
)

// LoopbackEndpoint names the test side of the adapter's loopback ports.
const LoopbackEndpoint = "Loopback Interceptor"

// Task ids registered by NewAdapter.
const (
	SendPortTask = "send_port"
	RecvPortTask = "recv_port"
	NetworkTask  = "network_interface_driver"
)

// LoopbackSignals lists the adapter's loopback ports and their widths.
var LoopbackSignals = []struct {
	Name  string
	Width int
}{
	{"loopback_interface_valid", 1},
	{"interface_loopback_ready", 1},
	{"loopback_interface_data", 128},
	{"interface_loopback_valid", 1},
	{"loopback_interface_ready", 1},
	{"interface_loopback_data", 128},
}

// AdapterBench drives a network adapter from its loopback side and plays
// the network on the other side.
//
// Messages given to Send enter the adapter through its loopback port and
// should come out of the network side (GetSent). Messages given to Receive
// arrive from the network side and should come out of the loopback port
// (GetReceived).
type AdapterBench struct {
	*Bench

	SendPort *vr.Producer
	RecvPort *vr.Consumer
	Net      network.Driver
}

// AdapterOption configures the agents of an AdapterBench.
type AdapterOption struct {
	Bench []Option
	Sink  trace.Sink
}

// NewAdapter builds an adapter bench over design with net as the network
// side. The loopback ports must exist in design.
func NewAdapter(design *sim.Design, net network.Driver, ao AdapterOption) (*AdapterBench, error) {
	b, err := New(design, ao.Bench...)
	if err != nil {
		return nil, err
	}
	agentOpts := []vr.Option{vr.WithLogger(b.logger), vr.WithSink(ao.Sink)}

	sig := make([]*sim.Signal, len(LoopbackSignals))
	for i, s := range LoopbackSignals {
		if sig[i], err = design.Signal(s.Name); err != nil {
			return nil, fmt.Errorf("adapter bench: %w", err)
		}
	}

	send, err := vr.NewProducer(vr.Interface{
		Valid:        sig[0],
		Ready:        sig[1],
		Data:         sig[2],
		ProducerName: LoopbackEndpoint,
	}, layouts.InterfaceSendData(), append(agentOpts, vr.WithName("loopback_send"))...)
	if err != nil {
		return nil, err
	}
	recv, err := vr.NewConsumer(vr.Interface{
		Valid:        sig[3],
		Ready:        sig[4],
		Data:         sig[5],
		ConsumerName: LoopbackEndpoint,
	}, layouts.InterfaceReceiveData(), append(agentOpts, vr.WithName("loopback_recv"))...)
	if err != nil {
		return nil, err
	}

	ab := &AdapterBench{Bench: b, SendPort: send, RecvPort: recv, Net: net}
	if err := b.Add(SendPortTask, send); err != nil {
		return nil, err
	}
	if err := b.Add(RecvPortTask, recv); err != nil {
		return nil, err
	}
	if err := b.Add(NetworkTask, net); err != nil {
		return nil, err
	}
	return ab, nil
}

// Send pushes messages into the adapter's loopback port in order.
func (a *AdapterBench) Send(p *sim.Proc, messages ...codec.Value) error {
	values := make([]codec.Value, len(messages))
	for i, m := range messages {
		v, err := codec.FromFlat(layouts.InterfaceSendData(), map[string]any{"message": m})
		if err != nil {
			return err
		}
		values[i] = v
	}
	return a.SendPort.EnqueueValues(p, values...)
}

// GetSingleReceived returns the next message the adapter delivered on its
// loopback port.
func (a *AdapterBench) GetSingleReceived(p *sim.Proc) codec.Value {
	v, _ := a.RecvPort.DequeueValue(p).Field("message")
	return v
}

// GetReceived yields n delivered messages; a negative n yields forever.
func (a *AdapterBench) GetReceived(p *sim.Proc, n int) iter.Seq[codec.Value] {
	return func(yield func(codec.Value) bool) {
		for v := range a.RecvPort.DequeueValues(p, n) {
			m, _ := v.Field("message")
			if !yield(m) {
				return
			}
		}
	}
}

// Receive makes the network deliver messages to the adapter.
func (a *AdapterBench) Receive(p *sim.Proc, messages ...codec.Value) error {
	return a.Net.Receive(p, messages...)
}

// GetSingleSent returns the next message the adapter put on the network.
func (a *AdapterBench) GetSingleSent(p *sim.Proc) codec.Value {
	return a.Net.GetSingleSent(p)
}

// GetSent yields n messages the adapter put on the network.
func (a *AdapterBench) GetSent(p *sim.Proc, n int) iter.Seq[codec.Value] {
	return a.Net.GetSent(p, n)
}

// NoMessagesOut stops the network from accepting anything the adapter
// sends until the returned guard is restored.
func (a *AdapterBench) NoMessagesOut() *vr.Guard {
	return a.Net.DisableSends()
}

// DeclareAdapter adds the loopback ports and the ports of the impl network
// binding to d.
func DeclareAdapter(d *sim.Design, impl network.Implementation) error {
	for _, s := range LoopbackSignals {
		if _, err := d.Add(s.Name, s.Width); err != nil {
			return err
		}
	}
	return network.Declare(impl, d)
}
