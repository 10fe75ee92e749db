package network

import (
	"fmt"

	"github.com/roach88/vrtb/internal/codec"
	"github.com/roach88/vrtb/internal/layouts"
	"github.com/roach88/vrtb/internal/sim"
	"github.com/roach88/vrtb/internal/vr"
)

// BusEndpoint is the endpoint name of the point-to-point bus.
const BusEndpoint = "C2C Network"

// busSignals lists the bus-side ports of the adapter and their widths.
var busSignals = []struct {
	name  string
	width int
}{
	{"bus_val_o", 1}, {"bus_ack_i", 1},
	{"bus_tag_o", 32}, {"bus_dst_o", 32}, {"bus_msg_o", 64},
	{"bus_val_i", 1}, {"bus_rdy_o", 1},
	{"bus_tag_i", 32}, {"bus_src_i", 32}, {"bus_msg_i", 64},
}

// NewBusDriver binds to the bus ports of d.
//
// The outgoing side is acknowledge-based: the network raises bus_ack_i only
// in response to bus_val_o. Message fields travel on separate signals and
// are presented to the codec as one composed target.
func NewBusDriver(d *sim.Design, opts ...Option) (*VRDriver, error) {
	o := buildOptions(opts)

	sendData, err := d.Alias(map[string]any{
		"meta": map[string]any{
			"tag":     "bus_tag_o",
			"address": "bus_dst_o",
		},
		"data": "bus_msg_o",
	})
	if err != nil {
		return nil, fmt.Errorf("bus binding: %w", err)
	}
	recvData, err := d.Alias(map[string]any{
		"meta": map[string]any{
			"tag":     "bus_tag_i",
			"address": "bus_src_i",
		},
		"data": "bus_msg_i",
	})
	if err != nil {
		return nil, fmt.Errorf("bus binding: %w", err)
	}
	sig, err := signals(d, "bus_val_o", "bus_ack_i", "bus_val_i", "bus_rdy_o")
	if err != nil {
		return nil, fmt.Errorf("bus binding: %w", err)
	}

	send, err := vr.NewConsumer(vr.Interface{
		Valid:        sig[0],
		Ready:        sig[1],
		ReadyIsAck:   true,
		Data:         sendData,
		ConsumerName: BusEndpoint,
	}, layouts.Message(), append(o.agentOptions(), vr.WithName("bus_o"))...)
	if err != nil {
		return nil, err
	}
	recv, err := vr.NewProducer(vr.Interface{
		Valid:        sig[2],
		Ready:        sig[3],
		Data:         recvData,
		ProducerName: BusEndpoint,
	}, layouts.Message(), append(o.agentOptions(), vr.WithName("bus_i"))...)
	if err != nil {
		return nil, err
	}

	return newVRDriver(Bus, send, recv, identity, identity, o.logger), nil
}

func identity(v codec.Value) (codec.Value, error) { return v, nil }
