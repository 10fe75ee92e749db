package network

import (
	"fmt"

	"github.com/roach88/vrtb/internal/codec"
	"github.com/roach88/vrtb/internal/layouts"
	"github.com/roach88/vrtb/internal/sim"
	"github.com/roach88/vrtb/internal/vr"
)

// NoCEndpoint is the endpoint name of the OpenPiton NoC.
const NoCEndpoint = "Xctcmsg NoC"

// FlitWidth is the width of one NoC flit.
const FlitWidth = 192

var openpitonSignals = []struct {
	name  string
	width int
}{
	{"noc_out_val", 1}, {"noc_out_rdy", 1}, {"noc_out_data", FlitWidth},
	{"noc_in_val", 1}, {"noc_in_rdy", 1}, {"noc_in_data", FlitWidth},
}

// NewOpenPitonDriver binds to the NoC ports of d. Each message travels as
// one flit; see FlitToMessage and MessageToFlit for the field placement.
func NewOpenPitonDriver(d *sim.Design, opts ...Option) (*VRDriver, error) {
	o := buildOptions(opts)

	sendData, err := d.Alias(map[string]any{"raw": "noc_out_data"})
	if err != nil {
		return nil, fmt.Errorf("openpiton binding: %w", err)
	}
	recvData, err := d.Alias(map[string]any{"raw": "noc_in_data"})
	if err != nil {
		return nil, fmt.Errorf("openpiton binding: %w", err)
	}
	sig, err := signals(d, "noc_out_val", "noc_out_rdy", "noc_in_val", "noc_in_rdy")
	if err != nil {
		return nil, fmt.Errorf("openpiton binding: %w", err)
	}

	send, err := vr.NewConsumer(vr.Interface{
		Valid:        sig[0],
		Ready:        sig[1],
		Data:         sendData,
		ConsumerName: NoCEndpoint,
	}, layouts.OpenpitonData(), append(o.agentOptions(), vr.WithName("noc_out"))...)
	if err != nil {
		return nil, err
	}
	recv, err := vr.NewProducer(vr.Interface{
		Valid:        sig[2],
		Ready:        sig[3],
		Data:         recvData,
		ProducerName: NoCEndpoint,
	}, layouts.OpenpitonData(), append(o.agentOptions(), vr.WithName("noc_in"))...)
	if err != nil {
		return nil, err
	}

	return newVRDriver(OpenPiton, send, recv, FlitToMessage, MessageToFlit, o.logger), nil
}

// FlitToMessage decodes an outgoing flit. The destination is the 8-bit
// chip id in raw[41:34], zero-extended; the tag is raw[127:96] and the
// payload raw[191:128].
func FlitToMessage(flit codec.Value) (codec.Value, error) {
	raw, err := flit.Get("raw")
	if err != nil {
		return codec.Value{}, err
	}
	return codec.FromFlat(layouts.Message(), map[string]any{
		"meta-address": codec.Concat(codec.Zero(24), raw.Slice(41, 34)),
		"meta-tag":     raw.Slice(127, 96),
		"data":         raw.Slice(191, 128),
	})
}

// MessageToFlit encodes an incoming message with the source address in
// raw[95:64], the tag in raw[127:96] and the payload in raw[191:128]. The
// low 64 bits are zero.
func MessageToFlit(msg codec.Value) (codec.Value, error) {
	addr, err := msg.Get("meta-address")
	if err != nil {
		return codec.Value{}, err
	}
	tag, err := msg.Get("meta-tag")
	if err != nil {
		return codec.Value{}, err
	}
	data, err := msg.Get("data")
	if err != nil {
		return codec.Value{}, err
	}
	return codec.Quick(layouts.OpenpitonData(), codec.Concat(data, tag, addr, codec.Zero(64)))
}
