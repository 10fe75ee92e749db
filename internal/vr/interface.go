package vr

import (
	"fmt"
	"strings"

	"github.com/roach88/vrtb/internal/codec"
	"github.com/roach88/vrtb/internal/sim"
)

// DefaultEndpoint names an interface endpoint that was not named explicitly.
const DefaultEndpoint = "DUT"

// Interface describes one valid/ready handshake link.
//
// A transfer happens on a rising edge where both Valid and Ready are high.
// With ReadyIsAck, the consumer raises Ready only in response to Valid.
type Interface struct {
	Valid *sim.Signal
	Ready *sim.Signal
	Data  codec.Target

	ReadyIsAck   bool
	ProducerName string
	ConsumerName string
}

// Producer returns the producer endpoint name.
func (i Interface) Producer() string {
	if i.ProducerName == "" {
		return DefaultEndpoint
	}
	return i.ProducerName
}

// Consumer returns the consumer endpoint name.
func (i Interface) Consumer() string {
	if i.ConsumerName == "" {
		return DefaultEndpoint
	}
	return i.ConsumerName
}

// Validate checks that the handshake signals are present and one bit wide.
func (i Interface) Validate() error {
	for _, s := range []struct {
		role string
		sig  *sim.Signal
	}{{"valid", i.Valid}, {"ready", i.Ready}} {
		if s.sig == nil {
			return fmt.Errorf("interface %s -> %s: missing %s signal", i.Producer(), i.Consumer(), s.role)
		}
		if s.sig.Width() != 1 {
			return fmt.Errorf("interface %s -> %s: %s signal %s is %d bits wide", i.Producer(), i.Consumer(), s.role, s.sig.Name(), s.sig.Width())
		}
	}
	if i.Data == nil {
		return fmt.Errorf("interface %s -> %s: missing data target", i.Producer(), i.Consumer())
	}
	return nil
}

// Fire reports whether a transfer happens on the current edge.
func (i Interface) Fire() bool {
	return i.Valid.High() && i.Ready.High()
}

func agentName(endpoint string) string {
	return strings.ReplaceAll(endpoint, " ", "")
}

// QueueState summarizes an agent queue.
type QueueState int

const (
	Empty QueueState = iota
	Partial
	Full
)

func (s QueueState) String() string {
	switch s {
	case Empty:
		return "empty"
	case Partial:
		return "partial"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("QueueState(%d)", int(s))
	}
}
