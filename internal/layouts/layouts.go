// Package layouts provides the compiled bit layouts used by the message
// passing unit's test benches.
package layouts

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/roach88/vrtb/internal/codec"
	"github.com/roach88/vrtb/internal/compiler"
)

//go:embed layouts.cue
var source string

var (
	once     sync.Once
	registry *compiler.Registry
)

// Registry returns the compiled layouts. The embedded source is compiled
// once; a compile failure is a build defect and panics.
func Registry() *compiler.Registry {
	once.Do(func() {
		reg, err := compiler.CompileString(source)
		if err != nil {
			panic(fmt.Sprintf("layouts: embedded schema does not compile: %v", err))
		}
		registry = reg
	})
	return registry
}

// Source returns the embedded CUE declarations.
func Source() string { return source }

func lookup(name string) *codec.Schema { return Registry().MustLookup(name) }

// UnitTestPassthrough is the 5-bit destination register carried alongside a
// request for the unit tests.
func UnitTestPassthrough() *codec.Schema { return lookup("UnitTestPassthrough") }

// RequestData is a core request: funct3, both operands and the passthrough.
func RequestData() *codec.Schema { return lookup("RequestData") }

// MessageMetadata is a message's 32-bit tag and 32-bit address.
func MessageMetadata() *codec.Schema { return lookup("MessageMetadata") }

// Message is metadata plus a 64-bit payload. Quick order: address, tag, data.
func Message() *codec.Schema { return lookup("Message") }

// SendQueueData is an entry of the send queue.
func SendQueueData() *codec.Schema { return lookup("SendQueueData") }

// ReceiveQueueData is a receive-queue lookup result, with the match mask and
// an availability bit.
func ReceiveQueueData() *codec.Schema { return lookup("ReceiveQueueData") }

// WritebackArbiterData is a 64-bit result bound for the register named in
// the passthrough.
func WritebackArbiterData() *codec.Schema { return lookup("WritebackArbiterData") }

// InterfaceSendData is a message leaving the unit for the network.
func InterfaceSendData() *codec.Schema { return lookup("InterfaceSendData") }

// InterfaceReceiveData is a message arriving from the network. It has no
// quick order.
func InterfaceReceiveData() *codec.Schema { return lookup("InterfaceReceiveData") }

// OpenpitonData is one raw 192-bit NoC flit.
func OpenpitonData() *codec.Schema { return lookup("OpenpitonData") }

// CommitSafetyRequest is the single-bit commit safety payload.
func CommitSafetyRequest() *codec.Schema { return lookup("CommitSafetyRequest") }
