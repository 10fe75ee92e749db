// Package network binds a bench to the transport the adapter under test
// talks to: a simple point-to-point bus or an OpenPiton NoC port.
//
// Each binding is a task that captures messages the design sends and feeds
// messages the test wants it to receive, converting between the transport's
// wire layout and layouts.Message.
package network

import (
	"strings"

	"github.com/roach88/vrtb/internal/fault"
	"github.com/roach88/vrtb/internal/sim"
)

// Implementation names a network binding.
type Implementation string

const (
	Bus       Implementation = "bus"
	OpenPiton Implementation = "openpiton"
)

// Implementations lists every supported binding.
func Implementations() []Implementation {
	return []Implementation{Bus, OpenPiton}
}

// Parse resolves a binding name, case-insensitively. Unknown names return
// a ConfigError with code ErrCodeUnknownNetwork.
func Parse(s string) (Implementation, error) {
	switch Implementation(strings.ToLower(strings.TrimSpace(s))) {
	case Bus:
		return Bus, nil
	case OpenPiton:
		return OpenPiton, nil
	default:
		return "", fault.NewConfigError(fault.ErrCodeUnknownNetwork,
			"unknown network implementation %q (want bus or openpiton)", s)
	}
}

func (i Implementation) String() string { return string(i) }

// Declare adds the ports a binding expects to d. Benches without an HDL
// model use it to build the adapter boundary.
func Declare(impl Implementation, d *sim.Design) error {
	impl, err := Parse(string(impl))
	if err != nil {
		return err
	}
	ports := busSignals
	if impl == OpenPiton {
		ports = openpitonSignals
	}
	for _, p := range ports {
		if _, err := d.Add(p.name, p.width); err != nil {
			return err
		}
	}
	return nil
}
