package sim

import (
	"fmt"

	"github.com/roach88/vrtb/internal/codec"
)

// Signal is a named two-state signal of fixed width.
//
// Set schedules a deferred write applied in the next delta cycle; reads
// always return the settled value. Signal implements codec.Port and
// codec.Target, so it can be used directly as a packed data target.
type Signal struct {
	k       *Kernel
	name    string
	value   codec.Vector
	pending *codec.Vector

	rise   edge
	fall   edge
	change edge
}

func newSignal(k *Kernel, name string, width int) *Signal {
	s := &Signal{k: k, name: name, value: codec.Zero(width)}
	s.rise = edge{sig: s, kind: "RisingEdge"}
	s.fall = edge{sig: s, kind: "FallingEdge"}
	s.change = edge{sig: s, kind: "ValueChange"}
	return s
}

// Name implements codec.Port.
func (s *Signal) Name() string { return s.name }

// Width implements codec.Port.
func (s *Signal) Width() int { return s.value.Width() }

// Read implements codec.Port and returns the settled value.
func (s *Signal) Read() codec.Vector { return s.value }

// Uint returns the low 64 bits of the settled value.
func (s *Signal) Uint() uint64 { return s.value.Uint64() }

// High reports whether bit 0 of the settled value is set.
func (s *Signal) High() bool { return s.value.Bit(0) == 1 }

// Write implements codec.Port; it is the same as Set.
func (s *Signal) Write(v codec.Vector) error { return s.Set(v) }

// Set schedules v to be applied in the next delta cycle. The last Set in a
// delta wins.
func (s *Signal) Set(v codec.Vector) error {
	if v.Width() != s.Width() {
		return fmt.Errorf("signal %s: write of %d bits to %d-bit signal", s.name, v.Width(), s.Width())
	}
	if s.pending == nil {
		s.k.dirty = append(s.k.dirty, s)
	}
	s.pending = &v
	return nil
}

// SetUint is Set with an integer value.
func (s *Signal) SetUint(v uint64) error {
	bits, err := codec.NewVector(s.Width(), v)
	if err != nil {
		return fmt.Errorf("signal %s: %w", s.name, err)
	}
	return s.Set(bits)
}

// SetImmediate applies v now, firing edges immediately and discarding any
// pending deferred write.
func (s *Signal) SetImmediate(v codec.Vector) error {
	if v.Width() != s.Width() {
		return fmt.Errorf("signal %s: write of %d bits to %d-bit signal", s.name, v.Width(), s.Width())
	}
	s.pending = nil
	s.apply(v)
	return nil
}

// SetImmediateUint is SetImmediate with an integer value.
func (s *Signal) SetImmediateUint(v uint64) error {
	bits, err := codec.NewVector(s.Width(), v)
	if err != nil {
		return fmt.Errorf("signal %s: %w", s.name, err)
	}
	return s.SetImmediate(bits)
}

// RisingEdge fires when bit 0 goes from 0 to 1.
func (s *Signal) RisingEdge() Trigger { return &s.rise }

// FallingEdge fires when bit 0 goes from 1 to 0.
func (s *Signal) FallingEdge() Trigger { return &s.fall }

// Changed fires on any value change.
func (s *Signal) Changed() Trigger { return &s.change }

// Packed implements codec.Target.
func (s *Signal) Packed() (codec.Port, bool) { return s, true }

// Member implements codec.Target; a signal has no members.
func (s *Signal) Member(string) (codec.Target, bool) { return nil, false }

func (s *Signal) String() string {
	return s.name + "=" + s.value.String()
}

func (s *Signal) apply(v codec.Vector) {
	old := s.value
	s.value = v
	if old.Equal(v) {
		return
	}
	oldBit, newBit := old.Bit(0), v.Bit(0)
	switch {
	case oldBit == 0 && newBit == 1:
		s.rise.fire()
	case oldBit == 1 && newBit == 0:
		s.fall.fire()
	}
	s.change.fire()
}

// applyWrites commits every pending signal write in the order the signals
// were first written during the delta.
func (k *Kernel) applyWrites() {
	dirty := k.dirty
	k.dirty = nil
	for _, s := range dirty {
		if s.pending == nil {
			continue
		}
		v := *s.pending
		s.pending = nil
		s.apply(v)
	}
}
