package sim

import (
	"fmt"
	"sort"

	"github.com/roach88/vrtb/internal/codec"
)

// Design is the signal boundary of the device under test: a registry of
// named signals owned by one kernel.
type Design struct {
	k       *Kernel
	signals map[string]*Signal
	order   []string
}

// NewDesign returns an empty design bound to k.
func NewDesign(k *Kernel) *Design {
	return &Design{k: k, signals: make(map[string]*Signal)}
}

// Kernel returns the kernel the design's signals belong to.
func (d *Design) Kernel() *Kernel { return d.k }

// Add registers a signal. Adding an existing name with the same width
// returns the existing signal.
func (d *Design) Add(name string, width int) (*Signal, error) {
	if s, ok := d.signals[name]; ok {
		if s.Width() != width {
			return nil, fmt.Errorf("signal %s already declared with width %d", name, s.Width())
		}
		return s, nil
	}
	if width < 1 {
		return nil, fmt.Errorf("signal %s: invalid width %d", name, width)
	}
	s := newSignal(d.k, name, width)
	d.signals[name] = s
	d.order = append(d.order, name)
	return s, nil
}

// MustAdd is like Add but panics on error.
func (d *Design) MustAdd(name string, width int) *Signal {
	s, err := d.Add(name, width)
	if err != nil {
		panic(err)
	}
	return s
}

// Signal returns the named signal or an error naming it.
func (d *Design) Signal(name string) (*Signal, error) {
	s, ok := d.signals[name]
	if !ok {
		return nil, fmt.Errorf("design has no signal %q", name)
	}
	return s, nil
}

// Lookup returns the named signal if present.
func (d *Design) Lookup(name string) (*Signal, bool) {
	s, ok := d.signals[name]
	return s, ok
}

// Names returns every signal name in declaration order.
func (d *Design) Names() []string {
	return append([]string(nil), d.order...)
}

// Alias builds a composed target from a nested mapping of field names to
// signal names. Values are either a signal name (string) or a nested
// map[string]any. The result presents several physical signals as one
// structured data target.
func (d *Design) Alias(mapping map[string]any) (codec.Tree, error) {
	tree := make(codec.Tree, len(mapping))
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, field := range keys {
		switch v := mapping[field].(type) {
		case string:
			s, err := d.Signal(v)
			if err != nil {
				return nil, fmt.Errorf("alias field %s: %w", field, err)
			}
			tree[field] = s
		case map[string]any:
			sub, err := d.Alias(v)
			if err != nil {
				return nil, fmt.Errorf("alias field %s: %w", field, err)
			}
			tree[field] = sub
		case map[string]string:
			conv := make(map[string]any, len(v))
			for mk, mv := range v {
				conv[mk] = mv
			}
			sub, err := d.Alias(conv)
			if err != nil {
				return nil, fmt.Errorf("alias field %s: %w", field, err)
			}
			tree[field] = sub
		default:
			return nil, fmt.Errorf("alias field %s: unsupported mapping value %T", field, v)
		}
	}
	return tree, nil
}
