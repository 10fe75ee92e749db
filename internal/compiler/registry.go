package compiler

import (
	"fmt"
	"sort"

	"github.com/roach88/vrtb/internal/codec"
)

// Registry holds compiled schemas by declaration name.
type Registry struct {
	schemas map[string]*codec.Schema
	order   []string
}

func newRegistry() *Registry {
	return &Registry{schemas: make(map[string]*codec.Schema)}
}

func (r *Registry) add(name string, s *codec.Schema) {
	r.schemas[name] = s
	r.order = append(r.order, name)
}

// Lookup returns the named schema.
func (r *Registry) Lookup(name string) (*codec.Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// MustLookup is like Lookup but panics on an unknown name.
func (r *Registry) MustLookup(name string) *codec.Schema {
	s, ok := r.schemas[name]
	if !ok {
		panic(fmt.Sprintf("compiler: unknown schema %q", name))
	}
	return s
}

// Names returns every schema name, sorted.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Declared returns schema names in declaration order.
func (r *Registry) Declared() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of schemas.
func (r *Registry) Len() int { return len(r.order) }
