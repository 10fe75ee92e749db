package codec

import (
	"fmt"
	"strings"
)

// Value is a typed value conforming to a Schema.
//
// Leaves hold a Vector of exactly the declared width; records hold one child
// value per declared field, in declaration order. Values are immutable.
type Value struct {
	schema *Schema
	bits   Vector
	fields []Value
}

// FlatField is one leaf of a flattened value.
type FlatField struct {
	Name string
	Bits Vector
}

// Zeroed returns the value of s with every leaf zero.
// Panics if s fails BitWidth.
func Zeroed(s *Schema) Value {
	if _, err := BitWidth(s); err != nil {
		panic(err.Error())
	}
	return zeroed(s)
}

func zeroed(s *Schema) Value {
	if s.kind == KindLeaf {
		return Value{schema: s, bits: Zero(s.width)}
	}
	v := Value{schema: s, fields: make([]Value, len(s.fields))}
	for i, f := range s.fields {
		v.fields[i] = zeroed(f.Schema)
	}
	return v
}

// LeafValue wraps a vector as a value of a leaf schema.
func LeafValue(s *Schema, bits Vector) (Value, error) {
	if s.Kind() != KindLeaf {
		return Value{}, schemaErr(ErrCodeUnsupportedFieldKind, s, "", "LeafValue requires a leaf schema")
	}
	if bits.Width() != s.width {
		return Value{}, schemaErr(ErrCodeWidthMismatch, s, "", "got %d bits, want %d", bits.Width(), s.width)
	}
	return Value{schema: s, bits: bits}, nil
}

// Schema returns the schema the value conforms to.
func (v Value) Schema() *Schema { return v.schema }

// IsValid reports whether v was produced by the codec (the zero Value is not).
func (v Value) IsValid() bool { return v.schema != nil }

// Bits returns the packed encoding; it is the same as ToBits(v).
func (v Value) Bits() Vector { return ToBits(v) }

// Field returns the child value with the given name.
func (v Value) Field(name string) (Value, bool) {
	if v.schema.Kind() != KindRecord {
		return Value{}, false
	}
	i, ok := v.schema.index[name]
	if !ok {
		return Value{}, false
	}
	return v.fields[i], true
}

// Get returns the bits addressed by a flattened path ("meta-tag" or
// "meta.tag"). A path addressing a record returns its packed bits; the
// empty path returns the whole value.
func (v Value) Get(path string) (Vector, error) {
	cur := v
	if path != "" {
		for _, part := range strings.Split(normalizePath(path), PathSep) {
			next, ok := cur.Field(part)
			if !ok {
				return Vector{}, schemaErr(ErrCodeUnknownField, v.schema, normalizePath(path), "no such field")
			}
			cur = next
		}
	}
	return ToBits(cur), nil
}

// Uint returns the low 64 bits addressed by path.
// Panics if the path is unknown; use Get for untrusted paths.
func (v Value) Uint(path string) uint64 {
	bits, err := v.Get(path)
	if err != nil {
		panic(err.Error())
	}
	return bits.Uint64()
}

// With returns a copy of v with the leaf at path replaced by x.
// x accepts the same kinds as FromFlat.
func (v Value) With(path string, x any) (Value, error) {
	kv := make(map[string]any)
	for _, f := range v.Flatten() {
		kv[f.Name] = f.Bits
	}
	p := normalizePath(path)
	if _, ok := kv[p]; !ok {
		return Value{}, schemaErr(ErrCodeUnknownField, v.schema, p, "no such leaf")
	}
	kv[p] = x
	return FromFlat(v.schema, kv)
}

// Flatten returns every leaf in declared order with its dash-joined name.
func (v Value) Flatten() []FlatField {
	var out []FlatField
	v.flatten("", &out)
	return out
}

func (v Value) flatten(prefix string, out *[]FlatField) {
	if v.schema.Kind() == KindLeaf {
		*out = append(*out, FlatField{Name: prefix, Bits: v.bits})
		return
	}
	for i, f := range v.schema.fields {
		v.fields[i].flatten(joinPath(prefix, f.Name), out)
	}
}

// Equal reports whether both values share a layout and encode to the same bits.
func (v Value) Equal(o Value) bool {
	if !v.schema.SameLayout(o.schema) {
		return false
	}
	return ToBits(v).Equal(ToBits(o))
}

// String renders the value as Name(field=..., ...), recursing into records.
func (v Value) String() string {
	if v.schema == nil {
		return "<invalid>"
	}
	if v.schema.kind == KindLeaf {
		return v.bits.String()
	}
	var b strings.Builder
	b.WriteString(v.schema.String())
	b.WriteByte('(')
	for i, f := range v.schema.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%s", f.Name, v.fields[i].String())
	}
	b.WriteByte(')')
	return b.String()
}
