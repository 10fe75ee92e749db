package codec

import "sort"

// Port is a single fixed-width signal that can be read and written as one
// vector.
type Port interface {
	Name() string
	Width() int
	Read() Vector
	Write(Vector) error
}

// Target is a place a value can be written to or read from.
//
// A target either exposes one packed Port, in which case a whole record is
// transferred as a single vector, or it exposes named members that mirror the
// schema's fields.
type Target interface {
	Packed() (Port, bool)
	Member(name string) (Target, bool)
}

// Tree is a Target made of named members. It is how a composed alias over
// several physical signals is expressed.
type Tree map[string]Target

// Packed implements Target; a Tree never exposes a single port.
func (Tree) Packed() (Port, bool) { return nil, false }

// Member implements Target.
func (t Tree) Member(name string) (Target, bool) {
	m, ok := t[name]
	return m, ok
}

// Names returns the member names in sorted order.
func (t Tree) Names() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PortTarget adapts a Port into a packed Target.
func PortTarget(p Port) Target { return portTarget{p} }

type portTarget struct{ p Port }

func (t portTarget) Packed() (Port, bool)         { return t.p, true }
func (portTarget) Member(string) (Target, bool) { return nil, false }

// ToSignals writes v into t.
//
// When t exposes a packed port the whole value is written as ToBits(v);
// otherwise each field is written into the member of the same name. Port
// widths must equal the widths of the values written to them.
func ToSignals(v Value, t Target) error {
	if !v.IsValid() {
		return schemaErr(ErrCodeUnsupportedFieldKind, nil, "", "cannot write the zero Value")
	}
	return toSignals(v.schema, v, t, "")
}

func toSignals(root *Schema, v Value, t Target, path string) error {
	if port, ok := t.Packed(); ok {
		bits := ToBits(v)
		if port.Width() != bits.Width() {
			return schemaErr(ErrCodeWidthMismatch, root, path, "port %s has %d bits, value has %d", port.Name(), port.Width(), bits.Width())
		}
		return port.Write(bits)
	}
	if v.schema.Kind() == KindLeaf {
		return schemaErr(ErrCodeUnknownField, root, path, "target exposes no port for leaf")
	}
	for i, f := range v.schema.fields {
		p := joinPath(path, f.Name)
		member, ok := t.Member(f.Name)
		if !ok {
			return schemaErr(ErrCodeUnknownField, root, p, "target has no member %q", f.Name)
		}
		if err := toSignals(root, v.fields[i], member, p); err != nil {
			return err
		}
	}
	return nil
}

// FromSignals reads a value of schema s from t. It mirrors ToSignals.
func FromSignals(s *Schema, t Target) (Value, error) {
	if _, err := BitWidth(s); err != nil {
		return Value{}, err
	}
	return fromSignals(s, s, t, "")
}

func fromSignals(root, s *Schema, t Target, path string) (Value, error) {
	if port, ok := t.Packed(); ok {
		bits := port.Read()
		if bits.Width() != s.width {
			return Value{}, schemaErr(ErrCodeWidthMismatch, root, path, "port %s has %d bits, schema has %d", port.Name(), bits.Width(), s.width)
		}
		return decode(s, bits, 0), nil
	}
	if s.kind == KindLeaf {
		return Value{}, schemaErr(ErrCodeUnknownField, root, path, "target exposes no port for leaf")
	}
	v := Value{schema: s, fields: make([]Value, len(s.fields))}
	for i, f := range s.fields {
		p := joinPath(path, f.Name)
		member, ok := t.Member(f.Name)
		if !ok {
			return Value{}, schemaErr(ErrCodeUnknownField, root, p, "target has no member %q", f.Name)
		}
		child, err := fromSignals(root, f.Schema, member, p)
		if err != nil {
			return Value{}, err
		}
		v.fields[i] = child
	}
	return v, nil
}
