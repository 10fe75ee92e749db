package codec

import (
	"fmt"
	"strings"
)

// Kind distinguishes schema node types.
type Kind int

const (
	// KindInvalid is the zero Kind; BitWidth rejects it.
	KindInvalid Kind = iota

	// KindLeaf is a fixed-width unsigned bit vector.
	KindLeaf

	// KindRecord is an ordered list of named child schemas.
	KindRecord
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindRecord:
		return "record"
	default:
		return "invalid"
	}
}

// PathSep joins nested field names in flattened names ("meta-address").
const PathSep = "-"

// Field is one named child of a record schema.
type Field struct {
	Name   string
	Schema *Schema
}

// F is shorthand for Field{Name: name, Schema: s}.
func F(name string, s *Schema) Field {
	return Field{Name: name, Schema: s}
}

// Schema describes the bit layout of a value.
//
// A Schema is either a Leaf of fixed width or a Record of ordered named
// fields. The first declared field occupies the most significant bits of the
// packed encoding. Schemas are immutable after construction and are shared
// by pointer; two values are comparable only when their schemas share a
// layout (see SameLayout).
type Schema struct {
	name   string
	kind   Kind
	width  int
	fields []Field
	index  map[string]int
	quick  []string
	origin *Schema // schema this one was derived from by WithQuickOrder
}

// Leaf returns a leaf schema of the given width.
// Panics if width < 1.
func Leaf(width int) *Schema {
	if width < 1 {
		panic(fmt.Sprintf("codec: leaf width must be positive, got %d", width))
	}
	return &Schema{kind: KindLeaf, width: width}
}

// Record returns a record schema with the given ordered fields.
//
// Field names must be unique and non-empty. A field with a nil or invalid
// schema, or a record with no fields at all, is accepted here and reported
// by BitWidth as ErrCodeUnsupportedFieldKind.
func Record(name string, fields ...Field) *Schema {
	s := &Schema{
		name:   name,
		kind:   KindRecord,
		fields: append([]Field(nil), fields...),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Name == "" || strings.ContainsAny(f.Name, "-.") {
			panic(fmt.Sprintf("codec: record %s: invalid field name %q", name, f.Name))
		}
		if _, dup := s.index[f.Name]; dup {
			panic(fmt.Sprintf("codec: record %s: duplicate field %q", name, f.Name))
		}
		s.index[f.Name] = i
		if s.width >= 0 {
			if f.Schema == nil || f.Schema.kind == KindInvalid || f.Schema.width < 0 {
				s.width = -1
			} else {
				s.width += f.Schema.width
			}
		}
	}
	if len(fields) == 0 {
		s.width = -1
	}
	return s
}

// WithQuickOrder returns a copy of s whose quick constructor takes positional
// arguments in the given order. Each name is a flattened leaf path; "." is
// accepted as a separator and normalized to "-".
//
// Panics if a name does not address a leaf of s or appears twice.
func (s *Schema) WithQuickOrder(names ...string) *Schema {
	if err := s.checkQuickOrder(names); err != nil {
		panic(err.Error())
	}
	cp := *s
	cp.origin = s.layout()
	cp.quick = make([]string, len(names))
	for i, n := range names {
		cp.quick[i] = normalizePath(n)
	}
	return &cp
}

// CheckQuickOrder validates a quick order without building a schema.
// The compiler uses it to report declaration errors instead of panicking.
func (s *Schema) CheckQuickOrder(names []string) error {
	return s.checkQuickOrder(names)
}

func (s *Schema) checkQuickOrder(names []string) error {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		p := normalizePath(n)
		if seen[p] {
			return schemaErr(ErrCodeUnknownField, s, p, "quick order names field twice")
		}
		seen[p] = true
		leaf, err := s.lookup(p)
		if err != nil {
			return err
		}
		if leaf.kind != KindLeaf {
			return schemaErr(ErrCodeUnknownField, s, p, "quick order entry addresses a record, not a leaf")
		}
	}
	return nil
}

// SameLayout reports whether s and o describe the same layout: the same
// schema, or schemas derived from one another by WithQuickOrder. Values of
// schemas with the same layout are interchangeable.
func (s *Schema) SameLayout(o *Schema) bool {
	if s == nil || o == nil {
		return false
	}
	return s.layout() == o.layout()
}

func (s *Schema) layout() *Schema {
	if s.origin != nil {
		return s.origin
	}
	return s
}

// Name returns the record name (empty for leaves).
func (s *Schema) Name() string { return s.name }

// Kind returns the node kind.
func (s *Schema) Kind() Kind {
	if s == nil {
		return KindInvalid
	}
	return s.kind
}

// IsLeaf reports whether s is a leaf.
func (s *Schema) IsLeaf() bool { return s.Kind() == KindLeaf }

// Fields returns a copy of the ordered record fields.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Field returns the child schema with the given name.
func (s *Schema) Field(name string) (*Schema, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.fields[i].Schema, true
}

// QuickOrder returns the declared quick order, or nil.
func (s *Schema) QuickOrder() []string {
	return append([]string(nil), s.quick...)
}

// LeafNames returns every flattened leaf path in declared order.
func (s *Schema) LeafNames() []string {
	var out []string
	s.walkLeaves("", func(path string, _ *Schema) {
		out = append(out, path)
	})
	return out
}

// String returns the schema name, or "uN" for a leaf of width N.
func (s *Schema) String() string {
	if s == nil {
		return "<nil>"
	}
	if s.kind == KindLeaf {
		return fmt.Sprintf("u%d", s.width)
	}
	if s.name == "" {
		return "record"
	}
	return s.name
}

// BitWidth returns the total width of s.
//
// Leaves report their declared width; records report the sum of their
// children. Any node that is neither a leaf nor a record, and any record
// without fields, fails with ErrCodeUnsupportedFieldKind naming the
// offending field.
func BitWidth(s *Schema) (int, error) {
	return bitWidth(s, s, "")
}

func bitWidth(root, s *Schema, path string) (int, error) {
	switch s.Kind() {
	case KindLeaf:
		return s.width, nil
	case KindRecord:
		if len(s.fields) == 0 {
			return 0, schemaErr(ErrCodeUnsupportedFieldKind, root, path, "record has no fields")
		}
		total := 0
		for _, f := range s.fields {
			w, err := bitWidth(root, f.Schema, joinPath(path, f.Name))
			if err != nil {
				return 0, err
			}
			total += w
		}
		return total, nil
	default:
		return 0, schemaErr(ErrCodeUnsupportedFieldKind, root, path, "schema node is neither a leaf nor a record")
	}
}

// mustWidth is used on code paths where the schema has already been
// validated by a public entry point.
func (s *Schema) mustWidth() int {
	if s.width < 0 || s.kind == KindInvalid {
		panic("codec: width of invalid schema")
	}
	return s.width
}

// lookup resolves a normalized dash path to a sub-schema.
func (s *Schema) lookup(path string) (*Schema, error) {
	cur := s
	for _, part := range strings.Split(path, PathSep) {
		if cur.Kind() != KindRecord {
			return nil, schemaErr(ErrCodeUnknownField, s, path, "path descends into a leaf")
		}
		child, ok := cur.Field(part)
		if !ok {
			return nil, schemaErr(ErrCodeUnknownField, s, path, "no field %q in %s", part, cur)
		}
		cur = child
	}
	return cur, nil
}

func (s *Schema) walkLeaves(prefix string, fn func(path string, leaf *Schema)) {
	if s.Kind() == KindLeaf {
		fn(prefix, s)
		return
	}
	for _, f := range s.fields {
		f.Schema.walkLeaves(joinPath(prefix, f.Name), fn)
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + PathSep + name
}

func normalizePath(p string) string {
	return strings.ReplaceAll(p, ".", PathSep)
}
