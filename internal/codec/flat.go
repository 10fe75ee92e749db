package codec

import (
	"fmt"
	"math/big"
	"sort"
)

// FromFlat builds a value of s from flattened field names.
//
// Names join nested fields with "-" (or "."), e.g. "meta-address". A name
// may also address a record field directly when its value is a Value of that
// field's schema. Every leaf must be covered exactly once.
//
// Accepted scalar kinds: int, int64, int32, uint, uint64, uint32, uint8,
// bool, *big.Int, string (decimal, 0x, 0o, 0b) and Vector.
func FromFlat(s *Schema, kv map[string]any) (Value, error) {
	if _, err := BitWidth(s); err != nil {
		return Value{}, err
	}
	if s.kind != KindRecord {
		return Value{}, schemaErr(ErrCodeUnsupportedFieldKind, s, "", "flattened construction requires a record schema")
	}

	norm := make(map[string]any, len(kv))
	for k, x := range kv {
		p := normalizePath(k)
		if _, dup := norm[p]; dup {
			return Value{}, schemaErr(ErrCodeUnknownField, s, p, "field given more than once")
		}
		norm[p] = x
	}

	used := make(map[string]bool, len(norm))
	v, err := buildFlat(s, s, "", norm, used)
	if err != nil {
		return Value{}, err
	}

	if len(used) != len(norm) {
		var unknown []string
		for k := range norm {
			if !used[k] {
				unknown = append(unknown, k)
			}
		}
		sort.Strings(unknown)
		return Value{}, schemaErr(ErrCodeUnknownField, s, unknown[0], "field does not address a leaf of %s", s)
	}
	return v, nil
}

func buildFlat(root, s *Schema, path string, kv map[string]any, used map[string]bool) (Value, error) {
	if s.kind == KindLeaf {
		x, ok := kv[path]
		if !ok {
			return Value{}, schemaErr(ErrCodeMissingField, root, path, "no value given")
		}
		used[path] = true
		bits, err := toVector(s.width, x)
		if err != nil {
			return Value{}, schemaErr(ErrCodeValueOutOfRange, root, path, "%v", err)
		}
		return Value{schema: s, bits: bits}, nil
	}

	if path != "" {
		if x, ok := kv[path]; ok {
			nested, isValue := x.(Value)
			if !isValue {
				return Value{}, schemaErr(ErrCodeUnknownField, root, path, "field is a record; give a %s value or address its leaves", s)
			}
			if !nested.schema.SameLayout(s) {
				return Value{}, schemaErr(ErrCodeWidthMismatch, root, path, "value has schema %s, want %s", nested.schema, s)
			}
			used[path] = true
			return nested, nil
		}
	}

	v := Value{schema: s, fields: make([]Value, len(s.fields))}
	for i, f := range s.fields {
		child, err := buildFlat(root, f.Schema, joinPath(path, f.Name), kv, used)
		if err != nil {
			return Value{}, err
		}
		v.fields[i] = child
	}
	return v, nil
}

// Quick builds a value of s from positional arguments zipped onto the
// schema's declared quick order.
//
// Fails with ErrCodeNoQuickOrder when s declares none and with
// ErrCodeArgCount when len(args) differs from the order.
func Quick(s *Schema, args ...any) (Value, error) {
	if len(s.quick) == 0 {
		return Value{}, schemaErr(ErrCodeNoQuickOrder, s, "", "schema declares no quick order")
	}
	if len(args) != len(s.quick) {
		return Value{}, schemaErr(ErrCodeArgCount, s, "", "got %d arguments, quick order has %d", len(args), len(s.quick))
	}
	kv := make(map[string]any, len(args))
	for i, name := range s.quick {
		kv[name] = args[i]
	}
	return FromFlat(s, kv)
}

// MustQuick is like Quick but panics on error.
func MustQuick(s *Schema, args ...any) Value {
	v, err := Quick(s, args...)
	if err != nil {
		panic(err.Error())
	}
	return v
}

// toVector converts a scalar argument to a vector of the given width,
// rejecting negative values and values that do not fit.
func toVector(width int, x any) (Vector, error) {
	switch t := x.(type) {
	case Vector:
		if t.Width() != width {
			return Vector{}, fmt.Errorf("vector has width %d, want %d", t.Width(), width)
		}
		return t, nil
	case bool:
		if t {
			return NewVector(width, 1)
		}
		return NewVector(width, 0)
	case int:
		return signed(width, int64(t))
	case int64:
		return signed(width, t)
	case int32:
		return signed(width, int64(t))
	case uint:
		return NewVector(width, uint64(t))
	case uint64:
		return NewVector(width, t)
	case uint32:
		return NewVector(width, uint64(t))
	case uint8:
		return NewVector(width, uint64(t))
	case *big.Int:
		return VectorFromBig(width, t)
	case string:
		return ParseVector(width, t)
	default:
		return Vector{}, fmt.Errorf("unsupported value type %T", x)
	}
}

func signed(width int, n int64) (Vector, error) {
	if n < 0 {
		return Vector{}, fmt.Errorf("negative value %d for unsigned field", n)
	}
	return NewVector(width, uint64(n))
}
