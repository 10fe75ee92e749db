package compiler

import (
	"fmt"
	"regexp"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/vrtb/internal/codec"
)

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// CompileSchemas compiles the schema declarations under the top-level
// "schema" struct of v.
//
// Each declaration has a "fields" struct, whose declaration order is the
// bit order (first field most significant), and an optional "quick" list
// of flattened leaf names. A field value is a width (int), the name of
// another declared schema (string) or an inline struct of fields:
//
//	schema: Message: {
//		fields: {
//			meta: "MessageMetadata"
//			data: 64
//		}
//		quick: ["meta-address", "meta-tag", "data"]
//	}
func CompileSchemas(v cue.Value) (*Registry, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	root := v.LookupPath(cue.ParsePath("schema"))
	if !root.Exists() {
		return nil, &CompileError{
			Code:    ErrCodeNoSchemas,
			Field:   "schema",
			Message: "no schema block found",
			Pos:     v.Pos(),
		}
	}

	c := &compilation{
		decls: make(map[string]cue.Value),
		built: make(map[string]*codec.Schema),
	}
	iter, err := root.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		c.order = append(c.order, name)
		c.decls[name] = iter.Value()
	}
	if len(c.order) == 0 {
		return nil, &CompileError{
			Code:    ErrCodeNoSchemas,
			Field:   "schema",
			Message: "schema block declares nothing",
			Pos:     root.Pos(),
		}
	}

	graph := make(refGraph, len(c.order))
	for _, name := range c.order {
		refs, err := c.references(name, c.decls[name].LookupPath(cue.ParsePath("fields")))
		if err != nil {
			return nil, err
		}
		graph[name] = refs
	}
	if err := checkCycles(graph); err != nil {
		return nil, err
	}

	reg := newRegistry()
	for _, name := range c.order {
		s, err := c.build(name)
		if err != nil {
			return nil, err
		}
		reg.add(name, s)
	}
	return reg, nil
}

// CompileString compiles CUE source text holding a schema block.
func CompileString(src string) (*Registry, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	return CompileSchemas(v)
}

type compilation struct {
	order []string
	decls map[string]cue.Value
	built map[string]*codec.Schema
}

// references lists the schema names referenced anywhere under a fields
// struct, in declaration order.
func (c *compilation) references(schema string, fields cue.Value) ([]string, error) {
	if !fields.Exists() {
		return nil, nil
	}
	iter, err := fields.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var refs []string
	for iter.Next() {
		fv := iter.Value()
		switch fv.IncompleteKind() {
		case cue.StringKind:
			ref, err := fv.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if _, ok := c.decls[ref]; !ok {
				return nil, &CompileError{
					Code:    ErrCodeUnknownRef,
					Field:   fmt.Sprintf("schema.%s.%s", schema, iter.Label()),
					Message: fmt.Sprintf("unknown schema %q", ref),
					Pos:     fv.Pos(),
				}
			}
			refs = append(refs, ref)
		case cue.StructKind:
			sub, err := c.references(schema, fv)
			if err != nil {
				return nil, err
			}
			refs = append(refs, sub...)
		}
	}
	return refs, nil
}

func (c *compilation) build(name string) (*codec.Schema, error) {
	if s, ok := c.built[name]; ok {
		return s, nil
	}
	decl := c.decls[name]
	field := "schema." + name

	fieldsVal := decl.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Code:    ErrCodeInvalidField,
			Field:   field + ".fields",
			Message: "fields is required",
			Pos:     decl.Pos(),
		}
	}
	fields, err := c.buildFields(field+".fields", fieldsVal)
	if err != nil {
		return nil, err
	}
	s := codec.Record(name, fields...)

	quickVal := decl.LookupPath(cue.ParsePath("quick"))
	if quickVal.Exists() {
		names, err := stringList(quickVal)
		if err != nil {
			return nil, err
		}
		if err := s.CheckQuickOrder(names); err != nil {
			return nil, &CompileError{
				Code:    ErrCodeInvalidQuick,
				Field:   field + ".quick",
				Message: err.Error(),
				Pos:     quickVal.Pos(),
			}
		}
		s = s.WithQuickOrder(names...)
	}

	c.built[name] = s
	return s, nil
}

func (c *compilation) buildFields(path string, v cue.Value) ([]codec.Field, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var fields []codec.Field
	for iter.Next() {
		label := iter.Label()
		fv := iter.Value()
		if !fieldNamePattern.MatchString(label) {
			return nil, &CompileError{
				Code:    ErrCodeInvalidName,
				Field:   path + "." + label,
				Message: "field names must be identifiers; '-' and '.' separate path segments",
				Pos:     fv.Pos(),
			}
		}
		s, err := c.buildField(path+"."+label, label, fv)
		if err != nil {
			return nil, err
		}
		fields = append(fields, codec.F(label, s))
	}
	if len(fields) == 0 {
		return nil, &CompileError{
			Code:    ErrCodeInvalidField,
			Field:   path,
			Message: "a record needs at least one field",
			Pos:     v.Pos(),
		}
	}
	return fields, nil
}

func (c *compilation) buildField(path, label string, v cue.Value) (*codec.Schema, error) {
	switch v.IncompleteKind() {
	case cue.IntKind:
		w, err := v.Int64()
		if err != nil {
			return nil, &CompileError{
				Code:    ErrCodeInvalidWidth,
				Field:   path,
				Message: fmt.Sprintf("width must be a concrete int: %v", err),
				Pos:     v.Pos(),
			}
		}
		if w < 1 {
			return nil, &CompileError{
				Code:    ErrCodeInvalidWidth,
				Field:   path,
				Message: fmt.Sprintf("width must be positive, got %d", w),
				Pos:     v.Pos(),
			}
		}
		return codec.Leaf(int(w)), nil
	case cue.StringKind:
		ref, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return c.build(ref)
	case cue.StructKind:
		fields, err := c.buildFields(path, v)
		if err != nil {
			return nil, err
		}
		return codec.Record(label, fields...), nil
	default:
		return nil, &CompileError{
			Code:    ErrCodeInvalidField,
			Field:   path,
			Message: fmt.Sprintf("field must be a width, a schema name or a struct, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}
