package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Group is an ordered collection of faults with a message.
//
// Groups nest: a task's cleanup group may contain its children's groups.
// Notes attached with AddNote to a Group annotate every leaf beneath it.
type Group struct {
	Message string
	Errs    []error
}

// Merge returns a Group of the non-nil errs, or nil if there are none.
func Merge(message string, errs ...error) error {
	var kept []error
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &Group{Message: message, Errs: kept}
}

// Unwrap exposes every contained fault to errors.Is and errors.As.
func (g *Group) Unwrap() []error { return g.Errs }

// Error renders the group as an indented tree.
func (g *Group) Error() string {
	var b strings.Builder
	render(&b, g, 0)
	return strings.TrimRight(b.String(), "\n")
}

// Len returns the number of leaves beneath g.
func (g *Group) Len() int { return len(Flatten(g)) }

// noted attaches notes to an error without hiding it from errors.As.
type noted struct {
	err   error
	notes []string
}

func (n *noted) Error() string { return n.err.Error() }
func (n *noted) Unwrap() error { return n.err }

// AddNote returns err annotated with note. Notes accumulate in the order
// they are added. AddNote(nil, ...) returns nil.
func AddNote(err error, note string) error {
	if err == nil {
		return nil
	}
	if n, ok := err.(*noted); ok {
		notes := make([]string, len(n.notes), len(n.notes)+1)
		copy(notes, n.notes)
		return &noted{err: n.err, notes: append(notes, note)}
	}
	return &noted{err: err, notes: []string{note}}
}

// Notes returns the notes attached directly to err, oldest first.
// Notes on errors inside a group are not included; see Flatten.
func Notes(err error) []string {
	var layers [][]string
	for err != nil {
		if n, ok := err.(*noted); ok {
			layers = append(layers, n.notes)
		}
		if _, ok := err.(*Group); ok {
			break
		}
		err = errors.Unwrap(err)
	}
	var out []string
	for i := len(layers) - 1; i >= 0; i-- {
		out = append(out, layers[i]...)
	}
	return out
}

// Leaf is one fault of a flattened tree.
type Leaf struct {
	// Err is the fault with note wrappers removed.
	Err error

	// Notes holds the fault's own notes followed by the notes of every
	// enclosing group, innermost first.
	Notes []string

	// Path lists the messages of the enclosing groups, outermost first.
	Path []string
}

// Flatten returns every leaf fault beneath err in order.
// A nil err yields no leaves; a plain error yields one.
func Flatten(err error) []Leaf {
	var out []Leaf
	flatten(err, nil, nil, &out)
	return out
}

func flatten(err error, outerNotes, path []string, out *[]Leaf) {
	if err == nil {
		return
	}
	own := Notes(err)
	inner := strip(err)
	notes := append(append([]string(nil), own...), outerNotes...)

	if g, ok := inner.(*Group); ok {
		sub := append(append([]string(nil), path...), g.Message)
		for _, e := range g.Errs {
			flatten(e, notes, sub, out)
		}
		return
	}
	if m, ok := inner.(interface{ Unwrap() []error }); ok {
		for _, e := range m.Unwrap() {
			flatten(e, notes, path, out)
		}
		return
	}
	*out = append(*out, Leaf{Err: inner, Notes: notes, Path: append([]string(nil), path...)})
}

// strip removes note wrappers.
func strip(err error) error {
	for {
		n, ok := err.(*noted)
		if !ok {
			return err
		}
		err = n.err
	}
}

func render(b *strings.Builder, err error, depth int) {
	indent := strings.Repeat("  ", depth)
	notes := Notes(err)
	inner := strip(err)

	if g, ok := inner.(*Group); ok {
		fmt.Fprintf(b, "%s%s (%d sub-faults)\n", indent, g.Message, len(g.Errs))
		for _, n := range notes {
			fmt.Fprintf(b, "%s| %s\n", indent, n)
		}
		for i, e := range g.Errs {
			fmt.Fprintf(b, "%s+-- %d --\n", indent, i+1)
			render(b, e, depth+1)
		}
		return
	}
	for i, line := range strings.Split(inner.Error(), "\n") {
		if i == 0 {
			fmt.Fprintf(b, "%s%s\n", indent, line)
			continue
		}
		fmt.Fprintf(b, "%s  %s\n", indent, line)
	}
	for _, n := range notes {
		fmt.Fprintf(b, "%s| %s\n", indent, n)
	}
}
