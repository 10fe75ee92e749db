package codec

// Indexed is a target backed by a natively indexed handle (an unpacked
// array of signals or sub-targets).
type Indexed interface {
	Target
	Len() int
	Index(i int) (Target, bool)
}

// Array is an Indexed target over a slice of element targets.
type Array []Target

// Packed implements Target.
func (Array) Packed() (Port, bool) { return nil, false }

// Member implements Target; arrays have no named members.
func (Array) Member(string) (Target, bool) { return nil, false }

// Len implements Indexed.
func (a Array) Len() int { return len(a) }

// Index implements Indexed.
func (a Array) Index(i int) (Target, bool) {
	if i < 0 || i >= len(a) {
		return nil, false
	}
	return a[i], true
}

// ArrayElement reads element i of an array of s-shaped values from t.
//
// An Indexed target yields its i-th element directly. A packed target of
// width n*w is treated as n elements of width w with element 0 in the most
// significant position: element i occupies bits starting at (n-i-1)*w.
func ArrayElement(s *Schema, t Target, i int) (Value, error) {
	w, err := BitWidth(s)
	if err != nil {
		return Value{}, err
	}
	if ix, ok := t.(Indexed); ok {
		el, ok := ix.Index(i)
		if !ok {
			return Value{}, schemaErr(ErrCodeArrayShape, s, "", "index %d out of range for %d elements", i, ix.Len())
		}
		return FromSignals(s, el)
	}
	port, ok := t.Packed()
	if !ok {
		return Value{}, schemaErr(ErrCodeArrayShape, s, "", "target is neither indexed nor packed")
	}
	n, err := arrayLen(s, port.Width(), w)
	if err != nil {
		return Value{}, err
	}
	if i < 0 || i >= n {
		return Value{}, schemaErr(ErrCodeArrayShape, s, "", "index %d out of range for %d elements", i, n)
	}
	lsb := (n - i - 1) * w
	return decode(s, port.Read().Slice(lsb+w-1, lsb), 0), nil
}

// ArrayElements reads every element of an array target in index order.
func ArrayElements(s *Schema, t Target) ([]Value, error) {
	w, err := BitWidth(s)
	if err != nil {
		return nil, err
	}
	var n int
	if ix, ok := t.(Indexed); ok {
		n = ix.Len()
	} else if port, ok := t.Packed(); ok {
		if n, err = arrayLen(s, port.Width(), w); err != nil {
			return nil, err
		}
	} else {
		return nil, schemaErr(ErrCodeArrayShape, s, "", "target is neither indexed nor packed")
	}
	out := make([]Value, n)
	for i := range out {
		if out[i], err = ArrayElement(s, t, i); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func arrayLen(s *Schema, total, w int) (int, error) {
	if total%w != 0 {
		return 0, schemaErr(ErrCodeArrayShape, s, "", "target width %d is not a multiple of element width %d", total, w)
	}
	return total / w, nil
}
