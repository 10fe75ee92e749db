package codec

// ToBits packs v into a single vector.
//
// Fields are concatenated in declared order with the first field in the most
// significant position, so a record's encoding is the concatenation of its
// children's encodings.
func ToBits(v Value) Vector {
	if v.schema.Kind() == KindLeaf {
		return v.bits
	}
	parts := make([]Vector, len(v.fields))
	for i, f := range v.fields {
		parts[i] = ToBits(f)
	}
	return Concat(parts...)
}

// FromBits decodes bits according to s. It is the inverse of ToBits.
//
// Fails with ErrCodeWidthMismatch unless bits is exactly BitWidth(s) wide.
func FromBits(s *Schema, bits Vector) (Value, error) {
	w, err := BitWidth(s)
	if err != nil {
		return Value{}, err
	}
	if bits.Width() != w {
		return Value{}, schemaErr(ErrCodeWidthMismatch, s, "", "got %d bits, want %d", bits.Width(), w)
	}
	return decode(s, bits, 0), nil
}

// decode reads s starting at bit lo of bits. Fields are consumed from the
// least significant end in reverse declaration order.
func decode(s *Schema, bits Vector, lo int) Value {
	if s.kind == KindLeaf {
		return Value{schema: s, bits: bits.Slice(lo+s.width-1, lo)}
	}
	v := Value{schema: s, fields: make([]Value, len(s.fields))}
	off := lo
	for i := len(s.fields) - 1; i >= 0; i-- {
		child := s.fields[i].Schema
		v.fields[i] = decode(child, bits, off)
		off += child.mustWidth()
	}
	return v
}
