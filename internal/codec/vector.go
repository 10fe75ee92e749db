package codec

import (
	"fmt"
	"math/big"
	"strings"
)

// Vector is an immutable, fixed-width, unsigned bit vector.
//
// Bit 0 is the least significant bit. Words are stored little-endian and the
// bits above the width are always zero, so two vectors of the same width and
// value are deeply equal (reflect.DeepEqual / testify's assert.Equal work).
//
// The zero Vector has width 0 and is not a valid value of any schema.
type Vector struct {
	width int
	words []uint64
}

func wordsFor(width int) int {
	return (width + 63) / 64
}

func maskTop(words []uint64, width int) {
	if rem := width % 64; rem != 0 && len(words) > 0 {
		words[len(words)-1] &= (uint64(1) << rem) - 1
	}
}

// Zero returns the all-zero vector of the given width.
// Panics if width < 1.
func Zero(width int) Vector {
	if width < 1 {
		panic(fmt.Sprintf("codec: invalid vector width %d", width))
	}
	return Vector{width: width, words: make([]uint64, wordsFor(width))}
}

// Ones returns the all-ones vector of the given width.
//
// This is the explicit way to build a full mask; the codec never negates or
// sign-extends on its own.
func Ones(width int) Vector {
	v := Zero(width)
	for i := range v.words {
		v.words[i] = ^uint64(0)
	}
	maskTop(v.words, width)
	return v
}

// NewVector returns a vector of the given width holding v.
// Values that do not fit in width bits are rejected with ErrCodeValueOutOfRange.
func NewVector(width int, v uint64) (Vector, error) {
	if width < 64 && v>>uint(width) != 0 {
		return Vector{}, &SchemaError{
			Code:    ErrCodeValueOutOfRange,
			Message: fmt.Sprintf("value %d does not fit in %d bits", v, width),
		}
	}
	out := Zero(width)
	out.words[0] = v
	return out, nil
}

// MustVector is like NewVector but panics on error.
// Intended for constants in tests and layout declarations.
func MustVector(width int, v uint64) Vector {
	out, err := NewVector(width, v)
	if err != nil {
		panic(err)
	}
	return out
}

// Masked truncates v to its low width bits.
// Use it where a caller deliberately wants masking (e.g. a negated mask field).
func Masked(width int, v uint64) Vector {
	out := Zero(width)
	out.words[0] = v
	maskTop(out.words, width)
	return out
}

// VectorFromBig converts a non-negative big integer into a vector.
func VectorFromBig(width int, b *big.Int) (Vector, error) {
	if b.Sign() < 0 || b.BitLen() > width {
		return Vector{}, &SchemaError{
			Code:    ErrCodeValueOutOfRange,
			Message: fmt.Sprintf("value %s does not fit in %d bits", b.String(), width),
		}
	}
	out := Zero(width)
	tmp := new(big.Int)
	for i := range out.words {
		out.words[i] = tmp.Rsh(b, uint(64*i)).Uint64()
	}
	return out, nil
}

// ParseVector parses a decimal, 0x-hex, 0o-octal or 0b-binary literal
// (underscores allowed) into a vector of the given width.
func ParseVector(width int, s string) (Vector, error) {
	b, ok := new(big.Int).SetString(strings.TrimSpace(s), 0)
	if !ok {
		return Vector{}, &SchemaError{
			Code:    ErrCodeValueOutOfRange,
			Message: fmt.Sprintf("cannot parse %q as an unsigned integer", s),
		}
	}
	return VectorFromBig(width, b)
}

// Width returns the number of bits.
func (v Vector) Width() int {
	return v.width
}

// Uint64 returns the low 64 bits.
func (v Vector) Uint64() uint64 {
	if len(v.words) == 0 {
		return 0
	}
	return v.words[0]
}

// Big returns the value as a new big integer.
func (v Vector) Big() *big.Int {
	b := new(big.Int)
	for i := len(v.words) - 1; i >= 0; i-- {
		b.Lsh(b, 64)
		b.Or(b, new(big.Int).SetUint64(v.words[i]))
	}
	return b
}

// Bit returns bit i (0 or 1).
func (v Vector) Bit(i int) uint {
	if i < 0 || i >= v.width {
		panic(fmt.Sprintf("codec: bit %d out of range for width %d", i, v.width))
	}
	return uint(v.words[i/64]>>uint(i%64)) & 1
}

// IsZero reports whether every bit is zero.
func (v Vector) IsZero() bool {
	for _, w := range v.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Slice returns bits [hi:lo] (inclusive, hi >= lo) as a new vector,
// following the HDL part-select convention.
// Panics if the range is outside the vector.
func (v Vector) Slice(hi, lo int) Vector {
	if lo < 0 || hi >= v.width || hi < lo {
		panic(fmt.Sprintf("codec: slice [%d:%d] out of range for width %d", hi, lo, v.width))
	}
	out := Zero(hi - lo + 1)
	wordOff, bitOff := lo/64, uint(lo%64)
	for j := range out.words {
		i := wordOff + j
		var x uint64
		if i < len(v.words) {
			x = v.words[i] >> bitOff
		}
		if bitOff != 0 && i+1 < len(v.words) {
			x |= v.words[i+1] << (64 - bitOff)
		}
		out.words[j] = x
	}
	maskTop(out.words, out.width)
	return out
}

// Concat joins vectors with the first argument in the most significant position.
func Concat(parts ...Vector) Vector {
	total := 0
	for _, p := range parts {
		total += p.width
	}
	out := Zero(total)
	off := total
	for _, p := range parts {
		off -= p.width
		place(out.words, p.words, off)
	}
	return out
}

// place ORs src into dst starting at bit offset off.
func place(dst, src []uint64, off int) {
	wo, bo := off/64, uint(off%64)
	for i, x := range src {
		if x == 0 {
			continue
		}
		dst[wo+i] |= x << bo
		if bo != 0 && wo+i+1 < len(dst) {
			dst[wo+i+1] |= x >> (64 - bo)
		}
	}
}

// Equal reports whether both vectors have the same width and bits.
func (v Vector) Equal(o Vector) bool {
	if v.width != o.width || len(v.words) != len(o.words) {
		return false
	}
	for i := range v.words {
		if v.words[i] != o.words[i] {
			return false
		}
	}
	return true
}

// Hex returns the value as 0x-prefixed, zero-padded hexadecimal.
func (v Vector) Hex() string {
	return fmt.Sprintf("0x%0*x", (v.width+3)/4, v.Big())
}

// Bin returns the value as a zero-padded binary string, MSB first.
func (v Vector) Bin() string {
	return fmt.Sprintf("%0*b", v.width, v.Big())
}

// String renders the vector the way field values are shown in traces:
// single bits as T/F, narrow values in decimal, nibble-aligned values in hex
// and everything else in binary.
func (v Vector) String() string {
	switch {
	case v.width == 0:
		return "<invalid>"
	case v.width == 1:
		if v.words[0] == 1 {
			return "T"
		}
		return "F"
	case v.width < 8:
		return fmt.Sprintf("%d", v.words[0])
	case v.width%4 == 0:
		return v.Hex()
	default:
		return v.Bin()
	}
}
