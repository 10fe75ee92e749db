package trace

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// DomainTransfer prefixes transfer content hashes.
const DomainTransfer = "vrtb/transfer/v1"

// MarshalCanonical encodes v as canonical JSON: object keys sorted by UTF-16
// code units, strings NFC normalized, no HTML escaping, no floats and no
// nulls. Byte-identical output for equal inputs makes traces diffable and
// hashable.
//
// Supported: string, int, int64, bool, []any, map[string]any.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return writeString(buf, val)
	case int:
		fmt.Fprintf(buf, "%d", val)
	case int64:
		fmt.Fprintf(buf, "%d", val)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareUTF16)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	case float32, float64:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

// compareUTF16 orders strings by UTF-16 code units.
func compareUTF16(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	return len(ua) - len(ub)
}

// Object returns the canonical object form of a transfer.
func (t Transfer) Object() map[string]any {
	fields := make(map[string]any, len(t.Fields))
	for _, f := range t.Fields {
		fields[f.Name] = f.Value
	}
	return map[string]any{
		"seq":      t.Seq,
		"time_ps":  t.TimePS,
		"link":     t.Link,
		"producer": t.Producer,
		"consumer": t.Consumer,
		"schema":   t.Schema,
		"bits":     t.Bits,
		"fields":   fields,
	}
}

// ID returns the content hash of a transfer: SHA-256 over the domain
// prefix, a NUL separator and the canonical encoding.
func (t Transfer) ID() (string, error) {
	data, err := MarshalCanonical(t.Object())
	if err != nil {
		return "", fmt.Errorf("transfer id: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(DomainTransfer))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Snapshot renders transfers as canonical JSON lines, one per transfer.
// This is the golden-file format.
func Snapshot(transfers []Transfer) ([]byte, error) {
	var buf bytes.Buffer
	for i, t := range transfers {
		line, err := MarshalCanonical(t.Object())
		if err != nil {
			return nil, fmt.Errorf("transfer %d: %w", i, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
