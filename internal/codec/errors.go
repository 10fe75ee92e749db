package codec

import (
	"errors"
	"fmt"
)

// SchemaErrorCode categorizes codec failures.
type SchemaErrorCode string

const (
	// ErrCodeUnsupportedFieldKind indicates a schema node that is neither a Leaf nor a Record.
	ErrCodeUnsupportedFieldKind SchemaErrorCode = "UNSUPPORTED_FIELD_KIND"

	// ErrCodeWidthMismatch indicates a bit vector or port whose width differs from the schema.
	ErrCodeWidthMismatch SchemaErrorCode = "WIDTH_MISMATCH"

	// ErrCodeUnknownField indicates a name that does not address a leaf of the schema.
	ErrCodeUnknownField SchemaErrorCode = "UNKNOWN_FIELD"

	// ErrCodeMissingField indicates a leaf that was not given a value.
	ErrCodeMissingField SchemaErrorCode = "MISSING_FIELD"

	// ErrCodeValueOutOfRange indicates an integer that does not fit the declared width.
	ErrCodeValueOutOfRange SchemaErrorCode = "VALUE_OUT_OF_RANGE"

	// ErrCodeNoQuickOrder indicates Quick was called on a schema without a declared order.
	ErrCodeNoQuickOrder SchemaErrorCode = "NO_QUICK_ORDER"

	// ErrCodeArgCount indicates Quick received a different number of arguments than its order names.
	ErrCodeArgCount SchemaErrorCode = "ARG_COUNT"

	// ErrCodeArrayShape indicates an array target whose width is not a multiple of the
	// element width, or an element index outside the array.
	ErrCodeArrayShape SchemaErrorCode = "ARRAY_SHAPE"
)

// SchemaError is returned by every codec operation that cannot complete.
//
// Schema errors are never recovered inside the codec: they surface to the
// caller that attempted the (de)serialization.
type SchemaError struct {
	// Code identifies the error category.
	Code SchemaErrorCode

	// Schema names the schema involved (empty for anonymous leaves).
	Schema string

	// Field is the dash-joined field path, when one is involved.
	Field string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	switch {
	case e.Schema != "" && e.Field != "":
		return fmt.Sprintf("%s: %s (schema=%s, field=%s)", e.Code, e.Message, e.Schema, e.Field)
	case e.Field != "":
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	case e.Schema != "":
		return fmt.Sprintf("%s: %s (schema=%s)", e.Code, e.Message, e.Schema)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsSchemaError reports whether err (or anything it wraps) is a SchemaError
// with the given code. An empty code matches any SchemaError.
func IsSchemaError(err error, code SchemaErrorCode) bool {
	var se *SchemaError
	if !errors.As(err, &se) {
		return false
	}
	return code == "" || se.Code == code
}

func schemaErr(code SchemaErrorCode, s *Schema, field, format string, args ...any) *SchemaError {
	name := ""
	if s != nil {
		name = s.name
	}
	return &SchemaError{
		Code:    code,
		Schema:  name,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}
