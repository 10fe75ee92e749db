package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Compile error codes (E200-E299)
const (
	ErrCodeCUE          = "E200" // CUE evaluation or load error
	ErrCodeNoSchemas    = "E201" // no schema block
	ErrCodeInvalidName  = "E202" // field name not usable as a path segment
	ErrCodeInvalidWidth = "E203" // leaf width < 1 or not a concrete int
	ErrCodeUnknownRef   = "E204" // reference to an undeclared schema
	ErrCodeCycle        = "E205" // schema references itself
	ErrCodeInvalidQuick = "E206" // quick list does not address leaves
	ErrCodeInvalidField = "E207" // field is neither width, reference nor struct
)

// CompileError represents a compilation error with source position.
type CompileError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: [%s] %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Code:    ErrCodeCUE,
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &CompileError{Code: ErrCodeCUE, Field: "cue", Message: first.Error()}
}
