package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/vrtb/internal/compiler"
	"github.com/roach88/vrtb/internal/layouts"
)

// LoadError represents an error that occurred while loading schemas.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeUnknownSchema = "E008" // Schema name not in registry
	ErrCodeBadValue      = "E009" // Value does not fit its schema
)

// LoadRegistry compiles the CUE schemas in dir, or returns the embedded
// layouts when dir is empty.
func LoadRegistry(dir string) (*compiler.Registry, error) {
	if dir == "" {
		return layouts.Registry(), nil
	}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	reg, err := compiler.LoadDir(dir)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return reg, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		code := compileErr.Code
		if code == compiler.ErrCodeNoSchemas && compileErr.Message == "no CUE files found" {
			code = ErrCodeNoFiles
		}
		return &LoadError{
			Code:    code,
			Message: compileErr.Field + ": " + compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// loadErrorCode returns the code of a LoadError, or ErrCodeGeneric.
func loadErrorCode(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeGeneric
}
