package fault

import (
	"errors"
	"fmt"
)

// AssertionError reports a violated protocol or test expectation.
type AssertionError struct {
	Message string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return "assertion failed: " + e.Message
}

// Assertf returns an AssertionError with a formatted message.
func Assertf(format string, args ...any) error {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

// IsAssertion reports whether err is an AssertionError, looking through
// notes and single-error wrapping but not into groups.
//
// Use errors.As to ask whether a group contains an assertion anywhere.
func IsAssertion(err error) bool {
	for err != nil {
		switch e := err.(type) {
		case *AssertionError:
			return true
		case *Group:
			return false
		default:
			if _, multi := e.(interface{ Unwrap() []error }); multi {
				return false
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeUnknownNetwork indicates an unrecognized network implementation name.
	ErrCodeUnknownNetwork ConfigErrorCode = "UNKNOWN_NETWORK"

	// ErrCodeDuplicateTask indicates a task name already registered with the bench.
	ErrCodeDuplicateTask ConfigErrorCode = "DUPLICATE_TASK"

	// ErrCodeInvalidConfig indicates any other malformed configuration value.
	ErrCodeInvalidConfig ConfigErrorCode = "INVALID_CONFIG"
)

// ConfigError reports invalid environment or bench configuration.
// Configuration errors surface before any task starts.
type ConfigError struct {
	Code    ConfigErrorCode
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewConfigError creates a ConfigError with a formatted message.
func NewConfigError(code ConfigErrorCode, format string, args ...any) *ConfigError {
	return &ConfigError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err wraps a ConfigError with the given code.
// An empty code matches any ConfigError.
func IsConfigError(err error, code ConfigErrorCode) bool {
	var ce *ConfigError
	if !errors.As(err, &ce) {
		return false
	}
	return code == "" || ce.Code == code
}
