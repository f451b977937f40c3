package cloud

import (
	"errors"
	"fmt"
	"strconv"
)

// Sentinel errors returned by drivers and services.
var (
	ErrNotFound    = errors.New("not found")
	ErrAuth        = errors.New("authentication failed")
	ErrUnsupported = errors.New("operation not supported by backend")
)

// ValidationError is a request that fails a precondition check.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Invalid creates a ValidationError.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// BackendError is a failure reported by the provider behind a driver.
type BackendError struct {
	Driver string
	Code   string
	Err    error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s error %s: %v", e.Driver, e.Code, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func inRange(v, first, last string) bool {
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return false
	}
	lo, err := strconv.ParseFloat(first, 64)
	if err != nil {
		return false
	}
	hi, err := strconv.ParseFloat(last, 64)
	if err != nil {
		return false
	}
	return n >= lo && n <= hi
}
