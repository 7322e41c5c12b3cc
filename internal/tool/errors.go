package tool

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to check.
var (
	ErrToolNotFound    = errors.New("tool not found")
	ErrUnknownArgument = errors.New("unknown argument")
	ErrCoercion        = errors.New("argument coercion failed")
	ErrValidation      = errors.New("validation failed")
	ErrAmbiguousType   = errors.New("ambiguous parameter type")
	ErrDuplicateTool   = errors.New("duplicate tool name")
)

// ClientError is a failure the model can correct on its next attempt: bad
// arguments, an unknown tool, a value outside an enum. Its message is fed
// back to the model verbatim.
type ClientError struct {
	Reason string
	Err    error
}

func (e *ClientError) Error() string {
	return "invalid tool input: " + e.Reason
}

func (e *ClientError) Unwrap() error { return e.Err }

// SystemError is an internal failure inside a tool. The model only sees a
// generic message; the cause is kept for logs.
type SystemError struct {
	Tool string
	Err  error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("internal error while running tool %q", e.Tool)
}

func (e *SystemError) Unwrap() error { return e.Err }

// IsClientError reports whether err is or wraps a ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsSystemError reports whether err is or wraps a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

func clientErrorf(sentinel error, format string, args ...any) error {
	return &ClientError{Reason: fmt.Sprintf(format, args...), Err: sentinel}
}
