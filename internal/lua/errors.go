package lua

import (
	"errors"
	"fmt"

	glua "github.com/yuin/gopher-lua"
)

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrTypeMismatch is returned when a guest value does not satisfy the
	// declared type of a host parameter.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrStackLayout is returned when a call is requested for a function slot
	// that does not sit directly below its arguments.
	ErrStackLayout = errors.New("invalid stack layout")

	// ErrStackIndex is returned for an index outside the live stack.
	ErrStackIndex = errors.New("stack index out of range")
)

// GuestRuntimeError is a fault raised by guest code during a call.
type GuestRuntimeError struct {
	// Message is the value the script raised, rendered as a string.
	Message string

	// Traceback is the Lua stack trace at the fault, if available.
	Traceback string

	Err error
}

func (e *GuestRuntimeError) Error() string {
	return "lua runtime error: " + e.Message
}

func (e *GuestRuntimeError) Unwrap() error {
	return e.Err
}

// newGuestRuntimeError converts a PCall failure into a GuestRuntimeError.
func newGuestRuntimeError(err error) *GuestRuntimeError {
	gre := &GuestRuntimeError{Message: err.Error(), Err: err}
	var apiErr *glua.ApiError
	if errors.As(err, &apiErr) {
		if apiErr.Object != nil {
			gre.Message = apiErr.Object.String()
		}
		gre.Traceback = apiErr.StackTrace
	}
	return gre
}

// TypeMismatchError describes a rejected override value.
type TypeMismatchError struct {
	Want string
	Got  Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: want %s, got %s", e.Want, e.Got)
}

func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}
