package hook

import (
	"errors"
	"fmt"
)

// Registry errors.
var (
	// ErrInvalidEventKey is returned when registering against an unknown key,
	// or with an owner on a category that does not allow scoping.
	ErrInvalidEventKey = errors.New("invalid event key")

	// ErrNilCallback is returned when a binding has no callback.
	ErrNilCallback = errors.New("binding has no callback")
)

// KeyError reports the offending key for a rejected registration.
type KeyError struct {
	Key EventKey
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}
