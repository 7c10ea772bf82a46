package engine

import (
	"errors"
	"fmt"
)

// Errors returned by engine operations.
var (
	// ErrEngineClosed is returned when operating on a closed engine.
	ErrEngineClosed = errors.New("engine is closed")

	// ErrNotStarted is returned by Reload before Start.
	ErrNotStarted = errors.New("engine not started")
)

// ScriptError reports a script that failed to load.
type ScriptError struct {
	Path string
	Err  error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %s: %v", e.Path, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}
