package config

import (
	"errors"
	"fmt"
)

// Errors returned by the settings cache.
var (
	// ErrUnsupportedFormat is returned for a config file whose extension has
	// no decoder.
	ErrUnsupportedFormat = errors.New("unsupported config format")

	// ErrUnknownKey is returned by Get for a key outside the enumeration.
	ErrUnknownKey = errors.New("unknown setting key")
)

// ParseError reports a config file that failed to decode.
type ParseError struct {
	Path string

	// Line and Column locate the failure when the decoder reports it.
	Line   int
	Column int

	Message string
	Err     error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
