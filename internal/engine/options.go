package engine

import (
	"github.com/rs/zerolog"
	glua "github.com/yuin/gopher-lua"
)

// Option configures an Engine during creation.
type Option func(*Engine)

// WithLogger sets the logger for the engine and its watcher.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithWatchNotify lets filesystem notifications wake the auto-reload
// watcher between polls.
func WithWatchNotify(enabled bool) Option {
	return func(e *Engine) {
		e.watchNotify = enabled
	}
}

// WithGlobals installs additional host functions into every Lua state the
// engine builds.
func WithGlobals(funcs map[string]glua.LGFunction) Option {
	return func(e *Engine) {
		if e.globals == nil {
			e.globals = make(map[string]glua.LGFunction, len(funcs))
		}
		for name, fn := range funcs {
			e.globals[name] = fn
		}
	}
}
