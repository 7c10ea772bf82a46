package config

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// snapshot is one resolved set of values, indexed by Key.
type snapshot struct {
	bools   [keyCount]bool
	strings [keyCount]string
	ints    [keyCount]int64
}

func defaults() snapshot {
	var snap snapshot
	for k, s := range settings {
		switch s.Kind {
		case KindBool:
			snap.bools[k] = s.Default.(bool)
		case KindString:
			snap.strings[k] = s.Default.(string)
		case KindInt:
			snap.ints[k] = s.Default.(int64)
		}
	}
	return snap
}

// Cache is the enum-indexed settings store.
type Cache struct {
	path    string
	environ map[string]string
	log     zerolog.Logger

	// initMu serializes Initialize; readers only touch snap.
	initMu      sync.Mutex
	initialized bool

	snap atomic.Pointer[snapshot]
}

// Option configures a Cache.
type Option func(*Cache)

// WithFile sets the config file. The format follows the extension
// (.toml, .yaml, .yml).
func WithFile(path string) Option {
	return func(c *Cache) {
		c.path = path
	}
}

// WithEnvironment replaces the process environment as the override layer.
func WithEnvironment(environ map[string]string) Option {
	return func(c *Cache) {
		c.environ = environ
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) {
		c.log = l
	}
}

// New creates a cache holding the built-in defaults.
func New(opts ...Option) *Cache {
	c := &Cache{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "config").Logger()

	snap := defaults()
	c.snap.Store(&snap)
	return c
}

// Initialize resolves all settings. Without reload, a second call is a no-op.
// On error the previously published values stay in place.
func (c *Cache) Initialize(reload bool) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized && !reload {
		return nil
	}

	var f File
	if err := loadFile(c.path, &f); err != nil {
		c.log.Error().Err(err).Str("path", c.path).Msg("config load failed")
		return err
	}
	if err := applyEnv(&f, c.environ); err != nil {
		c.log.Error().Err(err).Msg("config env overrides failed")
		return err
	}

	snap := f.values()
	if snap.ints[AutoReloadInterval] < 1 {
		c.log.Warn().
			Int64("value", snap.ints[AutoReloadInterval]).
			Msgf("%s must be at least 1, using 1", AutoReloadInterval)
		snap.ints[AutoReloadInterval] = 1
	}

	c.snap.Store(&snap)
	c.initialized = true

	c.log.Info().
		Bool("reload", reload).
		Str("path", c.path).
		Bool("enabled", snap.bools[Enabled]).
		Str("script_path", snap.strings[ScriptPath]).
		Msg("config loaded")
	return nil
}

// Bool returns a boolean setting. Keys of another kind yield false.
func (c *Cache) Bool(k Key) bool {
	if !c.is(k, KindBool) {
		return false
	}
	return c.snap.Load().bools[k]
}

// String returns a string setting. Keys of another kind yield "".
func (c *Cache) String(k Key) string {
	if !c.is(k, KindString) {
		return ""
	}
	return c.snap.Load().strings[k]
}

// Int returns an integer setting. Keys of another kind yield 0.
func (c *Cache) Int(k Key) int64 {
	if !c.is(k, KindInt) {
		return 0
	}
	return c.snap.Load().ints[k]
}

// Duration returns an integer setting interpreted as seconds.
func (c *Cache) Duration(k Key) time.Duration {
	return time.Duration(c.Int(k)) * time.Second
}

// Get returns a setting as an untyped value.
func (c *Cache) Get(k Key) (any, error) {
	s, ok := Lookup(k)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKey, int(k))
	}
	switch s.Kind {
	case KindBool:
		return c.Bool(k), nil
	case KindString:
		return c.String(k), nil
	default:
		return c.Int(k), nil
	}
}

func (c *Cache) is(k Key, kind Kind) bool {
	s, ok := Lookup(k)
	return ok && s.Kind == kind
}
