package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/luahook/internal/config"
	"github.com/dshills/luahook/internal/hook"
	"github.com/dshills/luahook/internal/lua"
	"github.com/dshills/luahook/internal/watcher"
)

// Config is the read-only settings view the engine consumes.
// *config.Cache satisfies it.
type Config interface {
	Bool(k config.Key) bool
	String(k config.Key) string
	Duration(k config.Key) time.Duration
}

// Engine hosts the scripting runtime.
type Engine struct {
	cfg     Config
	log     zerolog.Logger
	reg     *hook.Registry
	protos  *lua.ProtoCache
	watcher *watcher.Watcher

	watchNotify bool
	globals     map[string]glua.LGFunction

	// lifeMu serializes Start, Reconfigure, and Close.
	lifeMu sync.Mutex

	// mu is the global execution lock. It guards every field below and
	// every use of state.
	mu         sync.Mutex
	state      *lua.State
	generation uuid.UUID
	loadErrs   []*ScriptError
	started    bool
	closed     bool
}

// New creates an engine. Scripts are not loaded until Start.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		log:    zerolog.Nop(),
		reg:    hook.NewRegistry(),
		protos: lua.NewProtoCache(),
	}
	for _, opt := range opts {
		opt(e)
	}
	watchLog := e.log
	e.log = e.log.With().Str("component", "engine").Logger()
	e.watcher = watcher.New(e.Reload,
		watcher.WithLogger(watchLog),
		watcher.WithNotify(e.watchNotify),
	)
	return e
}

// Start loads the script tree and, when auto reload is enabled, starts the
// watcher. With scripting disabled Start only marks the engine started, so a
// later Reload after enabling it brings scripts up.
func (e *Engine) Start() error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true

	var err error
	if e.cfg.Bool(config.Enabled) {
		err = e.load()
	} else {
		e.log.Info().Msg("scripting disabled")
	}
	e.mu.Unlock()

	if err != nil {
		return err
	}
	e.syncWatcher()
	return nil
}

// syncWatcher starts, stops, or retargets the watcher to match the current
// settings. The caller holds lifeMu and not mu.
func (e *Engine) syncWatcher() {
	if !e.cfg.Bool(config.Enabled) || !e.cfg.Bool(config.AutoReload) {
		if e.watcher.IsRunning() {
			e.watcher.Stop()
			e.log.Info().Msg("auto reload stopped")
		}
		return
	}

	root := e.cfg.String(config.ScriptPath)
	interval := e.cfg.Duration(config.AutoReloadInterval)
	if interval <= 0 {
		interval = watcher.DefaultInterval
	}
	if e.watcher.IsRunning() {
		if e.watcher.Root() == root && e.watcher.Interval() == interval {
			return
		}
		e.watcher.Stop()
		e.log.Info().
			Str("path", root).
			Dur("interval", interval).
			Msg("auto reload retargeted")
	}
	if err := e.watcher.Start(root, interval); err != nil && !errors.Is(err, watcher.ErrAlreadyWatching) {
		e.log.Warn().Err(err).Msg("auto reload not started")
	}
}

// Reconfigure applies the current auto reload settings to the watcher. Call
// it after the config was re-read; Reload alone leaves the watcher as is.
func (e *Engine) Reconfigure() error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	e.mu.Lock()
	closed, started := e.closed, e.started
	e.mu.Unlock()

	if closed {
		return ErrEngineClosed
	}
	if !started {
		return ErrNotStarted
	}
	e.syncWatcher()
	return nil
}

// Reload tears down the Lua state and registry and rebuilds both from the
// script tree. Concurrent reloads serialize on the execution lock; an
// in-flight dispatch completes first.
func (e *Engine) Reload() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	if !e.started {
		return ErrNotStarted
	}

	began := time.Now()
	e.teardown()
	if !e.cfg.Bool(config.Enabled) {
		e.log.Info().Msg("scripting disabled, runtime unloaded")
		return nil
	}
	if err := e.load(); err != nil {
		return err
	}
	e.log.Info().
		Str("generation", e.generation.String()).
		Dur("took", time.Since(began)).
		Msg("scripts reloaded")
	return nil
}

// Close stops the watcher, fires the state-close event, and releases the
// Lua state. It is safe to call more than once.
func (e *Engine) Close() error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	// The watcher's reload takes the execution lock, so it must be stopped
	// before the lock is acquired here.
	e.watcher.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.teardown()
	e.protos.Purge()
	e.log.Info().Msg("engine closed")
	return nil
}

// Generation returns the id of the current Lua state, or uuid.Nil when no
// state is loaded.
func (e *Engine) Generation() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// Loaded reports whether a Lua state is live.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state != nil
}

// LoadErrors returns the scripts that failed during the last load.
func (e *Engine) LoadErrors() []*ScriptError {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*ScriptError, len(e.loadErrs))
	copy(out, e.loadErrs)
	return out
}

// Registry returns the binding registry.
func (e *Engine) Registry() *hook.Registry {
	return e.reg
}

// Watching reports whether the auto-reload watcher is running.
func (e *Engine) Watching() bool {
	return e.watcher.IsRunning()
}

// load builds a fresh state and runs every script. The caller holds mu.
func (e *Engine) load() error {
	root := e.cfg.String(config.ScriptPath)

	state, err := lua.NewState(lua.WithPackagePath(e.packagePath(root)))
	if err != nil {
		return err
	}
	e.state = state
	e.generation = uuid.New()
	e.installAPI(state)
	registerTypes(state)
	for name, fn := range e.globals {
		state.RegisterFunc(name, fn)
	}

	e.loadErrs = e.loadScripts(root)

	e.log.Info().
		Str("generation", e.generation.String()).
		Str("path", root).
		Int("bindings", e.reg.Len()).
		Int("errors", len(e.loadErrs)).
		Msg("lua state opened")

	e.broadcastLocked(serverSite(hook.ServerEventLuaStateOpen))
	return nil
}

// teardown fires the close event, then drops every binding and the state.
// The caller holds mu.
func (e *Engine) teardown() {
	if e.state == nil {
		return
	}
	e.broadcastLocked(serverSite(hook.ServerEventLuaStateClose))

	n := e.reg.Clear()
	if err := e.state.Close(); err != nil {
		e.log.Warn().Err(err).Msg("closing lua state")
	}
	e.log.Debug().
		Str("generation", e.generation.String()).
		Int("bindings", n).
		Msg("lua state closed")

	e.state = nil
	e.generation = uuid.Nil
	e.loadErrs = nil
}
