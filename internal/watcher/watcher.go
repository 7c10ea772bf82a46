// Package watcher provides polling file watching for script hot reload.
//
// The watcher scans a script tree at a fixed interval, diffs the result
// against the previous scan, and calls a reload function when any recognized
// file was added, modified, or removed.
package watcher

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Watcher errors.
var (
	// ErrAlreadyWatching is returned by Start while a session is running.
	ErrAlreadyWatching = errors.New("already watching")

	// ErrEmptyPath is returned by Start when no root is given.
	ErrEmptyPath = errors.New("watch path is empty")

	// ErrNotDirectory is returned when the watch root is not a directory.
	ErrNotDirectory = errors.New("not a directory")
)

// DefaultInterval is used when Start is given a non-positive interval.
const DefaultInterval = time.Second

// ReloadFunc rebuilds the scripting runtime.
type ReloadFunc func() error

// Stats counts watcher activity over the lifetime of the Watcher.
type Stats struct {
	Scans   int64
	Changes int64
	Reloads int64
	Errors  int64
}

// Watcher monitors a script tree for changes.
type Watcher struct {
	reload ReloadFunc
	log    zerolog.Logger
	notify bool

	// lifeMu serializes Start and Stop.
	lifeMu sync.Mutex

	mu       sync.Mutex
	running  bool
	root     string
	interval time.Duration
	state    Snapshot
	stop     chan struct{}
	done     chan struct{}

	notifier *notifier

	scans   atomic.Int64
	changes atomic.Int64
	reloads atomic.Int64
	errors  atomic.Int64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Watcher) {
		w.log = l
	}
}

// WithNotify enables filesystem notifications that end the sleep between
// scans early. Change detection still comes from scanning.
func WithNotify(enabled bool) Option {
	return func(w *Watcher) {
		w.notify = enabled
	}
}

// New creates a watcher that calls reload when the tree changes.
func New(reload ReloadFunc, opts ...Option) *Watcher {
	w := &Watcher{
		reload: reload,
		log:    zerolog.Nop(),
		state:  make(Snapshot),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With().Str("component", "watcher").Logger()
	return w
}

// Start seeds the watch state with a full scan of root and begins polling
// every interval. It is a logged no-op returning ErrAlreadyWatching or
// ErrEmptyPath when a session is running or root is empty.
func (w *Watcher) Start(root string, interval time.Duration) error {
	w.lifeMu.Lock()
	defer w.lifeMu.Unlock()

	if w.IsRunning() {
		w.log.Debug().Msg("already watching files")
		return ErrAlreadyWatching
	}
	if root == "" {
		w.log.Error().Msg("cannot start watching: script path is empty")
		return ErrEmptyPath
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	seed, err := Scan(root)
	if err != nil {
		w.errors.Add(1)
		w.log.Error().Err(err).Str("path", root).Msg("initial scan failed")
		seed = make(Snapshot)
	}

	var wake <-chan struct{}
	if w.notify {
		n, err := newNotifier(root, w.log)
		if err != nil {
			w.log.Warn().Err(err).Msg("filesystem notifications unavailable, polling only")
		} else {
			w.notifier = n
			wake = n.wake
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})

	w.mu.Lock()
	w.running = true
	w.root = root
	w.interval = interval
	w.state = seed
	w.stop = stop
	w.done = done
	w.mu.Unlock()

	go w.loop(root, interval, stop, done, wake)

	w.log.Info().
		Str("path", root).
		Dur("interval", interval).
		Int("files", len(seed)).
		Msg("started watching")
	return nil
}

// Stop ends the session. It blocks until the in-flight scan or sleep
// completes, then clears the watch state.
func (w *Watcher) Stop() {
	w.lifeMu.Lock()
	defer w.lifeMu.Unlock()

	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stop)
	done := w.done
	w.mu.Unlock()

	<-done

	if w.notifier != nil {
		w.notifier.close()
		w.notifier = nil
	}

	w.mu.Lock()
	w.running = false
	w.state = make(Snapshot)
	w.mu.Unlock()

	w.log.Info().Msg("stopped watching")
}

// IsRunning reports whether a session is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Root returns the watched root of the current session.
func (w *Watcher) Root() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.root
}

// Interval returns the poll interval of the current session.
func (w *Watcher) Interval() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.interval
}

// Tracked returns a copy of the current watch state.
func (w *Watcher) Tracked() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Clone()
}

// Stats returns activity counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Scans:   w.scans.Load(),
		Changes: w.changes.Load(),
		Reloads: w.reloads.Load(),
		Errors:  w.errors.Load(),
	}
}

// loop alternates between checking and sleeping. Stop is only observed at
// the top of an iteration.
func (w *Watcher) loop(root string, interval time.Duration, stop <-chan struct{}, done chan<- struct{}, wake <-chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		w.check(root)
		w.sleep(interval, wake)
	}
}

func (w *Watcher) sleep(interval time.Duration, wake <-chan struct{}) {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-wake:
	}
}

// check runs one scan cycle and reloads on change.
func (w *Watcher) check(root string) {
	w.scans.Add(1)

	next, err := Scan(root)
	if err != nil {
		w.errors.Add(1)
		w.log.Error().Err(err).Str("path", root).Msg("error checking for changes")
		return
	}

	w.mu.Lock()
	prev := w.state
	w.mu.Unlock()

	cs := Diff(prev, next)
	if cs.Empty() {
		return
	}

	for _, p := range cs.Added {
		w.log.Debug().Str("path", p).Msg("new file detected")
	}
	for _, p := range cs.Modified {
		w.log.Debug().Str("path", p).Msg("file modified")
	}
	for _, p := range cs.Removed {
		w.log.Debug().Str("path", p).Msg("file deleted")
	}

	w.changes.Add(int64(cs.Len()))
	w.setState(next)

	w.log.Info().Str("changes", cs.String()).Msg("script changes detected, triggering reload")
	w.reloads.Add(1)
	if err := w.safeReload(); err != nil {
		w.errors.Add(1)
		w.log.Error().Err(err).Msg("reload failed")
	}

	// Re-seed so files written during the reload are not reported next cycle.
	reseed, err := Scan(root)
	if err != nil {
		w.errors.Add(1)
		w.log.Error().Err(err).Str("path", root).Msg("re-seed scan failed")
		return
	}
	w.setState(reseed)
}

// safeReload calls the reload function with panic recovery.
func (w *Watcher) safeReload() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reload panic: %v", r)
		}
	}()
	return w.reload()
}

func (w *Watcher) setState(s Snapshot) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}
