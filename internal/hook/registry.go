package hook

import (
	"sort"
	"sync"
	"sync/atomic"

	glua "github.com/yuin/gopher-lua"
)

// Binding is a registered callback.
type Binding struct {
	// Callback is the guest closure invoked on dispatch.
	Callback *glua.LFunction

	// Owner restricts the binding to events about one entity when Scoped is set.
	Owner  uint64
	Scoped bool

	// Shots limits how many times the binding fires before it is removed.
	// Zero means unlimited.
	Shots uint32
}

// Handle identifies a registered binding.
type Handle struct {
	Key EventKey
	ID  uint64
}

// Entry is a live binding inside the registry.
type Entry struct {
	id      uint64
	key     EventKey
	binding Binding

	removed   atomic.Bool
	remaining atomic.Int64
}

// Handle returns the handle for the entry.
func (e *Entry) Handle() Handle {
	return Handle{Key: e.key, ID: e.id}
}

// Seq returns the registration sequence number.
func (e *Entry) Seq() uint64 {
	return e.id
}

// Callback returns the guest closure.
func (e *Entry) Callback() *glua.LFunction {
	return e.binding.Callback
}

// Binding returns a copy of the registered binding.
func (e *Entry) Binding() Binding {
	return e.binding
}

// Active reports whether the entry is still registered.
func (e *Entry) Active() bool {
	return !e.removed.Load()
}

// Matches reports whether the entry fires for an event about subject.
// hasSubject is false for events that do not concern a particular entity.
func (e *Entry) Matches(subject uint64, hasSubject bool) bool {
	if !e.binding.Scoped {
		return true
	}
	return hasSubject && e.binding.Owner == subject
}

type bucket struct {
	global []*Entry
	scoped []*Entry
}

func (b *bucket) len() int {
	return len(b.global) + len(b.scoped)
}

// Registry maps event keys to ordered binding sequences.
//
// The registry is safe for concurrent use. HasBindings only takes a read lock,
// so the dispatch fast path never touches the engine's execution lock.
type Registry struct {
	mu      sync.RWMutex
	seq     uint64
	buckets map[EventKey]*bucket

	// index mirrors len(buckets[k]) so the hot path avoids walking slices.
	index map[EventKey]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		buckets: make(map[EventKey]*bucket),
		index:   make(map[EventKey]int),
	}
}

// Register appends a binding to the sequence for key.
func (r *Registry) Register(key EventKey, b Binding) (Handle, error) {
	if !key.Valid() {
		return Handle{}, &KeyError{Key: key, Err: ErrInvalidEventKey}
	}
	if b.Scoped && !key.Category.AllowsScope() {
		return Handle{}, &KeyError{Key: key, Err: ErrInvalidEventKey}
	}
	if b.Callback == nil {
		return Handle{}, &KeyError{Key: key, Err: ErrNilCallback}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	e := &Entry{id: r.seq, key: key, binding: b}
	e.remaining.Store(int64(b.Shots))

	bk, ok := r.buckets[key]
	if !ok {
		bk = &bucket{}
		r.buckets[key] = bk
	}
	if b.Scoped {
		bk.scoped = append(bk.scoped, e)
	} else {
		bk.global = append(bk.global, e)
	}
	r.index[key]++

	return e.Handle(), nil
}

// Unregister removes a binding. It returns false if the handle is unknown
// or already removed.
func (r *Registry) Unregister(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	bk, ok := r.buckets[h.Key]
	if !ok {
		return false
	}

	var found bool
	bk.global, found = removeEntry(bk.global, h.ID)
	if !found {
		bk.scoped, found = removeEntry(bk.scoped, h.ID)
	}
	if !found {
		return false
	}

	if bk.len() == 0 {
		delete(r.buckets, h.Key)
		delete(r.index, h.Key)
	} else {
		r.index[h.Key] = bk.len()
	}
	return true
}

func removeEntry(entries []*Entry, id uint64) ([]*Entry, bool) {
	for i, e := range entries {
		if e.id == id {
			e.removed.Store(true)
			return append(entries[:i:i], entries[i+1:]...), true
		}
	}
	return entries, false
}

// HasBindings reports whether any binding exists for key.
func (r *Registry) HasBindings(key EventKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index[key] > 0
}

// Count returns the number of bindings for key.
func (r *Registry) Count(key EventKey) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index[key]
}

// Keys returns every key with at least one binding, in key order.
func (r *Registry) Keys() []EventKey {
	r.mu.RLock()
	keys := make([]EventKey, 0, len(r.index))
	for k := range r.index {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Snapshot returns the ordered bindings for key at this instant.
// Callers iterating the snapshot must check Entry.Active before invoking,
// since entries may be removed while the snapshot is walked.
func (r *Registry) Snapshot(key EventKey) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bk, ok := r.buckets[key]
	if !ok {
		return nil
	}
	out := make([]*Entry, 0, bk.len())
	out = append(out, bk.global...)
	out = append(out, bk.scoped...)
	return out
}

// Consume records one firing of e. Bindings registered with a shot limit are
// unregistered when the limit is reached. It returns false if e was already
// exhausted or removed.
func (r *Registry) Consume(e *Entry) bool {
	if !e.Active() {
		return false
	}
	if e.binding.Shots == 0 {
		return true
	}
	left := e.remaining.Add(-1)
	if left < 0 {
		return false
	}
	if left == 0 {
		r.Unregister(e.Handle())
	}
	return true
}

// Clear drops every binding. Entries held in outstanding snapshots become
// inactive and their callbacks are no longer referenced by the registry.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, bk := range r.buckets {
		for _, e := range bk.global {
			e.removed.Store(true)
		}
		for _, e := range bk.scoped {
			e.removed.Store(true)
		}
		n += bk.len()
	}
	r.buckets = make(map[EventKey]*bucket)
	r.index = make(map[EventKey]int)
	return n
}

// Len returns the total number of bindings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, c := range r.index {
		n += c
	}
	return n
}
