package engine

import (
	"errors"

	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/luahook/internal/config"
	"github.com/dshills/luahook/internal/hook"
	"github.com/dshills/luahook/internal/lua"
)

// site describes one dispatch: the hook key and, for entity events, the
// subject used for owner filtering.
type site struct {
	key        hook.EventKey
	subject    uint64
	hasSubject bool
}

func serverSite(event uint32) site {
	return site{key: hook.Key(hook.CategoryServer, event)}
}

func entitySite(c hook.Category, event uint32, subject uint64) site {
	return site{key: hook.Key(c, event), subject: subject, hasSubject: true}
}

// ready is the lock-free fast path.
func (e *Engine) ready(key hook.EventKey) bool {
	return e.cfg.Bool(config.Enabled) && e.reg.HasBindings(key)
}

// broadcast invokes every matching binding and ignores results.
func (e *Engine) broadcast(s site, args ...lua.Value) {
	if !e.ready(s.key) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broadcastLocked(s, args...)
}

// broadcastLocked is broadcast for callers that already hold mu.
func (e *Engine) broadcastLocked(s site, args ...lua.Value) {
	if e.state == nil {
		return
	}
	st := e.state.Stack()
	mark := st.Mark()
	defer st.PopTo(mark)

	argIdx := pushArgs(st, s.key, args)
	for _, entry := range e.reg.Snapshot(s.key) {
		if !e.admit(entry, s) {
			continue
		}
		callMark := st.Mark()
		e.call(st, s, entry, argIdx, 0)
		st.PopTo(callMark)
	}
}

// chain describes an override-chain hook site for values of type T.
type chain[T any] struct {
	site

	// param is the position of the mutable parameter within args.
	param  int
	want   string
	coerce lua.Coercer[T]
	encode func(T) lua.Value

	// strict hooks report rejected values instead of ignoring them.
	strict bool
}

// overrideChain runs the bindings for c in order. After each call a
// non-nil, type-correct result replaces the mutable parameter, so later
// callbacks and the host see the latest override. It returns the final
// value; for strict hooks the error joins every rejected result.
func overrideChain[T any](e *Engine, c chain[T], value T, args ...lua.Value) (T, error) {
	if !e.ready(c.key) {
		return value, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == nil {
		return value, nil
	}
	st := e.state.Stack()
	mark := st.Mark()
	defer st.PopTo(mark)

	args[c.param] = c.encode(value)
	argIdx := pushArgs(st, c.key, args)
	// +1 skips the event id pushed ahead of args.
	paramIdx := argIdx[c.param+1]

	var errs []error
	for _, entry := range e.reg.Snapshot(c.key) {
		if !e.admit(entry, c.site) {
			continue
		}
		callMark := st.Mark()
		base, ok := e.call(st, c.site, entry, argIdx, 1)
		if !ok {
			st.PopTo(callMark)
			continue
		}

		result := st.Get(base)
		st.PopTo(callMark)
		if result.IsNil() {
			continue
		}

		v, ok := c.coerce(result)
		if !ok {
			mismatch := &lua.TypeMismatchError{Want: c.want, Got: result.Kind()}
			if c.strict {
				e.log.Error().Err(mismatch).Stringer("key", c.key).Uint64("binding", entry.Seq()).Msg("override rejected")
				errs = append(errs, &hook.KeyError{Key: c.key, Err: mismatch})
			} else {
				e.log.Debug().Err(mismatch).Stringer("key", c.key).Uint64("binding", entry.Seq()).Msg("override ignored")
			}
			continue
		}

		value = v
		if err := st.ReplaceAt(paramIdx, c.encode(v)); err != nil {
			e.log.Error().Err(err).Stringer("key", c.key).Msg("cannot replace argument")
		}
	}
	return value, errors.Join(errs...)
}

// pushArgs pushes the event id followed by args and returns their indexes.
func pushArgs(st *lua.Stack, key hook.EventKey, args []lua.Value) []int {
	idx := make([]int, 0, len(args)+1)
	idx = append(idx, st.Push(lua.Int(int64(key.Event))))
	for _, a := range args {
		idx = append(idx, st.Push(a))
	}
	return idx
}

// admit reports whether entry fires for s and records the firing.
func (e *Engine) admit(entry *hook.Entry, s site) bool {
	if !entry.Active() || !entry.Matches(s.subject, s.hasSubject) {
		return false
	}
	return e.reg.Consume(entry)
}

// call invokes entry's callback with copies of the shared arguments.
// A guest fault is logged and reported as ok == false; the caller unwinds
// the stack either way.
func (e *Engine) call(st *lua.Stack, s site, entry *hook.Entry, argIdx []int, nret int) (base int, ok bool) {
	fnIdx := st.PushFunction(entry.Callback())
	for _, i := range argIdx {
		st.PushCopy(i)
	}

	base, err := st.CallAt(fnIdx, len(argIdx), nret)
	if err != nil {
		ev := e.log.Error().
			Err(err).
			Stringer("key", s.key).
			Uint64("binding", entry.Seq())
		if tb := traceback(err); tb != "" && e.cfg.Bool(config.TraceBack) {
			ev = ev.Str("traceback", tb)
		}
		ev.Msg("hook callback failed")
		return 0, false
	}
	return base, true
}

// traceback extracts the Lua stack trace from a guest fault.
func traceback(err error) string {
	var gre *lua.GuestRuntimeError
	if errors.As(err, &gre) {
		return gre.Traceback
	}
	var apiErr *glua.ApiError
	if errors.As(err, &apiErr) {
		return apiErr.StackTrace
	}
	return ""
}
