package engine

import (
	"math"

	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/luahook/internal/hook"
	"github.com/dshills/luahook/internal/lua"
)

// installAPI exposes the registration functions to scripts.
//
//	local cancel = RegisterAllCreatureEvent(4, function(event, tmpl, creature, level)
//		return level + 1
//	end, 3)
//	RegisterCreatureEvent(guid, 1, function(event, creature) end)
//	cancel()
func (e *Engine) installAPI(s *lua.State) {
	s.RegisterFunc("RegisterServerEvent", e.registerGlobal(hook.CategoryServer))
	s.RegisterFunc("RegisterAllCreatureEvent", e.registerGlobal(hook.CategoryAllCreature))
	s.RegisterFunc("RegisterCreatureEvent", e.registerScoped(hook.CategoryAllCreature))
	s.RegisterFunc("RegisterMapEvent", e.registerGlobal(hook.CategoryMap))
	s.RegisterFunc("RegisterInstanceMapEvent", e.registerScoped(hook.CategoryMap))
	s.RegisterFunc("GetStateGeneration", e.luaGeneration)
}

// registerGlobal handles Register*(event, fn [, shots]).
func (e *Engine) registerGlobal(c hook.Category) glua.LGFunction {
	return func(L *glua.LState) int {
		event := checkEventID(L, 1)
		fn := L.CheckFunction(2)
		shots := checkShots(L, 3)
		return e.bind(L, hook.Key(c, event), hook.Binding{Callback: fn, Shots: shots})
	}
}

// registerScoped handles Register*(owner, event, fn [, shots]).
func (e *Engine) registerScoped(c hook.Category) glua.LGFunction {
	return func(L *glua.LState) int {
		owner := checkOwner(L, 1)
		event := checkEventID(L, 2)
		fn := L.CheckFunction(3)
		shots := checkShots(L, 4)
		return e.bind(L, hook.Key(c, event), hook.Binding{
			Callback: fn,
			Owner:    owner,
			Scoped:   true,
			Shots:    shots,
		})
	}
}

// bind registers b and returns a cancel function to the script.
// Registration errors are raised in the calling script.
func (e *Engine) bind(L *glua.LState, key hook.EventKey, b hook.Binding) int {
	h, err := e.reg.Register(key, b)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	e.log.Debug().
		Stringer("key", key).
		Uint64("binding", h.ID).
		Bool("scoped", b.Scoped).
		Uint32("shots", b.Shots).
		Msg("binding registered")

	L.Push(L.NewFunction(func(L *glua.LState) int {
		L.Push(glua.LBool(e.reg.Unregister(h)))
		return 1
	}))
	return 1
}

func (e *Engine) luaGeneration(L *glua.LState) int {
	// Called from scripts, so mu is already held.
	L.Push(glua.LString(e.generation.String()))
	return 1
}

func checkEventID(L *glua.LState, n int) uint32 {
	v := L.CheckInt64(n)
	if v < 0 || v > int64(^uint32(0)) {
		// out of range ids are reported as unknown keys by the registry
		return 0
	}
	return uint32(v)
}

// checkOwner reads a guid or map id. Lua numbers are floats, so ids above
// 2^53 cannot be represented exactly.
func checkOwner(L *glua.LState, n int) uint64 {
	f := float64(L.CheckNumber(n))
	if f < 0 || f != math.Trunc(f) || f >= math.MaxUint64 {
		L.ArgError(n, "owner must be a non-negative integer")
		return 0
	}
	return uint64(f)
}

func checkShots(L *glua.LState, n int) uint32 {
	v := L.OptInt64(n, 0)
	if v < 0 || v > int64(^uint32(0)) {
		L.ArgError(n, "shots out of range")
		return 0
	}
	return uint32(v)
}
