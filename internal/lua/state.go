package lua

import (
	"fmt"

	glua "github.com/yuin/gopher-lua"
)

// State wraps a gopher-lua VM prepared for hook scripts.
//
// IMPORTANT: gopher-lua's LState is not goroutine-safe. State adds no locking
// of its own; callers serialize access (the engine's execution lock does this).
type State struct {
	L *glua.LState

	packagePath string
	stack       *Stack

	closed bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithPackagePath sets package.path for require().
func WithPackagePath(path string) StateOption {
	return func(s *State) {
		s.packagePath = path
	}
}

// NewState creates a Lua state with the script libraries opened.
func NewState(opts ...StateOption) (*State, error) {
	state := &State{}
	for _, opt := range opts {
		opt(state)
	}

	L := glua.NewState(glua.Options{
		SkipOpenLibs: true, // We'll open selectively
	})
	state.L = L
	state.stack = NewStack(L)

	if err := openLibraries(L); err != nil {
		L.Close()
		return nil, err
	}

	if state.packagePath != "" {
		pkg, ok := L.GetGlobal("package").(*glua.LTable)
		if !ok {
			L.Close()
			return nil, fmt.Errorf("package library not available")
		}
		pkg.RawSetString("path", glua.LString(state.packagePath))
	}

	return state, nil
}

// openLibraries opens the standard libraries scripts rely on.
func openLibraries(L *glua.LState) error {
	libs := []struct {
		name string
		fn   glua.LGFunction
	}{
		{glua.LoadLibName, glua.OpenPackage},
		{glua.BaseLibName, glua.OpenBase},
		{glua.TabLibName, glua.OpenTable},
		{glua.StringLibName, glua.OpenString},
		{glua.MathLibName, glua.OpenMath},
		{glua.CoroutineLibName, glua.OpenCoroutine},
		{glua.OsLibName, glua.OpenOs},
	}

	// Note: io and debug are intentionally NOT opened.
	for _, lib := range libs {
		if err := L.CallByParam(glua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, glua.LString(lib.name)); err != nil {
			return fmt.Errorf("opening %s library: %w", lib.name, err)
		}
	}
	return nil
}

// DoFile executes a Lua file.
func (s *State) DoFile(path string) error {
	if s.closed {
		return ErrStateClosed
	}
	top := s.L.GetTop()
	defer s.stack.PopTo(top)

	return s.doWithRecovery(func() error {
		return s.L.DoFile(path)
	})
}

// DoString executes a Lua string.
func (s *State) DoString(code string) error {
	if s.closed {
		return ErrStateClosed
	}
	top := s.L.GetTop()
	defer s.stack.PopTo(top)

	return s.doWithRecovery(func() error {
		return s.L.DoString(code)
	})
}

// DoProto executes a precompiled chunk.
func (s *State) DoProto(proto *glua.FunctionProto) error {
	if s.closed {
		return ErrStateClosed
	}
	top := s.L.GetTop()
	defer s.stack.PopTo(top)

	return s.doWithRecovery(func() error {
		s.L.Push(s.L.NewFunctionFromProto(proto))
		return s.L.PCall(0, glua.MultRet, nil)
	})
}

// doWithRecovery executes a function with panic recovery.
func (s *State) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Stack returns the evaluation stack view of this state.
func (s *State) Stack() *Stack {
	return s.stack
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) glua.LValue {
	if s.closed {
		return glua.LNil
	}
	return s.L.GetGlobal(name)
}

// SetGlobal sets a global variable.
func (s *State) SetGlobal(name string, value glua.LValue) {
	if s.closed {
		return
	}
	s.L.SetGlobal(name, value)
}

// RegisterFunc registers a Go function as a global Lua function.
func (s *State) RegisterFunc(name string, fn glua.LGFunction) {
	if s.closed {
		return
	}
	s.L.SetGlobal(name, s.L.NewFunction(fn))
}

// RegisterType installs the metatable used for entities whose TypeName is
// name. Methods are reachable with the colon syntax (creature:GetLevel()).
func (s *State) RegisterType(name string, methods map[string]glua.LGFunction) {
	if s.closed {
		return
	}
	mt := s.L.NewTypeMetatable(name)
	s.L.SetField(mt, "__index", s.L.SetFuncs(s.L.NewTable(), methods))
	s.L.SetField(mt, "__tostring", s.L.NewFunction(func(L *glua.LState) int {
		L.Push(glua.LString(name))
		return 1
	}))
}

// LuaState returns the underlying gopher-lua state.
func (s *State) LuaState() *glua.LState {
	return s.L
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	return s.closed
}

// Close releases all resources associated with the Lua state.
func (s *State) Close() error {
	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}

// CheckEntity returns the entity of type T at argument n, raising a Lua
// argument error otherwise.
func CheckEntity[T Entity](L *glua.LState, n int) T {
	ud := L.CheckUserData(n)
	if v, ok := ud.Value.(T); ok {
		return v
	}
	var zero T
	L.ArgError(n, "unexpected userdata type")
	return zero
}
