package lua

import (
	"fmt"

	glua "github.com/yuin/gopher-lua"
)

// Stack is the positional evaluation stack shared with the guest during a
// dispatch. Indexes are 1-based absolute positions, as in the Lua C API.
type Stack struct {
	L *glua.LState
}

// NewStack returns a Stack view over L.
func NewStack(L *glua.LState) *Stack {
	return &Stack{L: L}
}

// Top returns the index of the topmost slot (0 when empty).
func (s *Stack) Top() int {
	return s.L.GetTop()
}

// Mark records the current depth for a later PopTo.
func (s *Stack) Mark() int {
	return s.L.GetTop()
}

// Push appends v and returns its index.
func (s *Stack) Push(v Value) int {
	s.L.Push(toLua(s.L, v))
	return s.L.GetTop()
}

// PushFunction appends a guest closure and returns its index.
func (s *Stack) PushFunction(fn *glua.LFunction) int {
	s.L.Push(fn)
	return s.L.GetTop()
}

// PushCopy appends a copy of the value at idx and returns the new index.
func (s *Stack) PushCopy(idx int) int {
	s.L.Push(s.L.Get(idx))
	return s.L.GetTop()
}

// Get decodes the value at idx.
func (s *Stack) Get(idx int) Value {
	return FromLua(s.L.Get(idx))
}

// ReplaceAt overwrites the slot at idx without disturbing the slots below.
func (s *Stack) ReplaceAt(idx int, v Value) error {
	if idx < 1 || idx > s.L.GetTop() {
		return fmt.Errorf("%w: %d (top %d)", ErrStackIndex, idx, s.L.GetTop())
	}
	s.L.Replace(idx, toLua(s.L, v))
	return nil
}

// CallAt invokes the closure at idx with the nargs values above it.
// Exactly nret results are left on the stack starting at the returned index,
// padded with nil. On a guest fault it returns a *GuestRuntimeError; the
// stack is left at or below idx and must be unwound with PopTo.
func (s *Stack) CallAt(idx, nargs, nret int) (base int, err error) {
	top := s.L.GetTop()
	if idx < 1 || nargs < 0 || idx+nargs != top {
		return 0, fmt.Errorf("%w: function at %d with %d args, top %d", ErrStackLayout, idx, nargs, top)
	}
	if s.L.Get(idx).Type() != glua.LTFunction {
		return 0, fmt.Errorf("%w: slot %d holds %s", ErrStackLayout, idx, s.L.Get(idx).Type())
	}

	defer func() {
		if r := recover(); r != nil {
			err = &GuestRuntimeError{Message: fmt.Sprint(r), Err: fmt.Errorf("lua panic: %v", r)}
		}
	}()

	if perr := s.L.PCall(nargs, nret, nil); perr != nil {
		return 0, newGuestRuntimeError(perr)
	}
	return idx, nil
}

// PopTo unwinds the stack to a mark returned by Mark.
func (s *Stack) PopTo(mark int) {
	if mark < 0 {
		mark = 0
	}
	if s.L.GetTop() > mark {
		s.L.SetTop(mark)
	}
}
