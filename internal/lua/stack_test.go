package lua

import (
	"errors"
	"testing"

	glua "github.com/yuin/gopher-lua"
)

type testEntity struct {
	id uint64
}

func (e *testEntity) TypeName() string { return "TestEntity" }

func newTestState(t *testing.T, code string) *State {
	t.Helper()
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	t.Cleanup(func() { state.Close() })
	if code != "" {
		if err := state.DoString(code); err != nil {
			t.Fatalf("DoString() error = %v", err)
		}
	}
	return state
}

func globalFunc(t *testing.T, s *State, name string) *glua.LFunction {
	t.Helper()
	fn, ok := s.GetGlobal(name).(*glua.LFunction)
	if !ok {
		t.Fatalf("global %q is not a function", name)
	}
	return fn
}

func TestStackPushGet(t *testing.T) {
	s := newTestState(t, "")
	st := s.Stack()
	ent := &testEntity{id: 9}

	values := []Value{Nil(), Bool(true), Int(-3), Float(1.5), String("hi"), EntityValue(ent)}
	base := st.Mark()
	for _, v := range values {
		st.Push(v)
	}
	if st.Top() != base+len(values) {
		t.Fatalf("Top() = %d, want %d", st.Top(), base+len(values))
	}

	for i, want := range values {
		got := st.Get(base + i + 1)
		if got.Kind() != want.Kind() {
			t.Errorf("slot %d kind = %s, want %s", i, got.Kind(), want.Kind())
		}
	}
	if e, ok := st.Get(base + 6).AsEntity(); !ok || e.(*testEntity).id != 9 {
		t.Errorf("entity round trip failed: %v", st.Get(base+6))
	}

	st.PopTo(base)
	if st.Top() != base {
		t.Errorf("PopTo() left top = %d, want %d", st.Top(), base)
	}
}

func TestStackReplaceAt(t *testing.T) {
	s := newTestState(t, "")
	st := s.Stack()

	a := st.Push(Int(1))
	b := st.Push(Int(2))
	c := st.Push(Int(3))

	if err := st.ReplaceAt(b, Int(20)); err != nil {
		t.Fatalf("ReplaceAt() error = %v", err)
	}
	if n, _ := st.Get(a).AsInt(); n != 1 {
		t.Errorf("slot below replaced slot = %d, want 1", n)
	}
	if n, _ := st.Get(b).AsInt(); n != 20 {
		t.Errorf("replaced slot = %d, want 20", n)
	}
	if n, _ := st.Get(c).AsInt(); n != 3 {
		t.Errorf("slot above replaced slot = %d, want 3", n)
	}

	if err := st.ReplaceAt(c+1, Nil()); !errors.Is(err, ErrStackIndex) {
		t.Errorf("ReplaceAt(past top) error = %v, want ErrStackIndex", err)
	}
	if err := st.ReplaceAt(0, Nil()); !errors.Is(err, ErrStackIndex) {
		t.Errorf("ReplaceAt(0) error = %v, want ErrStackIndex", err)
	}
}

func TestStackCallAt(t *testing.T) {
	s := newTestState(t, `function add(a, b) return a + b end`)
	st := s.Stack()
	fn := globalFunc(t, s, "add")

	mark := st.Mark()
	fnIdx := st.PushFunction(fn)
	st.Push(Int(2))
	st.Push(Int(40))

	res, err := st.CallAt(fnIdx, 2, 1)
	if err != nil {
		t.Fatalf("CallAt() error = %v", err)
	}
	if res != fnIdx {
		t.Errorf("result base = %d, want %d", res, fnIdx)
	}
	if n, ok := st.Get(res).AsInt(); !ok || n != 42 {
		t.Errorf("result = %v, want 42", st.Get(res))
	}
	st.PopTo(mark)
	if st.Top() != mark {
		t.Errorf("top after PopTo = %d, want %d", st.Top(), mark)
	}
}

func TestStackCallAtPadsResults(t *testing.T) {
	s := newTestState(t, `function none() end`)
	st := s.Stack()

	mark := st.Mark()
	fnIdx := st.PushFunction(globalFunc(t, s, "none"))
	res, err := st.CallAt(fnIdx, 0, 1)
	if err != nil {
		t.Fatalf("CallAt() error = %v", err)
	}
	if !st.Get(res).IsNil() {
		t.Errorf("missing result = %v, want nil", st.Get(res))
	}
	if st.Top() != mark+1 {
		t.Errorf("top = %d, want %d", st.Top(), mark+1)
	}
	st.PopTo(mark)
}

func TestStackCallAtLayout(t *testing.T) {
	s := newTestState(t, `function f() end`)
	st := s.Stack()

	fnIdx := st.PushFunction(globalFunc(t, s, "f"))
	st.Push(Int(1))

	if _, err := st.CallAt(fnIdx, 0, 0); !errors.Is(err, ErrStackLayout) {
		t.Errorf("CallAt(wrong nargs) error = %v, want ErrStackLayout", err)
	}

	notFn := st.Push(Int(5))
	if _, err := st.CallAt(notFn, 0, 0); !errors.Is(err, ErrStackLayout) {
		t.Errorf("CallAt(non-function) error = %v, want ErrStackLayout", err)
	}
}

func TestStackCallAtFault(t *testing.T) {
	s := newTestState(t, `
		function boom() error("boom") end
		function ok(x) return x * 2 end
	`)
	st := s.Stack()

	arg := st.Push(Int(21))
	mark := st.Mark()

	fnIdx := st.PushFunction(globalFunc(t, s, "boom"))
	st.PushCopy(arg)
	_, err := st.CallAt(fnIdx, 1, 1)

	var gre *GuestRuntimeError
	if !errors.As(err, &gre) {
		t.Fatalf("CallAt() error = %v, want GuestRuntimeError", err)
	}
	if gre.Traceback == "" {
		t.Error("GuestRuntimeError has no traceback")
	}
	st.PopTo(mark)

	// The shared argument is untouched and the next call still works.
	if n, _ := st.Get(arg).AsInt(); n != 21 {
		t.Fatalf("argument after fault = %d, want 21", n)
	}
	fnIdx = st.PushFunction(globalFunc(t, s, "ok"))
	st.PushCopy(arg)
	res, err := st.CallAt(fnIdx, 1, 1)
	if err != nil {
		t.Fatalf("CallAt() after fault error = %v", err)
	}
	if n, _ := st.Get(res).AsInt(); n != 42 {
		t.Errorf("result after fault = %d, want 42", n)
	}
	st.PopTo(mark)
}

func TestStackEntityMetatable(t *testing.T) {
	s := newTestState(t, "")
	s.RegisterType("TestEntity", map[string]glua.LGFunction{
		"GetID": func(L *glua.LState) int {
			e := CheckEntity[*testEntity](L, 1)
			L.Push(glua.LNumber(e.id))
			return 1
		},
	})
	if err := s.DoString(`function id_of(e) return e:GetID() end`); err != nil {
		t.Fatal(err)
	}

	st := s.Stack()
	mark := st.Mark()
	fnIdx := st.PushFunction(globalFunc(t, s, "id_of"))
	st.Push(EntityValue(&testEntity{id: 77}))
	res, err := st.CallAt(fnIdx, 1, 1)
	if err != nil {
		t.Fatalf("CallAt() error = %v", err)
	}
	if n, _ := st.Get(res).AsInt(); n != 77 {
		t.Errorf("id_of() = %v, want 77", st.Get(res))
	}
	st.PopTo(mark)
}
