package lua

import (
	"math"
	"strconv"
	"strings"

	glua "github.com/yuin/gopher-lua"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindEntity

	// KindOther marks guest values with no host representation
	// (tables, functions, threads, foreign userdata).
	KindOther
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "boolean"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindEntity:
		return "entity"
	default:
		return "other"
	}
}

// Entity is a host object exposed to scripts as userdata.
// TypeName selects the metatable registered with State.RegisterType.
type Entity interface {
	TypeName() string
}

// Value is a tagged variant crossing the host/guest boundary.
// The zero Value is nil.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	e    Entity
}

// Nil returns the nil value.
func Nil() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps an integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a float.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// EntityValue wraps an entity handle. A nil entity yields Nil.
func EntityValue(e Entity) Value {
	if e == nil {
		return Nil()
	}
	return Value{kind: KindEntity, e: e}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNil reports whether v is nil.
func (v Value) IsNil() bool { return v.kind == KindNil }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsInt returns the integer payload. Integral floats are accepted.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		if v.f == math.Trunc(v.f) && v.f >= math.MinInt64 && v.f <= math.MaxInt64 {
			return int64(v.f), true
		}
	}
	return 0, false
}

// AsFloat returns the numeric payload as a float.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// AsEntity returns the entity payload.
func (v Value) AsEntity() (Entity, bool) {
	return v.e, v.kind == KindEntity
}

// String renders the value for logs.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindEntity:
		return v.e.TypeName()
	default:
		return "<other>"
	}
}

// toLua encodes v for L. Entities become userdata carrying the metatable
// registered for their type name.
func toLua(L *glua.LState, v Value) glua.LValue {
	switch v.kind {
	case KindBool:
		return glua.LBool(v.b)
	case KindInt:
		return glua.LNumber(v.i)
	case KindFloat:
		return glua.LNumber(v.f)
	case KindString:
		return glua.LString(v.s)
	case KindEntity:
		ud := L.NewUserData()
		ud.Value = v.e
		if mt, ok := L.GetTypeMetatable(v.e.TypeName()).(*glua.LTable); ok {
			ud.Metatable = mt
		}
		return ud
	default:
		return glua.LNil
	}
}

// FromLua decodes a guest value.
func FromLua(lv glua.LValue) Value {
	switch v := lv.(type) {
	case nil:
		return Nil()
	case glua.LBool:
		return Bool(bool(v))
	case glua.LNumber:
		f := float64(v)
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return Int(int64(f))
		}
		return Float(f)
	case glua.LString:
		return String(string(v))
	case *glua.LNilType:
		return Nil()
	case *glua.LUserData:
		if e, ok := v.Value.(Entity); ok {
			return EntityValue(e)
		}
		return Value{kind: KindOther}
	default:
		return Value{kind: KindOther}
	}
}

// Coercer converts a guest value to a typed host value.
// It reports false when the value does not type-check.
type Coercer[T any] func(Value) (T, bool)

// Uint8 accepts integers in [0, 255], including numeric strings as Lua
// arithmetic would convert them.
func Uint8(v Value) (uint8, bool) {
	n, ok := v.AsInt()
	if s, isStr := v.AsString(); isStr {
		n, ok = parseInt(s)
	}
	if !ok || n < 0 || n > math.MaxUint8 {
		return 0, false
	}
	return uint8(n), true
}

// parseInt converts a decimal or 0x-prefixed hex string to an integer.
// Integral floats such as "20.0" and "2e1" are accepted.
func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")
	if len(digits) > 2 && (digits[:2] == "0x" || digits[:2] == "0X") {
		n, err := strconv.ParseInt(digits[2:], 16, 64)
		if err != nil {
			return 0, false
		}
		if neg {
			n = -n
		}
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return Float(f).AsInt()
}

// Uint32 accepts integers in [0, 2^32-1].
func Uint32(v Value) (uint32, bool) {
	n, ok := v.AsInt()
	if !ok || n < 0 || n > math.MaxUint32 {
		return 0, false
	}
	return uint32(n), true
}

// Str accepts strings.
func Str(v Value) (string, bool) {
	return v.AsString()
}

// Boolean accepts booleans.
func Boolean(v Value) (bool, bool) {
	return v.AsBool()
}
