package ffi

import "fmt"

// StackTop is a HostFunc return-value placeholder for a result the
// implementation already left on top of the stack itself (e.g.
// internal/plugapi's load, whose compiled chunk is pushed by
// LoadBufferX before the function returns). Push treats it as a no-op so
// the pre-pushed value becomes the result in that slot without being
// pushed twice.
type StackTop struct{}

// Push pushes a native Go value onto the stack, dispatching on its
// dynamic type. Supported: nil, bool, float64, int64, string, []byte (as a
// Lua string), uintptr (as light userdata), CFunc (as a C function),
// StackTop (a no-op for an already-pushed value).
// Unsupported types return an error rather than pushing nothing, so a
// caller can never silently desync the stack.
func (s *Shim) Push(vm VM, v any) error {
	switch x := v.(type) {
	case nil:
		s.PushNil(vm)
	case StackTop:
		_ = x
	case bool:
		s.PushBool(vm, x)
	case float64:
		s.PushNumber(vm, x)
	case int64:
		s.PushInt(vm, x)
	case int:
		s.PushInt(vm, int64(x))
	case string:
		s.PushString(vm, x)
	case []byte:
		s.PushString(vm, string(x))
	case uintptr:
		s.PushLightUserdata(vm, x)
	case CFunc:
		s.PushCFunction(vm, uintptr(x))
	default:
		return fmt.Errorf("ffi: push: unsupported type %T", v)
	}
	return nil
}

// CFunc is a C function pointer value, as produced by purego.NewCallback.
type CFunc uintptr

// PullString pulls a string from idx, erroring if the value is not a
// string or number (the host's lua_tolstring coerces numbers).
func (s *Shim) PullString(vm VM, idx int) (string, error) {
	t := s.TypeOf(vm, idx)
	if t != TypeString && t != TypeNumber {
		return "", fmt.Errorf("ffi: pull string: value at %d is %v", idx, t)
	}
	return s.ToString(vm, idx), nil
}

// PullBool pulls a boolean from idx. Any non-nil, non-false Lua value is
// truthy per Lua semantics; ToBool already implements that.
func (s *Shim) PullBool(vm VM, idx int) bool { return s.ToBool(vm, idx) }

// PullNumber pulls a float64 from idx, erroring if the value is not a
// number.
func (s *Shim) PullNumber(vm VM, idx int) (float64, error) {
	if s.TypeOf(vm, idx) != TypeNumber {
		return 0, fmt.Errorf("ffi: pull number: value at %d is %v", idx, s.TypeOf(vm, idx))
	}
	return s.ToNumber(vm, idx), nil
}

// PullInt pulls an int64 from idx, erroring if the value is not a number.
func (s *Shim) PullInt(vm VM, idx int) (int64, error) {
	if s.TypeOf(vm, idx) != TypeNumber {
		return 0, fmt.Errorf("ffi: pull integer: value at %d is %v", idx, s.TypeOf(vm, idx))
	}
	return s.ToInteger(vm, idx), nil
}

// PullUserdata pulls a userdata/light-userdata pointer from idx.
func (s *Shim) PullUserdata(vm VM, idx int) (uintptr, error) {
	t := s.TypeOf(vm, idx)
	if t != TypeUserdata && t != TypeLightUserdata {
		return 0, fmt.Errorf("ffi: pull userdata: value at %d is %v", idx, t)
	}
	return s.ToUserdata(vm, idx), nil
}

// OptString pulls a string from idx, or returns def if the value is
// nil/absent.
func (s *Shim) OptString(vm VM, idx int, def string) (string, error) {
	if s.TypeOf(vm, idx) == TypeNil || s.TypeOf(vm, idx) == TypeNone {
		return def, nil
	}
	return s.PullString(vm, idx)
}

// String implements fmt.Stringer for Type, for log lines and errors.
func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeNil:
		return "nil"
	case TypeBoolean:
		return "boolean"
	case TypeLightUserdata:
		return "lightuserdata"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeTable:
		return "table"
	case TypeFunction:
		return "function"
	case TypeUserdata:
		return "userdata"
	case TypeThread:
		return "thread"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}
