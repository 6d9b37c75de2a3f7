package ffi

import "unsafe"

// GetTop returns the index of the top element, i.e. the current stack
// height.
func (s *Shim) GetTop(vm VM) int { return int(s.gettop(vm)) }

// SetTop sets the stack height, discarding or nil-filling as needed.
func (s *Shim) SetTop(vm VM, top int) { s.settop(vm, int32(top)) }

// Pop removes n elements from the top of the stack.
func (s *Shim) Pop(vm VM, n int) { s.settop(vm, int32(-n-1)) }

// PushValue pushes a copy of the element at index i.
func (s *Shim) PushValue(vm VM, i int) { s.pushval(vm, int32(i)) }

// Insert moves the top element into position i, shifting elements up.
func (s *Shim) Insert(vm VM, i int) { s.insert(vm, int32(i)) }

// Remove removes the element at index i, shifting elements down.
func (s *Shim) Remove(vm VM, i int) { s.remove(vm, int32(i)) }

// XMove moves n values from the top of src's stack to dst's stack. src and
// dst must share the same global state (i.e. be realms of the same host
// process), per the host's lua_xmove contract.
func (s *Shim) XMove(src, dst VM, n int) { s.xmove(src, dst, int32(n)) }

// PushNil pushes a nil value.
func (s *Shim) PushNil(vm VM) { s.pushnil(vm) }

// PushBool pushes a boolean value.
func (s *Shim) PushBool(vm VM, b bool) {
	var i int32
	if b {
		i = 1
	}
	s.pushbool(vm, i)
}

// PushInt pushes an integer value.
func (s *Shim) PushInt(vm VM, i int64) { s.pushint(vm, i) }

// PushNumber pushes a floating point value.
func (s *Shim) PushNumber(vm VM, f float64) { s.pushnum(vm, f) }

// PushString pushes a byte string. The host copies the bytes internally
// (lua_pushlstring semantics), so the Go string need not outlive the call.
func (s *Shim) PushString(vm VM, str string) {
	if len(str) == 0 {
		s.pushlstr(vm, 0, 0)
		return
	}
	b := []byte(str)
	s.pushlstr(vm, uintptr(unsafe.Pointer(&b[0])), uintptr(len(b)))
}

// PushLightUserdata pushes a raw pointer as a light userdata value.
func (s *Shim) PushLightUserdata(vm VM, ptr uintptr) { s.pushlud(vm, ptr) }

// PushCFunction pushes a C-callable function pointer (e.g. one produced by
// purego.NewCallback via WrapHostFunc) as a Lua C function value.
func (s *Shim) PushCFunction(vm VM, fn uintptr) { s.pushcclo(vm, fn, 0) }

// NewUserdata allocates size bytes of host-owned userdata and returns a
// pointer to it, already pushed on the stack. Callers overlay a Go struct
// layout onto the returned pointer with unsafe, mirroring the
// "allocate userdata of a Rust-chosen size T, move-initialize it".
func (s *Shim) NewUserdata(vm VM, size uintptr) uintptr { return s.newud(vm, size) }

// ToString reads the string at index i without popping it.
func (s *Shim) ToString(vm VM, i int) string {
	var length uintptr
	ptr := s.tolstring(vm, int32(i), uintptr(unsafe.Pointer(&length)))
	if ptr == 0 || length == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), int(length)))
}

// ToBool reads the boolean at index i.
func (s *Shim) ToBool(vm VM, i int) bool { return s.toboolean(vm, int32(i)) != 0 }

// ToNumber reads the number at index i.
func (s *Shim) ToNumber(vm VM, i int) float64 { return s.tonumber(vm, int32(i)) }

// ToInteger reads the integer at index i.
func (s *Shim) ToInteger(vm VM, i int) int64 { return s.tointeger(vm, int32(i)) }

// ToUserdata reads the userdata pointer at index i.
func (s *Shim) ToUserdata(vm VM, i int) uintptr { return s.touserdat(vm, int32(i)) }

// ToCFunction reads the raw C function pointer backing the function
// value at index i, or 0 if the value is not a C function (e.g. a Lua
// closure). The detour primitive uses this to recover the address it
// should patch a trampoline over.
func (s *Shim) ToCFunction(vm VM, i int) uintptr { return s.tocfunc(vm, int32(i)) }

// TypeOf returns the Lua type of the value at index i.
func (s *Shim) TypeOf(vm VM, i int) Type { return Type(s.typeid(vm, int32(i))) }

// RawEqual reports whether the values at indices a and b are the same
// object without invoking any `__eq` metamethod — the identity check the
// sandbox's caller-origin gate needs.
func (s *Shim) RawEqual(vm VM, a, b int) bool { return s.rawequal(vm, int32(a), int32(b)) != 0 }
