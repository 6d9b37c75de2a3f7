package ffi

import "unsafe"

// cstr returns a NUL-terminated copy of s as a raw pointer, valid for the
// duration of the call (kept alive by the caller's stack frame via the
// named return trick below).
func cstr(s string) (uintptr, []byte) {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return uintptr(unsafe.Pointer(&b[0])), b
}

// CreateTable pushes a new table with narr array slots and nrec hash slots
// pre-sized.
func (s *Shim) CreateTable(vm VM, narr, nrec int) { s.createtable(vm, int32(narr), int32(nrec)) }

// GetTable does t[k] where t is at index idx and k is the value on top of
// the stack; it pops k and pushes the result (may invoke metamethods).
func (s *Shim) GetTable(vm VM, idx int) { s.gettable(vm, int32(idx)) }

// SetTable does t[k] = v where t is at idx, k is second-from-top, v is on
// top; pops both k and v (may invoke metamethods).
func (s *Shim) SetTable(vm VM, idx int) { s.settable(vm, int32(idx)) }

// GetField does t[name] where t is at idx, pushing the result.
func (s *Shim) GetField(vm VM, idx int, name string) {
	ptr, keep := cstr(name)
	s.getfield(vm, int32(idx), ptr)
	_ = keep
}

// SetField does t[name] = v where t is at idx and v is popped from the
// top.
func (s *Shim) SetField(vm VM, idx int, name string) {
	ptr, keep := cstr(name)
	s.setfield(vm, int32(idx), ptr)
	_ = keep
}

// RawGetI does t[n] without invoking metamethods, pushing the result.
func (s *Shim) RawGetI(vm VM, idx, n int) { s.rawgeti(vm, int32(idx), int32(n)) }

// RawSetI does t[n] = v without invoking metamethods; pops v from the top.
func (s *Shim) RawSetI(vm VM, idx, n int) { s.rawseti(vm, int32(idx), int32(n)) }

// SetMetatable pops the table on top of the stack and sets it as the
// metatable of the value at idx. Returns false if idx's value cannot carry
// a metatable.
func (s *Shim) SetMetatable(vm VM, idx int) bool { return s.setmeta(vm, int32(idx)) != 0 }
