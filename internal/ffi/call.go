package ffi

import (
	"errors"
	"fmt"
	"unsafe"
)

// Call invokes the function nargs below the top (unprotected: a Lua error
// here longjmps through the host, and errors never unwind cleanly
// through the host's C frames — only use Call when the caller is certain
// the callee cannot error, otherwise use PCall).
func (s *Shim) Call(vm VM, nargs, nresults int) { s.call(vm, int32(nargs), int32(nresults)) }

// PCall invokes the function nargs below the top in protected mode. On
// error it reads the message off the top of the stack, pops it, and
// returns it as an error; on success it returns nil and nresults return
// values are left on the stack.
func (s *Shim) PCall(vm VM, nargs, nresults, errfuncIdx int) error {
	rc := s.pcall(vm, int32(nargs), int32(nresults), int32(errfuncIdx))
	if rc == 0 {
		return nil
	}
	msg := s.ToString(vm, -1)
	s.Pop(vm, 1)
	return &LuaError{Message: msg}
}

// LuaError wraps a message produced by a failed compile or protected call.
type LuaError struct{ Message string }

func (e *LuaError) Error() string { return e.Message }

// LoadMode selects luaL_loadbufferx's mode string.
type LoadMode string

const (
	ModeText   LoadMode = "t"
	ModeBinary LoadMode = "b"
	ModeBoth   LoadMode = "bt"
)

// LoadBufferX compiles bytes under chunkName in the given mode. On success
// it leaves the resulting function on the stack; on failure it pops the
// error message and returns it as a *LuaError.
func (s *Shim) LoadBufferX(vm VM, bytes []byte, chunkName string, mode LoadMode) error {
	var bufPtr uintptr
	if len(bytes) > 0 {
		bufPtr = uintptr(unsafe.Pointer(&bytes[0]))
	}
	namePtr, keepName := cstr(chunkName)
	modePtr, keepMode := cstr(string(mode))

	rc := s.loadbufx(vm, bufPtr, uintptr(len(bytes)), namePtr, modePtr)
	_, _ = keepName, keepMode
	if rc == 0 {
		return nil
	}
	msg := s.ToString(vm, -1)
	s.Pop(vm, 1)
	return &LuaError{Message: msg}
}

// Reference pops the value on top of the stack and returns a stable
// registry key for it.
func (s *Shim) Reference(vm VM, registryIdx int) int { return int(s.ref(vm, int32(registryIdx))) }

// Dereference frees a previously obtained registry key.
func (s *Shim) Dereference(vm VM, registryIdx, key int) { s.unref(vm, int32(registryIdx), int32(key)) }

// ErrInvalidReference is returned by higher layers (internal/sandbox) when
// a registry key is discovered to be stale; the shim itself does not
// validate keys (the host's luaL_unref is a no-op on bad keys), so this
// sentinel exists for callers that track key lifetimes themselves.
var ErrInvalidReference = errors.New("ffi: invalid registry reference")

// GetFenv pushes the function environment of the function at index i.
func (s *Shim) GetFenv(vm VM, i int) { s.getfenv(vm, int32(i)) }

// SetFenv pops the table on top of the stack and sets it as the function
// environment of the function at index i. Returns an error if i is not a
// function (the host's lua_setfenv returns 0 in that case).
func (s *Shim) SetFenv(vm VM, i int) error {
	if s.setfenv(vm, int32(i)) == 0 {
		return fmt.Errorf("ffi: setfenv failed: stack position %d is not a function", i)
	}
	return nil
}

// RaiseError pushes errMsg and calls the host's error-raise path, which
// performs a non-local jump and never returns control to the caller. Go
// callers must not hold any non-trivial cleanup below this call.
func (s *Shim) RaiseError(vm VM, errMsg string) {
	s.PushString(vm, errMsg)
	s.errorFn(vm)
}
