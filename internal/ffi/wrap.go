package ffi

import "github.com/ebitengine/purego"

// HostFunc is a Go implementation of a privileged Lua-callable function.
// It receives the shim and the calling VM, and returns the values to push
// (each converted via Push) or an error.
type HostFunc func(s *Shim, vm VM) ([]any, error)

// WrapHostFunc is the "macro" of the last paragraph: it adapts
// a Go function of the above shape into a host-ABI C function pointer. On
// success it pushes the returned values via Push and returns their count;
// on error it pushes the message string and calls the host's error-raise,
// which does not return to this frame.
//
// purego.NewCallback builds the C-callable trampoline, the same mechanism
// internal/runtime uses for its detour handler entry points.
func (s *Shim) WrapHostFunc(fn HostFunc) CFunc {
	cb := func(vm VM) int32 {
		results, err := fn(s, vm)
		if err != nil {
			s.RaiseError(vm, err.Error())
			return 0 // unreachable: RaiseError never returns
		}
		for _, r := range results {
			if pushErr := s.Push(vm, r); pushErr != nil {
				s.RaiseError(vm, pushErr.Error())
				return 0
			}
		}
		return int32(len(results))
	}
	ptr := purego.NewCallback(cb)
	return CFunc(ptr)
}
