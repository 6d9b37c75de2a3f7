package sandbox

import (
	"fmt"

	"github.com/autorun-labs/autorun/internal/event"
	"github.com/autorun-labs/autorun/internal/ffi"
)

// DispatchLoadBuffer runs the prelude event bus's loadbuffer handler
// chain (Autorun._dispatch_loadbuffer) over one candidate chunk, and
// translates its Lua-side return value into an event.Outcome: nil/absent
// continues, true skips, false continues, a string replaces, and any
// other value aborts the hook back to Continue.
func (e *Env) DispatchLoadBuffer(name string, body []byte, mode string) (event.Outcome, error) {
	s, vm := e.shim, e.vm

	e.pushEnvTable()
	s.GetField(vm, -1, "Autorun")
	s.GetField(vm, -1, "_dispatch_loadbuffer")
	s.Remove(vm, -2)
	s.Remove(vm, -2)

	s.PushString(vm, name)
	s.PushString(vm, string(body))
	s.PushString(vm, mode)

	if err := s.PCall(vm, 3, 1, 0); err != nil {
		return event.Continue(), fmt.Errorf("sandbox: loadbuffer dispatch %q: %w", name, err)
	}

	switch s.TypeOf(vm, -1) {
	case ffi.TypeNil, ffi.TypeNone:
		s.Pop(vm, 1)
		return event.Continue(), nil
	case ffi.TypeBoolean:
		truthy := s.ToBool(vm, -1)
		s.Pop(vm, 1)
		if truthy {
			return event.Skip(), nil
		}
		return event.Continue(), nil
	case ffi.TypeString:
		str, _ := s.PullString(vm, -1)
		s.Pop(vm, 1)
		return event.Replace([]byte(str)), nil
	default:
		s.Pop(vm, 1)
		return event.Continue(), nil
	}
}
