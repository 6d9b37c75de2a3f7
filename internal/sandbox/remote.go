package sandbox

import (
	"fmt"

	"github.com/autorun-labs/autorun/internal/ffi"
	"github.com/autorun-labs/autorun/internal/realm"
)

// RunRemoteCallbacks implements realm.RemoteTarget: it calls into the
// realm's prelude-defined Autorun._dispatch_remote(event, value), run
// under the environment so the gate-guarded primitives it may call see
// the correct caller origin.
func (e *Env) RunRemoteCallbacks(eventName string, value realm.RemoteValue) error {
	s, vm := e.shim, e.vm

	e.pushEnvTable()
	s.GetField(vm, -1, "Autorun")
	s.GetField(vm, -1, "_dispatch_remote")
	s.Remove(vm, -2) // stack: E, fn (Autorun removed)
	s.Remove(vm, -2) // stack: fn (E removed)

	s.PushString(vm, eventName)
	pushRemoteValue(s, vm, value)

	if err := s.PCall(vm, 2, 0, 0); err != nil {
		return fmt.Errorf("sandbox: remote dispatch %q: %w", eventName, err)
	}
	return nil
}

func pushRemoteValue(s *ffi.Shim, vm ffi.VM, v realm.RemoteValue) {
	switch v.Kind {
	case realm.RemoteString:
		s.PushString(vm, v.Str)
	case realm.RemoteNumber:
		s.PushNumber(vm, v.Num)
	case realm.RemoteBool:
		s.PushBool(vm, v.Bool)
	default:
		s.PushNil(vm)
	}
}
