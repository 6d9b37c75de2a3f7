package sandbox

import (
	"fmt"
	"runtime/cgo"
	"unsafe"

	"github.com/autorun-labs/autorun/internal/ffi"
	"github.com/autorun-labs/autorun/internal/workspace"
)

// ActivePlugin resolves Autorun.PLUGIN off this environment (reading
// the field the environment publishes before executing any plugin-owned
// chunk). Callers invoke this only after their own Guard() check has
// already passed, so no separate caller-origin check happens here.
func (e *Env) ActivePlugin() (p *workspace.Plugin, err error) {
	s, vm := e.shim, e.vm

	e.pushEnvTable()
	s.GetField(vm, -1, "Autorun")
	s.GetField(vm, -1, "PLUGIN")
	defer s.Pop(vm, 3)

	if s.TypeOf(vm, -1) != ffi.TypeUserdata {
		return nil, fmt.Errorf("sandbox: Autorun.PLUGIN is missing or not a userdata")
	}

	ptr := s.ToUserdata(vm, -1)
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("sandbox: Autorun.PLUGIN holds an invalid handle")
		}
	}()

	h := *(*uintptr)(unsafe.Pointer(ptr))
	v := cgo.Handle(h).Value()
	plugin, ok := v.(*workspace.Plugin)
	if !ok {
		return nil, fmt.Errorf("sandbox: Autorun.PLUGIN handle is not a plugin")
	}
	return plugin, nil
}

// PushPluginHandle allocates a heavy userdata wrapping a cgo.Handle over
// plugin and pushes it on top of the stack: this is the plugin-context
// publication step performed before executing any plugin-owned chunk. The
// handle is
// intentionally never released: a plugin's published context lives for
// as long as the environment's Autorun.PLUGIN field references it, which
// in turn lives for the host process lifetime (mirrors internal/detour's
// discipline of never tearing down process-lifetime state early).
func (e *Env) PushPluginHandle(plugin *workspace.Plugin) {
	h := cgo.NewHandle(plugin)
	ptr := e.shim.NewUserdata(e.vm, unsafe.Sizeof(uintptr(0)))
	*(*uintptr)(unsafe.Pointer(ptr)) = uintptr(h)
}
