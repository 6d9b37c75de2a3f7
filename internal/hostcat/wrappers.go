package hostcat

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
)

// paintTraverseSlot is the vtable index of the panel system's paint
// traversal entry point. It is platform-specific; only the Linux/amd64
// layout is filled in here, matching the rest of this tree's
// Linux-first scope.
var paintTraverseSlot = map[string]int{
	"linux/amd64": 42,
}

// Panel wraps the host's panel system interface, exposing the single
// vtable slot this runtime cares about: the paint-traverse entry point the
// interception engine detours.
type Panel struct {
	ptr  uintptr
	slot int
}

// NewPanel wraps a resolved panel-system interface pointer. platformKey is
// e.g. "linux/amd64" (runtime.GOOS+"/"+runtime.GOARCH).
func NewPanel(ptr uintptr, platformKey string) (*Panel, error) {
	slot, ok := paintTraverseSlot[platformKey]
	if !ok {
		return nil, fmt.Errorf("hostcat: no known paint-traverse vtable slot for %s", platformKey)
	}
	return &Panel{ptr: ptr, slot: slot}, nil
}

// PaintTraverseAddress returns the address of the paint-traverse function
// pointer slot in the panel system's vtable, the address the interception
// engine installs its detour on.
func (p *Panel) PaintTraverseAddress() uintptr {
	vtable := *(*uintptr)(unsafe.Pointer(p.ptr))
	return vtable + uintptr(p.slot)*uintptr(unsafe.Sizeof(uintptr(0)))
}

// EngineClient wraps the host's engine-client interface. It exposes
// screen size only; net channel info is not wrapped.
type EngineClient struct {
	getScreenSize func(ptr uintptr, w, h uintptr)
	ptr           uintptr
}

// NewEngineClient wraps a resolved engine-client interface pointer. It
// binds nothing up front: ScreenSize looks up its method at a fixed
// vtable index on each call.
func NewEngineClient(ptr uintptr) *EngineClient {
	return &EngineClient{ptr: ptr}
}

// ScreenSize returns the host's current render target dimensions.
func (e *EngineClient) ScreenSize() (width, height int) {
	var w, h int32
	vtable := *(*uintptr)(unsafe.Pointer(e.ptr))
	fnPtr := *(*uintptr)(unsafe.Pointer(vtable + 5*unsafe.Sizeof(uintptr(0))))
	var fn func(uintptr, uintptr, uintptr)
	purego.RegisterFunc(&fn, fnPtr)
	fn(e.ptr, uintptr(unsafe.Pointer(&w)), uintptr(unsafe.Pointer(&h)))
	return int(w), int(h)
}

// Logger wraps the host's logging interface: a single Msg(fmt, ...)
// entry point, always invoked as msg("%s", s) per , so plugin
// and runtime text never needs host-side format-string interpretation.
type Logger struct {
	msg func(fmtPtr, argPtr uintptr)
}

// NewLogger binds the host logger interface's Msg method at the given
// vtable slot.
func NewLogger(ptr uintptr, slot int) *Logger {
	vtable := *(*uintptr)(unsafe.Pointer(ptr))
	fnPtr := *(*uintptr)(unsafe.Pointer(vtable + uintptr(slot)*unsafe.Sizeof(uintptr(0))))
	l := &Logger{}
	purego.RegisterFunc(&l.msg, fnPtr)
	return l
}

// Msg logs s through the host's logger, using the fixed "%s" format string
// convention so arbitrary plugin text is never reinterpreted as a format
// string by the host.
func (l *Logger) Msg(s string) {
	fmtPtr, keepFmt := cstrKeep("%s")
	argPtr, keepArg := cstrKeep(s)
	l.msg(fmtPtr, argPtr)
	_, _ = keepFmt, keepArg
}
