package plugapi

import (
	"fmt"
	goruntime "runtime"
	"runtime/cgo"
	"sync"
	"unsafe"

	"github.com/autorun-labs/autorun/internal/codegen"
	"github.com/autorun-labs/autorun/internal/detour"
	"github.com/autorun-labs/autorun/internal/ffi"
	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"
)

// callbackEntry is one installed script-facing detour: the registry
// reference pinning the Lua callback function, and the record it
// intercepts.
type callbackEntry struct {
	shim    *ffi.Shim
	funcRef int
	nargs   int
	record  *detour.Record
}

// callbackRegistry is the process-wide {callback id -> callbackEntry}
// table the shared dispatcher trampoline consults. It is a single
// process-global table rather than one per realm: the scripting runtime
// binds one Shim per process (both realms share the same host script
// shared object), so a realm-scoped table keyed by shim pointer could
// never disambiguate between realms anyway. Callback ids are unique
// process-wide instead.
type callbackRegistry struct {
	mu      sync.Mutex
	next    uint32
	entries map[uint32]*callbackEntry
}

func newCallbackRegistry() *callbackRegistry {
	return &callbackRegistry{entries: make(map[uint32]*callbackEntry)}
}

func (r *callbackRegistry) register(e *callbackEntry) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.entries[id] = e
	return id
}

func (r *callbackRegistry) get(id uint32) (*callbackEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return e, ok
}

// globalCallbacks backs every detour installed by every realm Builder in
// the process.
var globalCallbacks = newCallbackRegistry()

// dispatcherAddr is the single shared codegen callback trampoline target
// for every installed detour: one purego.NewCallback suffices since the
// callback id metadata the codegen trampoline packs already disambiguates
// which entry a call belongs to.
var (
	dispatcherOnce sync.Once
	dispatcherAddr uintptr
)

func dispatcherEntry() uintptr {
	dispatcherOnce.Do(func() {
		dispatcherAddr = purego.NewCallback(dispatchCallback)
	})
	return dispatcherAddr
}

// dispatchCallback is invoked by the machine code EmitCallbackTrampoline
// emits: position 1 (the VM pointer) and the metadata/shim/cell words
// packed into positions 2-4 of the host's calling convention. shimPtr is
// the address of the *ffi.Shim the detoured target belongs to, recast
// directly rather than looked up, since the trampoline itself already
// carries it.
func dispatchCallback(vm uintptr, metadata uint32, shimPtr uintptr, cellAddr uintptr) int32 {
	callbackID := metadata >> 8
	nargs := int(metadata & 0xFF)

	entry, ok := globalCallbacks.get(callbackID)
	if !ok {
		return 0
	}

	s := (*ffi.Shim)(unsafe.Pointer(shimPtr))
	v := ffi.VM(vm)

	s.RawGetI(v, ffi.RegistryIndex, entry.funcRef)
	s.Insert(v, 1)

	original := *(*uintptr)(unsafe.Pointer(cellAddr))
	s.PushCFunction(v, original)
	s.Insert(v, 2)

	if err := s.PCall(v, nargs+1, ffi.MultRet, 0); err != nil {
		s.RaiseError(v, err.Error())
		return 0
	}
	return int32(s.GetTop(v))
}

// detourConvention picks the calling convention EmitCallbackTrampoline
// adapts into, matching the host platform.
func detourConvention() codegen.Convention {
	if goruntime.GOOS == "windows" {
		return codegen.ConventionWin64
	}
	return codegen.ConventionSysV
}

// newCell reserves a page-sized data region (not executable) to hold the
// original-call trampoline address a detoured callback reads to invoke
// the function it replaced.
func newCell(initial uintptr) (uintptr, error) {
	mem, err := unix.Mmap(-1, 0, 4096, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return 0, fmt.Errorf("plugapi: allocate indirection cell: %w", err)
	}
	*(*uintptr)(unsafe.Pointer(&mem[0])) = initial
	return uintptr(unsafe.Pointer(&mem[0])), nil
}

func writeCell(cellAddr, value uintptr) {
	*(*uintptr)(unsafe.Pointer(cellAddr)) = value
}

// detourHandle is the value a script-visible detour userdata wraps,
// returned by detour() and consumed by detourEnable/detourDisable.
type detourHandle struct {
	record *detour.Record
}

// detour implements Autorun.detour(target_fn, nargs, callback_fn):
// target_fn must be a C function value (its address is recovered via
// lua_tocfunction -- the detour only intercepts C-function-convention
// entry points, never Lua closures); it builds a codegen callback
// trampoline, installs it via the interception engine, and enables it
// immediately, returning a detour userdata.
func (b *Builder) detour(s *ffi.Shim, vm ffi.VM) ([]any, error) {
	env := b.env()
	if err := env.Guard(); err != nil {
		return nil, err
	}

	target := s.ToCFunction(vm, 1)
	if target == 0 {
		return nil, fmt.Errorf("autorun: detour: argument 1 is not a C function")
	}
	nargsArg, err := s.PullInt(vm, 2)
	if err != nil {
		return nil, err
	}
	if s.TypeOf(vm, 3) != ffi.TypeFunction {
		return nil, fmt.Errorf("autorun: detour: argument 3 must be a function")
	}
	s.PushValue(vm, 3)
	funcRef := s.Reference(vm, ffi.RegistryIndex)

	callbackID := globalCallbacks.register(&callbackEntry{
		shim:    s,
		funcRef: funcRef,
		nargs:   int(nargsArg),
		record:  nil, // filled in below once the record exists
	})

	cellAddr, err := newCell(0)
	if err != nil {
		s.Dereference(vm, ffi.RegistryIndex, funcRef)
		return nil, err
	}

	spec := codegen.CallbackSpec{
		CallbackID:      callbackID,
		ArgumentCount:   uint8(nargsArg),
		HandlerEntry:    dispatcherEntry(),
		ShimPointer:     uintptr(unsafe.Pointer(s)),
		IndirectionCell: cellAddr,
	}
	code, err := codegen.EmitCallbackTrampoline(detourConvention(), spec)
	if err != nil {
		return nil, err
	}
	callbackTramp, err := codegen.Allocate(code)
	if err != nil {
		return nil, err
	}

	record, err := b.deps.Detours.New(target, callbackTramp)
	if err != nil {
		return nil, fmt.Errorf("autorun: detour: %w", err)
	}

	origCode := codegen.EmitOriginalCallTrampoline(uintptr(unsafe.Pointer(record)), record.CallThrough())
	origTramp, origErr := codegen.Allocate(origCode)
	if origErr != nil {
		return nil, origErr
	}
	writeCell(cellAddr, origTramp.Addr)

	if entry, ok := globalCallbacks.get(callbackID); ok {
		entry.record = record
	}

	if err := record.Enable(); err != nil {
		return nil, fmt.Errorf("autorun: detour: enable: %w", err)
	}
	if b.deps.DetourInstalled != nil {
		b.deps.DetourInstalled()
	}

	h := cgo.NewHandle(&detourHandle{record: record})
	ptr := s.NewUserdata(vm, unsafe.Sizeof(uintptr(0)))
	*(*uintptr)(unsafe.Pointer(ptr)) = uintptr(h)

	return []any{ffi.StackTop{}}, nil
}

func (b *Builder) resolveDetourHandle(s *ffi.Shim, vm ffi.VM, idx int) (*detourHandle, error) {
	if s.TypeOf(vm, idx) != ffi.TypeUserdata {
		return nil, fmt.Errorf("autorun: argument %d is not a detour handle", idx)
	}
	ptr := s.ToUserdata(vm, idx)
	raw := *(*uintptr)(unsafe.Pointer(ptr))
	v := cgo.Handle(raw).Value()
	dh, ok := v.(*detourHandle)
	if !ok {
		return nil, fmt.Errorf("autorun: argument %d is not a detour handle", idx)
	}
	return dh, nil
}

func (b *Builder) detourEnable(s *ffi.Shim, vm ffi.VM) ([]any, error) {
	if err := b.env().Guard(); err != nil {
		return nil, err
	}
	dh, err := b.resolveDetourHandle(s, vm, 1)
	if err != nil {
		return nil, err
	}
	return nil, dh.record.Enable()
}

func (b *Builder) detourDisable(s *ffi.Shim, vm ffi.VM) ([]any, error) {
	if err := b.env().Guard(); err != nil {
		return nil, err
	}
	dh, err := b.resolveDetourHandle(s, vm, 1)
	if err != nil {
		return nil, err
	}
	return nil, dh.record.Disable()
}
