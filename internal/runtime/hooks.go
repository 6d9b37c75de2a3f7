package runtime

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/autorun-labs/autorun/internal/codegen"
	"github.com/autorun-labs/autorun/internal/detour"
	"github.com/autorun-labs/autorun/internal/event"
	"github.com/autorun-labs/autorun/internal/ffi"
	"github.com/autorun-labs/autorun/internal/hostcat"
	"github.com/autorun-labs/autorun/internal/realm"
	"github.com/autorun-labs/autorun/internal/scan"
	"github.com/ebitengine/purego"
	"go.uber.org/zap"
)

// chunkLoaderSignature locates the host's chunk-loading entry point, the
// function the interception engine attaches its first detour to.
// Host-version-specific; a missing match disables hook installation
// rather than panicking.
const chunkLoaderSignature = "55 48 89 E5 41 57 41 56 41 55 41 54 53 48 81 EC"

// chunkLoaderFn mirrors the host's own chunk-loader entry: a VM state
// pointer, a NUL-terminated chunk name, a raw byte buffer and its
// length, and a NUL-terminated load-mode string ("t", "b", or "bt").
// Returns a host status code (0 = success), the convention
// internal/codegen's original-call trampoline tail-calls into.
type chunkLoaderFn func(vm, namePtr, bytesPtr, bytesLen, modePtr uintptr) int32

// paintTraverseFn mirrors the panel system's recursive paint entry point
// (the common `PaintTraverse(VPANEL, bool forceRepaint, bool
// allowForce)` shape these panel systems expose), the tick the
// main-thread work queue drains against.
type paintTraverseFn func(panel uintptr, forceRepaint, allowForce int32)

// Hooks owns the two host-entry-point detours (the chunk loader and the
// paint-traverse callback) and the menu poller goroutine.
type Hooks struct {
	rt *Runtime

	chunkRecord      *detour.Record
	chunkCallThrough chunkLoaderFn

	paintRecord      *detour.Record
	paintCallThrough paintTraverseFn

	menuPollOnce sync.Once
}

// NewHooks constructs an (uninstalled) Hooks bound to rt.
func NewHooks(rt *Runtime) *Hooks {
	return &Hooks{rt: rt}
}

// InstallChunkLoaderHook locates the host's chunk loader via
// internal/scan within moduleFilter (the host's main executable, or ""
// for any mapped region) and installs + enables a detour over it.
func (h *Hooks) InstallChunkLoaderHook(moduleFilter string) error {
	pattern, err := scan.Parse(chunkLoaderSignature)
	if err != nil {
		return fmt.Errorf("runtime: parse chunk-loader signature: %w", err)
	}

	target, ok, err := h.rt.Scanner.Find(pattern, moduleFilter)
	if err != nil {
		return fmt.Errorf("runtime: scan for chunk loader: %w", err)
	}
	if !ok {
		return fmt.Errorf("runtime: chunk-loader signature not found")
	}

	trampolineAddr := purego.NewCallback(h.chunkLoaderHandler)
	record, err := h.rt.Detours.New(target, &codegen.Trampoline{Addr: trampolineAddr})
	if err != nil {
		return fmt.Errorf("runtime: install chunk-loader detour: %w", err)
	}
	purego.RegisterFunc(&h.chunkCallThrough, record.CallThrough())

	if err := record.Enable(); err != nil {
		return fmt.Errorf("runtime: enable chunk-loader detour: %w", err)
	}
	h.rt.RecordDetourInstalled()
	h.chunkRecord = record
	return nil
}

// InstallPaintTraverseHook resolves the panel system's paint-traverse
// function pointer off panel's vtable slot and installs + enables a
// detour over it.
func (h *Hooks) InstallPaintTraverseHook(panel *hostcat.Panel) error {
	target := *(*uintptr)(unsafe.Pointer(panel.PaintTraverseAddress()))
	if target == 0 {
		return fmt.Errorf("runtime: paint-traverse vtable slot is null")
	}

	trampolineAddr := purego.NewCallback(h.paintTraverseHandler)
	record, err := h.rt.Detours.New(target, &codegen.Trampoline{Addr: trampolineAddr})
	if err != nil {
		return fmt.Errorf("runtime: install paint-traverse detour: %w", err)
	}
	purego.RegisterFunc(&h.paintCallThrough, record.CallThrough())

	if err := record.Enable(); err != nil {
		return fmt.Errorf("runtime: enable paint-traverse detour: %w", err)
	}
	h.rt.RecordDetourInstalled()
	h.paintRecord = record
	return nil
}

// chunkLoaderHandler implements the chunk-loader data flow: the first
// chunk load for a not-yet-known VM establishes the
// client realm (client-init dispatch) unless that VM is already the
// menu realm's own VM; every later client-realm load runs the
// loadbuffer event.
func (h *Hooks) chunkLoaderHandler(vm, namePtr, bytesPtr, bytesLen, modePtr uintptr) int32 {
	vmHandle := ffi.VM(vm)
	logger := h.rt.Logger

	if _, known := h.rt.Registry.Handle(realm.Client); !known {
		if menuEnv, ok := h.rt.sandboxEnv(realm.Menu); ok && menuEnv.VM() == vmHandle {
			return h.chunkCallThrough(vm, namePtr, bytesPtr, bytesLen, modePtr)
		}

		h.rt.Registry.SetClientVM(vm)
		env, _, err := h.rt.EnsureSandboxForRealm(vmHandle, realm.Client)
		if err != nil {
			logger.Error("runtime: construct client sandbox", zap.Error(err))
			return h.chunkCallThrough(vm, namePtr, bytesPtr, bytesLen, modePtr)
		}

		if err := h.chunkRecord.WithDisabled(func() error {
			dispatcher, err := h.rt.BuildDispatcher(realm.Client, env)
			if err != nil {
				return err
			}
			h.rt.DispatchInit(event.ClientInit, dispatcher)
			return nil
		}); err != nil {
			logger.Warn("runtime: client-init dispatch", zap.Error(err))
		}

		return h.chunkCallThrough(vm, namePtr, bytesPtr, bytesLen, modePtr)
	}

	if h.rt.Registry.IdentifyVM(vm) != realm.Client {
		return h.chunkCallThrough(vm, namePtr, bytesPtr, bytesLen, modePtr)
	}

	env, ok := h.rt.sandboxEnv(realm.Client)
	if !ok {
		return h.chunkCallThrough(vm, namePtr, bytesPtr, bytesLen, modePtr)
	}

	name := cString(namePtr)
	mode := cString(modePtr)
	body := append([]byte(nil), unsafe.Slice((*byte)(unsafe.Pointer(bytesPtr)), int(bytesLen))...)

	outcome, err := env.DispatchLoadBuffer(name, body, mode)
	if err != nil {
		logger.Warn("runtime: loadbuffer dispatch", zap.String("chunk", name), zap.Error(err))
		return h.chunkCallThrough(vm, namePtr, bytesPtr, bytesLen, modePtr)
	}

	if outcome.IsSkip() {
		return 0
	}
	if replacement, ok := outcome.Replacement(); ok {
		replacement = append(replacement, 0) // NUL-terminate for the C buffer contract
		return h.chunkCallThrough(vm, namePtr, uintptr(unsafe.Pointer(&replacement[0])), uintptr(len(replacement)-1), modePtr)
	}
	return h.chunkCallThrough(vm, namePtr, bytesPtr, bytesLen, modePtr)
}

// paintTraverseHandler drains at most one main-thread work item per
// paint tick, with the chunk-loader detour disabled around the drain so
// a queued closure's own chunk loads never recurse into the hook.
func (h *Hooks) paintTraverseHandler(panel uintptr, forceRepaint, allowForce int32) {
	vm := h.drainVM()
	if vm != 0 && h.chunkRecord != nil {
		if err := h.chunkRecord.WithDisabled(func() error {
			h.rt.Queue.DrainOne(vm)
			return nil
		}); err != nil {
			h.rt.Logger.Warn("runtime: main-thread queue drain", zap.Error(err))
		}
	}
	h.paintCallThrough(panel, forceRepaint, allowForce)
}

// drainVM picks the VM a drained main-thread closure executes against:
// the client realm's once it exists, else the menu realm's.
func (h *Hooks) drainVM() ffi.VM {
	if env, ok := h.rt.sandboxEnv(realm.Client); ok {
		return env.VM()
	}
	if env, ok := h.rt.sandboxEnv(realm.Menu); ok {
		return env.VM()
	}
	return 0
}

// StartMenuPoller spawns the background thread that sleeps 500ms
// between probes of probeMenuVM, and on the first
// successful probe constructs the menu sandbox, dispatches menu-init,
// then exits. probeMenuVM is supplied by the caller since resolving the
// menu realm's VM pointer is entirely host-specific (typically a fixed
// global slot located once via internal/scan).
func (h *Hooks) StartMenuPoller(probeMenuVM func() (ffi.VM, bool)) {
	go h.menuPollOnce.Do(func() {
		for {
			vm, ok := probeMenuVM()
			if !ok {
				time.Sleep(500 * time.Millisecond)
				continue
			}

			env, created, err := h.rt.EnsureSandboxForRealm(vm, realm.Menu)
			if err != nil {
				h.rt.Logger.Error("runtime: construct menu sandbox", zap.Error(err))
				return
			}
			if !created {
				return
			}

			dispatcher, err := h.rt.BuildDispatcher(realm.Menu, env)
			if err != nil {
				h.rt.Logger.Error("runtime: build menu dispatcher", zap.Error(err))
				return
			}
			h.rt.DispatchInit(event.MenuInit, dispatcher)
			return
		}
	})
}

// cString reads a NUL-terminated string starting at ptr.
func cString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	n := 0
	for {
		b := *(*byte)(unsafe.Pointer(ptr + uintptr(n)))
		if b == 0 {
			break
		}
		n++
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), n))
}
