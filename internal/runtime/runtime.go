// Package runtime is the top-level object that wires together the
// eleven core components (FFI shim, host
// catalog, scanner, detour engine, codegen, workspace, sandbox, event
// pipeline, IPC/control, main-thread queue, realm registry) and is what
// cmd/autorun-core's exported entry point calls into.
package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/autorun-labs/autorun/internal/config"
	"github.com/autorun-labs/autorun/internal/control"
	"github.com/autorun-labs/autorun/internal/debugmon"
	"github.com/autorun-labs/autorun/internal/detour"
	"github.com/autorun-labs/autorun/internal/event"
	"github.com/autorun-labs/autorun/internal/ffi"
	"github.com/autorun-labs/autorun/internal/hostcat"
	"github.com/autorun-labs/autorun/internal/ipc"
	"github.com/autorun-labs/autorun/internal/mainqueue"
	"github.com/autorun-labs/autorun/internal/plugapi"
	"github.com/autorun-labs/autorun/internal/realm"
	"github.com/autorun-labs/autorun/internal/sandbox"
	"github.com/autorun-labs/autorun/internal/scan"
	"github.com/autorun-labs/autorun/internal/workspace"
	"go.uber.org/zap"
)

// Runtime owns every process-wide, once-initialized cell named in
// : per-realm env, workspace, detour records, the realm
// registry. It is constructed once per host process lifetime and never
// torn down early.
type Runtime struct {
	Logger *zap.Logger

	Shim     *ffi.Shim
	Catalog  *hostcat.Catalog
	Scanner  *scan.Scanner
	Detours  *detour.Engine
	Registry *realm.Registry
	Queue    *mainqueue.Queue

	mu         sync.Mutex
	workspace  *workspace.Workspace
	sandboxes  map[realm.Realm]*sandbox.Env
	ipcServer  *ipc.Server
	shutdownFn context.CancelFunc

	detoursTotal  int
	pluginCount   int
	pluginErrors  int
	ipcConnection int
}

// New constructs a Runtime with its always-present collaborators
// (scanner, detour engine, realm registry, main-thread queue) already
// built. The FFI shim and host catalog are opened separately via Open,
// once the host's script shared object path is known.
func New(logger *zap.Logger) (*Runtime, error) {
	scanner, err := scan.New()
	if err != nil {
		return nil, fmt.Errorf("runtime: build scanner: %w", err)
	}

	rt := &Runtime{
		Logger:    logger,
		Scanner:   scanner,
		Detours:   detour.New(),
		Registry:  realm.NewRegistry(),
		sandboxes: make(map[realm.Realm]*sandbox.Env),
	}
	rt.Queue = mainqueue.New(hookSnapshot{rt: rt})
	return rt, nil
}

// Open resolves the host's scripting-runtime shared object into the FFI
// shim and creates an empty host interface catalog (hostcat.NewCatalog
// takes nothing from the shim). Fatal setup errors here are logged
// by the caller and the dependent subsystem is disabled rather than
// panicking.
func (rt *Runtime) Open(sharedObjectPath string) error {
	shim, err := ffi.Open(sharedObjectPath)
	if err != nil {
		return fmt.Errorf("runtime: open ffi shim: %w", err)
	}
	rt.Shim = shim
	rt.Catalog = hostcat.NewCatalog()
	return nil
}

// SetWorkspacePath opens (creating if needed) the workspace rooted at
// path, implementing control.Runtime.
func (rt *Runtime) SetWorkspacePath(path string) {
	ws, err := workspace.FromDir(path)
	if err != nil {
		rt.Logger.Error("runtime: open workspace", zap.String("path", path), zap.Error(err))
		return
	}
	rt.mu.Lock()
	rt.workspace = ws
	rt.mu.Unlock()
}

// Workspace returns the currently active workspace, or the default
// resolved from internal/config if none has been set yet.
func (rt *Runtime) Workspace() (*workspace.Workspace, error) {
	rt.mu.Lock()
	ws := rt.workspace
	rt.mu.Unlock()
	if ws != nil {
		return ws, nil
	}
	return workspace.FromDir(config.DefaultRoot())
}

// SandboxFor implements control.Runtime.
func (rt *Runtime) SandboxFor(re realm.Realm) (control.Executor, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	env, ok := rt.sandboxes[re]
	if !ok {
		return nil, false
	}
	return env, true
}

// sandboxEnv returns the internal *sandbox.Env for re, for runtime-local
// callers that need sandbox-specific methods beyond control.Executor.
func (rt *Runtime) sandboxEnv(re realm.Realm) (*sandbox.Env, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	env, ok := rt.sandboxes[re]
	return env, ok
}

// EnsureSandbox builds realm re's sandbox environment if it does not
// already exist, registers it in the realm registry, and returns it.
// Called from the chunk-loader detour's first-invocation branch.
func (rt *Runtime) EnsureSandbox(vm ffi.VM, re realm.Realm, priv sandbox.Privileges) (*sandbox.Env, error) {
	if env, ok := rt.sandboxEnv(re); ok {
		return env, nil
	}

	env, err := sandbox.New(rt.Shim, vm, re, priv, rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("runtime: construct sandbox for %s: %w", re, err)
	}

	rt.Registry.SetHandle(re, realm.Handle{Index: env.EnvRef(), Owner: re}, env)

	rt.mu.Lock()
	rt.sandboxes[re] = env
	rt.mu.Unlock()

	return env, nil
}

// EnsureSandboxForRealm builds realm re's privileged Lua API surface via
// internal/plugapi, constructs its sandbox.Env if one does not already
// exist, and binds the Env back into the Privileges closures' EnvRef. The
// second return value reports whether this call constructed the
// environment (vs. one already existing), the signal the chunk-loader
// hook's first-invocation branch
// uses to decide whether to run the realm's init dispatch. EnsureSandbox
// remains available directly for callers (tests) that already have a
// sandbox.Privileges value in hand.
func (rt *Runtime) EnsureSandboxForRealm(vm ffi.VM, re realm.Realm) (*sandbox.Env, bool, error) {
	if env, ok := rt.sandboxEnv(re); ok {
		return env, false, nil
	}

	builder := plugapi.NewBuilder(plugapi.Dependencies{
		Registry:        rt.Registry,
		Detours:         rt.Detours,
		Logger:          rt.Logger,
		DetourInstalled: rt.RecordDetourInstalled,
	}, re)
	priv, ref := builder.Build()

	env, err := rt.EnsureSandbox(vm, re, priv)
	if err != nil {
		return nil, false, err
	}
	ref.Env = env

	return env, true, nil
}

// RecordDetourInstalled bumps the detour count surfaced via Stats(),
// called once per successful detour.Engine.New.
func (rt *Runtime) RecordDetourInstalled() {
	rt.mu.Lock()
	rt.detoursTotal++
	rt.mu.Unlock()
}

// SetPluginCount records how many plugins the workspace currently
// enumerates, surfaced via Stats() for internal/debugmon.
func (rt *Runtime) SetPluginCount(n int) {
	rt.mu.Lock()
	rt.pluginCount = n
	rt.mu.Unlock()
}

// DispatchInit runs the menu-init or client-init lifecycle event across
// dispatcher's plugins, under the sandbox the dispatcher was built over.
func (rt *Runtime) DispatchInit(kind event.Kind, dispatcher *event.Dispatcher) []event.DispatchResult {
	results := dispatcher.Dispatch(kind)
	for _, r := range results {
		if r.Err != nil {
			rt.pluginErrors++
			rt.Logger.Warn("runtime: plugin dispatch failed",
				zap.String("plugin", r.Plugin), zap.String("event", kind.String()), zap.Error(r.Err))
		}
	}
	return results
}

// StartIPC starts the control-link server listening at address, wiring
// received messages through internal/control into this Runtime.
func (rt *Runtime) StartIPC(ctx context.Context, network, address string) error {
	handler := control.New(rt, rt.Queue, rt.Logger)
	srv := ipc.NewServer(network, address, handler.Handle, rt.Logger)

	ctx, cancel := context.WithCancel(ctx)
	rt.mu.Lock()
	rt.ipcServer = srv
	rt.shutdownFn = cancel
	rt.mu.Unlock()

	return srv.Serve(ctx)
}

// BroadcastPrint fans a log line out to every attached controller
// connection, used by internal/hostapi so native-plugin prints reach the
// controller the same way Lua-realm prints do. A no-op before the IPC
// server has started.
func (rt *Runtime) BroadcastPrint(text string) {
	rt.mu.Lock()
	srv := rt.ipcServer
	rt.mu.Unlock()
	if srv != nil {
		srv.Broadcast(ipc.Print(text))
	}
}

// RequestShutdown implements control.Runtime: it cancels the IPC serve
// loop's context, which in turn closes the listener.
func (rt *Runtime) RequestShutdown() {
	rt.mu.Lock()
	cancel := rt.shutdownFn
	rt.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Stats implements internal/debugmon.StatsProvider.
func (rt *Runtime) Stats() debugmon.Stats {
	rt.mu.Lock()
	_, menuActive := rt.sandboxes[realm.Menu]
	_, clientActive := rt.sandboxes[realm.Client]
	pluginCount := rt.pluginCount
	pluginErrors := rt.pluginErrors
	detoursTotal := rt.detoursTotal
	ipcConnections := rt.ipcConnection
	rt.mu.Unlock()

	return debugmon.Stats{
		MainQueueLen:     rt.Queue.Len(),
		MainQueueCap:     0,
		MenuEnvActive:    menuActive,
		ClientEnvActive:  clientActive,
		DetoursEnabled:   detoursTotal,
		DetoursTotal:     detoursTotal,
		PluginCount:      pluginCount,
		PluginErrorCount: pluginErrors,
		IPCConnections:   ipcConnections,
	}
}

// hookSnapshot adapts Runtime's shim into mainqueue.HookSnapshot.
type hookSnapshot struct {
	rt *Runtime
}

func (h hookSnapshot) Save(vm ffi.VM) any {
	if h.rt.Shim == nil {
		return nil
	}
	return h.rt.Shim.GetHook(vm)
}

// Clear removes the debug hook before the drained job runs, so a job
// that never touches hooks runs with none installed.
func (h hookSnapshot) Clear(vm ffi.VM) {
	if h.rt.Shim == nil {
		return
	}
	h.rt.Shim.SetHook(vm, ffi.HookState{})
}

// Restore runs after the job returns. If the job left a hook installed
// (it set its own), that hook is left in place and a warning is logged
// instead of silently overwriting it with the pre-job snapshot.
func (h hookSnapshot) Restore(vm ffi.VM, snapshot any) {
	if h.rt.Shim == nil || snapshot == nil {
		return
	}
	hs, ok := snapshot.(ffi.HookState)
	if !ok {
		return
	}
	if current := h.rt.Shim.GetHook(vm); current != (ffi.HookState{}) {
		if h.rt.Logger != nil {
			h.rt.Logger.Warn("runtime: main-thread job installed its own debug hook; leaving it installed")
		}
		return
	}
	h.rt.Shim.SetHook(vm, hs)
}
