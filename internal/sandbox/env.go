// Package sandbox builds and executes the per-realm sandbox environment:
// a table E with _G bound to the host's globals and Autorun holding the
// privileged surface, plus the caller-origin gate that keeps privileged
// functions from being invoked outside a sandbox call frame.
package sandbox

import (
	"fmt"

	"github.com/autorun-labs/autorun/internal/ffi"
	"github.com/autorun-labs/autorun/internal/realm"
	"go.uber.org/zap"
)

// Version is published as Autorun.VERSION.
const Version = "1.0.0"

// Lua 5.1/LuaJIT well-known pseudo-indices.
const (
	registryIdx = -10000 // LUA_REGISTRYINDEX
	globalsIdx  = -10002 // LUA_GLOBALSINDEX
)

// Env is one realm's constructed sandbox environment: the registry
// reference pinning table E. The plugin currently published into
// Autorun.PLUGIN lives in E itself and is read back via ActivePlugin.
type Env struct {
	shim   *ffi.Shim
	vm     ffi.VM
	realm  realm.Realm
	envRef int // registry key for E

	logger *zap.Logger
}

// Privileges is the set of Go implementations backing Autorun's
// privileged functions, supplied by the runtime layer that owns
// workspace/detour/IPC access. Each corresponds to one entry in the
// Autorun table's construction list.
type Privileges struct {
	Print                func(s *ffi.Shim, vm ffi.VM) ([]any, error)
	Read                 func(s *ffi.Shim, vm ffi.VM) ([]any, error)
	Write                func(s *ffi.Shim, vm ffi.VM) ([]any, error)
	WriteAsync           func(s *ffi.Shim, vm ffi.VM) ([]any, error)
	Mkdir                func(s *ffi.Shim, vm ffi.VM) ([]any, error)
	Exists               func(s *ffi.Shim, vm ffi.VM) ([]any, error)
	Load                 func(s *ffi.Shim, vm ffi.VM) ([]any, error)
	Append               func(s *ffi.Shim, vm ffi.VM) ([]any, error)
	Trigger              func(s *ffi.Shim, vm ffi.VM) ([]any, error)
	IsFunctionAuthorized func(s *ffi.Shim, vm ffi.VM) ([]any, error)
	Detour               func(s *ffi.Shim, vm ffi.VM) ([]any, error)
	DetourEnable         func(s *ffi.Shim, vm ffi.VM) ([]any, error)
	DetourDisable        func(s *ffi.Shim, vm ffi.VM) ([]any, error)
}

// New constructs the realm's sandbox environment, per the
// three-step construction: build Autorun, wrap E in the registry, then
// execute the bundled prelude chunks.
//
// New assumes it runs on the first chunk-load detour for the realm, with
// the chunk-loader detour already disabled by the caller.
func New(shim *ffi.Shim, vm ffi.VM, re realm.Realm, priv Privileges, logger *zap.Logger) (*Env, error) {
	e := &Env{shim: shim, vm: vm, realm: re, logger: logger}

	shim.CreateTable(vm, 0, 2) // E

	shim.PushValue(vm, globalsIdx)
	shim.SetField(vm, -2, "_G")

	e.buildAutorunTable(priv)
	shim.SetField(vm, -2, "Autorun")

	// E is now on top of the stack; pin it in the registry.
	e.envRef = shim.Reference(vm, registryIdx)

	if err := e.runPrelude(); err != nil {
		return nil, fmt.Errorf("sandbox: run prelude: %w", err)
	}

	return e, nil
}

// buildAutorunTable pushes a new Autorun table (with priv's functions and
// VERSION bound in) on top of the stack, leaving it there for the caller
// to SetField into E.
func (e *Env) buildAutorunTable(priv Privileges) {
	s, vm := e.shim, e.vm

	s.CreateTable(vm, 0, 14)

	bind := func(name string, fn func(*ffi.Shim, ffi.VM) ([]any, error)) {
		if fn == nil {
			return
		}
		s.PushCFunction(vm, uintptr(s.WrapHostFunc(fn)))
		s.SetField(vm, -2, name)
	}

	bind("print", priv.Print)
	bind("read", priv.Read)
	bind("write", priv.Write)
	bind("writeAsync", priv.WriteAsync)
	bind("mkdir", priv.Mkdir)
	bind("exists", priv.Exists)
	bind("load", priv.Load)
	bind("append", priv.Append)
	bind("trigger", priv.Trigger)
	bind("isFunctionAuthorized", priv.IsFunctionAuthorized)
	bind("detour", priv.Detour)
	bind("detourEnable", priv.DetourEnable)
	bind("detourDisable", priv.DetourDisable)

	s.PushString(vm, Version)
	s.SetField(vm, -2, "VERSION")
}

// EnvRef returns the registry key pinning this realm's environment table,
// the "environment handle" of the glossary.
func (e *Env) EnvRef() int { return e.envRef }

// Realm returns the realm this environment belongs to.
func (e *Env) Realm() realm.Realm { return e.realm }

// Shim returns the FFI shim this environment was built over, so a
// privileged-function implementation can issue further stack operations
// without the runtime layer threading it through separately.
func (e *Env) Shim() *ffi.Shim { return e.shim }

// VM returns the realm's VM handle.
func (e *Env) VM() ffi.VM { return e.vm }

// PushAutorun pushes this environment's Autorun table on top of the
// stack, popping E itself back off first.
func (e *Env) PushAutorun() {
	e.pushEnvTable()
	e.shim.GetField(e.vm, -1, "Autorun")
	e.shim.Remove(e.vm, -2)
}

// pushEnvTable pushes E on top of the stack.
func (e *Env) pushEnvTable() {
	e.shim.RawGetI(e.vm, registryIdx, e.envRef)
}
