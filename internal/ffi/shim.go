// Package ffi is the scripting-runtime FFI shim: a strongly
// typed façade over the host's embedded LuaJIT C API, discovered at
// runtime by symbol lookup in the host's script shared library.
//
// The binding substrate is github.com/ebitengine/purego, which resolves
// the shared object and each entry point without cgo, the same
// dlopen/dlsym pattern internal/hostcat uses for its own CreateInterface
// factory lookup (internal/hostcat opens its shared objects itself and
// does not use this Shim).
package ffi

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// VM is an opaque handle wrapping the host's lua_State*. Go code never
// dereferences it; every operation goes through a Shim method, mirroring
// the "opaque VM state pointer" contract.
type VM uintptr

// Lua 5.1/LuaJIT well-known pseudo-indices and the lua_call "all results"
// sentinel, exported so callers outside this package (internal/sandbox,
// internal/plugapi) don't each redeclare them.
const (
	RegistryIndex = -10000 // LUA_REGISTRYINDEX
	GlobalsIndex  = -10002 // LUA_GLOBALSINDEX
	MultRet       = -1     // LUA_MULTRET
)

// Type is the Lua type discrimination exposed by lua_type.
type Type int

const (
	TypeNone Type = iota - 1
	TypeNil
	TypeBoolean
	TypeLightUserdata
	TypeNumber
	TypeString
	TypeTable
	TypeFunction
	TypeUserdata
	TypeThread
)

// Shim binds the host's Lua C API and exposes typed operations over it.
// All methods assume they are called on the host's main thread: all
// scripting-runtime calls happen there.
type Shim struct {
	handle uintptr

	gettop   func(VM) int32
	settop   func(VM, int32)
	pushnil  func(VM)
	pushbool func(VM, int32)
	pushint  func(VM, int64)
	pushnum  func(VM, float64)
	pushlstr func(VM, uintptr, uintptr)
	pushlud  func(VM, uintptr)
	pushcclo func(VM, uintptr, int32)
	newud    func(VM, uintptr) uintptr
	pushval  func(VM, int32)
	insert   func(VM, int32)
	remove   func(VM, int32)
	xmove    func(VM, VM, int32)

	createtable func(VM, int32, int32)
	gettable    func(VM, int32)
	settable    func(VM, int32)
	getfield    func(VM, int32, uintptr)
	setfield    func(VM, int32, uintptr)
	rawgeti     func(VM, int32, int32)
	rawseti     func(VM, int32, int32)
	setmeta     func(VM, int32) int32

	call     func(VM, int32, int32)
	pcall    func(VM, int32, int32, int32) int32
	loadbufx func(VM, uintptr, uintptr, uintptr, uintptr) int32

	ref   func(VM, int32) int32
	unref func(VM, int32, int32)

	getfenv func(VM, int32) int32
	setfenv func(VM, int32) int32

	typeid   func(VM, int32) int32
	rawequal func(VM, int32, int32) int32

	tolstring func(VM, int32, uintptr) uintptr
	toboolean func(VM, int32) int32
	tonumber  func(VM, int32) float64
	tointeger func(VM, int32) int64
	touserdat func(VM, int32) uintptr
	tocfunc   func(VM, int32) uintptr

	errorFn func(VM)

	getstack func(VM, int32, uintptr) int32
	getinfo  func(VM, uintptr, uintptr) int32
	gethook  func(VM) uintptr
	sethook  func(VM, uintptr, int32, int32)
	hookmask func(VM) int32
	hookcnt  func(VM) int32
}

// Open resolves the given shared object and binds every symbol the shim
// needs. Symbol-lookup failure is fatal setup error per : the
// caller should treat a non-nil error as unrecoverable and disable the
// dependent subsystem rather than continue with a half-bound shim.
func Open(sharedObjectPath string) (*Shim, error) {
	handle, err := purego.Dlopen(sharedObjectPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("ffi: dlopen %s: %w", sharedObjectPath, err)
	}

	s := &Shim{handle: handle}
	binds := []struct {
		name string
		fptr interface{}
	}{
		{"lua_gettop", &s.gettop},
		{"lua_settop", &s.settop},
		{"lua_pushnil", &s.pushnil},
		{"lua_pushboolean", &s.pushbool},
		{"lua_pushinteger", &s.pushint},
		{"lua_pushnumber", &s.pushnum},
		{"lua_pushlstring", &s.pushlstr},
		{"lua_pushlightuserdata", &s.pushlud},
		{"lua_pushcclosure", &s.pushcclo},
		{"lua_newuserdata", &s.newud},
		{"lua_pushvalue", &s.pushval},
		{"lua_insert", &s.insert},
		{"lua_remove", &s.remove},
		{"lua_xmove", &s.xmove},
		{"lua_createtable", &s.createtable},
		{"lua_gettable", &s.gettable},
		{"lua_settable", &s.settable},
		{"lua_getfield", &s.getfield},
		{"lua_setfield", &s.setfield},
		{"lua_rawgeti", &s.rawgeti},
		{"lua_rawseti", &s.rawseti},
		{"lua_setmetatable", &s.setmeta},
		{"lua_call", &s.call},
		{"lua_pcall", &s.pcall},
		{"luaL_loadbufferx", &s.loadbufx},
		{"luaL_ref", &s.ref},
		{"luaL_unref", &s.unref},
		{"lua_getfenv", &s.getfenv},
		{"lua_setfenv", &s.setfenv},
		{"lua_type", &s.typeid},
		{"lua_rawequal", &s.rawequal},
		{"lua_tolstring", &s.tolstring},
		{"lua_toboolean", &s.toboolean},
		{"lua_tonumber", &s.tonumber},
		{"lua_tointeger", &s.tointeger},
		{"lua_touserdata", &s.touserdat},
		{"lua_tocfunction", &s.tocfunc},
		{"lua_error", &s.errorFn},
		{"lua_getstack", &s.getstack},
		{"lua_getinfo", &s.getinfo},
		{"lua_gethook", &s.gethook},
		{"lua_sethook", &s.sethook},
		{"lua_gethookmask", &s.hookmask},
		{"lua_gethookcount", &s.hookcnt},
	}

	for _, b := range binds {
		sym, lookupErr := purego.Dlsym(handle, b.name)
		if lookupErr != nil {
			return nil, fmt.Errorf("ffi: resolve symbol %s: %w", b.name, lookupErr)
		}
		purego.RegisterFunc(b.fptr, sym)
	}

	return s, nil
}

// Handle returns the underlying dlopen handle of the scripting runtime's
// shared object.
func (s *Shim) Handle() uintptr { return s.handle }
