// Package hostcat resolves and caches native interface pointers exposed by
// the host process: the script shared library, the engine
// client, the panel system, and the logger. Each is vended by the host's
// factory symbol, CreateInterface, the same dlopen/dlsym convention many
// closed-source native hosts use for versioned ABI interfaces.
package hostcat

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// Key identifies one (shared object, interface name) pair.
type Key struct {
	SharedObject string
	Interface    string
}

// GetInterfaceError enumerates why a Catalog.Resolve call failed, mirroring
// the GetInterfaceError::{Libloading, Errored, Null} taxonomy.
type GetInterfaceError struct {
	Key    Key
	Reason Reason
	Code   int32
	Cause  error
}

// Reason tags which branch of GetInterfaceError fired.
type Reason int

const (
	// ReasonLibloading: the shared object itself could not be opened or the
	// factory symbol could not be resolved.
	ReasonLibloading Reason = iota
	// ReasonErrored: the factory returned a non-zero status code.
	ReasonErrored
	// ReasonNull: the factory reported success but returned a null pointer.
	ReasonNull
)

func (e *GetInterfaceError) Error() string {
	switch e.Reason {
	case ReasonLibloading:
		return fmt.Sprintf("hostcat: %s/%s: library load failed: %v", e.Key.SharedObject, e.Key.Interface, e.Cause)
	case ReasonErrored:
		return fmt.Sprintf("hostcat: %s/%s: factory returned code %d", e.Key.SharedObject, e.Key.Interface, e.Code)
	default:
		return fmt.Sprintf("hostcat: %s/%s: factory returned null interface", e.Key.SharedObject, e.Key.Interface)
	}
}

func (e *GetInterfaceError) Unwrap() error { return e.Cause }

// factoryFn mirrors the host's `void *CreateInterface(const char *name, int *code)`.
type factoryFn func(namePtr uintptr, codePtr uintptr) uintptr

// Catalog is a lazily-populated registry of resolved interface pointers.
// Library handles are intentionally leaked (never dlclose'd) so resolved
// interface pointers outlive their loader for the remainder of the host
// process lifetime.
type Catalog struct {
	handles    map[string]uintptr
	factories  map[string]factoryFn
	interfaces map[Key]uintptr
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		handles:    make(map[string]uintptr),
		factories:  make(map[string]factoryFn),
		interfaces: make(map[Key]uintptr),
	}
}

// Resolve returns the interface pointer for key, loading and caching the
// shared object and its factory on first use.
func (c *Catalog) Resolve(key Key) (uintptr, error) {
	if ptr, ok := c.interfaces[key]; ok {
		return ptr, nil
	}

	factory, ok := c.factories[key.SharedObject]
	if !ok {
		handle, ok := c.handles[key.SharedObject]
		if !ok {
			h, err := purego.Dlopen(key.SharedObject, purego.RTLD_NOW|purego.RTLD_GLOBAL)
			if err != nil {
				return 0, &GetInterfaceError{Key: key, Reason: ReasonLibloading, Cause: err}
			}
			handle = h
			c.handles[key.SharedObject] = handle
		}

		sym, err := purego.Dlsym(handle, "CreateInterface")
		if err != nil {
			return 0, &GetInterfaceError{Key: key, Reason: ReasonLibloading, Cause: err}
		}
		purego.RegisterFunc(&factory, sym)
		c.factories[key.SharedObject] = factory
	}

	namePtr, keep := cstrKeep(key.Interface)
	var code int32
	ptr := factory(namePtr, uintptrOf(&code))
	_ = keep

	if code != 0 {
		return 0, &GetInterfaceError{Key: key, Reason: ReasonErrored, Code: code}
	}
	if ptr == 0 {
		return 0, &GetInterfaceError{Key: key, Reason: ReasonNull}
	}

	c.interfaces[key] = ptr
	return ptr, nil
}
