// Package hostapi implements the auxiliary C ABI the injected library
// exports for native plugins. It is
// the native-plugin counterpart to internal/sandbox's Lua-facing
// Autorun.* table: same capability surface (plugin-scoped read/write/
// mkdir/print rooted at the plugin's data directory), exposed instead as
// a flat opaque-handle C API cmd/autorun-core re-exports with cgo.
package hostapi

import (
	"errors"
	"os"
	"runtime/cgo"
	"unsafe"

	"github.com/autorun-labs/autorun/internal/workspace"
	"go.uber.org/zap"
)

// Error codes, per : "0 = ok, -1 = null handle, -2 = I/O error."
const (
	StatusOK        = 0
	StatusNullHandle = -1
	StatusIOError    = -2
)

// Broadcaster fans a log line out to every attached controller
// connection, implemented by internal/runtime.Runtime.
type Broadcaster interface {
	BroadcastPrint(text string)
}

// API is the process-wide host-auxiliary-API surface, holding the logger
// and optional broadcaster so cmd/autorun-core's cgo-exported functions
// can stay thin wrappers around it.
type API struct {
	logger      *zap.Logger
	broadcaster Broadcaster
}

// New constructs an API over logger, optionally fanning autorun_print
// calls out to broadcaster (nil disables fan-out, e.g. in tests).
func New(logger *zap.Logger, broadcaster Broadcaster) *API {
	return &API{logger: logger, broadcaster: broadcaster}
}

// RegisterPlugin mints an opaque handle for p, safe to pass across the
// cgo boundary as a C `void*` (runtime/cgo.Handle is the standard-library
// mechanism for exactly this: a uintptr-sized token that does not itself
// contain a Go pointer, satisfying cgo's pointer-passing rules). The
// handle is valid until ReleasePlugin is called for it — the native-plugin
// loader (internal/runtime's dispatchNative) releases it as soon as the
// lifecycle entry point it was passed to returns.
func RegisterPlugin(p *workspace.Plugin) unsafe.Pointer {
	h := cgo.NewHandle(p)
	return unsafe.Pointer(uintptr(h))
}

// ReleasePlugin frees a handle minted by RegisterPlugin.
func ReleasePlugin(handle unsafe.Pointer) {
	cgo.Handle(uintptr(handle)).Delete()
}

func resolve(handle unsafe.Pointer) (*workspace.Plugin, bool) {
	if handle == nil {
		return nil, false
	}
	defer func() { recover() }() // an unrecognized handle panics Value(); treat as null.
	v := cgo.Handle(uintptr(handle)).Value()
	p, ok := v.(*workspace.Plugin)
	return p, ok
}

// Print logs message the way a plugin's Autorun.print call does, and
// fans it out to any attached controller connections.
func (a *API) Print(message string) {
	if a.logger != nil {
		a.logger.Info(message, zap.String("source", "native"))
	}
	if a.broadcaster != nil {
		a.broadcaster.BroadcastPrint(message)
	}
}

// Write writes content to path, rooted at the plugin's data directory.
func (a *API) Write(handle unsafe.Pointer, path string, content []byte) int32 {
	p, ok := resolve(handle)
	if !ok {
		return StatusNullHandle
	}
	if err := p.WriteData(path, content); err != nil {
		a.logIOError("write", path, err)
		return StatusIOError
	}
	return StatusOK
}

// Read reads up to len(buf) bytes of path into buf, returning the byte
// count written, or a negative status on error.
func (a *API) Read(handle unsafe.Pointer, path string, buf []byte) int32 {
	p, ok := resolve(handle)
	if !ok {
		return StatusNullHandle
	}
	full, err := p.DataPath(path)
	if err != nil {
		a.logIOError("read", path, err)
		return StatusIOError
	}
	data, err := os.ReadFile(full)
	if err != nil {
		a.logIOError("read", path, err)
		return StatusIOError
	}
	n := copy(buf, data)
	return int32(n)
}

// ReadSize returns the byte size of path, or a negative status on error.
func (a *API) ReadSize(handle unsafe.Pointer, path string) int32 {
	p, ok := resolve(handle)
	if !ok {
		return StatusNullHandle
	}
	full, err := p.DataPath(path)
	if err != nil {
		a.logIOError("read_size", path, err)
		return StatusIOError
	}
	info, err := os.Stat(full)
	if err != nil {
		a.logIOError("read_size", path, err)
		return StatusIOError
	}
	return int32(info.Size())
}

// Mkdir creates path (and parents) under the plugin's data directory.
func (a *API) Mkdir(handle unsafe.Pointer, path string) int32 {
	p, ok := resolve(handle)
	if !ok {
		return StatusNullHandle
	}
	if _, err := p.MkdirData(path); err != nil {
		a.logIOError("mkdir", path, err)
		return StatusIOError
	}
	return StatusOK
}

func (a *API) logIOError(op, path string, err error) {
	if a.logger == nil {
		return
	}
	if errors.Is(err, os.ErrNotExist) {
		a.logger.Warn("hostapi: "+op+" failed", zap.String("path", path), zap.Error(err))
		return
	}
	a.logger.Error("hostapi: "+op+" failed", zap.String("path", path), zap.Error(err))
}
