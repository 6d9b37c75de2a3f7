// Command autorun-core is the injected shared library entry point, built
// with `go build -buildmode=c-shared -o autorun-core.so ./cmd/autorun-core`.
//
// Exporting symbols callable from host C code requires cgo's //export
// directive — the one place in this repository cgo is unavoidable, even
// though every call in the other direction (Go calling into the host's
// C ABI) goes through github.com/ebitengine/purego, kept cgo-free
// everywhere else.
package main

/*
#include <stdint.h>
*/
import "C"

import (
	"context"
	"os"
	goruntime "runtime"
	"unsafe"

	"github.com/autorun-labs/autorun/internal/applog"
	"github.com/autorun-labs/autorun/internal/config"
	"github.com/autorun-labs/autorun/internal/hostapi"
	"github.com/autorun-labs/autorun/internal/hostcat"
	"github.com/autorun-labs/autorun/internal/runtime"
	"go.uber.org/zap"
)

var (
	logger *zap.Logger
	rt     *runtime.Runtime
	api    *hostapi.API
	hooks  *runtime.Hooks
)

// autorun_init is the constructor every supported host convention calls
// once the library is mapped: a DllMain/ld.so constructor glue layer
// outside this package's scope invokes it, or a host-specific bootstrap
// detour does. It resolves the scripting runtime shared object and unsets
// LD_PRELOAD so it does not leak into any child process the host spawns.
// It does not check which host binary loaded the library.
//
//export autorun_init
func autorun_init(scriptSOPath *C.char) C.int32_t {
	logger = applog.New()

	var err error
	rt, err = runtime.New(logger)
	if err != nil {
		logger.Error("autorun-core: construct runtime", zap.Error(err))
		return -1
	}

	if err := rt.Open(C.GoString(scriptSOPath)); err != nil {
		logger.Error("autorun-core: open scripting runtime", zap.Error(err))
		return -1
	}

	api = hostapi.New(logger, rt)

	rt.SetWorkspacePath(config.DefaultRoot())

	// Preloaded once; unset so re-exec'd or spawned children (the host
	// itself may fork worker processes) don't also get the library
	// injected into them.
	_ = os.Unsetenv("LD_PRELOAD")

	go func() {
		if err := rt.StartIPC(context.Background(), "unix", config.IPCSocketPath()); err != nil {
			logger.Warn("autorun-core: ipc server stopped", zap.Error(err))
		}
	}()

	return 0
}

//export autorun_version
func autorun_version() *C.char {
	return C.CString("autorun-core/1.0")
}

//export autorun_print
func autorun_print(message *C.char) {
	if api == nil {
		return
	}
	api.Print(C.GoString(message))
}

//export autorun_write
func autorun_write(plugin unsafe.Pointer, path *C.char, content *C.char, contentLen C.int32_t) C.int32_t {
	if api == nil {
		return -1
	}
	buf := C.GoBytes(unsafe.Pointer(content), contentLen)
	return C.int32_t(api.Write(plugin, C.GoString(path), buf))
}

//export autorun_read
func autorun_read(plugin unsafe.Pointer, path *C.char, buf unsafe.Pointer, bufSize C.int32_t) C.int32_t {
	if api == nil {
		return -1
	}
	dst := unsafe.Slice((*byte)(buf), int(bufSize))
	n := api.Read(plugin, C.GoString(path), dst)
	return C.int32_t(n)
}

//export autorun_read_size
func autorun_read_size(plugin unsafe.Pointer, path *C.char) C.int32_t {
	if api == nil {
		return -1
	}
	return C.int32_t(api.ReadSize(plugin, C.GoString(path)))
}

//export autorun_mkdir
func autorun_mkdir(plugin unsafe.Pointer, path *C.char) C.int32_t {
	if api == nil {
		return -1
	}
	return C.int32_t(api.Mkdir(plugin, C.GoString(path)))
}

func main() {}
