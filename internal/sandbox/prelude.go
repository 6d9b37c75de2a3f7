package sandbox

import (
	"embed"
	"fmt"

	"github.com/autorun-labs/autorun/internal/ffi"
)

// preludeScripts embeds the four bundled chunks, layering pure-Lua
// composite APIs (include/require, the event bus) on top of the host
// primitives bound into Autorun.
//
//go:embed prelude/builtins.lua prelude/include.lua prelude/require.lua prelude/event.lua
var preludeScripts embed.FS

var preludeOrder = []string{
	"prelude/builtins.lua",
	"prelude/include.lua",
	"prelude/require.lua",
	"prelude/event.lua",
}

// runPrelude executes the bundled prelude chunks under the environment's
// table E, named "@stdlib".
func (e *Env) runPrelude() error {
	for _, name := range preludeOrder {
		body, err := preludeScripts.ReadFile(name)
		if err != nil {
			return fmt.Errorf("sandbox: read embedded prelude %s: %w", name, err)
		}
		if err := e.Execute("@stdlib", body); err != nil {
			return fmt.Errorf("sandbox: execute prelude %s: %w", name, err)
		}
	}
	return nil
}

// Execute is the chunk execution primitive: it compiles bytes as text
// only (rejecting precompiled bytecode), sets the loaded chunk's
// function environment to E, then pcalls it with zero args/results.
func (e *Env) Execute(name string, body []byte) error {
	s, vm := e.shim, e.vm

	if err := s.LoadBufferX(vm, body, name, ffi.ModeText); err != nil {
		return err
	}

	e.pushEnvTable()
	if err := s.SetFenv(vm, -2); err != nil {
		s.Pop(vm, 1)
		return err
	}

	return s.PCall(vm, 0, 0, 0)
}

// ExecutePluginChunk is Execute, but first publishes the plugin context
// into Autorun.PLUGIN, so
// privileged APIs can discover the calling plugin via ActivePlugin.
// publish is supplied by the runtime layer (it pushes a fresh heavy
// userdata wrapping a cloned plugin capability onto the stack).
func (e *Env) ExecutePluginChunk(pluginName, chunkSuffix string, body []byte, publish func(s *ffi.Shim, vm ffi.VM)) error {
	s, vm := e.shim, e.vm

	e.pushEnvTable()
	s.GetField(vm, -1, "Autorun")
	publish(s, vm)
	s.SetField(vm, -2, "PLUGIN")
	s.Pop(vm, 2) // Autorun, E

	name := fmt.Sprintf("@%s/%s", pluginName, chunkSuffix)
	return e.Execute(name, body)
}
