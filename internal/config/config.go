// Package config resolves the default on-disk locations the core falls
// back to before the controller ever sends a SetWorkspacePath message.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultRoot returns the default workspace root. Respects XDG_CONFIG_HOME
// on Unix and APPDATA on Windows, the same resolution order a desktop app
// uses for its config directory.
func DefaultRoot() string {
	var base string

	if runtime.GOOS == "windows" {
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	} else {
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, _ := os.UserHomeDir()
			base = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(base, "autorun")
}

// Host interface catalog keys, the well-known
// (shared-object, interface-name) pairs the panel system and engine
// client are vended under. Host-version-specific; wrong values degrade
// to a logged GetInterfaceError rather than a crash.
const (
	PanelSharedObject  = "vgui2.so"
	PanelInterfaceName = "VGUI_Panel009"

	EngineSharedObject  = "engine.so"
	EngineInterfaceName = "VEngineClient015"
)

// IPCSocketPath returns the well-known local-socket name the cross-process
// control link listens on. Unix gets a path under the runtime
// directory (or /tmp); Windows gets a named-pipe path.
func IPCSocketPath() string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\autorun_ipc`
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "autorun_ipc")
	}
	return "/tmp/autorun_ipc"
}
