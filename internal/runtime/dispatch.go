package runtime

import (
	"fmt"
	"path/filepath"
	goruntime "runtime"
	"unsafe"

	"github.com/autorun-labs/autorun/internal/event"
	"github.com/autorun-labs/autorun/internal/ffi"
	"github.com/autorun-labs/autorun/internal/hostapi"
	"github.com/autorun-labs/autorun/internal/realm"
	"github.com/autorun-labs/autorun/internal/sandbox"
	"github.com/autorun-labs/autorun/internal/workspace"
	"github.com/ebitengine/purego"
	"go.uber.org/zap"
)

// BuildDispatcher enumerates the current workspace's plugins and builds an
// event.Dispatcher over realm re, wiring each plugin's ordering and a
// handler that dispatches into env (or a native plugin.so/plugin.dll),
// per the plugin dispatch construction. Plugins that failed to
// load (workspace.PluginResult.Err != nil) are logged and skipped rather
// than aborting the whole pass, matching the workspace layer's own
// "oks/errors" discipline.
func (rt *Runtime) BuildDispatcher(re realm.Realm, env *sandbox.Env) (*event.Dispatcher, error) {
	ws, err := rt.Workspace()
	if err != nil {
		return nil, fmt.Errorf("runtime: build dispatcher: %w", err)
	}

	results, err := ws.GetPlugins()
	if err != nil {
		return nil, fmt.Errorf("runtime: build dispatcher: %w", err)
	}

	targets := make([]event.Target, 0, len(results))
	live := 0
	for i, res := range results {
		if res.Err != nil {
			rt.Logger.Warn("runtime: skip plugin", zap.String("dir", res.DirName), zap.Error(res.Err))
			continue
		}
		plugin := res.Plugin
		ordering, err := plugin.Ordering()
		if err != nil {
			rt.Logger.Warn("runtime: skip plugin", zap.String("dir", res.DirName), zap.Error(err))
			continue
		}

		targets = append(targets, event.Target{
			Ordering:  ordering,
			Discovery: i,
			Name:      plugin.Name(),
			Handle: func(kind event.Kind) error {
				return rt.dispatchOne(re, env, plugin, kind)
			},
		})
		live++
	}

	rt.SetPluginCount(live)
	return event.NewDispatcher(targets), nil
}

// dispatchOne runs one lifecycle event for one plugin, branching on the
// plugin's declared language, keeping both branches serial and
// one-at-a-time.
func (rt *Runtime) dispatchOne(re realm.Realm, env *sandbox.Env, plugin *workspace.Plugin, kind event.Kind) error {
	cfg, err := plugin.Config()
	if err != nil {
		return fmt.Errorf("runtime: dispatch %s to %s: %w", kind, plugin.Name(), err)
	}

	if cfg.Plugin.Language == workspace.LanguageNative {
		return rt.dispatchNative(plugin, kind)
	}

	switch kind {
	case event.MenuInit:
		if re != realm.Menu {
			return nil
		}
		return rt.runEntryThenShared(env, plugin, "menu/init.lua", plugin.ReadMenuInit)
	case event.ClientInit:
		if re != realm.Client {
			return nil
		}
		return rt.runEntryThenShared(env, plugin, "client/init.lua", plugin.ReadClientInit)
	default:
		// LoadBuffer is dispatched through Autorun.onLoadBuffer handlers
		// registered by plugin init chunks, not re-entered here.
		return nil
	}
}

// runEntryThenShared runs a realm-specific entry chunk (if present) and
// then shared/init.lua (if present), per : "executes
// menu/init.lua if present, then shared/init.lua if present."
func (rt *Runtime) runEntryThenShared(env *sandbox.Env, plugin *workspace.Plugin, entrySuffix string, readEntry func() ([]byte, bool, error)) error {
	body, ok, err := readEntry()
	if err != nil {
		return err
	}
	if ok {
		if err := rt.execPluginChunk(env, plugin, entrySuffix, body); err != nil {
			return fmt.Errorf("runtime: %s: %w", entrySuffix, err)
		}
	}

	sharedBody, ok, err := plugin.ReadSharedInit()
	if err != nil {
		return err
	}
	if ok {
		if err := rt.execPluginChunk(env, plugin, "shared/init.lua", sharedBody); err != nil {
			return fmt.Errorf("runtime: shared/init.lua: %w", err)
		}
	}
	return nil
}

// execPluginChunk runs body under env with the plugin context published,
// using a freshly cloned capability handle so the pushed userdata never
// aliases the workspace's own Plugin value.
func (rt *Runtime) execPluginChunk(env *sandbox.Env, plugin *workspace.Plugin, chunkSuffix string, body []byte) error {
	clone := plugin.TryClone()
	return env.ExecutePluginChunk(plugin.Name(), chunkSuffix, body, func(s *ffi.Shim, vm ffi.VM) {
		env.PushPluginHandle(clone)
	})
}

// dispatchNative loads plugin.so/plugin.dll (if not already loaded this
// process) and calls autorun_client_init/autorun_menu_init, the native
// plugin C ABI's lifecycle entry points. A missing entry point symbol is
// not an error: a native plugin need not implement both lifecycle hooks.
func (rt *Runtime) dispatchNative(plugin *workspace.Plugin, kind event.Kind) error {
	var symbol string
	switch kind {
	case event.MenuInit:
		symbol = "autorun_menu_init"
	case event.ClientInit:
		symbol = "autorun_client_init"
	default:
		return nil
	}

	libPath := nativeLibraryPath(plugin.Dir())
	handle, err := purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return fmt.Errorf("runtime: open native plugin %s: %w", plugin.Name(), err)
	}

	sym, err := purego.Dlsym(handle, symbol)
	if err != nil {
		// Optional entry point; not every native plugin implements both.
		return nil
	}

	var entry func(unsafe.Pointer)
	purego.RegisterFunc(&entry, sym)

	clone := plugin.TryClone()
	handlePtr := hostapi.RegisterPlugin(clone)
	defer hostapi.ReleasePlugin(handlePtr)

	entry(handlePtr)
	return nil
}

// nativeLibraryPath resolves a native plugin's shared library path,
// platform-suffixed per the workspace layout
// ("plugin.so | plugin.dll").
func nativeLibraryPath(pluginDir string) string {
	if goruntime.GOOS == "windows" {
		return filepath.Join(pluginDir, "plugin.dll")
	}
	return filepath.Join(pluginDir, "plugin.so")
}
