package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writePlugin(t *testing.T, pluginsDir, name, manifest string, withClient bool) {
	t.Helper()
	dir := filepath.Join(pluginsDir, name)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "client"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.toml"), []byte(manifest), 0o644))
	if withClient {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "client", "init.lua"), []byte("-- ok"), 0o644))
	}
}

func TestFromDirCreatesChildrenAndDefaultSettings(t *testing.T) {
	root := t.TempDir()
	ws, err := FromDir(root)
	require.NoError(t, err)

	require.DirExists(t, ws.PluginsDir())
	require.DirExists(t, ws.LogsDir())
	require.FileExists(t, filepath.Join(root, "settings.toml"))

	settings, err := ws.Settings()
	require.NoError(t, err)
	require.True(t, settings.Autorun.CheckVersion)
}

func TestGetPluginsOksAndErrors(t *testing.T) {
	root := t.TempDir()
	ws, err := FromDir(root)
	require.NoError(t, err)

	writePlugin(t, ws.PluginsDir(), "good", `[plugin]
name = "good"
author = "me"
version = "1.0"
description = "d"
language = "lua"
ordering = 5
`, true)

	// Missing plugin.toml entirely -> construction error, not a panic.
	require.NoError(t, os.MkdirAll(filepath.Join(ws.PluginsDir(), "broken", "src"), 0o755))

	results, err := ws.GetPlugins()
	require.NoError(t, err)
	require.Len(t, results, 2)

	var gotGood, gotBroken bool
	for _, r := range results {
		switch r.DirName {
		case "good":
			gotGood = true
			require.NoError(t, r.Err)
			require.NotNil(t, r.Plugin)
			ordering, err := r.Plugin.Ordering()
			require.NoError(t, err)
			require.Equal(t, 5, ordering)
		case "broken":
			gotBroken = true
			require.Error(t, r.Err)
		}
	}
	require.True(t, gotGood)
	require.True(t, gotBroken)
}

func TestPluginDefaultOrdering(t *testing.T) {
	root := t.TempDir()
	ws, err := FromDir(root)
	require.NoError(t, err)

	writePlugin(t, ws.PluginsDir(), "noorder", `[plugin]
name = "noorder"
author = "me"
version = "1.0"
description = "d"
language = "lua"
`, true)

	results, err := ws.GetPlugins()
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	ordering, err := results[0].Plugin.Ordering()
	require.NoError(t, err)
	require.Equal(t, 9999, ordering)
}

func TestFromDirRequiresRealmEntry(t *testing.T) {
	root := t.TempDir()
	ws, err := FromDir(root)
	require.NoError(t, err)

	writePlugin(t, ws.PluginsDir(), "noentry", `[plugin]
name = "noentry"
author = "me"
version = "1.0"
description = "d"
language = "lua"
`, false)

	results, err := ws.GetPlugins()
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
}

func TestPluginDataDirDisjointFromSource(t *testing.T) {
	root := t.TempDir()
	ws, err := FromDir(root)
	require.NoError(t, err)
	writePlugin(t, ws.PluginsDir(), "p", `[plugin]
name = "p"
author = "me"
version = "1.0"
description = "d"
language = "lua"
`, true)

	results, err := ws.GetPlugins()
	require.NoError(t, err)
	require.NoError(t, results[0].Err)

	p := results[0].Plugin
	require.NotEqual(t, p.Dir(), p.DataDir())
	require.DirExists(t, p.DataDir())
}
