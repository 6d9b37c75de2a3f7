package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
)

// Workspace is a rooted directory containing plugins/, logs/, and
// settings.toml. One workspace exists per host-process
// lifetime; it is created on demand and never destroyed early.
type Workspace struct {
	root string

	mu       sync.Mutex
	settings *Settings // lazy-parsed on first Settings() call
}

// FromDir creates (or opens) a workspace rooted at path, creating the
// three required children if missing and seeding settings.toml with the
// bundled default on first creation.
func FromDir(path string) (*Workspace, error) {
	if err := os.MkdirAll(filepath.Join(path, "plugins"), 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create plugins/: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(path, "logs"), 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create logs/: %w", err)
	}

	settingsPath := filepath.Join(path, "settings.toml")
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		if err := os.WriteFile(settingsPath, []byte(DefaultSettingsTOML), 0o644); err != nil {
			return nil, fmt.Errorf("workspace: seed settings.toml: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("workspace: stat settings.toml: %w", err)
	}

	return &Workspace{root: path}, nil
}

// Root returns the workspace's root directory.
func (w *Workspace) Root() string { return w.root }

// PluginsDir returns the workspace's plugins/ directory.
func (w *Workspace) PluginsDir() string { return filepath.Join(w.root, "plugins") }

// LogsDir returns the workspace's write-only logs/ directory.
func (w *Workspace) LogsDir() string { return filepath.Join(w.root, "logs") }

// Settings lazily decodes settings.toml.
func (w *Workspace) Settings() (Settings, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.settings != nil {
		return *w.settings, nil
	}

	var s Settings
	if _, err := toml.DecodeFile(filepath.Join(w.root, "settings.toml"), &s); err != nil {
		return Settings{}, fmt.Errorf("workspace: decode settings.toml: %w", err)
	}
	w.settings = &s
	return s, nil
}

// PluginResult pairs one plugins/ directory entry with either a
// constructed Plugin or the error that prevented construction.
type PluginResult struct {
	DirName string
	Plugin  *Plugin
	Err     error
}

// GetPlugins enumerates direct children of plugins/, returning a Plugin
// or an accumulated error for each so startup can log errors without
// failing wholesale. Results preserve directory-enumeration order, which
// callers use as the discovery tiebreaker in event dispatch ordering.
func (w *Workspace) GetPlugins() ([]PluginResult, error) {
	entries, err := os.ReadDir(w.PluginsDir())
	if err != nil {
		return nil, fmt.Errorf("workspace: read plugins/: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	results := make([]PluginResult, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(w.PluginsDir(), e.Name())
		plugin, err := FromDir(dir)
		results = append(results, PluginResult{DirName: e.Name(), Plugin: plugin, Err: err})
	}
	return results, nil
}
