package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// realm entry script names under a plugin's src/ directory.
const (
	clientInitName = "client/init.lua"
	menuInitName   = "menu/init.lua"
	sharedInitName = "shared/init.lua"
)

// Plugin is one plugins/<dir> entry: a read-only source capability, a
// read-write data capability, and a lazily decoded manifest.
type Plugin struct {
	dir     string // read-only: the plugin's own directory
	dataDir string // read-write: dir/data

	mu       sync.Mutex
	manifest *Manifest // lazy-decoded on first Config() call
}

// FromDir constructs a Plugin from dir. It requires plugin.toml and a
// src/ subdirectory, opens (or creates) data/, and verifies at least one
// realm entry file exists.
func FromDir(dir string) (*Plugin, error) {
	manifestPath := filepath.Join(dir, "plugin.toml")
	if _, err := os.Stat(manifestPath); err != nil {
		return nil, fmt.Errorf("workspace: plugin %s: missing plugin.toml: %w", dir, err)
	}

	srcDir := filepath.Join(dir, "src")
	if info, err := os.Stat(srcDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("workspace: plugin %s: missing src/ directory", dir)
	}

	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: plugin %s: create data dir: %w", dir, err)
	}

	p := &Plugin{dir: dir, dataDir: dataDir}

	if !p.clientExists(srcDir) && !p.menuExists(srcDir) {
		return nil, fmt.Errorf("workspace: plugin %s: neither client nor menu entry script exists", dir)
	}

	return p, nil
}

// Dir returns the plugin's read-only source capability.
func (p *Plugin) Dir() string { return p.dir }

// DataDir returns the plugin's read-write data capability, disjoint from
// Dir()'s read-only source capability.
func (p *Plugin) DataDir() string { return p.dataDir }

func (p *Plugin) clientExists(srcDir string) bool {
	_, err := os.Stat(filepath.Join(srcDir, clientInitName))
	return err == nil
}

func (p *Plugin) menuExists(srcDir string) bool {
	_, err := os.Stat(filepath.Join(srcDir, menuInitName))
	return err == nil
}

// ClientExists reports whether src/client/init.lua exists.
func (p *Plugin) ClientExists() bool { return p.clientExists(filepath.Join(p.dir, "src")) }

// MenuExists reports whether src/menu/init.lua exists.
func (p *Plugin) MenuExists() bool { return p.menuExists(filepath.Join(p.dir, "src")) }

// ReadClientInit reads src/client/init.lua, or (nil, false, nil) if absent.
func (p *Plugin) ReadClientInit() ([]byte, bool, error) {
	return p.readEntry(clientInitName)
}

// ReadMenuInit reads src/menu/init.lua, or (nil, false, nil) if absent.
func (p *Plugin) ReadMenuInit() ([]byte, bool, error) {
	return p.readEntry(menuInitName)
}

// ReadSharedInit reads src/shared/init.lua, or (nil, false, nil) if absent.
func (p *Plugin) ReadSharedInit() ([]byte, bool, error) {
	return p.readEntry(sharedInitName)
}

func (p *Plugin) readEntry(relPath string) ([]byte, bool, error) {
	full := filepath.Join(p.dir, "src", relPath)
	body, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("workspace: read %s: %w", full, err)
	}
	return body, true, nil
}

// Config lazily decodes plugin.toml into the nested manifest shape.
func (p *Plugin) Config() (Manifest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.manifest != nil {
		return *p.manifest, nil
	}

	var m Manifest
	if _, err := toml.DecodeFile(filepath.Join(p.dir, "plugin.toml"), &m); err != nil {
		return Manifest{}, fmt.Errorf("workspace: decode plugin.toml for %s: %w", p.dir, err)
	}
	p.manifest = &m
	return m, nil
}

// Ordering returns the plugin's ordering key, defaulting to
// event.DefaultOrdering (9999) when the manifest omits it. Declared here
// as a plain int return (rather than importing internal/event) to avoid
// a dependency cycle; callers wire it into event.Target.Ordering.
func (p *Plugin) Ordering() (int, error) {
	cfg, err := p.Config()
	if err != nil {
		return 0, err
	}
	if cfg.Plugin.Ordering != nil {
		return *cfg.Plugin.Ordering, nil
	}
	return 9999, nil
}

// TryClone duplicates the plugin's capability handles so it can be safely
// referenced from sandbox userdata without aliasing the Workspace's own
// copy. Since Plugin holds only path strings and a lazily-decoded manifest
// pointer (no open file descriptors), cloning is a shallow value copy
// that re-decodes its manifest independently.
func (p *Plugin) TryClone() *Plugin {
	return &Plugin{dir: p.dir, dataDir: p.dataDir}
}

// Name returns the plugin's manifest name, falling back to its directory
// basename if the manifest cannot be decoded (e.g. while being probed by
// a caller that hasn't validated it yet).
func (p *Plugin) Name() string {
	if cfg, err := p.Config(); err == nil && cfg.Plugin.Name != "" {
		return cfg.Plugin.Name
	}
	return filepath.Base(p.dir)
}

// joinUnder resolves rel against root and verifies the result does not
// escape root via ".." traversal, the containment check every capability
// method below applies before touching the filesystem.
func joinUnder(root, rel string) (string, error) {
	full := filepath.Join(root, rel)
	cleanRoot := filepath.Clean(root)
	if full != cleanRoot && !strings.HasPrefix(full, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("workspace: path %q escapes capability root %q", rel, root)
	}
	return full, nil
}

// ReadSource reads path under the plugin's read-only source directory.
func (p *Plugin) ReadSource(path string) ([]byte, error) {
	full, err := joinUnder(p.dir, path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// ExistsSource reports whether path exists under the plugin's source
// directory.
func (p *Plugin) ExistsSource(path string) (bool, error) {
	full, err := joinUnder(p.dir, path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DataPath resolves path under the plugin's data directory, verifying
// containment without touching the filesystem.
func (p *Plugin) DataPath(path string) (string, error) {
	return joinUnder(p.dataDir, path)
}

// WriteData creates-if-missing and overwrites path under the plugin's
// data directory.
func (p *Plugin) WriteData(path string, content []byte) error {
	full, err := joinUnder(p.dataDir, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, content, 0o644)
}

// AppendData opens path under the plugin's data directory in append mode
// (creating it if needed) and writes content.
func (p *Plugin) AppendData(path string, content []byte) error {
	full, err := joinUnder(p.dataDir, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(content)
	return err
}

// MkdirData creates path and its parents under the plugin's data
// directory, per /example 1: returns true if it created the
// leaf directory, false if it already existed, and an error if a
// non-directory occupies the path.
func (p *Plugin) MkdirData(path string) (bool, error) {
	full, err := joinUnder(p.dataDir, path)
	if err != nil {
		return false, err
	}
	if info, err := os.Stat(full); err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("workspace: mkdir %s: a file already exists at that path", path)
		}
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return false, err
	}
	return true, nil
}
