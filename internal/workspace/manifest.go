// Package workspace implements the workspace and plugin model: a rooted
// directory with plugins/, logs/, and settings.toml, plus per-plugin
// filesystem capability separation between a read-only source directory
// and a writable data directory.
package workspace

// Language is the closed tagged variant for a plugin's implementation
// language, per the manifest grammar.
type Language string

const (
	LanguageLua    Language = "lua"
	LanguageNative Language = "native"
)

// Manifest mirrors plugin.toml's `[plugin]` table.
type Manifest struct {
	Plugin ManifestPlugin `toml:"plugin"`
}

// ManifestPlugin is the nested shape of plugin.toml's `[plugin]` table:
// `{plugin: {name, author, version, description, language, ordering?}}`.
type ManifestPlugin struct {
	Name        string   `toml:"name"`
	Author      string   `toml:"author"`
	Version     string   `toml:"version"`
	Description string   `toml:"description"`
	Language    Language `toml:"language"`
	Ordering    *int     `toml:"ordering"`
}

// Settings mirrors the workspace-level settings.toml, per the
// workspace layout: "settings.toml (TOML with [autorun] check_version=bool;
// default seeded on create)".
type Settings struct {
	Autorun SettingsAutorun `toml:"autorun"`
}

type SettingsAutorun struct {
	CheckVersion bool `toml:"check_version"`
}

// DefaultSettingsTOML is copied into settings.toml on first workspace
// creation.
const DefaultSettingsTOML = `[autorun]
check_version = true
`
