package locate

import (
	"fmt"
	"os"
	"path/filepath"
)

// gmodAppID is Garry's Mod's Steam app ID, the key the library-folders
// manifest nests each library's installed-apps object under (original_source/
// autorun-steam/src/locate/mod.rs checks apps.iter().find(|x| x.0 == "4000")).
const gmodAppID = "4000"

// SteamInstallDir resolves Steam's install directory: the STEAM_DIR
// environment variable overrides discovery unconditionally, otherwise platform-specific discovery in
// steamInstallDirPlatform runs (registry lookup on Windows, the
// ~/.steam/steam convention on Linux).
func SteamInstallDir() (string, error) {
	if dir := os.Getenv("STEAM_DIR"); dir != "" {
		return dir, nil
	}
	return steamInstallDirPlatform()
}

// GModDir resolves Garry's Mod's install directory: GMOD_DIR overrides
// unconditionally, otherwise it's found by reading Steam's
// libraryfolders.vdf and locating the library that lists app 4000
// (original_source/autorun-steam/src/locate/mod.rs::gmod_dir).
func GModDir() (string, error) {
	if dir := os.Getenv("GMOD_DIR"); dir != "" {
		return dir, nil
	}

	steamDir, err := SteamInstallDir()
	if err != nil {
		return "", err
	}

	manifestPath := filepath.Join(steamDir, "steamapps", "libraryfolders.vdf")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return "", fmt.Errorf("locate: read library folders manifest: %w", err)
	}

	root, err := Parse(string(data))
	if err != nil {
		return "", fmt.Errorf("locate: parse library folders manifest: %w", err)
	}

	folders, ok := root.Get("libraryfolders")
	if !ok || !folders.IsObject {
		return "", fmt.Errorf("locate: library folders manifest has no libraryfolders object")
	}

	for _, folder := range folders.Object {
		if !folder.Value.IsObject {
			continue
		}
		path, ok := folder.Value.Get("path")
		if !ok || path.IsObject {
			continue
		}
		apps, ok := folder.Value.Get("apps")
		if !ok || !apps.IsObject {
			continue
		}
		if _, hasGMod := apps.Get(gmodAppID); hasGMod {
			return filepath.Join(path.Str, "steamapps", "common", "GarrysMod"), nil
		}
	}

	return "", fmt.Errorf("locate: no Steam library folder lists app %s (Garry's Mod)", gmodAppID)
}
