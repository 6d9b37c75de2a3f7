//go:build !windows

package locate

import (
	"fmt"
	"os"
	"path/filepath"
)

// steamInstallDirPlatform mirrors original_source/locator/src/raw/linux.rs:
// Steam's native Linux client always installs under ~/.steam/steam.
func steamInstallDirPlatform() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate: resolve home directory: %w", err)
	}

	dir := filepath.Join(home, ".steam", "steam")
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("locate: steam install dir not found at %s: %w", dir, err)
	}
	return dir, nil
}
