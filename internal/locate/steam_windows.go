//go:build windows

package locate

import (
	"fmt"

	"golang.org/x/sys/windows/registry"
)

// steamPaths mirrors original_source/locator/src/raw/windows.rs's
// STEAM_PATHS table: Steam's installer writes InstallPath under one of
// these keys depending on whether it's a 32- or 64-bit install.
var steamRegistryPaths = []string{
	`SOFTWARE\WOW6432Node\Valve\Steam`,
	`SOFTWARE\Valve\Steam`,
}

var steamRegistryRoots = []registry.Key{registry.LOCAL_MACHINE, registry.CURRENT_USER}

// steamInstallDirPlatform reads Steam's InstallPath value the way
// original_source/locator/src/raw/windows.rs does with the winreg crate,
// using golang.org/x/sys/windows/registry, the stdlib-adjacent module
// already in this repo's dependency graph for Windows syscalls.
func steamInstallDirPlatform() (string, error) {
	for _, path := range steamRegistryPaths {
		for _, root := range steamRegistryRoots {
			k, err := registry.OpenKey(root, path, registry.QUERY_VALUE)
			if err != nil {
				continue
			}
			val, _, err := k.GetStringValue("InstallPath")
			k.Close()
			if err == nil && val != "" {
				return val, nil
			}
		}
	}
	return "", fmt.Errorf("locate: steam InstallPath not found in registry")
}
