//go:build !windows

package locate

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Launch starts Garry's Mod under Steam's Linux runtime with libPath
// preloaded via LD_PRELOAD, mirroring the chain of wrapper binaries
// original_source/autorun-steam/src/gmod/raw/linux.rs execs through:
// steam-launch-wrapper -> reaper -> the soldier runtime entry point ->
// the scout-on-soldier compatibility shim -> hl2.sh. Steam assembles
// this chain itself for a normal launch; replicating it here is what
// lets the preload environment variable survive every hop.
func Launch(libPath string) (*exec.Cmd, error) {
	steamDir, err := SteamInstallDir()
	if err != nil {
		return nil, fmt.Errorf("locate: launch: %w", err)
	}
	gmodDir, err := GModDir()
	if err != nil {
		return nil, fmt.Errorf("locate: launch: %w", err)
	}

	launchWrapper := filepath.Join(steamDir, "ubuntu12_32", "steam-launch-wrapper")
	reaper := filepath.Join(steamDir, "ubuntu12_32", "reaper")
	soldierEntry := filepath.Join(steamDir, "steamapps", "common", "SteamLinuxRuntime_soldier", "_v2-entry-point")
	scoutOnSoldierEntry := filepath.Join(steamDir, "steamapps", "common", "SteamLinuxRuntime", "scout-on-soldier-entry-point-v2")
	hl2sh := filepath.Join(gmodDir, "hl2.sh")

	for _, required := range []string{launchWrapper, reaper, soldierEntry, scoutOnSoldierEntry, hl2sh} {
		if _, err := os.Stat(required); err != nil {
			return nil, fmt.Errorf("locate: launch: required Steam runtime component missing: %s", required)
		}
	}

	cmd := exec.Command(launchWrapper,
		"--", reaper, "SteamLaunch", "AppId="+gmodAppID,
		"--", soldierEntry, "--verb=waitforexitandrun",
		"--", scoutOnSoldierEntry,
		"--", hl2sh, "-steam", "-game", "garrysmod",
	)
	cmd.Env = append(os.Environ(),
		"GMOD_ENABLE_LD_PRELOAD=1",
		"LD_PRELOAD="+libPath,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("locate: launch: start steam-launch-wrapper: %w", err)
	}
	return cmd, nil
}
