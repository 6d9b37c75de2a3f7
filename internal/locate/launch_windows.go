//go:build windows

package locate

import (
	"errors"
	"os/exec"
)

// Launch is unsupported on Windows: original_source/autorun-steam/src/gmod/raw/windows.rs
// injects via the dll_syringe crate (CreateRemoteThread + LoadLibrary),
// which has no equivalent in this repository's dependency graph — cgo-free
// remote-process DLL injection isn't something any example repo in the
// reference pack demonstrates, so this is left unimplemented rather than
// hand-rolling raw Windows API calls with no grounding.
func Launch(libPath string) (*exec.Cmd, error) {
	return nil, errors.New("locate: Launch is not implemented on windows")
}
