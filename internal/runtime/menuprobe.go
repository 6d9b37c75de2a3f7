package runtime

import (
	"unsafe"

	"github.com/autorun-labs/autorun/internal/ffi"
	"github.com/autorun-labs/autorun/internal/scan"
)

// menuVMPointerSignature anchors a RIP-relative load of the global slot
// holding the menu realm's lua_State pointer ("mov rax, [rip+disp32];
// test rax, rax; jz ..."), the scanning approach applied to the menu
// poller's probe. Host-version-specific.
const menuVMPointerSignature = "48 8B 05 ?? ?? ?? ?? 48 85 C0 74"

// DefaultMenuVMProbe resolves the menu realm's VM pointer for
// Hooks.StartMenuPoller by locating the anchor instruction once (cached
// by internal/scan's LRU) and dereferencing its RIP-relative operand on
// every call. A null dereference means the menu realm has not
// initialized its Lua state yet.
func (rt *Runtime) DefaultMenuVMProbe() (ffi.VM, bool) {
	pattern, err := scan.Parse(menuVMPointerSignature)
	if err != nil {
		return 0, false
	}

	insnAddr, ok, err := rt.Scanner.Find(pattern, "")
	if err != nil || !ok {
		return 0, false
	}

	// disp32 sits at offset 3 of the matched "48 8B 05" mov; the
	// effective address is the next instruction's address (insnAddr+7)
	// plus the signed displacement.
	disp := int32(*(*uint32)(unsafe.Pointer(insnAddr + 3)))
	slot := insnAddr + 7 + uintptr(disp)

	ptr := *(*uintptr)(unsafe.Pointer(slot))
	if ptr == 0 {
		return 0, false
	}
	return ffi.VM(ptr), true
}
