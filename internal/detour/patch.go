package detour

import (
	"fmt"
	"unsafe"

	"github.com/autorun-labs/autorun/internal/codegen"
)

const hostPageSize = 4096

// unsafeBytes views n bytes of live process memory starting at addr as a
// Go byte slice, for in-place patching of host text. The caller is
// responsible for holding the appropriate page protection beforehand.
func unsafeBytes(addr uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

// pageContaining returns the page-aligned slice containing addr, sized to
// cover at least patchSize bytes past addr (two pages if the patch would
// straddle a boundary).
func pageContaining(addr uintptr) ([]byte, error) {
	if addr == 0 {
		return nil, fmt.Errorf("detour: nil target address")
	}
	base := addr &^ uintptr(hostPageSize-1)
	span := (addr + patchSize) - base
	pages := (span + hostPageSize - 1) / hostPageSize * hostPageSize
	return unsafeBytes(base, int(pages)), nil
}

// buildJMP encodes a 5-byte relative-near-jump (E9 rel32) from the
// instruction following it at `from` to `to`. Targets must be within
// +/-2GiB; detour targets and their trampolines live in different
// modules only on platforms where this distance can be exceeded, which
// the call site must guard against (not needed for this runtime's
// same-process trampoline pages).
func buildJMP(from, to uintptr) []byte {
	rel := int32(int64(to) - int64(from+patchSize))
	buf := make([]byte, patchSize)
	buf[0] = 0xE9
	buf[1] = byte(rel)
	buf[2] = byte(rel >> 8)
	buf[3] = byte(rel >> 16)
	buf[4] = byte(rel >> 24)
	return buf
}

// buildCallThroughStub emits a tiny trampoline that replays the bytes the
// patch will displace from target, then jumps back into target past the
// patched region, giving call() a stable path to the original
// implementation independent of the record's enabled state.
//
// The jump back uses an absolute movabs+jmp rather than a relative E9:
// the stub's own final address isn't known until after allocation, so a
// relative encoding anchored to the (not-yet-allocated) trampoline
// address would be wrong.
func buildCallThroughStub(target uintptr) (uintptr, error) {
	displaced := make([]byte, patchSize)
	copy(displaced, unsafeBytes(target, patchSize))

	back := target + patchSize
	code := make([]byte, 0, patchSize+13)
	code = append(code, displaced...)
	code = append(code, 0x48, 0xB8) // movabs rax, imm64
	code = append(code,
		byte(back), byte(back>>8), byte(back>>16), byte(back>>24),
		byte(back>>32), byte(back>>40), byte(back>>48), byte(back>>56),
	)
	code = append(code, 0xFF, 0xE0) // jmp rax

	tramp, err := codegen.Allocate(code)
	if err != nil {
		return 0, err
	}
	return tramp.Addr, nil
}
