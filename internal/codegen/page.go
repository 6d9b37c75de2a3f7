// Package codegen emits the two native trampoline flavors and the
// bytecode trampoline: position-independent machine code adapting the
// host's calling convention to the scripting runtime's C-function ABI,
// and direct Lua bytecode rewrites for deep function cloning/overwrite.
package codegen

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// pageSize is the allocation granularity for every trampoline: one
// dedicated, page-sized region per trampoline.
const pageSize = 4096

// Trampoline is one page of executable memory holding emitted machine
// code, plus the machine code bytes themselves for inspection/testing.
type Trampoline struct {
	Addr uintptr
	Code []byte
	mem  []byte
}

// Allocate reserves a page, writes code into it while the page is
// READ_WRITE, then re-protects it to READ_EXECUTE. The page is never
// written again afterward.
func Allocate(code []byte) (*Trampoline, error) {
	if len(code) > pageSize {
		return nil, fmt.Errorf("codegen: trampoline code (%d bytes) exceeds page size (%d)", len(code), pageSize)
	}

	mem, err := unix.Mmap(-1, 0, pageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("codegen: mmap: %w", err)
	}

	copy(mem, code)

	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(mem)
		return nil, fmt.Errorf("codegen: mprotect RX: %w", err)
	}

	return &Trampoline{
		Addr: uintptr(addrOf(mem)),
		Code: code,
		mem:  mem,
	}, nil
}

// Release returns the trampoline's page to the OS. Production detours live
// for the remainder of the host process and never call this; it exists so
// tests can clean up without leaking mappings.
func (t *Trampoline) Release() error {
	if t.mem == nil {
		return nil
	}
	err := unix.Munmap(t.mem)
	t.mem = nil
	return err
}
