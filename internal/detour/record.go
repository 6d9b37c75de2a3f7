// Package detour implements the interception engine: it installs,
// enables, and disables function-entry trampolines over host text
// addresses, and guarantees a stable call-through path back to the
// original function regardless of a record's enabled state.
package detour

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/autorun-labs/autorun/internal/codegen"
	"golang.org/x/sys/unix"
)

// patchSize is the length of the relative-JMP stub written over a
// target's prologue. E9 rel32 is 5 bytes; the original bytes displaced by
// the patch are preserved so disable() can restore them exactly.
const patchSize = 5

// Record is a detour record: a triple of (target address,
// original call-through path, trampoline address). Exactly one record per
// target may be enabled at a time; call() always reaches the original
// regardless of enabled state.
type Record struct {
	mu sync.Mutex

	target     uintptr
	trampoline *codegen.Trampoline
	original   [patchSize]byte
	callThru   uintptr // address of a copy of the target's displaced prologue + jmp back

	enabled atomic.Bool
	once    sync.Once
}

// Engine exclusively owns the executable memory backing every installed
// trampoline.
type Engine struct {
	mu      sync.Mutex
	records map[uintptr]*Record
}

// New constructs an empty interception engine.
func New() *Engine {
	return &Engine{records: make(map[uintptr]*Record)}
}

// New installs a detour record for target, redirecting it to hook (a
// previously emitted codegen trampoline) without yet enabling it. It is
// an error to install a second record over the same target address.
func (e *Engine) New(target uintptr, hook *codegen.Trampoline) (*Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.records[target]; exists {
		return nil, fmt.Errorf("detour: target %#x already has a record", target)
	}

	rec := &Record{target: target, trampoline: hook}

	callThru, err := buildCallThroughStub(target)
	if err != nil {
		return nil, fmt.Errorf("detour: build call-through stub: %w", err)
	}
	rec.callThru = callThru

	e.records[target] = rec
	return rec, nil
}

// Remove uninstalls rec, disabling it first if needed, and releases its
// bookkeeping from the engine. It does not release the caller-owned
// trampoline allocation.
func (e *Engine) Remove(rec *Record) error {
	if rec.enabled.Load() {
		if err := rec.Disable(); err != nil {
			return err
		}
	}

	e.mu.Lock()
	delete(e.records, rec.target)
	e.mu.Unlock()
	return nil
}

// Enable patches the target's prologue with a relative JMP into the
// record's trampoline, after saving the displaced bytes for Disable.
func (r *Record) Enable() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.enabled.Load() {
		return nil
	}

	page, err := pageContaining(r.target)
	if err != nil {
		return fmt.Errorf("detour: locate page for %#x: %w", r.target, err)
	}
	if err := unix.Mprotect(page, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("detour: mprotect RWX: %w", err)
	}

	target := unsafeBytes(r.target, patchSize)
	copy(r.original[:], target)
	copy(target, buildJMP(r.target, r.trampoline.Addr))

	if err := unix.Mprotect(page, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("detour: mprotect RX: %w", err)
	}

	r.enabled.Store(true)
	return nil
}

// Disable restores the target's original prologue bytes.
func (r *Record) Disable() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled.Load() {
		return nil
	}

	page, err := pageContaining(r.target)
	if err != nil {
		return fmt.Errorf("detour: locate page for %#x: %w", r.target, err)
	}
	if err := unix.Mprotect(page, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("detour: mprotect RWX: %w", err)
	}

	copy(unsafeBytes(r.target, patchSize), r.original[:])

	if err := unix.Mprotect(page, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("detour: mprotect RX: %w", err)
	}

	r.enabled.Store(false)
	return nil
}

// Enabled reports whether the record currently redirects the target.
func (r *Record) Enabled() bool {
	return r.enabled.Load()
}

// CallThrough returns the address of the stable call-through path reaching
// the original function body, usable regardless of the record's enabled
// state.
func (r *Record) CallThrough() uintptr {
	return r.callThru
}

// Target returns the detoured address.
func (r *Record) Target() uintptr {
	return r.target
}

// WithDisabled runs fn with the record temporarily disabled, re-enabling
// it afterward even if fn panics. This is the discipline 
// prescribes for a hook handler that must re-enter the host through the
// same symbol it detours (e.g. the chunk-loader hook around plugin
// dispatch).
func (r *Record) WithDisabled(fn func() error) error {
	wasEnabled := r.Enabled()
	if wasEnabled {
		if err := r.Disable(); err != nil {
			return err
		}
	}
	defer func() {
		if wasEnabled {
			_ = r.Enable()
		}
	}()
	return fn()
}
