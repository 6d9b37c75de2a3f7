package ffi

import "unsafe"

// activationRecord mirrors the host's lua_Debug layout for the fields
// getinfo reads. Field order and sizes follow the LuaJIT 2.1
// lua_Debug struct; this is intentionally narrower than the host's real
// struct (we only declare the fields we read), so the struct is
// over-allocated with trailing padding sized generously to avoid the host
// writing past our buffer.
type activationRecord struct {
	eventField  int32
	_pad0       int32
	name        uintptr
	namewhat    uintptr
	what        uintptr
	source      uintptr
	currentline int32
	nups        int32
	linedefined int32
	lastlinedef int32
	short_src   [128]byte
	iCI         int32
	_pad1       int32
	_reserve    [64]byte
}

// Info is the subset of the host's lua_Debug record exposed to callers.
type Info struct {
	CurrentLine int
	Source      string
	ShortSrc    string
	NameWhat    string
	ICI         int
}

func cGoString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	n := 0
	for {
		b := *(*byte)(unsafe.Pointer(ptr + uintptr(n)))
		if b == 0 {
			break
		}
		n++
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), n))
}

// GetStack fills in the activation record for the given call level (0 is
// the current running function) and returns false if level is out of
// range.
func (s *Shim) GetStack(vm VM, level int) (activationRecord, bool) {
	var ar activationRecord
	ok := s.getstack(vm, int32(level), uintptr(unsafe.Pointer(&ar))) != 0
	return ar, ok
}

// GetInfo fills fields described by what ("nSl" for name/source/line, "f"
// to additionally push the function onto the stack) into an already
// obtained activation record, and returns the decoded Info.
func (s *Shim) GetInfo(vm VM, what string, ar *activationRecord) Info {
	whatPtr, keep := cstr(what)
	s.getinfo(vm, whatPtr, uintptr(unsafe.Pointer(ar)))
	_ = keep

	return Info{
		CurrentLine: int(ar.currentline),
		Source:      cGoString(ar.source),
		ShortSrc:    cStringFromArray(ar.short_src[:]),
		NameWhat:    cGoString(ar.namewhat),
		ICI:         int(ar.iCI),
	}
}

func cStringFromArray(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// HookState is the debug hook snapshot the main-thread work queue
// saves/restores around each drained closure.
type HookState struct {
	Fn    uintptr
	Mask  int
	Count int
}

// GetHook returns the currently installed debug hook, mask, and count.
func (s *Shim) GetHook(vm VM) HookState {
	return HookState{
		Fn:    s.gethook(vm),
		Mask:  int(s.hookmask(vm)),
		Count: int(s.hookcnt(vm)),
	}
}

// SetHook installs (or, with fn == 0, clears) the debug hook.
func (s *Shim) SetHook(vm VM, hs HookState) {
	s.sethook(vm, hs.Fn, int32(hs.Mask), int32(hs.Count))
}
