package hostcat

import "unsafe"

// cstrKeep returns a NUL-terminated byte pointer for s, plus the backing
// slice to keep alive until after the call that uses the pointer returns.
func cstrKeep(s string) (uintptr, []byte) {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return uintptr(unsafe.Pointer(&b[0])), b
}

func uintptrOf(i *int32) uintptr { return uintptr(unsafe.Pointer(i)) }
