// Package scan implements the signature scanner: locating functions by
// wildcarded byte patterns in mapped executable regions of a named
// module.
package scan

import (
	"fmt"
	"strconv"
	"strings"
)

// Pattern is a parsed wildcarded byte pattern plus the text it came from.
type Pattern struct {
	Text  string
	Bytes []*byte // nil entry = wildcard
}

// Parse parses a Ghidra-style human-readable pattern ("48 8B ?? ?? ?? 89")
// into a Pattern. "??" (or "?") denotes a wildcard byte; everything else
// must be a hex number that fits in one byte (00 through FF).
func Parse(text string) (Pattern, error) {
	fields := strings.Fields(text)
	bytes := make([]*byte, 0, len(fields))

	for _, f := range fields {
		if f == "?" || f == "??" {
			bytes = append(bytes, nil)
			continue
		}
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return Pattern{}, fmt.Errorf("scan: invalid byte token %q in pattern %q: %w", f, text, err)
		}
		b := byte(v)
		bytes = append(bytes, &b)
	}

	if len(bytes) == 0 {
		return Pattern{}, fmt.Errorf("scan: empty pattern")
	}

	return Pattern{Text: text, Bytes: bytes}, nil
}

// matchAt reports whether p matches data starting at offset off.
func (p Pattern) matchAt(data []byte, off int) bool {
	if off+len(p.Bytes) > len(data) {
		return false
	}
	for i, want := range p.Bytes {
		if want == nil {
			continue
		}
		if data[off+i] != *want {
			return false
		}
	}
	return true
}
