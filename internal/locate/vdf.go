// Package locate discovers the host game's Steam install and library
// folder, and launches the host with the core library preloaded
//.
//
// Valve's library-folders manifest (libraryfolders.vdf) is Valve's own
// KeyValues text format: nested `"key" "value"` pairs and `"key" { ... }`
// objects, no ecosystem Go library for it exists anywhere in the
// reference pack, so this is a small hand-written recursive-descent
// parser (see DESIGN.md) grounded on the original Rust implementation's
// nom-based grammar (original_source/locator/src/vdf.rs): a value is
// either a quoted string or a brace-delimited object of key/value pairs.
package locate

import (
	"fmt"
	"strings"
)

// Value is one VDF value: either a leaf string or a nested object
// (ordered key/value pairs — VDF permits duplicate keys, e.g. Steam's
// numbered library-folder entries "0", "1", "2", ... so this is a slice
// of pairs rather than a map).
type Value struct {
	Str      string
	Object   []KeyValue
	IsObject bool
}

// KeyValue is one entry of a VDF object, in source order.
type KeyValue struct {
	Key   string
	Value Value
}

// Get returns the first value in an object whose key matches name.
func (v Value) Get(name string) (Value, bool) {
	for _, kv := range v.Object {
		if kv.Key == name {
			return kv.Value, true
		}
	}
	return Value{}, false
}

type vdfParser struct {
	s   string
	pos int
}

// Parse parses a full VDF document (a bare sequence of key/value pairs,
// no enclosing braces) into an object Value.
func Parse(text string) (Value, error) {
	p := &vdfParser{s: text}
	pairs, err := p.keyvalues()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return Value{}, fmt.Errorf("locate: vdf: unexpected trailing input at offset %d", p.pos)
	}
	return Value{Object: pairs, IsObject: true}, nil
}

func (p *vdfParser) skipSpace() {
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		case '/':
			// Valve's format tolerates "// comment" lines in practice;
			// the original parser didn't handle them, but real
			// libraryfolders.vdf files never contain them, so this is
			// a defensive no-op extension rather than a behavior change.
			if p.pos+1 < len(p.s) && p.s[p.pos+1] == '/' {
				for p.pos < len(p.s) && p.s[p.pos] != '\n' {
					p.pos++
				}
				continue
			}
			return
		default:
			return
		}
	}
}

func (p *vdfParser) keyvalues() ([]KeyValue, error) {
	var pairs []KeyValue
	for {
		p.skipSpace()
		if p.pos >= len(p.s) || p.s[p.pos] != '"' {
			break
		}
		key, err := p.string()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, KeyValue{Key: key, Value: val})
	}
	return pairs, nil
}

func (p *vdfParser) value() (Value, error) {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return Value{}, fmt.Errorf("locate: vdf: unexpected end of input expecting value")
	}
	if p.s[p.pos] == '{' {
		return p.object()
	}
	s, err := p.string()
	if err != nil {
		return Value{}, err
	}
	return Value{Str: s}, nil
}

func (p *vdfParser) object() (Value, error) {
	if p.s[p.pos] != '{' {
		return Value{}, fmt.Errorf("locate: vdf: expected '{' at offset %d", p.pos)
	}
	p.pos++
	pairs, err := p.keyvalues()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if p.pos >= len(p.s) || p.s[p.pos] != '}' {
		return Value{}, fmt.Errorf("locate: vdf: expected '}' at offset %d", p.pos)
	}
	p.pos++
	return Value{Object: pairs, IsObject: true}, nil
}

func (p *vdfParser) string() (string, error) {
	if p.pos >= len(p.s) || p.s[p.pos] != '"' {
		return "", fmt.Errorf("locate: vdf: expected '\"' at offset %d", p.pos)
	}
	p.pos++
	start := p.pos
	var b strings.Builder
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c == '\\' && p.pos+1 < len(p.s) {
			b.WriteString(p.s[start:p.pos])
			switch p.s[p.pos+1] {
			case 'n':
				b.WriteByte('\n')
			default:
				b.WriteByte(p.s[p.pos+1])
			}
			p.pos += 2
			start = p.pos
			continue
		}
		if c == '"' {
			b.WriteString(p.s[start:p.pos])
			p.pos++
			return b.String(), nil
		}
		p.pos++
	}
	return "", fmt.Errorf("locate: vdf: unterminated string starting at offset %d", start)
}
