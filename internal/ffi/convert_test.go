package ffi

import "testing"

func TestTypeString(t *testing.T) {
	cases := map[Type]string{
		TypeNone:     "none",
		TypeNil:      "nil",
		TypeBoolean:  "boolean",
		TypeNumber:   "number",
		TypeString:   "string",
		TypeTable:    "table",
		TypeFunction: "function",
		TypeUserdata: "userdata",
		TypeThread:   "thread",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Errorf("Type(%d).String() = %q, want %q", typ, got, want)
		}
	}
}

func TestPushUnsupportedType(t *testing.T) {
	s := &Shim{}
	err := s.Push(0, struct{ X int }{1})
	if err == nil {
		t.Fatal("expected error pushing unsupported type, got nil")
	}
}

func TestCStringFromArray(t *testing.T) {
	buf := make([]byte, 16)
	copy(buf, "hello")
	if got := cStringFromArray(buf); got != "hello" {
		t.Errorf("cStringFromArray = %q, want %q", got, "hello")
	}

	full := []byte("abcdefghijklmnop")
	if got := cStringFromArray(full); got != string(full) {
		t.Errorf("cStringFromArray without NUL = %q, want %q", got, string(full))
	}
}
