package scan

import "testing"

func TestParseAndMatch(t *testing.T) {
	p, err := Parse("48 8B ?? ?? ?? 89")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(p.Bytes) != 6 {
		t.Fatalf("expected 6 tokens, got %d", len(p.Bytes))
	}

	data := []byte{0x00, 0x48, 0x8B, 0xAA, 0xBB, 0xCC, 0x89, 0xFF}
	if !p.matchAt(data, 1) {
		t.Fatal("expected match at offset 1")
	}
	if p.matchAt(data, 0) {
		t.Fatal("did not expect match at offset 0")
	}
	if p.matchAt(data, 2) {
		t.Fatal("did not expect match at offset 2 (not enough bytes / mismatch)")
	}
}

func TestParseInvalidToken(t *testing.T) {
	if _, err := Parse("48 ZZ"); err == nil {
		t.Fatal("expected error for invalid hex token")
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := Parse("   "); err == nil {
		t.Fatal("expected error for empty pattern")
	}
}

func TestScannerCaching(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	calls := 0
	s.readMaps = func() ([]Region, error) {
		calls++
		return []Region{{Start: 0x1000, End: 0x1010, Module: "mod"}}, nil
	}
	s.readMem = func(addr uintptr, n int) ([]byte, error) {
		data := make([]byte, n)
		data[2] = 0xAB
		return data, nil
	}

	p, _ := Parse("00 00 AB")
	addr, ok, err := s.Find(p, "mod")
	if err != nil || !ok {
		t.Fatalf("Find: addr=%v ok=%v err=%v", addr, ok, err)
	}
	if addr != 0x1000 {
		t.Fatalf("expected addr 0x1000, got %#x", addr)
	}

	if _, _, err := s.Find(p, "mod"); err != nil {
		t.Fatalf("second Find: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected readMaps called once (cache hit second time), got %d", calls)
	}
}
