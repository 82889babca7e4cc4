package textutil

import "testing"

func TestCharsetRoundTrip(t *testing.T) {
	cs, err := LookupCharset("Windows-1252")
	if err != nil {
		t.Fatalf("LookupCharset failed: %v", err)
	}
	raw := []byte{'c', 'a', 'f', 0xe9, ' ', 0x93, 'x', 0x94}
	s := cs.Decode(raw)
	if s != "café “x”" {
		t.Fatalf("Decode = %q", s)
	}
	back, err := cs.Encode(s)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(back) != string(raw) {
		t.Errorf("Encode = %v, want %v", back, raw)
	}

	if _, err := cs.Encode("日本"); err == nil {
		t.Error("expected error for unmappable text")
	}
}

func TestLookupCharset(t *testing.T) {
	raw, err := LookupCharset("raw")
	if err != nil || raw.Name() != "raw" {
		t.Fatalf("raw: %v %v", raw.Name(), err)
	}
	if got := raw.Decode([]byte{0xe9}); got != "\xe9" {
		t.Errorf("raw Decode changed bytes: %q", got)
	}
	if cs, err := LookupCharset("cp1252"); err != nil || cs.Name() != "windows-1252" {
		t.Errorf("cp1252 alias: %v %v", cs.Name(), err)
	}
	if _, err := LookupCharset("ebcdic"); err == nil {
		t.Error("expected error for unknown charset")
	}
}

func TestTSVEscaping(t *testing.T) {
	in := "line one\nline\ttwo \\ end"
	esc := EscapeTSV(in)
	if esc != `line one\nline\ttwo \\ end` {
		t.Fatalf("EscapeTSV = %q", esc)
	}
	if got := UnescapeTSV(esc); got != in {
		t.Errorf("UnescapeTSV = %q, want %q", got, in)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("got %q", got)
	}
	if got := Truncate("héllo", 2); got != "h..." {
		t.Errorf("got %q", got)
	}
}

func TestHasLetters(t *testing.T) {
	if HasLetters("12 + 3") {
		t.Error("digits reported as letters")
	}
	if !HasLetters("ok") {
		t.Error("letters not found")
	}
}
