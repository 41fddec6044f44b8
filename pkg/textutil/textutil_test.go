package textutil

import (
	"strings"
	"testing"
)

func TestCleanText(t *testing.T) {
	in := "line  one\t\tend   \r\n\r\n\r\n\r\nline two\n"
	got := CleanText(in)
	want := "line one end\n\nline two"
	if got != want {
		t.Errorf("CleanText() = %q, want %q", got, want)
	}
}

func TestCanonicalize(t *testing.T) {
	if got := Canonicalize("  a\n\tb   c  "); got != "a b c" {
		t.Errorf("Canonicalize() = %q", got)
	}
}

func TestContentHashStable(t *testing.T) {
	// Hashing is insensitive to whitespace differences.
	h1 := ContentHash("hello   world")
	h2 := ContentHash("hello\nworld")
	if h1 != h2 {
		t.Errorf("hashes differ: %s vs %s", h1, h2)
	}
	if len(h1) != 64 || strings.ToLower(h1) != h1 {
		t.Errorf("expected lowercase sha256 hex, got %q", h1)
	}

	if ContentHash("hello world") == ContentHash("hello there") {
		t.Error("distinct content produced equal hashes")
	}
}

func TestCountWords(t *testing.T) {
	if got := CountWords("one two  three\nfour"); got != 4 {
		t.Errorf("CountWords() = %d, want 4", got)
	}
}
