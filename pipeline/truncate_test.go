package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate_RuneBoundary(t *testing.T) {
	// WHAT: truncating a title of multibyte runes with no spaces after the
	// midpoint.
	// WHY: a byte-index cut can split a rune, leaving invalid UTF-8 in
	// stored and served titles.
	long := strings.Repeat("é", 100)
	got := truncate(long, 41)
	if !utf8.ValidString(got) {
		t.Errorf("truncate produced invalid UTF-8: %q", got)
	}
	if len(got) > 41 {
		t.Errorf("len = %d, want <= 41", len(got))
	}

	// Pure ASCII still prefers the last space past the midpoint.
	if got := truncate("Assignment 1: Research Proposal draft", 20); got != "Assignment 1:" {
		t.Errorf("got %q, want %q", got, "Assignment 1:")
	}
}
