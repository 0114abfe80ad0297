package textutil

import (
	"strings"
	"testing"
)

func TestTruncateCountsRunes(t *testing.T) {
	if got := Truncate("héllo wörld", 5); got != "héllo" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := Truncate("short", 80); got != "short" {
		t.Fatalf("expected untouched value, got %q", got)
	}
	long := strings.Repeat("a", 16010)
	if got := Truncate(long, 16000); len(got) != 16000 {
		t.Fatalf("expected 16000 characters, got %d", len(got))
	}
	if got := Truncate("anything", 0); got != "" {
		t.Fatalf("expected empty result for zero limit")
	}
}

func TestFirstLineSkipsBlankLines(t *testing.T) {
	if got := FirstLine("\n   \n  Chapter 1: Cells  \nbody"); got != "Chapter 1: Cells" {
		t.Fatalf("unexpected first line %q", got)
	}
	if got := FirstLine("  \n\t"); got != "" {
		t.Fatalf("expected empty first line, got %q", got)
	}
}

func TestStripCodeFence(t *testing.T) {
	testCases := map[string]string{
		"```html\n<h1>Cells</h1>\n```": "<h1>Cells</h1>",
		"```\n<p>x</p>```":             "<p>x</p>",
		"  <p>plain</p>  ":             "<p>plain</p>",
	}
	for input, expected := range testCases {
		if got := StripCodeFence(input); got != expected {
			t.Fatalf("StripCodeFence(%q) = %q, want %q", input, got, expected)
		}
	}
}

func TestCollapseWhitespace(t *testing.T) {
	if got := CollapseWhitespace(" a \n\n b\t c "); got != "a b c" {
		t.Fatalf("unexpected collapse %q", got)
	}
}
