// Package textutil holds small rune-aware string helpers shared by the prompt builders.
package textutil

import (
	"strings"
	"unicode/utf8"
)

// Truncate returns at most limit runes of value.
func Truncate(value string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit])
}

// FirstLine returns the first non-blank line of value, trimmed.
func FirstLine(value string) string {
	for _, line := range strings.Split(value, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// CollapseWhitespace replaces every run of whitespace with a single space.
func CollapseWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// StripCodeFence removes a surrounding markdown code fence such as ```html ... ```.
func StripCodeFence(value string) string {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.Index(trimmed, "\n"); newline >= 0 {
		trimmed = trimmed[newline+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
