// Package unicodecheck validates user-visible collaboration text for Unicode
// abuse. Chat messages and display names are rendered verbatim to every room
// member, so zero-width characters, bidirectional overrides, raw control
// characters and Zalgo-style combining runs are rejected before the text is
// stored or broadcast.
package unicodecheck

import (
	"fmt"
	"slices"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Zero-width characters commonly used in spoofing.
var zeroWidthChars = []rune{
	'\u200B', // Zero Width Space
	'\u200C', // Zero Width Non-Joiner
	'\u200D', // Zero Width Joiner
	'\u200E', // Left-to-Right Mark
	'\u200F', // Right-to-Left Mark
	'\uFEFF', // Byte Order Mark / Zero Width No-Break Space
}

// Bidirectional overrides that can reorder displayed text.
var bidiOverrideChars = []rune{
	'\u202A', // Left-to-Right Embedding
	'\u202B', // Right-to-Left Embedding
	'\u202C', // Pop Directional Formatting
	'\u202D', // Left-to-Right Override
	'\u202E', // Right-to-Left Override
	'\u2066', // Left-to-Right Isolate
	'\u2067', // Right-to-Left Isolate
	'\u2068', // First Strong Isolate
	'\u2069', // Pop Directional Isolate
}

// maxConsecutiveCombining is the longest run of combining marks accepted
// before text is treated as Zalgo abuse. Legitimate scripts rarely stack
// more than two.
const maxConsecutiveCombining = 3

// NormalizeNFC returns the canonical composition form of the text so that
// visually identical messages compare and store identically.
func NormalizeNFC(s string) string {
	return norm.NFC.String(s)
}

// Check rejects text containing Unicode constructs that can disguise content
// when rendered to other room members. Tabs and line breaks are permitted.
func Check(s string) error {
	if containsAny(s, zeroWidthChars) {
		return fmt.Errorf("text contains zero-width characters")
	}
	if containsAny(s, bidiOverrideChars) {
		return fmt.Errorf("text contains bidirectional override characters")
	}
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return fmt.Errorf("text contains control characters")
		}
		if unicode.Is(unicode.Co, r) || unicode.Is(unicode.Cs, r) {
			return fmt.Errorf("text contains private-use or surrogate characters")
		}
	}
	if hasExcessiveCombiningMarks(s) {
		return fmt.Errorf("text contains excessive combining marks")
	}
	return nil
}

func containsAny(s string, chars []rune) bool {
	for _, r := range s {
		if slices.Contains(chars, r) {
			return true
		}
	}
	return false
}

func hasExcessiveCombiningMarks(s string) bool {
	run := 0
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) {
			run++
			if run > maxConsecutiveCombining {
				return true
			}
			continue
		}
		run = 0
	}
	return false
}
