// Package textutil provides the small text-shaping helpers the resonance
// pipeline and graph adapters share: query sanitization ahead of a
// RediSearch-class backend, and a repetition truncator that cuts off
// degenerate LLM loops.
package textutil

import (
	"strings"
	"unicode"
)

// SanitizeQuery strips any rune that is not a letter, a number, whitespace,
// '-', or '_', collapses runs of whitespace to a single space, and trims
// the result. Downstream search engines of the RediSearch class reject
// punctuation and operator tokens, so every query the core issues passes
// through here first.
//
// SanitizeQuery is idempotent: SanitizeQuery(SanitizeQuery(q)) == SanitizeQuery(q).
func SanitizeQuery(q string) string {
	var b strings.Builder
	b.Grow(len(q))
	lastWasSpace := false
	for _, r := range q {
		switch {
		case isAllowedRune(r):
			if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
				if lastWasSpace {
					continue
				}
				b.WriteByte(' ')
				lastWasSpace = true
			} else {
				b.WriteRune(r)
				lastWasSpace = false
			}
		default:
			// Dropped entirely; does not count as a space boundary.
		}
	}
	return strings.TrimSpace(b.String())
}

func isAllowedRune(r rune) bool {
	if r == '-' || r == '_' {
		return true
	}
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return isLetterOrNumber(r)
}

func isLetterOrNumber(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}
