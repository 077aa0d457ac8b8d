package textutil

import "strings"

// TruncateRepetitive detects a degenerate LLM loop — the same chunk of text
// repeated back to back — and cuts the string off right after the first
// occurrence of the repeated chunk.
//
// For descending chunk length from len(text)/2 down to 3, it scans for a
// position i such that text[i:i+length] == text[i+length:i+2*length] and
// the matched chunk has at least 3 non-whitespace characters. On the first
// match it truncates to text[:i+length].
//
// TruncateRepetitive is idempotent.
func TruncateRepetitive(text string) string {
	n := len(text)
	maxLen := n / 2
	for length := maxLen; length >= 3; length-- {
		for i := 0; i+2*length <= n; i++ {
			a := text[i : i+length]
			b := text[i+length : i+2*length]
			if a != b {
				continue
			}
			if nonWhitespaceCount(a) < 3 {
				continue
			}
			return text[:i+length]
		}
	}
	return text
}

func nonWhitespaceCount(s string) int {
	count := 0
	for _, r := range s {
		if !isSpaceRune(r) {
			count++
		}
	}
	return count
}

func isSpaceRune(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// SplitSeedQueries splits an LLM response on newlines, strips bullet/number
// prefixes and surrounding quotes, dedupes case-insensitively, and caps the
// result at 3 entries. Used by the resonance pipeline's seed-extraction
// phase to post-process a completion response into concrete queries.
func SplitSeedQueries(raw string) []string {
	lines := strings.Split(raw, "\n")
	seen := make(map[string]bool, len(lines))
	out := make([]string, 0, 3)
	for _, line := range lines {
		q := cleanSeedLine(line)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
		if len(out) == 3 {
			break
		}
	}
	return out
}

func cleanSeedLine(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "-*•·0123456789.) \t")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`+"`")
	return strings.TrimSpace(s)
}
