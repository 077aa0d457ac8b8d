package resonance

import (
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/basket/mnemo/internal/graphmem"
)

// dateAnchorRE matches an authoritative date anchor embedded in content,
// per spec.md §4.4 Phase 3 step 1: "(?:Ocurrido el|memory log for|FECHA:|DATE:)
// followed by YYYY-MM-DD".
var dateAnchorRE = regexp.MustCompile(`(?:Ocurrido el|memory log for|FECHA:|DATE:)\s*(\d{4}-\d{2}-\d{2})`)

// timestampTagRE matches the "[TIMESTAMP:...]" inline tag some graph
// content carries.
var timestampTagRE = regexp.MustCompile(`\[TIMESTAMP:([^\]]+)\]`)

const (
	maxTotalResults    = 10
	maxBulletsPerGroup = 5
	dedupBulletKeyLen  = 30
)

// effectiveTimestamp resolves spec.md §4.4 Phase 3's effective-timestamp
// precedence: a date-anchor prefix, else a [TIMESTAMP:...] tag, else the
// result's own timestamp. Returns ok=false when nothing parses, which
// callers treat as "fail open" (keep the result).
func effectiveTimestamp(r graphmem.MemoryResult) (time.Time, bool) {
	if m := dateAnchorRE.FindStringSubmatch(r.Content); m != nil {
		if t, err := time.Parse("2006-01-02", m[1]); err == nil {
			return t, true
		}
	}
	if m := timestampTagRE.FindStringSubmatch(r.Content); m != nil {
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, strings.TrimSpace(m[1])); err == nil {
				return t, true
			}
		}
	}
	if r.Timestamp != nil {
		return *r.Timestamp, true
	}
	return time.Time{}, false
}

// stripTimestampNoise removes any "[TIMESTAMP:...]" tag from content
// before it is rendered as a bullet.
func stripTimestampNoise(content string) string {
	return strings.TrimSpace(timestampTagRE.ReplaceAllString(content, ""))
}

func isJSONOnly(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) >= 2 && s[0] == '{' && s[len(s)-1] == '}'
}

// dedupBulletKey normalizes s to a 30-char lowercase alphanumeric key,
// used to reject near-duplicate bullets within the accepted set.
func dedupBulletKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
			if b.Len() >= dedupBulletKeyLen {
				break
			}
		}
	}
	return b.String()
}

// Group is one query-group of surviving memories, ready for Phase 4/5.
type Group struct {
	Query   string
	Results []graphmem.MemoryResult
}

// memoryHorizon drops any result whose effective timestamp is on or after
// oldestContextTimestamp, per spec.md §4.4 Phase 3 step 1. A zero
// oldestContextTimestamp (no live context window known) disables the
// filter.
func memoryHorizon(results []graphmem.MemoryResult, oldestContextTimestamp time.Time) []graphmem.MemoryResult {
	if oldestContextTimestamp.IsZero() {
		return results
	}
	out := make([]graphmem.MemoryResult, 0, len(results))
	for _, r := range results {
		ts, ok := effectiveTimestamp(r)
		if !ok {
			out = append(out, r) // fail open
			continue
		}
		if !ts.Before(oldestContextTimestamp) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// echoFilter drops any result whose id is already in the EchoBuffer
// unless boosted, then inserts every surviving id into the buffer, per
// spec.md §4.4 Phase 3 step 2.
func (p *Pipeline) echoFilter(results []graphmem.MemoryResult) []graphmem.MemoryResult {
	out := make([]graphmem.MemoryResult, 0, len(results))
	for _, r := range results {
		key := r.DedupKey()
		if p.echo.Contains(key) && !r.Boosted {
			continue
		}
		out = append(out, r)
	}
	for _, r := range out {
		p.echo.Insert(r.DedupKey())
	}
	return out
}

// prioritySort orders results boosted-first, then fact-before-node, then
// a per-invocation coin-flipped temporal direction (old-first or
// new-first) to produce a mixed temporal spread, per spec.md §4.4 Phase 3
// step 3.
func prioritySort(results []graphmem.MemoryResult) {
	oldFirst := rand.Intn(2) == 0
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Boosted != b.Boosted {
			return a.Boosted
		}
		aFact := a.Kind == graphmem.KindFact
		bFact := b.Kind == graphmem.KindFact
		if aFact != bFact {
			return aFact
		}
		ta, aok := effectiveTimestamp(a)
		tb, bok := effectiveTimestamp(b)
		if !aok || !bok {
			return false
		}
		if oldFirst {
			return ta.Before(tb)
		}
		return ta.After(tb)
	})
}

// filterAndGroup runs the full Phase 3 pipeline: memory horizon, echo
// suppression, priority sort, the 10-across-all-queries / 5-per-group
// caps, and within-acceptance cleanup (timestamp-noise stripping,
// JSON-only skip, near-duplicate rejection). Results are grouped by
// SourceQuery and each group is left chronologically sorted for Phase 4/5.
func (p *Pipeline) filterAndGroup(results []graphmem.MemoryResult, oldestContextTimestamp, now time.Time) []Group {
	filtered := memoryHorizon(results, oldestContextTimestamp)
	filtered = p.echoFilter(filtered)
	if len(filtered) == 0 {
		return nil
	}
	prioritySort(filtered)

	byQuery := make(map[string][]graphmem.MemoryResult)
	order := make([]string, 0)
	seenBulletKeys := make(map[string]bool)
	accepted := 0

	for _, r := range filtered {
		if accepted >= maxTotalResults {
			break
		}
		if len(byQuery[r.SourceQuery]) >= maxBulletsPerGroup {
			continue
		}

		content := stripTimestampNoise(r.Content)
		if content == "" || isJSONOnly(content) {
			continue
		}
		key := dedupBulletKey(content)
		if key != "" && seenBulletKeys[key] {
			continue
		}

		r.Content = content
		if _, ok := byQuery[r.SourceQuery]; !ok {
			order = append(order, r.SourceQuery)
		}
		byQuery[r.SourceQuery] = append(byQuery[r.SourceQuery], r)
		if key != "" {
			seenBulletKeys[key] = true
		}
		accepted++
	}

	groups := make([]Group, 0, len(order))
	for _, q := range order {
		rs := byQuery[q]
		sort.SliceStable(rs, func(i, j int) bool {
			ti, _ := effectiveTimestamp(rs[i])
			tj, _ := effectiveTimestamp(rs[j])
			return ti.Before(tj)
		})
		groups = append(groups, Group{Query: q, Results: rs})
	}
	return groups
}
