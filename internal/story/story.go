// Package story implements the ConsolidationEngine: it keeps STORY.md in
// sync with the growing backlog of non-heartbeat turns, compresses it when
// oversized, and honours exclusive access across concurrent agent
// processes via the NarrativeLock.
package story

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	// EpochAnchor is the anchor written for a skeleton Story when
	// cold-start bootstrap is declined.
	EpochAnchor = "1970-01-01T00:00:00Z"

	skeletonPlaceholder = "*(No narrative history yet.)*"
)

var anchorRE = regexp.MustCompile(`(?m)^<!--\s*LAST_PROCESSED:\s*([^-]+?)\s*-->\s*\n?`)

// ParseAnchor extracts the LAST_PROCESSED timestamp from raw Story
// content, if present and parseable.
func ParseAnchor(content string) (time.Time, bool) {
	m := anchorRE.FindStringSubmatch(content)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(m[1]))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// StripAnchor removes any existing LAST_PROCESSED header comment(s) from
// content, per spec.md §4.5.1 step 1 ("strip any existing ... comments").
func StripAnchor(content string) string {
	return anchorRE.ReplaceAllString(content, "")
}

// BuildHeader renders the LAST_PROCESSED header line for anchor.
func BuildHeader(anchor time.Time) string {
	return "<!-- LAST_PROCESSED: " + anchor.UTC().Format(time.RFC3339) + " -->"
}

// IsNew reports whether body (after stripping any anchor header) is empty
// or whitespace-only — the "new story" condition from spec.md §4.5.1 and
// the boundary behaviour "a Story file containing only a header and
// whitespace is treated as new."
func IsNew(body string) bool {
	return strings.TrimSpace(StripAnchor(body)) == ""
}

// Doc is a loaded Story: its narrative body (anchor header stripped) and
// the anchor time readers should treat as authoritative.
type Doc struct {
	Body    string
	Anchor  time.Time
	IsNew   bool
	Path    string
	mtime   time.Time
	existed bool
}

// Load reads the Story at path. A missing file is reported as a new,
// empty Doc rather than an error. The anchor falls back to file mtime
// when LAST_PROCESSED is absent or unparseable, per spec.md §4.5.1.
func Load(path string) (Doc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Doc{Path: path, IsNew: true}, nil
		}
		return Doc{}, err
	}

	raw := string(data)
	body := StripAnchor(raw)
	anchor, ok := ParseAnchor(raw)
	if !ok {
		if info, statErr := os.Stat(path); statErr == nil {
			anchor = info.ModTime()
		}
	}

	return Doc{
		Body:    strings.TrimSpace(body),
		Anchor:  anchor,
		IsNew:   IsNew(raw),
		Path:    path,
		existed: true,
	}, nil
}

// Write persists body under path with a fresh LAST_PROCESSED header
// anchored at maxTimestamp, using the write-tmp-then-rename crash safety
// discipline shared with internal/pending. It refuses to regress the
// anchor: if the existing on-disk anchor is newer than maxTimestamp, the
// existing anchor is kept (per spec.md §9's "log and refuse to regress").
func Write(path string, body string, maxTimestamp time.Time) error {
	body = strings.TrimSpace(StripAnchor(body))

	anchor := maxTimestamp
	if existing, err := Load(path); err == nil && existing.existed && existing.Anchor.After(anchor) {
		anchor = existing.Anchor
	}

	out := BuildHeader(anchor) + "\n\n" + body + "\n"

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".story-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(out); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// WriteSkeleton writes the placeholder Story used when cold-start
// bootstrap is declined (autoBootstrapHistory=false), anchored at the
// epoch so the "new story" branch is never re-taken.
func WriteSkeleton(path string) error {
	epoch, _ := time.Parse(time.RFC3339, EpochAnchor)
	return Write(path, skeletonPlaceholder, epoch)
}
