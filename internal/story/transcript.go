package story

import (
	"strings"
	"time"

	"github.com/basket/mnemo/internal/graphmem"
)

// maxTranscriptTimestamp scans a pending-log transcript (entries separated
// by "\n---\n", each beginning with "[<RFC3339 timestamp>] ") and returns
// the latest timestamp found. Unparseable entries are ignored; an entirely
// unparseable transcript reports ok=false so the caller can fall back to
// wall-clock time rather than regress the anchor.
func maxTranscriptTimestamp(transcript string) (time.Time, bool) {
	var max time.Time
	found := false
	for _, entry := range strings.Split(transcript, "\n---\n") {
		entry = strings.TrimSpace(entry)
		if entry == "" || entry[0] != '[' {
			continue
		}
		end := strings.IndexByte(entry, ']')
		if end < 0 {
			continue
		}
		t, err := time.Parse(time.RFC3339, entry[1:end])
		if err != nil {
			continue
		}
		if !found || t.After(max) {
			max = t
			found = true
		}
	}
	return max, found
}

// joinEpisodes renders a fallback transcript from graph-adapter episodes
// (spec.md §4.5.2 step 4: "joined with \n---\n") when the pending log
// itself is unavailable.
func joinEpisodes(episodes []graphmem.Episode) string {
	parts := make([]string, 0, len(episodes))
	for _, ep := range episodes {
		parts = append(parts, "["+ep.Timestamp.UTC().Format(time.RFC3339)+"] "+ep.Body)
	}
	return strings.Join(parts, "\n---\n")
}

// episodesToChunkItems converts episodes to chunk items for the shared
// dynamic-chunking path used by bootstrap and the sync flows.
func episodesToChunkItems(episodes []graphmem.Episode) []chunkItem {
	items := make([]chunkItem, 0, len(episodes))
	for _, ep := range episodes {
		items = append(items, chunkItem{Text: ep.Body, Timestamp: ep.Timestamp})
	}
	return items
}
