package story

import (
	"context"
	"strings"
	"time"

	"github.com/basket/mnemo/internal/completion"
	"github.com/basket/mnemo/internal/tokenutil"
)

// defaultSafeTokenLimit is used when Config.SafeTokenLimit is unset. It
// approximates 50% of a modest model context window, per spec.md §4.5.2's
// guidance ("typically 50% of model context window").
const defaultSafeTokenLimit = 64000

type chunkItem struct {
	Text      string
	Timestamp time.Time
}

// chunkAndSynthesize implements the dynamic-chunking algorithm shared by
// cold-start bootstrap (§4.5.3), global narrative sync (§4.5.5), and
// post-compaction sync (§4.5.6): maintain a rolling batch, flush through
// UpdateNarrativeStory whenever adding the next item would exceed
// safeTokenLimit, anchoring each flushed batch at its latest timestamp.
func chunkAndSynthesize(ctx context.Context, gw completion.Gateway, model string, items []chunkItem, currentStory string, identity Identity, safeTokenLimit int) (string, time.Time) {
	if safeTokenLimit <= 0 {
		safeTokenLimit = defaultSafeTokenLimit
	}

	story := currentStory
	var anchor time.Time
	var batch strings.Builder
	batchTokens := 0
	var batchMax time.Time

	flush := func() {
		if batch.Len() == 0 {
			return
		}
		newStory, _ := UpdateNarrativeStory(ctx, gw, model, batch.String(), story, identity)
		story = newStory
		if batchMax.After(anchor) {
			anchor = batchMax
		}
		batch.Reset()
		batchTokens = 0
		batchMax = time.Time{}
	}

	for _, it := range items {
		if strings.TrimSpace(it.Text) == "" {
			continue
		}
		t := tokenutil.EstimateTokens(it.Text)
		if batch.Len() > 0 && batchTokens+t > safeTokenLimit {
			flush()
		}
		if batch.Len() > 0 {
			batch.WriteString("\n---\n")
		}
		batch.WriteString(it.Text)
		batchTokens += t
		if it.Timestamp.After(batchMax) {
			batchMax = it.Timestamp
		}
	}
	flush()

	return story, anchor
}
