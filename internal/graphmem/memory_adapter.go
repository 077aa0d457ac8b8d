package graphmem

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryAdapter is an in-memory reference implementation of Adapter. It is
// used by tests and as the cold-start default when no graph backend is
// configured. Search is a case-insensitive substring match over stored
// episode bodies — a deliberately simple stand-in for a real semantic
// search engine.
type MemoryAdapter struct {
	mu       sync.RWMutex
	episodes map[string][]Episode // scope -> episodes, insertion order
}

// NewMemoryAdapter creates an empty MemoryAdapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{episodes: make(map[string][]Episode)}
}

func (a *MemoryAdapter) AddEpisode(_ context.Context, scope string, ep Episode) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ep.ID == "" {
		ep.ID = uuid.NewString()
	}
	a.episodes[scope] = append(a.episodes[scope], ep)
	return nil
}

func (a *MemoryAdapter) SearchNodes(ctx context.Context, scope, query string) ([]MemoryResult, error) {
	return a.search(scope, query, KindNode)
}

func (a *MemoryAdapter) SearchFacts(ctx context.Context, scope, query string) ([]MemoryResult, error) {
	return a.search(scope, query, KindFact)
}

func (a *MemoryAdapter) search(scope, query string, kind Kind) ([]MemoryResult, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	needle := strings.ToLower(query)
	var out []MemoryResult
	for _, ep := range a.episodes[scope] {
		if needle != "" && !strings.Contains(strings.ToLower(ep.Body), needle) {
			continue
		}
		ts := ep.Timestamp
		out = append(out, MemoryResult{
			Content:     ep.Body,
			Timestamp:   &ts,
			UUID:        ep.ID,
			Kind:        kind,
			SourceQuery: query,
		})
	}
	return out, nil
}

func (a *MemoryAdapter) GetEpisodesSince(_ context.Context, scope string, since time.Time, limit int) ([]Episode, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []Episode
	for _, ep := range a.episodes[scope] {
		if ep.Timestamp.After(since) {
			out = append(out, ep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
