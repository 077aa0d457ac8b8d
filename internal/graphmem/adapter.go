// Package graphmem defines the GraphAdapter contract the Resonance
// Pipeline and ConsolidationEngine retrieve and store through, the
// MemoryResult sum type returned by search, and two concrete
// implementations: an in-memory reference adapter and a Redis-backed one.
package graphmem

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"
)

// Kind distinguishes the two retrieval projections a GraphAdapter returns.
// Nodes and Facts are modeled as a tagged variant rather than duck-typed
// records distinguished by a string field at call sites.
type Kind int

const (
	// KindNode marks an entity-oriented search result.
	KindNode Kind = iota
	// KindFact marks a relation-oriented search result.
	KindFact
)

// String renders the Kind for logging and span attributes.
func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindFact:
		return "fact"
	default:
		return "unknown"
	}
}

// MemoryResult is a single retrieval projection returned by SearchNodes or
// SearchFacts. Kind alone distinguishes which call produced it; boosted
// memories skip echo suppression.
type MemoryResult struct {
	Content     string
	Timestamp   *time.Time
	UUID        string
	Kind        Kind
	Boosted     bool
	SourceQuery string
}

// DedupKey returns the identity used for deduplication across queries:
// the UUID when present, else a stable hash of content.
func (m MemoryResult) DedupKey() string {
	if m.UUID != "" {
		return m.UUID
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(m.Content))
	return "content:" + strconv.FormatUint(h.Sum64(), 16)
}

// Episode is an append-only record in the graph: a single turn or
// historical-import line.
type Episode struct {
	ID        string
	Role      string // human, assistant, system, historical-file
	Body      string
	Timestamp time.Time
	Source    string
}

// Adapter is the GraphAdapter contract. Implementers bind to a concrete
// graph/search backend; the core never reaches past this interface.
//
// Callers MUST sanitize query strings (textutil.SanitizeQuery) before
// calling SearchNodes or SearchFacts — implementations are entitled to
// assume queries contain only letters, numbers, whitespace, '-', and '_'.
type Adapter interface {
	// AddEpisode appends an episode to scope. Timestamp may predate wall
	// clock for historical ingest. Returns once the write is queued, not
	// once it is indexed.
	AddEpisode(ctx context.Context, scope string, ep Episode) error

	// SearchNodes performs entity-oriented semantic search, returning
	// results with Kind == KindNode.
	SearchNodes(ctx context.Context, scope, query string) ([]MemoryResult, error)

	// SearchFacts performs relation-oriented semantic search, returning
	// results with Kind == KindFact.
	SearchFacts(ctx context.Context, scope, query string) ([]MemoryResult, error)

	// GetEpisodesSince returns the chronological backlog of episodes for
	// scope strictly after since, oldest first, capped at limit (0 means
	// unlimited). Used by cold-start bootstrap and the story-sync fallback
	// when the pending transcript itself is unavailable.
	GetEpisodesSince(ctx context.Context, scope string, since time.Time, limit int) ([]Episode, error)
}
