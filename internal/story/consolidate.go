package story

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/basket/mnemo/internal/audit"
	"github.com/basket/mnemo/internal/completion"
	"github.com/basket/mnemo/internal/graphmem"
	"github.com/basket/mnemo/internal/pending"
)

const defaultTokenThreshold = 5000

// Config holds the per-identity tuning the batch trigger consults.
type Config struct {
	// TokenThreshold is the minimum pending.Status.Tokens before a batch
	// consolidation fires. Zero defaults to 5000.
	TokenThreshold int
	// SafeTokenLimit bounds a single synthesis call's input batch,
	// typically 50% of the model's context window. Zero defaults to
	// defaultSafeTokenLimit.
	SafeTokenLimit int
	// StoryFilename defaults to "STORY.md".
	StoryFilename string
	// AutoBootstrapHistory opts into cold-start ingestion of memory/
	// directory files when the Story is new.
	AutoBootstrapHistory bool
	Model                string
}

func (c Config) storyFilename() string {
	if c.StoryFilename == "" {
		return "STORY.md"
	}
	return c.StoryFilename
}

func (c Config) tokenThreshold() int {
	if c.TokenThreshold <= 0 {
		return defaultTokenThreshold
	}
	return c.TokenThreshold
}

// Engine is the ConsolidationEngine. One Engine serves all identities; its
// dependencies (Gateway, GraphAdapter) are process-wide, its Config is
// currently uniform across identities.
type Engine struct {
	gw      completion.Gateway
	adapter graphmem.Adapter
	cfg     Config
}

// NewEngine constructs a ConsolidationEngine. adapter may be nil if no
// graph backend is configured — the pending-log-missing fallback then
// simply defers instead of reading history from the graph.
func NewEngine(gw completion.Gateway, adapter graphmem.Adapter, cfg Config) *Engine {
	return &Engine{gw: gw, adapter: adapter, cfg: cfg}
}

// StoryPath returns the Story file path under dir.
func (e *Engine) StoryPath(dir string) string {
	return filepath.Join(dir, e.cfg.storyFilename())
}

// CheckAndConsolidate implements spec.md §4.5.2's batch trigger. dir is
// the identity's memory directory (containing STORY.md and, for
// bootstrap, a memory/ subdirectory of historical files). scope
// identifies the identity in the GraphAdapter.
func (e *Engine) CheckAndConsolidate(ctx context.Context, scope, dir string, log *pending.Log, identity Identity) error {
	storyPath := e.StoryPath(dir)

	doc, err := Load(storyPath)
	if err != nil {
		audit.Record("story_load_error", "story", err.Error(), "")
		return nil
	}
	if doc.IsNew {
		return e.bootstrap(ctx, filepath.Join(dir, "memory"), storyPath, identity)
	}

	status := log.Status()
	if status.Messages == 0 && status.Tokens == 0 {
		return nil
	}
	if status.Tokens < e.cfg.tokenThreshold() {
		return nil
	}

	transcript, err := log.ReadTranscript()
	if err != nil || strings.TrimSpace(transcript) == "" {
		audit.Record(string(completion.ErrorKindPendingLogMissing), "story", "pending log missing with nonzero status", "")
		transcript = e.fallbackTranscript(ctx, scope, doc.Anchor)
		if strings.TrimSpace(transcript) == "" {
			// Defer: nothing to consolidate from either source.
			return nil
		}
	}

	newBody, kind := UpdateNarrativeStory(ctx, e.gw, e.cfg.Model, transcript, doc.Body, identity)
	if kind != completion.ErrorKindNone {
		audit.Record(string(kind), "story", "consolidation degraded", "")
	}

	anchor, ok := maxTranscriptTimestamp(transcript)
	if !ok {
		anchor = time.Now().UTC()
	}

	if err := Write(storyPath, newBody, anchor); err != nil {
		audit.Record("story_write_error", "story", err.Error(), "")
		return err
	}

	return log.Reset()
}

func (e *Engine) fallbackTranscript(ctx context.Context, scope string, since time.Time) string {
	if e.adapter == nil {
		return ""
	}
	episodes, err := e.adapter.GetEpisodesSince(ctx, scope, since, 0)
	if err != nil {
		audit.Record(string(completion.ErrorKindGraphUnavailable), "story", err.Error(), "")
		return ""
	}
	return joinEpisodes(episodes)
}
