package story

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/basket/mnemo/internal/graphmem"
	"github.com/basket/mnemo/internal/pending"
)

func newTestLog(t *testing.T) *pending.Log {
	t.Helper()
	log, err := pending.New(t.TempDir())
	if err != nil {
		t.Fatalf("pending.New: %v", err)
	}
	return log
}

func TestCheckAndConsolidate_NewStoryBootstraps(t *testing.T) {
	dir := t.TempDir()
	log := newTestLog(t)
	e := NewEngine(&fakeGateway{text: "unused"}, nil, Config{AutoBootstrapHistory: false})

	if err := e.CheckAndConsolidate(context.Background(), "scope-a", dir, log, Identity{}); err != nil {
		t.Fatalf("CheckAndConsolidate: %v", err)
	}

	doc, err := Load(e.StoryPath(dir))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.IsNew {
		t.Fatalf("expected bootstrap to have populated a skeleton story")
	}
}

func TestCheckAndConsolidate_NothingPendingIsNoOp(t *testing.T) {
	dir := t.TempDir()
	if err := WriteSkeleton(filepath.Join(dir, "STORY.md")); err != nil {
		t.Fatalf("WriteSkeleton: %v", err)
	}
	log := newTestLog(t)
	gw := &fakeGateway{text: "should not be called"}
	e := NewEngine(gw, nil, Config{})

	if err := e.CheckAndConsolidate(context.Background(), "scope-a", dir, log, Identity{}); err != nil {
		t.Fatalf("CheckAndConsolidate: %v", err)
	}
	if gw.calls != 0 {
		t.Fatalf("expected no synthesis calls when nothing is pending")
	}
}

func TestCheckAndConsolidate_BelowThresholdAccumulates(t *testing.T) {
	dir := t.TempDir()
	if err := WriteSkeleton(filepath.Join(dir, "STORY.md")); err != nil {
		t.Fatalf("WriteSkeleton: %v", err)
	}
	log := newTestLog(t)
	if err := log.Track("a short turn"); err != nil {
		t.Fatalf("Track: %v", err)
	}
	gw := &fakeGateway{text: "should not be called"}
	e := NewEngine(gw, nil, Config{TokenThreshold: 5000})

	if err := e.CheckAndConsolidate(context.Background(), "scope-a", dir, log, Identity{}); err != nil {
		t.Fatalf("CheckAndConsolidate: %v", err)
	}
	if gw.calls != 0 {
		t.Fatalf("expected no synthesis calls below threshold")
	}

	status := log.Status()
	if status.Messages != 1 {
		t.Fatalf("expected pending log to retain its entry, got %d messages", status.Messages)
	}
}

func TestCheckAndConsolidate_OverThresholdFiresAndResets(t *testing.T) {
	dir := t.TempDir()
	if err := WriteSkeleton(filepath.Join(dir, "STORY.md")); err != nil {
		t.Fatalf("WriteSkeleton: %v", err)
	}
	log := newTestLog(t)
	for i := 0; i < 50; i++ {
		if err := log.Track("a reasonably long turn of conversation text to accumulate tokens quickly"); err != nil {
			t.Fatalf("Track: %v", err)
		}
	}
	gw := &fakeGateway{text: "### [2024-06-01 00:00] New Chapter\n\nConsolidated."}
	e := NewEngine(gw, nil, Config{TokenThreshold: 10})

	if err := e.CheckAndConsolidate(context.Background(), "scope-a", dir, log, Identity{}); err != nil {
		t.Fatalf("CheckAndConsolidate: %v", err)
	}
	if gw.calls == 0 {
		t.Fatalf("expected synthesis to fire above threshold")
	}

	status := log.Status()
	if status.Messages != 0 || status.Tokens != 0 {
		t.Fatalf("expected pending log reset, got %+v", status)
	}

	doc, err := Load(e.StoryPath(dir))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.Contains(doc.Body, "Consolidated.") {
		t.Fatalf("story body missing synthesis output: %q", doc.Body)
	}
}

func TestCheckAndConsolidate_RepeatedEmptyStateIsNoOp(t *testing.T) {
	dir := t.TempDir()
	if err := WriteSkeleton(filepath.Join(dir, "STORY.md")); err != nil {
		t.Fatalf("WriteSkeleton: %v", err)
	}
	log := newTestLog(t)
	gw := &fakeGateway{text: "should not be called"}
	e := NewEngine(gw, nil, Config{})

	for i := 0; i < 2; i++ {
		if err := e.CheckAndConsolidate(context.Background(), "scope-a", dir, log, Identity{}); err != nil {
			t.Fatalf("CheckAndConsolidate[%d]: %v", i, err)
		}
	}

	before, err := os.ReadFile(e.StoryPath(dir))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := e.CheckAndConsolidate(context.Background(), "scope-a", dir, log, Identity{}); err != nil {
		t.Fatalf("CheckAndConsolidate[3rd]: %v", err)
	}
	after, err := os.ReadFile(e.StoryPath(dir))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("consolidating empty pending state repeatedly mutated the story file")
	}
}

func TestCheckAndConsolidate_FallsBackToGraphWhenLogMissing(t *testing.T) {
	dir := t.TempDir()
	if err := WriteSkeleton(filepath.Join(dir, "STORY.md")); err != nil {
		t.Fatalf("WriteSkeleton: %v", err)
	}
	log := newTestLog(t)
	for i := 0; i < 50; i++ {
		if err := log.Track("a reasonably long turn of conversation text to accumulate tokens quickly"); err != nil {
			t.Fatalf("Track: %v", err)
		}
	}
	// Remove the transcript file out from under the Log so ReadTranscript
	// reports empty while Status still reports nonzero pending state.
	if err := os.Remove(filepath.Join(dir, "pending-episodes.log")); err != nil {
		t.Fatalf("remove pending log: %v", err)
	}

	adapter := graphmem.NewMemoryAdapter()
	epochAnchor, _ := time.Parse(time.RFC3339, EpochAnchor)
	if err := adapter.AddEpisode(context.Background(), "scope-a", graphmem.Episode{
		Body:      "recovered from the graph",
		Timestamp: epochAnchor.Add(time.Hour),
	}); err != nil {
		t.Fatalf("AddEpisode: %v", err)
	}

	gw := &fakeGateway{text: "### [2024-06-01 00:00] Recovered\n\nFrom the graph."}
	e := NewEngine(gw, adapter, Config{TokenThreshold: 10})

	if err := e.CheckAndConsolidate(context.Background(), "scope-a", dir, log, Identity{}); err != nil {
		t.Fatalf("CheckAndConsolidate: %v", err)
	}
	if gw.calls == 0 {
		t.Fatalf("expected fallback transcript to still trigger synthesis")
	}
}
