package story

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeSessionFile(t *testing.T, path string, lines []string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestListRecentSessionFiles_CapsAtFiveAndExcludesCurrent(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 7; i++ {
		writeSessionFile(t, filepath.Join(dir, "session-"+string(rune('a'+i))+".jsonl"), []string{`{}`})
		time.Sleep(time.Millisecond)
	}
	current := filepath.Join(dir, "session-a.jsonl")

	files, err := listRecentSessionFiles(dir, current)
	if err != nil {
		t.Fatalf("listRecentSessionFiles: %v", err)
	}
	if len(files) != 5 {
		t.Fatalf("expected 5 files, got %d", len(files))
	}
	for _, f := range files {
		if f == current {
			t.Fatalf("current session path leaked into results")
		}
	}
}

func TestReadSessionMessages_FiltersHeartbeatsAndOldEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.jsonl")
	writeSessionFile(t, path, []string{
		`{"type":"message","timestamp":"2024-01-01T00:00:00Z","text":"too old"}`,
		`{"type":"message","timestamp":"2024-01-03T00:00:00Z","text":"HEARTBEAT_OK"}`,
		`{"type":"other","timestamp":"2024-01-03T00:00:00Z","text":"wrong type"}`,
		`{"type":"message","timestamp":"2024-01-03T00:00:00Z","text":"a real message"}`,
	})

	since := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	msgs, err := readSessionMessages(path, since)
	if err != nil {
		t.Fatalf("readSessionMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message to survive filtering, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].Text != "a real message" {
		t.Fatalf("unexpected message survived: %+v", msgs[0])
	}
}

func TestSyncGlobalNarrative_NarrativizesRecoveredMessages(t *testing.T) {
	dir := t.TempDir()
	if err := WriteSkeleton(filepath.Join(dir, "STORY.md")); err != nil {
		t.Fatalf("WriteSkeleton: %v", err)
	}

	sessions := t.TempDir()
	writeSessionFile(t, filepath.Join(sessions, "s1.jsonl"), []string{
		`{"type":"message","timestamp":"2024-06-01T10:00:00Z","text":"recovered turn one"}`,
		`{"type":"message","timestamp":"2024-06-01T11:00:00Z","text":"recovered turn two"}`,
	})

	gw := &fakeGateway{text: "### [2024-06-01 11:00] Recovered\n\nPicked back up."}
	e := NewEngine(gw, nil, Config{})

	if err := e.SyncGlobalNarrative(context.Background(), dir, sessions, "", Identity{}); err != nil {
		t.Fatalf("SyncGlobalNarrative: %v", err)
	}
	if gw.calls == 0 {
		t.Fatalf("expected synthesis to run over recovered messages")
	}

	doc, err := Load(filepath.Join(dir, "STORY.md"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.Contains(doc.Body, "Picked back up.") {
		t.Fatalf("story missing synthesized content: %q", doc.Body)
	}
}

func TestSyncGlobalNarrative_SkipsWhenLockHeld(t *testing.T) {
	dir := t.TempDir()
	if err := WriteSkeleton(filepath.Join(dir, "STORY.md")); err != nil {
		t.Fatalf("WriteSkeleton: %v", err)
	}
	lock := NewNarrativeLock(dir)
	ok, err := lock.Acquire()
	if err != nil || !ok {
		t.Fatalf("lock.Acquire: ok=%v err=%v", ok, err)
	}
	defer lock.Release()

	sessions := t.TempDir()
	writeSessionFile(t, filepath.Join(sessions, "s1.jsonl"), []string{
		`{"type":"message","timestamp":"2024-06-01T10:00:00Z","text":"should not be read"}`,
	})

	gw := &fakeGateway{text: "should not be called"}
	e := NewEngine(gw, nil, Config{})

	if err := e.SyncGlobalNarrative(context.Background(), dir, sessions, "", Identity{}); err != nil {
		t.Fatalf("SyncGlobalNarrative: %v", err)
	}
	if gw.calls != 0 {
		t.Fatalf("expected sync to skip while lock is held by another process")
	}
}

func TestSyncStoryWithSession_FiltersAndNarrativizes(t *testing.T) {
	dir := t.TempDir()
	if err := WriteSkeleton(filepath.Join(dir, "STORY.md")); err != nil {
		t.Fatalf("WriteSkeleton: %v", err)
	}

	gw := &fakeGateway{text: "### [2024-06-01 00:00] Compacted\n\nContinuing on."}
	e := NewEngine(gw, nil, Config{})

	epoch, _ := time.Parse(time.RFC3339, EpochAnchor)
	messages := []SessionMessage{
		{Timestamp: epoch.Add(-time.Hour), Text: "before the anchor, should be dropped"},
		{Timestamp: epoch.Add(time.Hour), Text: "HEARTBEAT_OK"},
		{Timestamp: epoch.Add(2 * time.Hour), Text: "a real compacted message"},
	}

	e.SyncStoryWithSession(context.Background(), dir, messages, Identity{})

	if gw.calls != 1 {
		t.Fatalf("expected exactly 1 synthesis call, got %d", gw.calls)
	}

	doc, err := Load(filepath.Join(dir, "STORY.md"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.Contains(doc.Body, "Continuing on.") {
		t.Fatalf("story missing synthesized content: %q", doc.Body)
	}
}

func TestSyncStoryWithSession_NoQualifyingMessagesIsNoOp(t *testing.T) {
	dir := t.TempDir()
	if err := WriteSkeleton(filepath.Join(dir, "STORY.md")); err != nil {
		t.Fatalf("WriteSkeleton: %v", err)
	}
	gw := &fakeGateway{text: "should not be called"}
	e := NewEngine(gw, nil, Config{})

	e.SyncStoryWithSession(context.Background(), dir, nil, Identity{})

	if gw.calls != 0 {
		t.Fatalf("expected no synthesis calls with no messages")
	}
}
