package story

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestListHistoricalFiles_MissingDirIsEmpty(t *testing.T) {
	files, err := listHistoricalFiles(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("listHistoricalFiles: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %d", len(files))
	}
}

func TestListHistoricalFiles_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "2024-03-02-notes.md"), "b")
	writeFile(t, filepath.Join(dir, "2024-01-15-notes.md"), "a")
	writeFile(t, filepath.Join(dir, "not-a-date.md"), "skip me")
	writeFile(t, filepath.Join(dir, "2024-02-10-notes.txt"), "wrong ext")

	files, err := listHistoricalFiles(dir)
	if err != nil {
		t.Fatalf("listHistoricalFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 matching files, got %d: %+v", len(files), files)
	}
	if filepath.Base(files[0].path) != "2024-01-15-notes.md" {
		t.Fatalf("expected filename-sorted order, got %s first", files[0].path)
	}
}

func TestBootstrap_OptOutWritesSkeleton(t *testing.T) {
	dir := t.TempDir()
	storyPath := filepath.Join(dir, "STORY.md")
	e := NewEngine(&fakeGateway{text: "should not be called"}, nil, Config{AutoBootstrapHistory: false})

	if err := e.bootstrap(context.Background(), filepath.Join(dir, "memory"), storyPath, Identity{}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	doc, err := Load(storyPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.IsNew {
		t.Fatalf("expected skeleton to read back as not-new")
	}
	wantEpoch, err := time.Parse(time.RFC3339, EpochAnchor)
	if err != nil {
		t.Fatalf("parse epoch: %v", err)
	}
	if !doc.Anchor.Equal(wantEpoch) {
		t.Fatalf("anchor = %v, want epoch %v", doc.Anchor, wantEpoch)
	}
}

func TestBootstrap_NoHistoricalFilesWritesSkeleton(t *testing.T) {
	dir := t.TempDir()
	storyPath := filepath.Join(dir, "STORY.md")
	e := NewEngine(&fakeGateway{text: "unused"}, nil, Config{AutoBootstrapHistory: true})

	if err := e.bootstrap(context.Background(), filepath.Join(dir, "memory"), storyPath, Identity{}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	doc, err := Load(storyPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.IsNew {
		t.Fatalf("expected skeleton")
	}
}

func TestBootstrap_ProcessesHistoricalFiles(t *testing.T) {
	dir := t.TempDir()
	memDir := filepath.Join(dir, "memory")
	writeFile(t, filepath.Join(memDir, "2024-01-01-log.md"), "first day of events")
	writeFile(t, filepath.Join(memDir, "2024-01-02-log.md"), "second day of events")

	storyPath := filepath.Join(dir, "STORY.md")
	gw := &recordingGateway{}
	e := NewEngine(gw, nil, Config{AutoBootstrapHistory: true})

	if err := e.bootstrap(context.Background(), memDir, storyPath, Identity{}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if len(gw.prompts) == 0 {
		t.Fatalf("expected at least one synthesis call")
	}

	doc, err := Load(storyPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.IsNew {
		t.Fatalf("expected populated story after bootstrap")
	}
}
