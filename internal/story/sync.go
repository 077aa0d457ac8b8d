package story

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/basket/mnemo/internal/audit"
	"github.com/basket/mnemo/internal/pending"
)

type sessionMessage struct {
	Timestamp time.Time
	Text      string
}

// ndjsonEntry is the subset of a session transcript line this package
// cares about. Unknown fields are ignored by encoding/json.
type ndjsonEntry struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// listRecentSessionFiles returns up to 5 of the most-recently-modified
// *.jsonl files under dir, excluding currentSessionPath if non-empty.
func listRecentSessionFiles(dir, currentSessionPath string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if currentSessionPath != "" && path == currentSessionPath {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{path: path, modTime: info.ModTime()})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})

	if len(candidates) > 5 {
		candidates = candidates[:5]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.path
	}
	return out, nil
}

// readSessionMessages stream-parses an NDJSON transcript, keeping only
// message entries newer than since and not heartbeats.
func readSessionMessages(path string, since time.Time) ([]sessionMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []sessionMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry ndjsonEntry
		if json.Unmarshal([]byte(line), &entry) != nil {
			continue
		}
		if entry.Type != "message" {
			continue
		}
		if !entry.Timestamp.After(since) {
			continue
		}
		if strings.TrimSpace(entry.Text) == "" || pending.IsHeartbeat(entry.Text) {
			continue
		}
		out = append(out, sessionMessage{Timestamp: entry.Timestamp, Text: entry.Text})
	}
	return out, scanner.Err()
}

// SyncGlobalNarrative implements spec.md §4.5.5: on agent startup, recover
// un-narrated messages from prior sessions' NDJSON transcripts under
// sessionsDir, guarded by the NarrativeLock in dir. currentSessionPath
// may be empty.
func (e *Engine) SyncGlobalNarrative(ctx context.Context, dir, sessionsDir, currentSessionPath string, identity Identity) error {
	lock := NewNarrativeLock(dir)
	ok, err := lock.Acquire()
	if err != nil {
		audit.Record("narrative_lock_error", "story", err.Error(), "")
		return err
	}
	if !ok {
		return nil
	}
	defer lock.Release()

	storyPath := e.StoryPath(dir)
	doc, err := Load(storyPath)
	if err != nil {
		audit.Record("story_load_error", "story", err.Error(), "")
		return nil
	}

	files, err := listRecentSessionFiles(sessionsDir, currentSessionPath)
	if err != nil {
		audit.Record("session_list_error", "story", err.Error(), "")
		return nil
	}
	if len(files) == 0 {
		return nil
	}

	var all []sessionMessage
	for _, f := range files {
		msgs, err := readSessionMessages(f, doc.Anchor)
		if err != nil {
			audit.Record("session_read_error", "story", err.Error(), "")
			continue
		}
		all = append(all, msgs...)
	}
	if len(all) == 0 {
		return nil
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.Before(all[j].Timestamp) })

	items := make([]chunkItem, len(all))
	for i, m := range all {
		items[i] = chunkItem{Text: m.Text, Timestamp: m.Timestamp}
	}

	newBody, anchor := chunkAndSynthesize(ctx, e.gw, e.cfg.Model, items, doc.Body, identity, e.cfg.SafeTokenLimit)
	if strings.TrimSpace(newBody) == "" || anchor.IsZero() {
		return nil
	}
	if err := Write(storyPath, newBody, anchor); err != nil {
		audit.Record("story_write_error", "story", err.Error(), "")
		return err
	}
	return nil
}

// SessionMessage is the caller-supplied message shape for
// SyncStoryWithSession — the agent runtime's own in-memory session log,
// as opposed to the on-disk NDJSON transcripts SyncGlobalNarrative reads.
type SessionMessage struct {
	Timestamp time.Time
	Text      string
}

// SyncStoryWithSession implements spec.md §4.5.6: called when the agent
// runtime reports a context compaction. Fire-and-forget from the
// caller's perspective — any failure is logged via audit and swallowed.
func (e *Engine) SyncStoryWithSession(ctx context.Context, dir string, messages []SessionMessage, identity Identity) {
	defer func() {
		if r := recover(); r != nil {
			audit.Record("sync_panic", "story", "recovered panic in SyncStoryWithSession", "")
		}
	}()

	storyPath := e.StoryPath(dir)
	doc, err := Load(storyPath)
	if err != nil {
		audit.Record("story_load_error", "story", err.Error(), "")
		return
	}

	var filtered []chunkItem
	for _, m := range messages {
		if !m.Timestamp.After(doc.Anchor) {
			continue
		}
		if strings.TrimSpace(m.Text) == "" || pending.IsHeartbeat(m.Text) {
			continue
		}
		filtered = append(filtered, chunkItem{Text: m.Text, Timestamp: m.Timestamp})
	}
	if len(filtered) == 0 {
		return
	}

	newBody, anchor := chunkAndSynthesize(ctx, e.gw, e.cfg.Model, filtered, doc.Body, identity, e.cfg.SafeTokenLimit)
	if strings.TrimSpace(newBody) == "" || anchor.IsZero() {
		return
	}
	if err := Write(storyPath, newBody, anchor); err != nil {
		audit.Record("story_write_error", "story", err.Error(), "")
	}
}
