package story

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/basket/mnemo/internal/audit"
	"github.com/basket/mnemo/internal/completion"
)

var historicalFileRE = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}).*\.md$`)

type historicalFile struct {
	path string
	date time.Time
}

// listHistoricalFiles returns the memory/ directory's YYYY-MM-DD*.md
// files in filename-sorted order, per spec.md §4.5.3. A missing memory/
// directory yields an empty, non-error result.
func listHistoricalFiles(memDir string) ([]historicalFile, error) {
	entries, err := os.ReadDir(memDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if historicalFileRE.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]historicalFile, 0, len(names))
	for _, name := range names {
		m := historicalFileRE.FindStringSubmatch(name)
		date, err := time.Parse("2006-01-02", m[1])
		if err != nil {
			continue
		}
		out = append(out, historicalFile{path: filepath.Join(memDir, name), date: date})
	}
	return out, nil
}

// bootstrap implements spec.md §4.5.3's cold-start path: either process
// historical files via dynamic chunking, or write the epoch-anchored
// skeleton when the caller has not opted in.
func (e *Engine) bootstrap(ctx context.Context, memDir, storyPath string, identity Identity) error {
	if !e.cfg.AutoBootstrapHistory {
		return WriteSkeleton(storyPath)
	}

	files, err := listHistoricalFiles(memDir)
	if err != nil {
		audit.Record(string(completion.ErrorKindHistoricalIngestFailure), "story", err.Error(), "")
		return WriteSkeleton(storyPath)
	}
	if len(files) == 0 {
		return WriteSkeleton(storyPath)
	}

	items := make([]chunkItem, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f.path)
		if err != nil {
			audit.Record(string(completion.ErrorKindHistoricalIngestFailure), "story", err.Error(), "")
			continue
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		items = append(items, chunkItem{Text: string(data), Timestamp: f.date})
	}
	if len(items) == 0 {
		return WriteSkeleton(storyPath)
	}

	newBody, anchor := chunkAndSynthesize(ctx, e.gw, e.cfg.Model, items, "", identity, e.cfg.SafeTokenLimit)
	if strings.TrimSpace(newBody) == "" {
		return WriteSkeleton(storyPath)
	}
	return Write(storyPath, newBody, anchor)
}
