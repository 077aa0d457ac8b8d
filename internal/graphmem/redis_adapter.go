package graphmem

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAdapter is a concrete Adapter backed by a Redis stream per identity
// scope. It is a deliberately simple stand-in for a real RediSearch/Graphiti
// query engine: episodes are appended via XADD and search is a
// case-insensitive substring scan over XRANGE, rather than a real inverted
// index. It demonstrates why the core sanitizes queries before calling
// out: a RediSearch-class engine rejects punctuation and operator tokens,
// and this adapter's callers are expected to have already run
// textutil.SanitizeQuery.
type RedisAdapter struct {
	client redis.UniversalClient
}

// NewRedisAdapter wraps an existing Redis client. The caller owns the
// client's lifecycle (Close).
func NewRedisAdapter(client redis.UniversalClient) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func streamKey(scope string) string {
	return "mnemo:episodes:" + scope
}

func (a *RedisAdapter) AddEpisode(ctx context.Context, scope string, ep Episode) error {
	values := map[string]interface{}{
		"role":   ep.Role,
		"body":   ep.Body,
		"ts":     ep.Timestamp.UTC().Format(time.RFC3339Nano),
		"source": ep.Source,
	}
	if _, err := a.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(scope),
		Values: values,
	}).Result(); err != nil {
		return fmt.Errorf("graphmem: redis xadd: %w", err)
	}
	return nil
}

func (a *RedisAdapter) SearchNodes(ctx context.Context, scope, query string) ([]MemoryResult, error) {
	return a.search(ctx, scope, query, KindNode)
}

func (a *RedisAdapter) SearchFacts(ctx context.Context, scope, query string) ([]MemoryResult, error) {
	return a.search(ctx, scope, query, KindFact)
}

func (a *RedisAdapter) search(ctx context.Context, scope, query string, kind Kind) ([]MemoryResult, error) {
	entries, err := a.client.XRange(ctx, streamKey(scope), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("graphmem: redis xrange: %w", err)
	}

	needle := strings.ToLower(query)
	var out []MemoryResult
	for _, entry := range entries {
		body, _ := entry.Values["body"].(string)
		if needle != "" && !strings.Contains(strings.ToLower(body), needle) {
			continue
		}
		ts := parseStreamTimestamp(entry)
		out = append(out, MemoryResult{
			Content:     body,
			Timestamp:   ts,
			UUID:        entry.ID,
			Kind:        kind,
			SourceQuery: query,
		})
	}
	return out, nil
}

func (a *RedisAdapter) GetEpisodesSince(ctx context.Context, scope string, since time.Time, limit int) ([]Episode, error) {
	entries, err := a.client.XRange(ctx, streamKey(scope), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("graphmem: redis xrange: %w", err)
	}

	var out []Episode
	for _, entry := range entries {
		ts := parseStreamTimestamp(entry)
		if ts == nil || !ts.After(since) {
			continue
		}
		role, _ := entry.Values["role"].(string)
		body, _ := entry.Values["body"].(string)
		source, _ := entry.Values["source"].(string)
		out = append(out, Episode{
			ID:        entry.ID,
			Role:      role,
			Body:      body,
			Timestamp: *ts,
			Source:    source,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func parseStreamTimestamp(entry redis.XMessage) *time.Time {
	raw, ok := entry.Values["ts"].(string)
	if !ok {
		return streamIDTimestamp(entry.ID)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return streamIDTimestamp(entry.ID)
	}
	return &t
}

// streamIDTimestamp falls back to the millisecond component of a Redis
// stream entry ID (<ms>-<seq>) when the "ts" field is missing or
// unparseable.
func streamIDTimestamp(id string) *time.Time {
	parts := strings.SplitN(id, "-", 2)
	if len(parts) == 0 {
		return nil
	}
	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
