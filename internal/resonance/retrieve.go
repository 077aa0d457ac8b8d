package resonance

import (
	"context"
	"sync"

	"github.com/basket/mnemo/internal/audit"
	"github.com/basket/mnemo/internal/completion"
	"github.com/basket/mnemo/internal/graphmem"
	"github.com/basket/mnemo/internal/textutil"
)

// retrieve implements spec.md §4.4 Phase 2: for each seed query, in
// parallel, sanitize it and call SearchNodes + SearchFacts concurrently,
// tag every result with the sanitized query that produced it, then
// deduplicate by (uuid || content) across every query.
func (p *Pipeline) retrieve(ctx context.Context, scope string, queries []string) []graphmem.MemoryResult {
	if p.adapter == nil {
		return nil
	}

	type queryResult struct {
		results []graphmem.MemoryResult
	}

	var wg sync.WaitGroup
	out := make([]queryResult, len(queries))

	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			out[i] = queryResult{results: p.retrieveOne(ctx, scope, q)}
		}(i, q)
	}
	wg.Wait()

	seen := make(map[string]bool)
	var all []graphmem.MemoryResult
	for _, qr := range out {
		for _, r := range qr.results {
			key := r.DedupKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, r)
		}
	}
	return all
}

// retrieveOne sanitizes a single query and fans out SearchNodes/SearchFacts
// concurrently, tagging the results with the sanitized query.
func (p *Pipeline) retrieveOne(ctx context.Context, scope, rawQuery string) []graphmem.MemoryResult {
	sanitized := textutil.SanitizeQuery(rawQuery)
	if sanitized == "" {
		return nil
	}

	var nodes, facts []graphmem.MemoryResult
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		res, err := p.adapter.SearchNodes(ctx, scope, sanitized)
		if err != nil {
			audit.Record(string(completion.ErrorKindGraphUnavailable), "resonance", err.Error(), "")
			return
		}
		nodes = res
	}()

	go func() {
		defer wg.Done()
		res, err := p.adapter.SearchFacts(ctx, scope, sanitized)
		if err != nil {
			audit.Record(string(completion.ErrorKindGraphUnavailable), "resonance", err.Error(), "")
			return
		}
		facts = res
	}()

	wg.Wait()

	tagged := make([]graphmem.MemoryResult, 0, len(nodes)+len(facts))
	for _, r := range nodes {
		r.SourceQuery = sanitized
		tagged = append(tagged, r)
	}
	for _, r := range facts {
		r.SourceQuery = sanitized
		tagged = append(tagged, r)
	}
	return tagged
}
