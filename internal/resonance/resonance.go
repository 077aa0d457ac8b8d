// Package resonance implements the Resonance Pipeline: the per-turn
// retrieve → filter → rewrite → inject path that produces the
// ResonanceBlock the caller appends to its system prompt. See spec.md
// §4.4 for the six phases; each is implemented in its own file.
package resonance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/basket/mnemo/internal/bus"
	"github.com/basket/mnemo/internal/completion"
	"github.com/basket/mnemo/internal/graphmem"
	otelx "github.com/basket/mnemo/internal/otelx"
)

// Phase names the pipeline's state machine steps, per spec.md §4.4's
// "Idle → ExtractingSeeds → SearchingGraph → Filtering →
// (Rewriting | Fallback) → Emitting → Idle". Modeled as a typed enum so
// each transition can be published on the event bus rather than left as
// implicit control flow.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseExtractingSeeds Phase = "extracting_seeds"
	PhaseSearchingGraph  Phase = "searching_graph"
	PhaseFiltering       Phase = "filtering"
	PhaseRewriting       Phase = "rewriting"
	PhaseFallback        Phase = "fallback"
	PhaseEmitting        Phase = "emitting"
)

// Identity bundles the persona + ongoing Story the rewrite phase includes
// in its anti-hallucination prompt, mirroring story.Identity so callers
// needn't build two separate bundles.
type Identity struct {
	Soul  string
	Story string
}

// Input is everything one turn of the pipeline needs.
type Input struct {
	Scope                  string    // identity scope bound to GraphAdapter calls
	SessionID              string
	CurrentPrompt          string
	RecentMessages         []string  // last <=20 non-system turns, oldest first
	StoryContext           string    // optional, folded into Identity.Story if Identity.Story is empty
	OldestContextTimestamp time.Time // earliest timestamp visible in the live chat window
	Identity               Identity
	Now                    time.Time // defaults to time.Now() when zero
}

// Config tunes pipeline behavior.
type Config struct {
	Model          string
	RewriteEnabled bool
	// Budget caps the number of phase-5 rewrite calls issued this turn. Zero
	// means unlimited (one rewrite call per surviving query group).
	Budget int
}

// Pipeline is the ResonancePipeline. One Pipeline instance is safe for
// concurrent use across turns as long as its EchoBuffer usage is
// single-threaded per turn — see spec.md §4.4's "single-threaded per
// turn" invariant, which callers must uphold by not running two turns
// for the same identity concurrently.
type Pipeline struct {
	adapter graphmem.Adapter
	gw      completion.Gateway
	cfg     Config
	echo    *EchoBuffer
	bus     *bus.Bus
	tracer  trace.Tracer
}

// New constructs a Pipeline. gw may be nil, in which case Phase 1 seed
// extraction and Phase 5 rewriting both fall back to their non-LLM paths.
func New(adapter graphmem.Adapter, gw completion.Gateway, cfg Config, b *bus.Bus) *Pipeline {
	return &Pipeline{
		adapter: adapter,
		gw:      gw,
		cfg:     cfg,
		echo:    NewEchoBuffer(echoBufferCapacity),
		bus:     b,
	}
}

// SetTracer attaches an OpenTelemetry tracer so each phase transition emits
// a span event in addition to its bus.Publish. Optional: a Pipeline with no
// tracer set behaves identically, just without the trace data.
func (p *Pipeline) SetTracer(tracer trace.Tracer) {
	p.tracer = tracer
}

// Run executes all six phases and returns the ResonanceBlock, or "" if
// nothing resonates. Run never returns a Go error: every phase degrades
// to an empty/fallback result rather than propagating a failure, per
// spec.md §7's "no exceptions escape the subsystem's public entry
// points."
func (p *Pipeline) Run(ctx context.Context, in Input) string {
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	if strings.TrimSpace(in.CurrentPrompt) == "" {
		return ""
	}

	if p.tracer != nil {
		var span trace.Span
		ctx, span = otelx.StartSpan(ctx, p.tracer, "resonance.run",
			otelx.AttrIdentity.String(in.Scope), otelx.AttrSessionID.String(in.SessionID))
		defer span.End()
	}

	p.emitPhase(ctx, PhaseExtractingSeeds)
	queries := p.extractSeeds(ctx, in)
	if len(queries) == 0 {
		p.emitPhase(ctx, PhaseEmitting)
		return ""
	}

	p.emitPhase(ctx, PhaseSearchingGraph)
	results := p.retrieve(ctx, in.Scope, queries)
	if len(results) == 0 {
		p.emitPhase(ctx, PhaseEmitting)
		return ""
	}

	p.emitPhase(ctx, PhaseFiltering)
	groups := p.filterAndGroup(results, in.OldestContextTimestamp, in.Now)
	if len(groups) == 0 {
		p.emitPhase(ctx, PhaseEmitting)
		return ""
	}

	phase := PhaseRewriting
	if !p.cfg.RewriteEnabled || p.gw == nil {
		phase = PhaseFallback
	}
	p.emitPhase(ctx, phase)

	blocks := p.renarrate(ctx, groups, in)
	if len(blocks) == 0 {
		p.emitPhase(ctx, PhaseEmitting)
		return ""
	}

	p.emitPhase(ctx, PhaseEmitting)
	body := strings.Join(blocks, "\n\n")

	if p.bus != nil {
		p.bus.Publish(bus.TopicResonanceEmitted, bus.ResonanceEmittedEvent{
			Identity:    in.Scope,
			SessionID:   in.SessionID,
			Query:       queries[0],
			ResultCount: len(results),
		})
	}

	return WrapBlock(body)
}

func (p *Pipeline) emitPhase(ctx context.Context, phase Phase) {
	if p.bus != nil {
		p.bus.Publish(bus.TopicResonancePhase, phase)
	}
	if p.tracer != nil {
		trace.SpanFromContext(ctx).AddEvent("phase", trace.WithAttributes(otelx.AttrPhase.String(string(phase))))
	}
}

// WrapBlock renders body inside the exact ResonanceBlock delimiters from
// spec.md §3.
func WrapBlock(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return fmt.Sprintf("\n---\n[SUBCONSCIOUS RESONANCE]\n%s\n---\n", body)
}
