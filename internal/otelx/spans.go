package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Standard attribute keys for mnemo spans.
var (
	AttrIdentity       = attribute.Key("mnemo.identity")
	AttrSessionID      = attribute.Key("mnemo.session.id")
	AttrPhase          = attribute.Key("mnemo.resonance.phase")
	AttrQuery          = attribute.Key("mnemo.resonance.query")
	AttrResultCount    = attribute.Key("mnemo.resonance.result_count")
	AttrEchoSuppressed = attribute.Key("mnemo.resonance.echo_suppressed")
	AttrStoryBytes     = attribute.Key("mnemo.story.bytes")
	AttrLockOwner      = attribute.Key("mnemo.lock.owner")
	AttrLockStale      = attribute.Key("mnemo.lock.stale")
	AttrModel          = attribute.Key("mnemo.completion.model")
	AttrProvider       = attribute.Key("mnemo.completion.provider")
	AttrErrorKind      = attribute.Key("mnemo.error.kind")
)

// StartSpan is a convenience wrapper that starts an internal span with common attributes.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartServerSpan starts a span for an inbound request (e.g. an injected resonance call).
func StartServerSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartClientSpan starts a span for an outbound call (completion gateway, graph adapter).
func StartClientSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}
