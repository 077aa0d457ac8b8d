package otel

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments mnemo records during resonance and
// consolidation. All instruments are created against the Provider's Meter,
// so they are no-ops when the provider was initialized with Enabled: false.
type Metrics struct {
	ResonancePhaseDuration metric.Float64Histogram
	ResonanceResultCount   metric.Int64Histogram
	EchoSuppressedTotal    metric.Int64Counter
	LockContentionTotal    metric.Int64Counter
	LockStaleReclaimTotal  metric.Int64Counter
	ConsolidationDuration  metric.Float64Histogram
	CompletionDuration     metric.Float64Histogram
	CompletionErrorsTotal  metric.Int64Counter
	BreakerTripsTotal      metric.Int64Counter
}

// NewMetrics creates the instrument set from the given meter. Any creation
// error aborts construction since a broken instrument is a programming bug,
// not a runtime condition.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	if m.ResonancePhaseDuration, err = meter.Float64Histogram(
		"mnemo.resonance.phase_duration",
		metric.WithDescription("Duration of a single resonance pipeline phase"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.ResonanceResultCount, err = meter.Int64Histogram(
		"mnemo.resonance.result_count",
		metric.WithDescription("Number of memory results surviving filtering, per resonance call"),
	); err != nil {
		return nil, err
	}
	if m.EchoSuppressedTotal, err = meter.Int64Counter(
		"mnemo.resonance.echo_suppressed_total",
		metric.WithDescription("Count of memory results suppressed by the echo buffer"),
	); err != nil {
		return nil, err
	}
	if m.LockContentionTotal, err = meter.Int64Counter(
		"mnemo.narrative_lock.contention_total",
		metric.WithDescription("Count of NarrativeLock acquisition attempts that found the lock already held"),
	); err != nil {
		return nil, err
	}
	if m.LockStaleReclaimTotal, err = meter.Int64Counter(
		"mnemo.narrative_lock.stale_reclaim_total",
		metric.WithDescription("Count of NarrativeLock reclaims of a stale lock"),
	); err != nil {
		return nil, err
	}
	if m.ConsolidationDuration, err = meter.Float64Histogram(
		"mnemo.consolidation.duration",
		metric.WithDescription("Duration of a consolidation (narrative update) pass"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.CompletionDuration, err = meter.Float64Histogram(
		"mnemo.completion.duration",
		metric.WithDescription("Duration of a CompletionGateway call"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.CompletionErrorsTotal, err = meter.Int64Counter(
		"mnemo.completion.errors_total",
		metric.WithDescription("Count of CompletionGateway errors by kind"),
	); err != nil {
		return nil, err
	}
	if m.BreakerTripsTotal, err = meter.Int64Counter(
		"mnemo.completion.breaker_trips_total",
		metric.WithDescription("Count of circuit breaker trips per provider"),
	); err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordPhase is a convenience helper for recording a phase duration along
// with its name, mirroring the attribute-tagged histogram pattern used
// throughout this package.
func (m *Metrics) RecordPhase(ctx context.Context, phase string, seconds float64) {
	if m == nil || m.ResonancePhaseDuration == nil {
		return
	}
	m.ResonancePhaseDuration.Record(ctx, seconds, metric.WithAttributes(AttrPhase.String(phase)))
}
