package completion

// ErrorKind enumerates the error taxonomy CompletionGateway, GraphAdapter,
// ConsolidationEngine, and ResonancePipeline surface instead of throwing.
// Every subsystem entry point contains its failures and reports one of
// these instead of letting an exception escape — see internal/audit for
// how they're recorded.
type ErrorKind string

const (
	// ErrorKindNone means no error occurred.
	ErrorKindNone ErrorKind = ""

	// ErrorKindGraphUnavailable: GraphAdapter down or unreachable.
	// Resonance returns empty; ingestion is dropped after a warn log.
	ErrorKindGraphUnavailable ErrorKind = "graph_unavailable"

	// ErrorKindGraphSyntaxError: unsanitized query operators reached the
	// adapter. Prevented by textutil.SanitizeQuery; if still raised,
	// treated as an empty result set.
	ErrorKindGraphSyntaxError ErrorKind = "graph_syntax_error"

	// ErrorKindCompletionEmpty: the LLM returned "" or a non-string body.
	// Rewrite falls back to raw bullets; consolidation returns the
	// unchanged Story.
	ErrorKindCompletionEmpty ErrorKind = "completion_empty"

	// ErrorKindCompletionStreamError: the stream emitted an error event.
	// Triggers failover if configured, else ErrorKindCompletionEmpty
	// behaviour.
	ErrorKindCompletionStreamError ErrorKind = "completion_stream_error"

	// ErrorKindStoryTooLong: wordCount(Story) > 4000. Triggers the
	// compression pass; if compression also fails, the uncompressed text
	// is kept.
	ErrorKindStoryTooLong ErrorKind = "story_too_long"

	// ErrorKindLockHeld: NarrativeLock is younger than 120s. The run
	// cycle is skipped (noop).
	ErrorKindLockHeld ErrorKind = "lock_held"

	// ErrorKindLockStale: NarrativeLock is 120s or older. The lock is
	// stolen, a warning logged, and the caller proceeds.
	ErrorKindLockStale ErrorKind = "lock_stale"

	// ErrorKindPendingLogMissing: the pending log file is gone but
	// status.tokens > 0. Falls back to a graph-derived transcript; if
	// that is still empty, the consolidation is deferred.
	ErrorKindPendingLogMissing ErrorKind = "pending_log_missing"

	// ErrorKindHistoricalIngestFailure: I/O or parse error reading one
	// historical file during bootstrap. Logged; the offending file is
	// skipped and bootstrap continues.
	ErrorKindHistoricalIngestFailure ErrorKind = "historical_ingest_failure"
)

// ClassifyError maps a raw provider error to a failover-relevant class.
// It mirrors the teacher's ClassifyError but collapses to the subset
// CompletionGateway cares about: whether the error is worth retrying
// against a fallback at all (auth/billing/context-overflow are not).
type ProviderErrorClass string

const (
	ProviderErrorAuth            ProviderErrorClass = "AUTH"
	ProviderErrorRateLimit       ProviderErrorClass = "RATE_LIMIT"
	ProviderErrorTimeout         ProviderErrorClass = "TIMEOUT"
	ProviderErrorBilling         ProviderErrorClass = "BILLING"
	ProviderErrorContextOverflow ProviderErrorClass = "CONTEXT_OVERFLOW"
	ProviderErrorUnknown         ProviderErrorClass = "UNKNOWN"
)

// Failover retries on anything except a context-window overflow — retrying
// a too-long prompt against a different provider will just fail again.
func (c ProviderErrorClass) Failover() bool {
	return c != ProviderErrorContextOverflow
}
