package completion

import "context"

// Result is the outcome of a single Complete call. A non-empty ErrorKind
// paired with a non-empty Text means the stream recovered partial output
// before the error event; callers treat that the same as full success
// unless they specifically care about degraded quality.
type Result struct {
	Text      string
	ErrorKind ErrorKind
}

// Gateway is the single-prompt, streaming text completion primitive the
// Resonance Pipeline and ConsolidationEngine call through. Implementations
// never return a Go error for provider-side failures — those surface as
// Result.ErrorKind (the error-as-event contract) — err is reserved for
// programmer errors (bad arguments, context cancellation).
type Gateway interface {
	// Complete runs prompt against model at the given temperature
	// (0 for subconscious/background calls) and returns once the full
	// response has streamed, or an error event has been observed.
	Complete(ctx context.Context, prompt, model string, temperature float32) (Result, error)
}
