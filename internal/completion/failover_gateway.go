package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// KVStore is the minimal interface needed for circuit breaker state
// persistence — satisfied by *persistence.Store without completion
// importing that package directly.
type KVStore interface {
	KVSet(ctx context.Context, key, val string) error
	KVGet(ctx context.Context, key string) (string, error)
}

type namedGateway struct {
	name string
	gw   Gateway
}

// circuitBreaker tracks failure counts and trip state for a single
// provider.
type circuitBreaker struct {
	failures    int
	lastFailure time.Time
	tripped     bool
}

// FailoverGateway wraps a primary Gateway with a single named fallback per
// spec.md §4.3's failover policy, generalized (per the teacher's
// FailoverBrain) to support an ordered list of fallbacks each tracked by
// its own circuit breaker.
type FailoverGateway struct {
	primary   namedGateway
	fallbacks []namedGateway

	mu             sync.Mutex
	breakers       map[string]*circuitBreaker
	threshold      int
	cooldownPeriod time.Duration
	kvStore        KVStore
}

// NewFailoverGateway wraps primary with ordered fallbacks. threshold <= 0
// defaults to 5 consecutive failures; cooldown <= 0 defaults to 5 minutes.
func NewFailoverGateway(primaryName string, primary Gateway, fallbacks map[string]Gateway, fallbackOrder []string, threshold int, cooldown time.Duration) *FailoverGateway {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}

	breakers := map[string]*circuitBreaker{primaryName: {}}
	var ordered []namedGateway
	for _, name := range fallbackOrder {
		gw, ok := fallbacks[name]
		if !ok {
			continue
		}
		ordered = append(ordered, namedGateway{name: name, gw: gw})
		breakers[name] = &circuitBreaker{}
	}

	return &FailoverGateway{
		primary:        namedGateway{name: primaryName, gw: primary},
		fallbacks:      ordered,
		breakers:       breakers,
		threshold:      threshold,
		cooldownPeriod: cooldown,
	}
}

// SetKVStore enables persistent circuit breaker state across restarts.
func (fg *FailoverGateway) SetKVStore(store KVStore) {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	fg.kvStore = store
}

// LoadBreakerState restores circuit breaker state from the KV store, if
// one is configured.
func (fg *FailoverGateway) LoadBreakerState(ctx context.Context) {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	if fg.kvStore == nil {
		return
	}
	for name, cb := range fg.breakers {
		val, err := fg.kvStore.KVGet(ctx, "completion_cb:"+name)
		if err != nil || val == "" {
			continue
		}
		var state struct {
			Failures    int       `json:"failures"`
			LastFailure time.Time `json:"last_failure"`
			Tripped     bool      `json:"tripped"`
		}
		if json.Unmarshal([]byte(val), &state) != nil {
			continue
		}
		cb.failures = state.Failures
		cb.lastFailure = state.LastFailure
		cb.tripped = state.Tripped
	}
}

// Complete implements spec.md §4.3's failover policy: try the primary;
// when it raises an error event on a failover-eligible provider AND the
// collected text is empty, retry once against the next eligible fallback
// at temperature 0.3. Failovers beyond the first are the caller's
// responsibility — this gateway walks the configured fallback order once.
func (fg *FailoverGateway) Complete(ctx context.Context, prompt, model string, temperature float32) (Result, error) {
	candidates := append([]namedGateway{fg.primary}, fg.fallbacks...)

	var last Result
	for i, c := range candidates {
		if fg.isTripped(c.name) {
			slog.Info("completion: skipping tripped provider", "provider", c.name)
			continue
		}

		temp := temperature
		if i > 0 {
			temp = 0.3
		}

		res, err := c.gw.Complete(ctx, prompt, model, temp)
		if err != nil {
			return Result{}, fmt.Errorf("completion: provider %s: %w", c.name, err)
		}
		last = res

		if res.ErrorKind == ErrorKindNone {
			fg.recordSuccess(c.name)
			return res, nil
		}

		fg.recordFailure(c.name)

		// Empty-text errors are the only ones worth failing over; a
		// stream error that still produced text is treated as a
		// (degraded) success by the caller.
		if res.Text != "" {
			return res, nil
		}
	}

	return last, nil
}

func (fg *FailoverGateway) isTripped(name string) bool {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	cb, ok := fg.breakers[name]
	if !ok || !cb.tripped {
		return false
	}
	if time.Since(cb.lastFailure) >= fg.cooldownPeriod {
		cb.tripped = false
		cb.failures = 0
		slog.Info("completion: circuit breaker reset after cooldown", "provider", name)
		return false
	}
	return true
}

func (fg *FailoverGateway) recordFailure(name string) {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	cb, ok := fg.breakers[name]
	if !ok {
		cb = &circuitBreaker{}
		fg.breakers[name] = cb
	}
	cb.failures++
	cb.lastFailure = time.Now()
	if cb.failures >= fg.threshold {
		cb.tripped = true
		slog.Warn("completion: circuit breaker tripped", "provider", name, "failures", cb.failures)
	}
	fg.persistLocked(name, cb)
}

func (fg *FailoverGateway) recordSuccess(name string) {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	cb, ok := fg.breakers[name]
	if !ok {
		return
	}
	cb.failures = 0
	cb.tripped = false
	fg.persistLocked(name, cb)
}

// persistLocked saves a single breaker's state to the KV store. Must be
// called with fg.mu held.
func (fg *FailoverGateway) persistLocked(name string, cb *circuitBreaker) {
	if fg.kvStore == nil {
		return
	}
	state := struct {
		Failures    int       `json:"failures"`
		LastFailure time.Time `json:"last_failure"`
		Tripped     bool      `json:"tripped"`
	}{cb.failures, cb.lastFailure, cb.tripped}
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	_ = fg.kvStore.KVSet(context.Background(), "completion_cb:"+name, string(data))
}
