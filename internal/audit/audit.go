// Package audit records the error-taxonomy events mnemo's core surfaces
// (LockStale, GraphUnavailable, CompletionEmpty, ...) to an append-only
// JSONL log, and optionally mirrors them into a SQLite audit_log table.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/basket/mnemo/internal/shared"
)

type entry struct {
	Timestamp string `json:"timestamp"`
	Kind      string `json:"kind"`
	Component string `json:"component"`
	Detail    string `json:"detail"`
	TraceID   string `json:"trace_id,omitempty"`
}

var (
	mu          sync.Mutex
	file        *os.File
	db          *sql.DB
	errorsTotal atomic.Int64
)

// Init opens (creating if necessary) logs/audit.jsonl under homeDir.
// Calling Init more than once is a no-op.
func Init(homeDir string) error {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		return nil
	}
	logDir := filepath.Join(homeDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(logDir, "audit.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	file = f
	return nil
}

// SetDB configures an optional database for audit_log table mirroring.
func SetDB(d *sql.DB) {
	mu.Lock()
	defer mu.Unlock()
	db = d
}

// Close closes the underlying file. Safe to call when Init was never called.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

// ErrorsTotal returns the number of events recorded since startup.
func ErrorsTotal() int64 {
	return errorsTotal.Load()
}

// Record appends one error-taxonomy event. kind is one of the ErrorKind
// values from the completion/resonance/story packages (e.g.
// "graph_unavailable", "lock_stale", "completion_empty"); component names
// the subsystem that raised it (e.g. "resonance", "story", "completion").
// Detail and traceID pass through secret redaction before persistence.
func Record(kind, component, detail, traceID string) {
	errorsTotal.Add(1)

	detail = shared.Redact(detail)

	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		ev := entry{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Kind:      kind,
			Component: component,
			Detail:    detail,
			TraceID:   traceID,
		}
		b, err := json.Marshal(ev)
		if err == nil {
			_, _ = file.Write(append(b, '\n'))
		}
	}

	if db != nil {
		_, _ = db.ExecContext(context.Background(), `
			INSERT INTO audit_log (trace_id, component, kind, detail)
			VALUES (?, ?, ?, ?);
		`, traceID, component, kind, detail)
	}
}
