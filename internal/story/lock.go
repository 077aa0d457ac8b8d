package story

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// staleLockThreshold mirrors the lease-expiry pattern of a task queue's
// lease_owner/lease_expires_at columns, generalized from a SQLite row to
// a filesystem lock file: a lock older than this is presumed abandoned
// by a crashed process and may be stolen.
const staleLockThreshold = 120 * time.Second

type lockContent struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"startedAt"`
}

// NarrativeLock guards concurrent ConsolidationEngine runs against the
// same Story file (spec.md §4.5.5). It is held by a single lock file
// whose content records the owning pid and acquisition time so a later
// process can tell whether the lock is stale.
type NarrativeLock struct {
	path string
}

func NewNarrativeLock(dir string) *NarrativeLock {
	return &NarrativeLock{path: filepath.Join(dir, ".narrative.lock")}
}

// Acquire takes the lock, stealing it if the existing holder's lock is
// older than staleLockThreshold. It returns ok=false without error if a
// live lock is held by someone else.
func (l *NarrativeLock) Acquire() (bool, error) {
	content := lockContent{PID: os.Getpid(), StartedAt: time.Now().UTC()}
	data, err := json.Marshal(content)
	if err != nil {
		return false, err
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		defer f.Close()
		if _, err := f.Write(data); err != nil {
			return false, err
		}
		return true, nil
	}
	if !os.IsExist(err) {
		return false, err
	}

	existing, readErr := os.ReadFile(l.path)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return l.Acquire()
		}
		return false, readErr
	}
	var held lockContent
	if json.Unmarshal(existing, &held) != nil || time.Since(held.StartedAt) > staleLockThreshold {
		// Stale or unreadable: steal it.
		if err := os.WriteFile(l.path, data, 0o644); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}

// Release unconditionally removes the lock file. Callers should defer
// this immediately after a successful Acquire so the lock is released
// even if synthesis panics or errors.
func (l *NarrativeLock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release narrative lock: %w", err)
	}
	return nil
}
