// Package history persists update-pipeline run outcomes so operators can
// inspect the last batch structurally instead of scraping logs.
package history

import (
	"context"
	"time"
)

// ProjectRecord is the persisted per-project outcome of one pipeline run.
type ProjectRecord struct {
	Slug        string `json:"slug"`
	Path        string `json:"path"`
	Outcome     string `json:"outcome"`
	SyncStatus  string `json:"sync_status,omitempty"`
	SyncError   string `json:"sync_error,omitempty"`
	BuildStatus string `json:"build_status,omitempty"`
	BuildError  string `json:"build_error,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
}

// RunRecord is the persisted outcome of one pipeline run.
type RunRecord struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Projects   []ProjectRecord `json:"projects"`
}

// Store persists pipeline run records.
type Store interface {
	RecordRun(ctx context.Context, run RunRecord) error
	// LastRun returns the most recent run, or nil when none is recorded.
	LastRun(ctx context.Context) (*RunRecord, error)
	Close() error
}

// NoopStore is a Store that records nothing (default when history is not
// configured).
type NoopStore struct{}

func (NoopStore) RecordRun(context.Context, RunRecord) error  { return nil }
func (NoopStore) LastRun(context.Context) (*RunRecord, error) { return nil, nil }
func (NoopStore) Close() error                                { return nil }
