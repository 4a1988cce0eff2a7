// Package events publishes per-project pipeline outcomes to interested
// consumers. Publishing is best effort: a failed publish is logged, never
// escalated into a pipeline failure.
package events

import (
	"context"
	"time"
)

// ProjectEvent describes one project's outcome within a pipeline run.
type ProjectEvent struct {
	RunID      string    `json:"run_id"`
	Slug       string    `json:"slug"`
	Path       string    `json:"path"`
	Outcome    string    `json:"outcome"`
	SyncStatus string    `json:"sync_status,omitempty"`
	SyncError  string    `json:"sync_error,omitempty"`
	BuildError string    `json:"build_error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Publisher emits pipeline events.
type Publisher interface {
	PublishProjectResult(ctx context.Context, event ProjectEvent) error
	Close()
}

// NoopPublisher is a Publisher that drops all events (default when events
// are not configured).
type NoopPublisher struct{}

func (NoopPublisher) PublishProjectResult(context.Context, ProjectEvent) error { return nil }
func (NoopPublisher) Close()                                                   {}
