// Package metrics defines observability hooks for the update pipeline with a
// Prometheus-backed implementation.
package metrics

import "time"

// Recorder defines observability hooks for pipeline, sync and build metrics.
// All methods must be safe on the NoopRecorder so injection stays optional.
type Recorder interface {
	ObserveSyncDuration(project string, d time.Duration, success bool)
	ObserveBuildDuration(project string, d time.Duration, success bool)
	ObservePipelineDuration(d time.Duration)
	IncProjectOutcome(outcome string) // outcome: synced|skipped|failed
	SetPipelineConcurrency(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not
// configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveSyncDuration(string, time.Duration, bool)  {}
func (NoopRecorder) ObserveBuildDuration(string, time.Duration, bool) {}
func (NoopRecorder) ObservePipelineDuration(time.Duration)            {}
func (NoopRecorder) IncProjectOutcome(string)                         {}
func (NoopRecorder) SetPipelineConcurrency(int)                       {}
