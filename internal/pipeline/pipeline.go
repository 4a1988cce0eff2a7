// Package pipeline orchestrates the per-project synchronize-then-build batch.
// Each project is an independent task: its failures are captured in a
// structured result and never prevent other projects from updating.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docserve/internal/builder"
	"git.home.luguber.info/inful/docserve/internal/config"
	"git.home.luguber.info/inful/docserve/internal/events"
	"git.home.luguber.info/inful/docserve/internal/gitsync"
	"git.home.luguber.info/inful/docserve/internal/history"
	"git.home.luguber.info/inful/docserve/internal/logfields"
	"git.home.luguber.info/inful/docserve/internal/metrics"
	"git.home.luguber.info/inful/docserve/internal/registry"
)

// Synchronizer brings a working copy up to date with its remote.
type Synchronizer interface {
	Sync(ctx context.Context, path, url string) (gitsync.Result, error)
}

// Builder dispatches a project's documentation build tooling.
type Builder interface {
	Build(ctx context.Context, project config.ProjectConfig) (builder.Status, error)
}

// Outcome classifies a project's overall pipeline result.
type Outcome string

const (
	// OutcomeSynced means synchronization and build both completed (a
	// skipped build step still counts as completed).
	OutcomeSynced Outcome = "synced"
	// OutcomeSkipped means the project has no remote URL; neither
	// synchronization nor build was attempted.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means synchronization or build reported an error.
	OutcomeFailed Outcome = "failed"
)

// ProjectResult is the structured outcome of one project's pipeline task.
type ProjectResult struct {
	Slug        string
	Path        string
	Outcome     Outcome
	SyncStatus  gitsync.Status
	SyncErr     error
	BuildStatus builder.Status
	BuildErr    error
	Duration    time.Duration
}

// RunResult is the outcome of a full pipeline run.
type RunResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []ProjectResult
}

// Failed returns the number of projects whose pipeline task failed.
func (r *RunResult) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			n++
		}
	}
	return n
}

// Runner drives the batch over all registered projects.
type Runner struct {
	registry    *registry.Registry
	sync        Synchronizer
	build       Builder
	concurrency int
	timeout     time.Duration
	recorder    metrics.Recorder
	store       history.Store
	publisher   events.Publisher
}

// NewRunner creates a Runner. Concurrency below 1 is treated as 1, which
// preserves the strictly sequential one-project-at-a-time behavior. A zero
// timeout disables the per-project bound.
func NewRunner(reg *registry.Registry, sync Synchronizer, build Builder, concurrency int, timeout time.Duration) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		registry:    reg,
		sync:        sync,
		build:       build,
		concurrency: concurrency,
		timeout:     timeout,
		recorder:    metrics.NoopRecorder{},
		store:       history.NoopStore{},
		publisher:   events.NoopPublisher{},
	}
}

// WithRecorder injects a metrics recorder.
func (r *Runner) WithRecorder(rec metrics.Recorder) *Runner {
	if rec != nil {
		r.recorder = rec
	}
	return r
}

// WithHistory injects a run history store.
func (r *Runner) WithHistory(store history.Store) *Runner {
	if store != nil {
		r.store = store
	}
	return r
}

// WithPublisher injects an event publisher.
func (r *Runner) WithPublisher(pub events.Publisher) *Runner {
	if pub != nil {
		r.publisher = pub
	}
	return r
}

// Run processes every registered project and returns the structured batch
// outcome. One project's failure never aborts the batch; Run itself only
// fails through the returned per-project results.
func (r *Runner) Run(ctx context.Context) *RunResult {
	projects := r.registry.Projects()
	run := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Results:   make([]ProjectResult, len(projects)),
	}

	slog.Info("Starting update pipeline",
		logfields.RunID(run.RunID),
		slog.Int("projects", len(projects)),
		slog.Int("concurrency", r.concurrency))
	r.recorder.SetPipelineConcurrency(r.concurrency)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < r.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				run.Results[i] = r.processProject(ctx, run.RunID, projects[i])
			}
		}()
	}
	for i := range projects {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	run.FinishedAt = time.Now()
	r.recorder.ObservePipelineDuration(run.FinishedAt.Sub(run.StartedAt))
	r.record(ctx, run)

	slog.Info("Update pipeline finished",
		logfields.RunID(run.RunID),
		slog.Int("projects", len(projects)),
		slog.Int("failed", run.Failed()),
		logfields.DurationMS(float64(run.FinishedAt.Sub(run.StartedAt).Milliseconds())))
	return run
}

// processProject runs one project's synchronize-then-build task under the
// per-project timeout. The build is attempted regardless of synchronization
// failure: stale sources may still produce useful documentation.
func (r *Runner) processProject(ctx context.Context, runID string, p *registry.Project) ProjectResult {
	result := ProjectResult{Slug: p.Slug, Path: p.Config.Path}
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		r.recorder.IncProjectOutcome(string(result.Outcome))
		r.publish(ctx, runID, result)
	}()

	if p.Config.Repo == "" {
		slog.Warn("Skipping project without repository URL", logfields.Project(p.Config.Path))
		result.Outcome = OutcomeSkipped
		return result
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	slog.Info("Updating project", logfields.Project(p.Config.Path), logfields.URL(p.Config.Repo))
	syncStart := time.Now()
	syncRes, syncErr := r.sync.Sync(ctx, p.Path, p.Config.Repo)
	r.recorder.ObserveSyncDuration(p.Config.Path, time.Since(syncStart), syncErr == nil)
	if syncErr != nil {
		slog.Error("Failed to update project", logfields.Project(p.Config.Path), logfields.Error(syncErr))
		result.SyncErr = syncErr
	} else {
		result.SyncStatus = syncRes.Status
	}

	buildStart := time.Now()
	buildStatus, buildErr := r.build.Build(ctx, p.Config)
	r.recorder.ObserveBuildDuration(p.Config.Path, time.Since(buildStart), buildErr == nil)
	if buildErr != nil {
		slog.Error("Failed to build project documentation", logfields.Project(p.Config.Path), logfields.Error(buildErr))
		result.BuildErr = buildErr
	} else {
		result.BuildStatus = buildStatus
	}

	if syncErr != nil || buildErr != nil {
		result.Outcome = OutcomeFailed
	} else {
		result.Outcome = OutcomeSynced
	}
	return result
}

// record persists the run. History failures are logged, not escalated.
func (r *Runner) record(ctx context.Context, run *RunResult) {
	rec := history.RunRecord{
		RunID:      run.RunID,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Projects:   make([]history.ProjectRecord, 0, len(run.Results)),
	}
	for _, res := range run.Results {
		p := history.ProjectRecord{
			Slug:        res.Slug,
			Path:        res.Path,
			Outcome:     string(res.Outcome),
			SyncStatus:  string(res.SyncStatus),
			BuildStatus: string(res.BuildStatus),
			DurationMS:  res.Duration.Milliseconds(),
		}
		if res.SyncErr != nil {
			p.SyncError = res.SyncErr.Error()
		}
		if res.BuildErr != nil {
			p.BuildError = res.BuildErr.Error()
		}
		rec.Projects = append(rec.Projects, p)
	}
	if err := r.store.RecordRun(ctx, rec); err != nil {
		slog.Warn("Failed to record pipeline run", logfields.RunID(run.RunID), logfields.Error(err))
	}
}

// publish emits the per-project event. Publish failures are logged, not
// escalated.
func (r *Runner) publish(ctx context.Context, runID string, res ProjectResult) {
	ev := events.ProjectEvent{
		RunID:      runID,
		Slug:       res.Slug,
		Path:       res.Path,
		Outcome:    string(res.Outcome),
		SyncStatus: string(res.SyncStatus),
		FinishedAt: time.Now(),
	}
	if res.SyncErr != nil {
		ev.SyncError = res.SyncErr.Error()
	}
	if res.BuildErr != nil {
		ev.BuildError = res.BuildErr.Error()
	}
	if err := r.publisher.PublishProjectResult(ctx, ev); err != nil {
		slog.Warn("Failed to publish project event", logfields.Slug(res.Slug), logfields.Error(err))
	}
}
