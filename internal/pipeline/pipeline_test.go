package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docserve/internal/builder"
	"git.home.luguber.info/inful/docserve/internal/config"
	"git.home.luguber.info/inful/docserve/internal/events"
	"git.home.luguber.info/inful/docserve/internal/gitsync"
	"git.home.luguber.info/inful/docserve/internal/history"
	"git.home.luguber.info/inful/docserve/internal/registry"
)

type fakeSync struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]error
}

func (f *fakeSync) Sync(_ context.Context, path, _ string) (gitsync.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()
	if err, ok := f.failOn[path]; ok {
		return gitsync.Result{}, err
	}
	return gitsync.Result{Status: gitsync.StatusUpToDate, Branch: "main"}, nil
}

type fakeBuild struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]error
}

func (f *fakeBuild) Build(_ context.Context, p config.ProjectConfig) (builder.Status, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p.Path)
	f.mu.Unlock()
	if err, ok := f.failOn[p.Path]; ok {
		return "", err
	}
	return builder.StatusBuilt, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.ProjectEvent
}

func (c *capturePublisher) PublishProjectResult(_ context.Context, ev events.ProjectEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *capturePublisher) Close() {}

func newTestRegistry(t *testing.T, projects ...config.ProjectConfig) *registry.Registry {
	t.Helper()
	reg, err := registry.Build(&config.Config{ProjectsRoot: "/srv/projects", Projects: projects})
	require.NoError(t, err)
	return reg
}

func TestRunIsolatesFailures(t *testing.T) {
	reg := newTestRegistry(t,
		config.ProjectConfig{Path: "one", Repo: "https://example.com/one.git", BuildSystem: config.BuildSystemGradle},
		config.ProjectConfig{Path: "two", Repo: "https://example.com/two.git", BuildSystem: config.BuildSystemGradle},
		config.ProjectConfig{Path: "three", Repo: "https://example.com/three.git", BuildSystem: config.BuildSystemGradle},
	)

	syncer := &fakeSync{failOn: map[string]error{"/srv/projects/two": errors.New("unreachable remote")}}
	build := &fakeBuild{}
	run := NewRunner(reg, syncer, build, 1, 0).Run(context.Background())

	require.Len(t, run.Results, 3)
	assert.Equal(t, OutcomeSynced, run.Results[0].Outcome)
	assert.Equal(t, OutcomeFailed, run.Results[1].Outcome)
	assert.Equal(t, OutcomeSynced, run.Results[2].Outcome)
	assert.Equal(t, 1, run.Failed())

	// The failed synchronization must not prevent its own build attempt nor
	// the remaining projects' tasks.
	assert.Equal(t, []string{"one", "two", "three"}, build.calls)
	assert.Error(t, run.Results[1].SyncErr)
	assert.Nil(t, run.Results[1].BuildErr)
}

func TestRunSkipsProjectsWithoutRepo(t *testing.T) {
	reg := newTestRegistry(t,
		config.ProjectConfig{Path: "local-only", BuildSystem: config.BuildSystemCustom, BuildCommand: "make docs"},
		config.ProjectConfig{Path: "remote", Repo: "https://example.com/r.git", BuildSystem: config.BuildSystemCargo},
	)

	syncer := &fakeSync{}
	build := &fakeBuild{}
	run := NewRunner(reg, syncer, build, 1, 0).Run(context.Background())

	assert.Equal(t, OutcomeSkipped, run.Results[0].Outcome)
	assert.Equal(t, OutcomeSynced, run.Results[1].Outcome)

	// Skipped projects get neither a sync nor a build.
	assert.Equal(t, []string{"/srv/projects/remote"}, syncer.calls)
	assert.Equal(t, []string{"remote"}, build.calls)
}

func TestRunMarksBuildFailures(t *testing.T) {
	reg := newTestRegistry(t,
		config.ProjectConfig{Path: "p", Repo: "https://example.com/p.git", BuildSystem: config.BuildSystemGradle},
	)

	build := &fakeBuild{failOn: map[string]error{"p": &builder.ExitError{Program: "gradle", Code: 1}}}
	run := NewRunner(reg, &fakeSync{}, build, 1, 0).Run(context.Background())

	require.Len(t, run.Results, 1)
	assert.Equal(t, OutcomeFailed, run.Results[0].Outcome)
	assert.Equal(t, gitsync.StatusUpToDate, run.Results[0].SyncStatus)
	var exitErr *builder.ExitError
	assert.ErrorAs(t, run.Results[0].BuildErr, &exitErr)
}

func TestRunRecordsHistoryAndPublishesEvents(t *testing.T) {
	reg := newTestRegistry(t,
		config.ProjectConfig{Path: "a", Repo: "https://example.com/a.git", BuildSystem: config.BuildSystemCargo},
		config.ProjectConfig{Path: "b", BuildSystem: config.BuildSystemCustom},
	)

	store, err := history.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	pub := &capturePublisher{}

	run := NewRunner(reg, &fakeSync{}, &fakeBuild{}, 1, 0).
		WithHistory(store).
		WithPublisher(pub).
		Run(context.Background())

	last, err := store.LastRun(context.Background())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, run.RunID, last.RunID)
	require.Len(t, last.Projects, 2)
	assert.Equal(t, "synced", last.Projects[0].Outcome)
	assert.Equal(t, "skipped", last.Projects[1].Outcome)

	require.Len(t, pub.events, 2)
	for _, ev := range pub.events {
		assert.Equal(t, run.RunID, ev.RunID)
	}
}

func TestRunConcurrentWorkers(t *testing.T) {
	var projects []config.ProjectConfig
	for _, p := range []string{"p1", "p2", "p3", "p4", "p5"} {
		projects = append(projects, config.ProjectConfig{Path: p, Repo: "https://example.com/" + p + ".git", BuildSystem: config.BuildSystemCargo})
	}
	reg := newTestRegistry(t, projects...)

	run := NewRunner(reg, &fakeSync{}, &fakeBuild{}, 3, time.Minute).Run(context.Background())

	require.Len(t, run.Results, 5)
	for i, res := range run.Results {
		// Results stay in registry order regardless of worker scheduling.
		assert.Equal(t, projects[i].Path, res.Path)
		assert.Equal(t, OutcomeSynced, res.Outcome)
	}
}
