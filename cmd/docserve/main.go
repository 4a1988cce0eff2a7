package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docserve/internal/builder"
	"git.home.luguber.info/inful/docserve/internal/config"
	"git.home.luguber.info/inful/docserve/internal/events"
	"git.home.luguber.info/inful/docserve/internal/gitsync"
	"git.home.luguber.info/inful/docserve/internal/history"
	"git.home.luguber.info/inful/docserve/internal/logfields"
	"git.home.luguber.info/inful/docserve/internal/metrics"
	"git.home.luguber.info/inful/docserve/internal/pipeline"
	"git.home.luguber.info/inful/docserve/internal/registry"
	"git.home.luguber.info/inful/docserve/internal/scheduler"
	"git.home.luguber.info/inful/docserve/internal/server"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct{} `cmd:"" default:"1" help:"Serve documentation, optionally updating and building projects at startup"`

	Update struct{} `cmd:"" help:"Update and build all configured projects once, then exit"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	switch ctx.Command() {
	case "serve":
		if err := runServe(CLI.Config); err != nil {
			slog.Error("Serve failed", "error", err)
			os.Exit(1)
		}
	case "update":
		failed, err := runUpdate(CLI.Config)
		if err != nil {
			slog.Error("Update failed", "error", err)
			os.Exit(1)
		}
		if failed > 0 {
			os.Exit(1)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Configuration written", logfields.Path(CLI.Config))
	}
}

// runServe starts the full service: optional startup pipeline, optional
// periodic re-runs, and the HTTP serving layer.
func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	reg, err := registry.Build(cfg)
	if err != nil {
		return fmt.Errorf("build project registry: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var metricsHandler *metrics.PrometheusRecorder
	if cfg.MetricsEnabled() {
		metricsHandler = metrics.NewPrometheusRecorder(nil)
		recorder = metricsHandler
	}

	store, err := newHistoryStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close history store", logfields.Error(err))
		}
	}()

	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	runner := pipeline.NewRunner(reg, gitsync.NewClient(), builder.NewRunner(cfg.ProjectsRoot), cfg.Pipeline.Concurrency, cfg.ProjectTimeout()).
		WithRecorder(recorder).
		WithHistory(store).
		WithPublisher(publisher)

	if cfg.UpdateOnStart {
		slog.Info("Updating and building projects at startup")
		runner.Run(ctx)
	}

	var sched *scheduler.Scheduler
	if interval := cfg.UpdateInterval(); interval > 0 {
		sched, err = scheduler.New()
		if err != nil {
			return err
		}
		if err := sched.SchedulePipeline(ctx, interval, func(ctx context.Context) {
			runner.Run(ctx)
		}); err != nil {
			return err
		}
		sched.Start()
	}

	var metricsHTTP http.Handler
	if metricsHandler != nil {
		metricsHTTP = metricsHandler.Handler()
	}
	srv, err := server.New(cfg, reg, store, metricsHTTP)
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if sched != nil {
		_ = sched.Stop()
	}
	return srv.Stop(stopCtx)
}

// runUpdate executes the pipeline once and returns how many projects failed.
func runUpdate(configPath string) (int, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return 0, fmt.Errorf("load configuration: %w", err)
	}

	reg, err := registry.Build(cfg)
	if err != nil {
		return 0, fmt.Errorf("build project registry: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := newHistoryStore(cfg)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close history store", logfields.Error(err))
		}
	}()

	publisher, err := newPublisher(cfg)
	if err != nil {
		return 0, err
	}
	defer publisher.Close()

	runner := pipeline.NewRunner(reg, gitsync.NewClient(), builder.NewRunner(cfg.ProjectsRoot), cfg.Pipeline.Concurrency, cfg.ProjectTimeout()).
		WithHistory(store).
		WithPublisher(publisher)

	run := runner.Run(ctx)
	for _, res := range run.Results {
		slog.Info("Project result",
			logfields.Project(res.Path),
			logfields.Status(string(res.Outcome)),
			logfields.DurationMS(float64(res.Duration.Milliseconds())))
	}
	return run.Failed(), nil
}

func newHistoryStore(cfg *config.Config) (history.Store, error) {
	if cfg.History.Path == "" {
		return history.NoopStore{}, nil
	}
	store, err := history.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return store, nil
}

func newPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.Events == nil {
		return events.NoopPublisher{}, nil
	}
	pub, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject)
	if err != nil {
		return nil, fmt.Errorf("connect event publisher: %w", err)
	}
	return pub, nil
}
