// Package config loads and validates the docserve configuration file.
// Configuration is read once at startup; the process must be restarted to
// pick up changes.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BuildSystem selects the documentation build convention for a project.
type BuildSystem string

const (
	BuildSystemGradle BuildSystem = "gradle"
	BuildSystemCargo  BuildSystem = "cargo"
	BuildSystemCustom BuildSystem = "custom"
)

// Valid reports whether the build system is one of the supported kinds.
func (b BuildSystem) Valid() bool {
	switch b {
	case BuildSystemGradle, BuildSystemCargo, BuildSystemCustom:
		return true
	}
	return false
}

// Config represents the application configuration.
type Config struct {
	ProjectsRoot  string          `yaml:"projects_root"`
	Port          int             `yaml:"port,omitempty"`
	UpdateOnStart bool            `yaml:"update_on_start,omitempty"`
	Pipeline      PipelineConfig  `yaml:"pipeline,omitempty"`
	Schedule      ScheduleConfig  `yaml:"schedule,omitempty"`
	History       HistoryConfig   `yaml:"history,omitempty"`
	Events        *EventsConfig   `yaml:"events,omitempty"`
	Metrics       MetricsConfig   `yaml:"metrics,omitempty"`
	Projects      []ProjectConfig `yaml:"projects"`
}

// ProjectConfig describes one project under the projects root.
type ProjectConfig struct {
	// Path is the project's directory name relative to the projects root.
	Path string `yaml:"path"`
	// Repo is the upstream repository URL. Projects without a repo are
	// served from whatever exists on disk but never synchronized or built.
	Repo string `yaml:"repo,omitempty"`
	// BuildSystem is one of "gradle", "cargo" or "custom".
	BuildSystem BuildSystem `yaml:"build_system"`
	// BuildCommand is the command line to run for the custom build system.
	// Ignored for the other kinds. Empty means no build step.
	BuildCommand string `yaml:"build_command,omitempty"`
	// Description is optional Markdown shown on the index page.
	Description string `yaml:"description,omitempty"`
}

// PipelineConfig tunes the update-and-build pipeline.
type PipelineConfig struct {
	// Concurrency is the number of projects processed in parallel.
	// The default of 1 keeps the original strictly sequential behavior.
	Concurrency int `yaml:"concurrency,omitempty"`
	// ProjectTimeout bounds a single project's synchronize-and-build step,
	// as a Go duration string (e.g. "10m").
	ProjectTimeout string `yaml:"project_timeout,omitempty"`
}

// ScheduleConfig enables periodic pipeline re-runs.
type ScheduleConfig struct {
	// UpdateInterval re-runs the pipeline at this interval when non-empty,
	// as a Go duration string (e.g. "6h").
	UpdateInterval string `yaml:"update_interval,omitempty"`
}

// HistoryConfig configures the pipeline run history store.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty disables history.
	// Use ":memory:" for a non-persistent store.
	Path string `yaml:"path,omitempty"`
}

// EventsConfig configures pipeline result event publishing.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject,omitempty"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

const (
	defaultPort           = 8080
	defaultProjectTimeout = "10m"
	defaultMetricsPath    = "/metrics"
	defaultEventsSubject  = "docserve.pipeline.project"
)

// Load loads configuration from the specified file, applies defaults and
// validates the result. Any error here is fatal: no project is processed
// with a malformed configuration.
func Load(configPath string) (*Config, error) {
	// Load .env if present so ${VAR} references in the config can resolve.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Note: .env file couldn't be loaded: %v\n", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Pipeline.Concurrency == 0 {
		c.Pipeline.Concurrency = 1
	}
	if c.Pipeline.ProjectTimeout == "" {
		c.Pipeline.ProjectTimeout = defaultProjectTimeout
	}
	if c.Metrics.Enabled == nil {
		enabled := true
		c.Metrics.Enabled = &enabled
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = defaultMetricsPath
	}
	if c.Events != nil && c.Events.Subject == "" {
		c.Events.Subject = defaultEventsSubject
	}
}

// ProjectTimeout returns the parsed per-project timeout. Validate guarantees
// the string parses, so errors here only occur on an unvalidated Config.
func (c *Config) ProjectTimeout() time.Duration {
	d, err := time.ParseDuration(c.Pipeline.ProjectTimeout)
	if err != nil {
		return 0
	}
	return d
}

// UpdateInterval returns the parsed schedule interval, zero when disabled.
func (c *Config) UpdateInterval() time.Duration {
	if c.Schedule.UpdateInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Schedule.UpdateInterval)
	if err != nil {
		return 0
	}
	return d
}

// MetricsEnabled reports whether the Prometheus endpoint should be mounted.
func (c *Config) MetricsEnabled() bool {
	return c.Metrics.Enabled != nil && *c.Metrics.Enabled
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		ProjectsRoot:  "/srv/projects",
		Port:          defaultPort,
		UpdateOnStart: true,
		Projects: []ProjectConfig{
			{
				Path:        "libs/foo",
				Repo:        "https://github.com/example/foo.git",
				BuildSystem: BuildSystemGradle,
			},
			{
				Path:        "bar",
				Repo:        "https://github.com/example/bar.git",
				BuildSystem: BuildSystemCargo,
				Description: "Rust utility crate, docs built with `cargo doc`.",
			},
			{
				Path:         "site",
				BuildSystem:  BuildSystemCustom,
				BuildCommand: "make docs",
			},
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("marshal example config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
