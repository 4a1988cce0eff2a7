package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Validate checks the configuration for structural problems. It runs after
// defaults are applied, so optional fields are already populated.
func (c *Config) Validate() error {
	if err := c.validateTopLevel(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return c.validateProjects()
}

func (c *Config) validateTopLevel() error {
	if c.ProjectsRoot == "" {
		return errors.New("projects_root must be configured")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.Schedule.UpdateInterval != "" {
		d, err := time.ParseDuration(c.Schedule.UpdateInterval)
		if err != nil {
			return fmt.Errorf("invalid schedule.update_interval: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("schedule.update_interval must be positive: %s", c.Schedule.UpdateInterval)
		}
	}
	if c.Events != nil && c.Events.NATSURL == "" {
		return errors.New("events.nats_url must be set when events are configured")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be at least 1: %d", c.Pipeline.Concurrency)
	}
	d, err := time.ParseDuration(c.Pipeline.ProjectTimeout)
	if err != nil {
		return fmt.Errorf("invalid pipeline.project_timeout: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("pipeline.project_timeout must be positive: %s", c.Pipeline.ProjectTimeout)
	}
	return nil
}

func (c *Config) validateProjects() error {
	if len(c.Projects) == 0 {
		return errors.New("at least one project must be configured")
	}

	seen := make(map[string]bool, len(c.Projects))
	for i, p := range c.Projects {
		if p.Path == "" {
			return fmt.Errorf("project %d: path is required", i)
		}
		if filepath.IsAbs(p.Path) {
			return fmt.Errorf("project %q: path must be relative to projects_root", p.Path)
		}
		// A path escaping the root would let a project write or serve
		// outside the shared tree.
		clean := filepath.Clean(p.Path)
		if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return fmt.Errorf("project %q: path escapes projects_root", p.Path)
		}
		if seen[p.Path] {
			return fmt.Errorf("duplicate project path: %s", p.Path)
		}
		seen[p.Path] = true

		if !p.BuildSystem.Valid() {
			return fmt.Errorf("project %q: unknown build_system %q (expected gradle, cargo or custom)", p.Path, p.BuildSystem)
		}
	}
	return nil
}
