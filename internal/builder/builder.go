// Package builder dispatches per-project documentation build tooling. It
// spawns the external command for a project's build system, streams its
// output into the log, and classifies spawn failures separately from
// non-zero exits.
package builder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docserve/internal/config"
	"git.home.luguber.info/inful/docserve/internal/logfields"
)

// Status classifies the terminal state of a build dispatch.
type Status string

const (
	// StatusBuilt means the external tool ran and exited zero.
	StatusBuilt Status = "built"
	// StatusSkipped means no build step applies (empty custom command).
	StatusSkipped Status = "skipped"
)

// SpawnError reports that the external build program could not be started.
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Program, e.Err)
}
func (e *SpawnError) Unwrap() error { return e.Err }

// ExitError reports that the external build tool ran but exited non-zero.
// Generated output may be partial; the serving layer keeps serving whatever
// is on disk.
type ExitError struct {
	Program string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Program, e.Code)
}

// Runner invokes build tooling for projects under a shared root.
type Runner struct {
	root string
}

// NewRunner creates a Runner for projects under root.
func NewRunner(root string) *Runner {
	return &Runner{root: root}
}

// Build runs the build command for the project's declared build system with
// the project's absolute path as working directory, blocking until the tool
// exits. Context cancellation kills the process.
func (r *Runner) Build(ctx context.Context, project config.ProjectConfig) (Status, error) {
	projectPath := filepath.Join(r.root, project.Path)

	program, args := r.command(project, projectPath)
	if program == "" {
		slog.Debug("No build command, skipping", logfields.Project(project.Path))
		return StatusSkipped, nil
	}

	slog.Info("Building documentation",
		logfields.Project(project.Path),
		slog.String("program", program),
		slog.String("args", strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = projectPath

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", &SpawnError{Program: program, Err: err}
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return "", &SpawnError{Program: program, Err: err}
	}
	streamOutput(project.Path, stdout)

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ExitError{Program: program, Code: exitErr.ExitCode()}
		}
		return "", &SpawnError{Program: program, Err: err}
	}
	return StatusBuilt, nil
}

// command resolves the program and arguments for the project's build system.
// An empty program means there is nothing to run.
func (r *Runner) command(project config.ProjectConfig, projectPath string) (string, []string) {
	switch project.BuildSystem {
	case config.BuildSystemGradle:
		// Prefer the project's own wrapper script over a global install.
		wrapper := filepath.Join(projectPath, "gradlew")
		if _, err := os.Stat(wrapper); err == nil {
			return wrapper, []string{"clean", "javadoc"}
		}
		return "gradle", []string{"clean", "javadoc"}

	case config.BuildSystemCargo:
		return "cargo", []string{"doc"}

	default:
		fields := strings.Fields(project.BuildCommand)
		if len(fields) == 0 {
			return "", nil
		}
		return fields[0], fields[1:]
	}
}

// streamOutput forwards build tool output line by line into the log, tagged
// with the project it belongs to.
func streamOutput(project string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		slog.Info("build output", logfields.Project(project), slog.String("line", scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("build output read failed", logfields.Project(project), logfields.Error(err))
	}
}
