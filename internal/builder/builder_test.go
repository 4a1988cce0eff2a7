package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docserve/internal/config"
)

func TestBuildCustomCommand(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "proj"), 0o750))

	project := config.ProjectConfig{
		Path:         "proj",
		BuildSystem:  config.BuildSystemCustom,
		BuildCommand: "touch docs-built",
	}

	status, err := NewRunner(root).Build(context.Background(), project)
	require.NoError(t, err)
	assert.Equal(t, StatusBuilt, status)
	assert.FileExists(t, filepath.Join(root, "proj", "docs-built"))
}

func TestBuildEmptyCustomCommandIsNoOp(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "proj"), 0o750))

	for _, cmd := range []string{"", "   ", "\t\n"} {
		project := config.ProjectConfig{
			Path:         "proj",
			BuildSystem:  config.BuildSystemCustom,
			BuildCommand: cmd,
		}
		status, err := NewRunner(root).Build(context.Background(), project)
		require.NoError(t, err)
		assert.Equal(t, StatusSkipped, status)
	}
}

func TestBuildNonZeroExitIsExitError(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "proj"), 0o750))

	project := config.ProjectConfig{
		Path:         "proj",
		BuildSystem:  config.BuildSystemCustom,
		BuildCommand: "false",
	}

	_, err := NewRunner(root).Build(context.Background(), project)
	require.Error(t, err)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
}

func TestBuildMissingProgramIsSpawnError(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "proj"), 0o750))

	project := config.ProjectConfig{
		Path:         "proj",
		BuildSystem:  config.BuildSystemCustom,
		BuildCommand: "definitely-not-a-real-tool-xyz",
	}

	_, err := NewRunner(root).Build(context.Background(), project)
	require.Error(t, err)
	var spawnErr *SpawnError
	assert.ErrorAs(t, err, &spawnErr)
}

func TestBuildGradlePrefersWrapper(t *testing.T) {
	root := t.TempDir()
	projectPath := filepath.Join(root, "proj")
	require.NoError(t, os.MkdirAll(projectPath, 0o750))

	// A fake wrapper that records its arguments.
	script := "#!/bin/sh\necho \"$@\" > invoked\n"
	require.NoError(t, os.WriteFile(filepath.Join(projectPath, "gradlew"), []byte(script), 0o755))

	project := config.ProjectConfig{Path: "proj", BuildSystem: config.BuildSystemGradle}
	status, err := NewRunner(root).Build(context.Background(), project)
	require.NoError(t, err)
	assert.Equal(t, StatusBuilt, status)

	invoked, err := os.ReadFile(filepath.Join(projectPath, "invoked"))
	require.NoError(t, err)
	assert.Equal(t, "clean javadoc\n", string(invoked))
}

func TestBuildGradleFallsBackToGlobal(t *testing.T) {
	root := t.TempDir()
	projectPath := filepath.Join(root, "proj")
	require.NoError(t, os.MkdirAll(projectPath, 0o750))

	runner := NewRunner(root)
	program, args := runner.command(config.ProjectConfig{Path: "proj", BuildSystem: config.BuildSystemGradle}, projectPath)
	assert.Equal(t, "gradle", program)
	assert.Equal(t, []string{"clean", "javadoc"}, args)
}

func TestCommandCargo(t *testing.T) {
	runner := NewRunner(t.TempDir())
	program, args := runner.command(config.ProjectConfig{Path: "p", BuildSystem: config.BuildSystemCargo}, "/x")
	assert.Equal(t, "cargo", program)
	assert.Equal(t, []string{"doc"}, args)
}
