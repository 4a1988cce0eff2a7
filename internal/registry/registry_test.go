package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docserve/internal/config"
)

func TestBuildResolvesDocsDirsAndSlugs(t *testing.T) {
	cfg := &config.Config{
		ProjectsRoot: "/srv/projects",
		Projects: []config.ProjectConfig{
			{Path: "libs/foo", BuildSystem: config.BuildSystemGradle},
			{Path: "bar", BuildSystem: config.BuildSystemCargo},
			{Path: "My Site", BuildSystem: config.BuildSystemCustom},
		},
	}

	r, err := Build(cfg)
	require.NoError(t, err)
	require.Equal(t, 3, r.Len())

	foo, ok := r.Get("libs-foo")
	require.True(t, ok)
	assert.Equal(t, filepath.Join("/srv/projects", "libs/foo"), foo.Path)
	assert.Equal(t, filepath.Join("/srv/projects", "libs/foo", "build/docs/javadoc"), foo.DocsDir)

	bar, ok := r.Get("bar")
	require.True(t, ok)
	assert.Equal(t, filepath.Join("/srv/projects", "bar", "target/doc"), bar.DocsDir)

	site, ok := r.Get("my-site")
	require.True(t, ok)
	assert.Equal(t, filepath.Join("/srv/projects", "My Site", "docs"), site.DocsDir)

	// Config order is preserved for deterministic pipeline iteration.
	projects := r.Projects()
	assert.Equal(t, "libs-foo", projects[0].Slug)
	assert.Equal(t, "bar", projects[1].Slug)
	assert.Equal(t, "my-site", projects[2].Slug)
}

func TestBuildIsDeterministic(t *testing.T) {
	cfg := &config.Config{
		ProjectsRoot: "/srv/projects",
		Projects: []config.ProjectConfig{
			{Path: "a/b", BuildSystem: config.BuildSystemGradle},
			{Path: "c", BuildSystem: config.BuildSystemCustom},
		},
	}

	first, err := Build(cfg)
	require.NoError(t, err)
	second, err := Build(cfg)
	require.NoError(t, err)

	for i, p := range first.Projects() {
		q := second.Projects()[i]
		assert.Equal(t, p.Slug, q.Slug)
		assert.Equal(t, p.DocsDir, q.DocsDir)
	}
}

func TestBuildRejectsSlugConflict(t *testing.T) {
	cfg := &config.Config{
		ProjectsRoot: "/srv/projects",
		Projects: []config.ProjectConfig{
			{Path: "libs/foo", BuildSystem: config.BuildSystemGradle},
			{Path: "libs.foo", BuildSystem: config.BuildSystemCargo},
		},
	}

	_, err := Build(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slug conflict")
}

func TestBuildRejectsEmptySlug(t *testing.T) {
	cfg := &config.Config{
		ProjectsRoot: "/srv/projects",
		Projects: []config.ProjectConfig{
			{Path: "...", BuildSystem: config.BuildSystemCustom},
		},
	}

	_, err := Build(cfg)
	assert.Error(t, err)
}
