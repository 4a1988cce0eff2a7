// Package registry builds the immutable slug-keyed table of projects shared
// by the update pipeline and the serving layer.
package registry

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/docserve/internal/config"
	"git.home.luguber.info/inful/docserve/internal/slug"
)

// Documentation output suffix per build system. These are the tools' own
// output conventions, not something docserve controls.
const (
	gradleDocsSuffix = "build/docs/javadoc"
	cargoDocsSuffix  = "target/doc"
	customDocsSuffix = "docs"
)

// Project is a configured project with its derived filesystem and URL
// identity. Immutable after Build.
type Project struct {
	Config config.ProjectConfig
	// Slug is the URL-facing identifier derived from Config.Path.
	Slug string
	// Path is the project's absolute directory under the projects root.
	Path string
	// DocsDir is where the build system is expected to leave generated
	// documentation. It is never created proactively; absence means
	// "nothing to serve yet".
	DocsDir string
}

// Registry maps slugs to projects. Built once at startup, read-only for the
// process lifetime, and therefore safe to share without locking.
type Registry struct {
	root    string
	bySlug  map[string]*Project
	ordered []*Project
}

// Build derives a Registry from the validated configuration. It performs no
// filesystem or network access. Two distinct paths sanitizing to the same
// slug are a configuration conflict and fail the build rather than silently
// dropping a project.
func Build(cfg *config.Config) (*Registry, error) {
	r := &Registry{
		root:    cfg.ProjectsRoot,
		bySlug:  make(map[string]*Project, len(cfg.Projects)),
		ordered: make([]*Project, 0, len(cfg.Projects)),
	}

	for _, pc := range cfg.Projects {
		s := slug.Sanitize(pc.Path)
		if s == "" {
			return nil, fmt.Errorf("project %q: path sanitizes to an empty slug", pc.Path)
		}
		if prev, ok := r.bySlug[s]; ok {
			return nil, fmt.Errorf("slug conflict: projects %q and %q both map to %q", prev.Config.Path, pc.Path, s)
		}

		projectPath := filepath.Join(cfg.ProjectsRoot, pc.Path)
		p := &Project{
			Config:  pc,
			Slug:    s,
			Path:    projectPath,
			DocsDir: filepath.Join(projectPath, docsSuffix(pc.BuildSystem)),
		}
		r.bySlug[s] = p
		r.ordered = append(r.ordered, p)
	}

	return r, nil
}

func docsSuffix(b config.BuildSystem) string {
	switch b {
	case config.BuildSystemGradle:
		return gradleDocsSuffix
	case config.BuildSystemCargo:
		return cargoDocsSuffix
	default:
		return customDocsSuffix
	}
}

// Root returns the shared projects root directory.
func (r *Registry) Root() string { return r.root }

// Get returns the project registered under slug, if any.
func (r *Registry) Get(slug string) (*Project, bool) {
	p, ok := r.bySlug[slug]
	return p, ok
}

// Projects returns all projects in configuration order. Callers must not
// mutate the returned slice.
func (r *Registry) Projects() []*Project { return r.ordered }

// Len returns the number of registered projects.
func (r *Registry) Len() int { return len(r.ordered) }
