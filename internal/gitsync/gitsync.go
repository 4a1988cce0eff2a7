// Package gitsync brings project working copies into alignment with their
// remotes using a restricted fast-forward-only protocol. It clones when no
// local repository exists, fetches origin otherwise, and either advances the
// local branch or reports divergence; it never merges or rebases.
package gitsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/docserve/internal/logfields"
	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
)

// Status classifies the terminal state of a successful synchronization.
type Status string

const (
	// StatusCloned means no local repository existed and the remote was
	// cloned fresh.
	StatusCloned Status = "cloned"
	// StatusUpToDate means the local tip already contained the fetched
	// commit; nothing changed on disk.
	StatusUpToDate Status = "up-to-date"
	// StatusFastForwarded means the local branch was advanced to the
	// fetched commit and the working tree force-checked-out to match.
	StatusFastForwarded Status = "fast-forwarded"
)

// Result describes the outcome of a successful Sync.
type Result struct {
	Status Status
	Branch string
	Commit plumbing.Hash
}

// defaultBranches are the remote branch candidates tried in order when
// classifying the fetched state.
var defaultBranches = []string{"main", "master"}

// Client performs git synchronization. The zero value is not usable; create
// one with NewClient.
type Client struct {
	branches []string
}

// NewClient returns a Client using the default branch candidates.
func NewClient() *Client {
	return &Client{branches: defaultBranches}
}

// Sync brings the working copy at path up to date with the remote at url.
// The context bounds both the clone and the fetch. On divergence the working
// copy is left byte-for-byte untouched and a *RemoteDivergedError is
// returned.
func (c *Client) Sync(ctx context.Context, path, url string) (Result, error) {
	repository, cloned, err := c.openOrClone(ctx, path, url)
	if err != nil {
		return Result{}, err
	}

	if err := c.fetchOrigin(ctx, repository, url); err != nil {
		return Result{}, err
	}

	branch, remoteRef, err := c.resolveRemoteBranch(repository, url)
	if err != nil {
		return Result{}, err
	}

	headRef, err := repository.Head()
	if err != nil {
		return Result{}, fmt.Errorf("resolve HEAD: %w", err)
	}

	switch {
	case cloned:
		slog.Info("Repository cloned", logfields.Path(path), logfields.URL(url), shortCommit(headRef.Hash()))
		return Result{Status: StatusCloned, Branch: branch, Commit: headRef.Hash()}, nil

	case contains(repository, remoteRef.Hash(), headRef.Hash()):
		slog.Info("Repository up-to-date", logfields.Path(path), logfields.Branch(branch), shortCommit(headRef.Hash()))
		return Result{Status: StatusUpToDate, Branch: branch, Commit: headRef.Hash()}, nil

	case contains(repository, headRef.Hash(), remoteRef.Hash()):
		if err := c.fastForward(repository, remoteRef.Hash()); err != nil {
			return Result{}, err
		}
		slog.Info("Fast-forwarded repository",
			logfields.Path(path),
			logfields.Branch(branch),
			slog.String("from", headRef.Hash().String()[:8]),
			slog.String("to", remoteRef.Hash().String()[:8]))
		return Result{Status: StatusFastForwarded, Branch: branch, Commit: remoteRef.Hash()}, nil

	default:
		return Result{}, &RemoteDivergedError{
			Op:     "sync",
			URL:    url,
			Branch: branch,
			Err:    errors.New("non-fast-forward update required"),
		}
	}
}

// openOrClone opens an existing repository at path or clones url into it.
// Both outcomes converge to the same "repository present locally" state.
func (c *Client) openOrClone(ctx context.Context, path, url string) (*git.Repository, bool, error) {
	repository, err := git.PlainOpen(path)
	if err == nil {
		return repository, false, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, false, fmt.Errorf("open repo %s: %w", path, err)
	}

	slog.Debug("No local repository, cloning", logfields.Path(path), logfields.URL(url))
	repository, err = git.PlainCloneContext(ctx, path, false, &git.CloneOptions{URL: url})
	if err != nil {
		return nil, false, classifyFetchError("clone", url, err)
	}
	return repository, true, nil
}

// fetchOrigin fetches all origin heads into the remote-tracking namespace.
// Branch candidates are resolved afterwards from refs/remotes/origin.
func (c *Client) fetchOrigin(ctx context.Context, repository *git.Repository, url string) error {
	fetchOpts := &git.FetchOptions{
		RemoteName: "origin",
		Tags:       git.NoTags,
		RefSpecs:   []ggitcfg.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
	}
	if err := repository.FetchContext(ctx, fetchOpts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return classifyFetchError("fetch", url, err)
	}
	return nil
}

// resolveRemoteBranch tries each branch candidate in order and returns the
// first fetched remote-tracking reference.
func (c *Client) resolveRemoteBranch(repository *git.Repository, url string) (string, *plumbing.Reference, error) {
	for _, branch := range c.branches {
		ref, err := repository.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
		if err == nil {
			return branch, ref, nil
		}
	}
	return "", nil, &NotFoundError{
		Op:  "resolve branch",
		URL: url,
		Err: fmt.Errorf("no remote branch among %v", c.branches),
	}
}

// fastForward advances the checked-out branch to commit and force-resets the
// working tree, discarding local modifications.
func (c *Client) fastForward(repository *git.Repository, commit plumbing.Hash) error {
	wt, err := repository.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: commit, Mode: git.HardReset}); err != nil {
		return fmt.Errorf("fast-forward reset: %w", err)
	}
	return nil
}

// contains reports whether commit a is reachable from commit b, walking the
// parent graph breadth-first. Errors during the walk are treated as
// "not contained" so callers fall through to the divergence classification.
func contains(repository *git.Repository, a, b plumbing.Hash) bool {
	if a == b {
		return true
	}
	seen := map[plumbing.Hash]struct{}{}
	queue := []plumbing.Hash{b}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if h == a {
			return true
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		commit, err := repository.CommitObject(h)
		if err != nil {
			slog.Warn("ancestor walk failed", logfields.Error(err))
			return false
		}
		queue = append(queue, commit.ParentHashes...)
	}
	return false
}

func shortCommit(h plumbing.Hash) slog.Attr {
	return logfields.Commit(h.String()[:8])
}
