package gitsync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRemote initializes a bare-usable repository with an initial commit on
// the given default branch and returns its path and repository handle.
// Local paths double as remote URLs, so no network is involved.
func newRemote(t *testing.T, defaultBranch string) (string, *git.Repository) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "remote")
	repo, err := git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName(defaultBranch),
		},
	})
	require.NoError(t, err)
	commitFile(t, repo, path, "README.md", "hello\n", "initial commit")
	return path, repo
}

func commitFile(t *testing.T, repo *git.Repository, repoPath, name, content, msg string) plumbing.Hash {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(repoPath, name), []byte(content), 0o600))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash
}

func headHash(t *testing.T, repo *git.Repository) plumbing.Hash {
	t.Helper()
	ref, err := repo.Head()
	require.NoError(t, err)
	return ref.Hash()
}

func TestSyncClonesMissingRepository(t *testing.T) {
	remotePath, remote := newRemote(t, "master")
	localPath := filepath.Join(t.TempDir(), "local")

	res, err := NewClient().Sync(context.Background(), localPath, remotePath)
	require.NoError(t, err)
	assert.Equal(t, StatusCloned, res.Status)

	local, err := git.PlainOpen(localPath)
	require.NoError(t, err)
	assert.Equal(t, headHash(t, remote), headHash(t, local))
	assert.FileExists(t, filepath.Join(localPath, "README.md"))
}

func TestSyncUpToDateIsNoOp(t *testing.T) {
	remotePath, _ := newRemote(t, "master")
	localPath := filepath.Join(t.TempDir(), "local")
	client := NewClient()

	_, err := client.Sync(context.Background(), localPath, remotePath)
	require.NoError(t, err)

	res, err := client.Sync(context.Background(), localPath, remotePath)
	require.NoError(t, err)
	assert.Equal(t, StatusUpToDate, res.Status)
	assert.Equal(t, "master", res.Branch)
}

func TestSyncFastForwards(t *testing.T) {
	remotePath, remote := newRemote(t, "master")
	localPath := filepath.Join(t.TempDir(), "local")
	client := NewClient()

	_, err := client.Sync(context.Background(), localPath, remotePath)
	require.NoError(t, err)

	// Advance the remote and dirty the local working tree; the fast-forward
	// must both advance the tip and discard the local modification.
	want := commitFile(t, remote, remotePath, "README.md", "updated\n", "second commit")
	require.NoError(t, os.WriteFile(filepath.Join(localPath, "README.md"), []byte("dirty\n"), 0o600))

	res, err := client.Sync(context.Background(), localPath, remotePath)
	require.NoError(t, err)
	assert.Equal(t, StatusFastForwarded, res.Status)
	assert.Equal(t, want, res.Commit)

	local, err := git.PlainOpen(localPath)
	require.NoError(t, err)
	assert.Equal(t, want, headHash(t, local))

	content, err := os.ReadFile(filepath.Join(localPath, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "updated\n", string(content))
}

func TestSyncReportsDivergence(t *testing.T) {
	remotePath, remote := newRemote(t, "master")
	localPath := filepath.Join(t.TempDir(), "local")
	client := NewClient()

	_, err := client.Sync(context.Background(), localPath, remotePath)
	require.NoError(t, err)

	local, err := git.PlainOpen(localPath)
	require.NoError(t, err)
	localTip := commitFile(t, local, localPath, "local.txt", "local\n", "local-only commit")
	commitFile(t, remote, remotePath, "remote.txt", "remote\n", "remote-only commit")

	_, err = client.Sync(context.Background(), localPath, remotePath)
	require.Error(t, err)
	var diverged *RemoteDivergedError
	require.ErrorAs(t, err, &diverged)
	assert.Equal(t, "master", diverged.Branch)

	// The working copy must be left untouched.
	assert.Equal(t, localTip, headHash(t, local))
	assert.FileExists(t, filepath.Join(localPath, "local.txt"))
}

func TestSyncPrefersMainOverMaster(t *testing.T) {
	remotePath, _ := newRemote(t, "main")
	localPath := filepath.Join(t.TempDir(), "local")

	res, err := NewClient().Sync(context.Background(), localPath, remotePath)
	require.NoError(t, err)
	assert.Equal(t, "main", res.Branch)
}

func TestSyncMissingRemote(t *testing.T) {
	localPath := filepath.Join(t.TempDir(), "local")
	_, err := NewClient().Sync(context.Background(), localPath, filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
