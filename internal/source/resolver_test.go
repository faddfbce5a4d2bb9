package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferronweb/ferron-forge/internal/forgeerrors"
)

const fixtureCargoToml = `
[package]
name = "ferron"
version = "1.0.0"

[features]
default = ["cache", "rproxy"]
cache = []
rproxy = []
cgi = []
`

// initFixtureRepo creates a local git repository with a ferron-shaped
// Cargo.toml, one commit, and a v1.0.0 tag. Returns the repo path and the
// commit hash.
func initFixtureRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(fixtureCargoToml), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("Cargo.toml")
	require.NoError(t, err)

	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	_, err = repo.CreateTag("v1.0.0", hash, nil)
	require.NoError(t, err)

	return dir, hash.String()
}

func TestResolve_Branch(t *testing.T) {
	repoDir, commit := initFixtureRepo(t)
	dest := t.TempDir()

	src, err := NewResolver(false).Resolve(context.Background(), repoDir, "master", dest)
	require.NoError(t, err)

	assert.Equal(t, dest, src.LocalPath)
	assert.Equal(t, commit, src.Revision)
	assert.Equal(t, []string{"cache", "cgi", "rproxy"}, src.AvailableModules())
	assert.Equal(t, []string{"cache", "rproxy"}, src.DefaultModules())
}

func TestResolve_Tag(t *testing.T) {
	repoDir, commit := initFixtureRepo(t)
	dest := t.TempDir()

	src, err := NewResolver(false).Resolve(context.Background(), repoDir, "v1.0.0", dest)
	require.NoError(t, err)

	assert.Equal(t, commit, src.Revision)
}

func TestResolve_CommitHash(t *testing.T) {
	repoDir, commit := initFixtureRepo(t)
	dest := t.TempDir()

	src, err := NewResolver(false).Resolve(context.Background(), repoDir, commit, dest)
	require.NoError(t, err)

	assert.Equal(t, commit, src.Revision)
}

func TestResolve_MissingRevision(t *testing.T) {
	repoDir, _ := initFixtureRepo(t)
	dest := t.TempDir()

	_, err := NewResolver(false).Resolve(context.Background(), repoDir, "does-not-exist-tag", dest)
	require.Error(t, err)
	assert.True(t, forgeerrors.IsKind(err, forgeerrors.KindRevisionNotFound))
	assert.Contains(t, err.Error(), "does-not-exist-tag")
}

func TestResolve_Deterministic(t *testing.T) {
	repoDir, _ := initFixtureRepo(t)

	first, err := NewResolver(false).Resolve(context.Background(), repoDir, "v1.0.0", t.TempDir())
	require.NoError(t, err)
	second, err := NewResolver(false).Resolve(context.Background(), repoDir, "v1.0.0", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, first.Revision, second.Revision)
	assert.Equal(t, first.AvailableModules(), second.AvailableModules())
}

func TestLooksLikeCommitHash(t *testing.T) {
	assert.True(t, looksLikeCommitHash("0123456789abcdef0123456789abcdef01234567"))
	assert.False(t, looksLikeCommitHash("main"))
	assert.False(t, looksLikeCommitHash("v1.0.0"))
	assert.False(t, looksLikeCommitHash("zzzz456789abcdef0123456789abcdef01234567"))
}
