// Package source obtains a working copy of the Ferron source tree at a
// specific version or ref and exposes the module set that tree declares.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/ferronweb/ferron-forge/internal/forgeerrors"
	"github.com/ferronweb/ferron-forge/internal/logfields"
)

// ResolvedSource is a checked-out working tree plus the module catalogue
// read from its build manifest. The pipeline owns the directory and removes
// it at the end of the run.
type ResolvedSource struct {
	LocalPath string
	Revision  string

	available []string
	defaults  []string
}

// NewResolvedSource constructs a ResolvedSource from already-known parts.
// Module slices are sorted defensively so callers see a stable order.
func NewResolvedSource(localPath, revision string, available, defaults []string) *ResolvedSource {
	return &ResolvedSource{
		LocalPath: localPath,
		Revision:  revision,
		available: sortedCopy(available),
		defaults:  sortedCopy(defaults),
	}
}

// AvailableModules returns the modules the source tree declares, sorted.
func (s *ResolvedSource) AvailableModules() []string {
	return s.available
}

// DefaultModules returns the tree's declared default module set, sorted.
func (s *ResolvedSource) DefaultModules() []string {
	return s.defaults
}

// Resolver clones repositories into a caller-provided directory.
type Resolver struct {
	progress *os.File
}

// NewResolver creates a resolver. When verbose is set, clone progress from
// the remote is streamed to stderr.
func NewResolver(verbose bool) *Resolver {
	r := &Resolver{}
	if verbose {
		r.progress = os.Stderr
	}
	return r
}

// Resolve clones repoURL into destDir checked out exactly at ref. The ref
// is tried as a tag first, then a branch, then a commit hash. A ref that
// matches none of the three fails with RevisionNotFound; clone or network
// failures surface as SourceFetchFailed.
func (r *Resolver) Resolve(ctx context.Context, repoURL, ref, destDir string) (*ResolvedSource, error) {
	slog.Debug("Resolving source", logfields.URL(repoURL), logfields.Revision(ref), logfields.Path(destDir))

	repo, err := r.cloneAtRef(ctx, repoURL, ref, destDir)
	if err != nil {
		return nil, err
	}

	head, err := repo.Head()
	if err != nil {
		return nil, forgeerrors.SourceFetchFailed(fmt.Errorf("reading HEAD: %w", err), repoURL)
	}
	revision := head.Hash().String()

	available, defaults, err := ReadModuleCatalogue(destDir)
	if err != nil {
		return nil, forgeerrors.SourceFetchFailed(err, repoURL)
	}

	slog.Info("Source resolved",
		logfields.URL(repoURL),
		logfields.Revision(revision[:min(len(revision), 12)]),
		logfields.Modules(len(available)))

	return NewResolvedSource(destDir, revision, available, defaults), nil
}

// cloneAtRef performs the tag -> branch -> commit resolution order.
func (r *Resolver) cloneAtRef(ctx context.Context, repoURL, ref, destDir string) (*git.Repository, error) {
	refNames := []plumbing.ReferenceName{
		plumbing.NewTagReferenceName(ref),
		plumbing.NewBranchReferenceName(ref),
	}

	for _, refName := range refNames {
		repo, err := git.PlainCloneContext(ctx, destDir, false, &git.CloneOptions{
			URL:           repoURL,
			ReferenceName: refName,
			SingleBranch:  true,
			Progress:      r.progress,
		})
		if err == nil {
			return repo, nil
		}
		if !isMissingRefError(err) {
			return nil, classifyCloneError(err, repoURL)
		}
		// A failed single-branch clone may leave a partial directory behind.
		if rmErr := resetDir(destDir); rmErr != nil {
			return nil, forgeerrors.SourceFetchFailed(rmErr, repoURL)
		}
	}

	// Neither a tag nor a branch: a commit hash needs the full history.
	if !looksLikeCommitHash(ref) {
		return nil, forgeerrors.RevisionNotFound(ref, repoURL)
	}

	repo, err := git.PlainCloneContext(ctx, destDir, false, &git.CloneOptions{
		URL:      repoURL,
		Progress: r.progress,
	})
	if err != nil {
		return nil, classifyCloneError(err, repoURL)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, forgeerrors.SourceFetchFailed(err, repoURL)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(ref)}); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) || errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, forgeerrors.RevisionNotFound(ref, repoURL)
		}
		return nil, forgeerrors.SourceFetchFailed(err, repoURL)
	}

	return repo, nil
}

// isMissingRefError reports whether the clone failed only because the
// requested reference does not exist on the remote.
func isMissingRefError(err error) bool {
	var noMatch git.NoMatchingRefSpecError
	if errors.As(err, &noMatch) {
		return true
	}
	return errors.Is(err, plumbing.ErrReferenceNotFound)
}

// classifyCloneError separates "repository does not exist" from transport
// and network failures.
func classifyCloneError(err error, repoURL string) error {
	if errors.Is(err, transport.ErrRepositoryNotFound) {
		return forgeerrors.SourceFetchFailed(fmt.Errorf("repository not found: %w", err), repoURL)
	}
	if errors.Is(err, transport.ErrAuthenticationRequired) || errors.Is(err, transport.ErrAuthorizationFailed) {
		return forgeerrors.SourceFetchFailed(fmt.Errorf("authentication failed: %w", err), repoURL)
	}
	return forgeerrors.SourceFetchFailed(err, repoURL)
}

// looksLikeCommitHash checks if the string is a plausible git commit hash.
func looksLikeCommitHash(ref string) bool {
	if len(ref) != 40 {
		return false
	}
	for _, c := range strings.ToLower(ref) {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// resetDir empties destDir without removing the directory itself, which the
// workspace manager owns.
func resetDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading clone directory: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("clearing failed clone: %w", err)
		}
	}
	return nil
}
