// Package artifact defines the build output handed from the toolchain to
// the packager, and the presence checks that guard against silent toolchain
// layout changes producing an empty archive.
package artifact

import (
	"fmt"
	"os"
	"runtime"

	"github.com/ferronweb/ferron-forge/internal/forgeerrors"
)

// AuxiliaryFile is a non-binary build output carried into the archive at a
// declared relative path.
type AuxiliaryFile struct {
	// Path is the absolute location on disk.
	Path string
	// ArchivePath is the file's relative path inside the output archive,
	// always slash-separated.
	ArchivePath string
	// Dir marks a directory entry (archived without content).
	Dir bool
}

// BuildArtifact is the product of a toolchain invocation. It is transient,
// scoped to a single pipeline run.
type BuildArtifact struct {
	BinaryPath   string
	Auxiliary    []AuxiliaryFile
	TargetTriple string
	Revision     string
	Modules      []string
}

// Collect verifies the artifact before packaging: the primary binary must
// exist, be non-empty, and carry the executable bit where the platform has
// one; every auxiliary path must exist. The first failed check aborts with
// the offending path.
func Collect(a *BuildArtifact) (*BuildArtifact, error) {
	info, err := os.Stat(a.BinaryPath)
	if err != nil {
		return nil, forgeerrors.ArtifactMissing(a.BinaryPath, "primary binary not found")
	}
	if info.IsDir() {
		return nil, forgeerrors.ArtifactMissing(a.BinaryPath, "primary binary is a directory")
	}
	if info.Size() == 0 {
		return nil, forgeerrors.ArtifactMissing(a.BinaryPath, "primary binary is empty")
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return nil, forgeerrors.ArtifactMissing(a.BinaryPath, "primary binary is not executable")
	}

	for _, aux := range a.Auxiliary {
		if _, err := os.Stat(aux.Path); err != nil {
			return nil, forgeerrors.ArtifactMissing(aux.Path, fmt.Sprintf("auxiliary file missing (archive path %s)", aux.ArchivePath))
		}
	}

	return a, nil
}
