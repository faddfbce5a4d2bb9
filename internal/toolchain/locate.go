package toolchain

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ferronweb/ferron-forge/internal/artifact"
	"github.com/ferronweb/ferron-forge/internal/forgeerrors"
)

// binaryName is the primary executable cargo produces for the server crate.
const binaryName = "ferron"

// wwwrootDir is the static-asset directory the source tree ships and the
// archive carries alongside the binary.
const wwwrootDir = "wwwroot"

// licenseNames are tried in order when collecting the license auxiliary.
var licenseNames = []string{"LICENSE", "LICENSE.md", "LICENSE.txt"}

// locateBinary finds the primary binary in cargo's output-directory
// convention: <target-dir>/<triple>/release for cross builds,
// <target-dir>/release for host builds.
func locateBinary(outputDir, targetTriple string) (string, error) {
	name := binaryName
	if strings.Contains(targetTriple, "windows") {
		name += ".exe"
	}

	releaseDir := filepath.Join(outputDir, "release")
	if targetTriple != "" {
		releaseDir = filepath.Join(outputDir, targetTriple, "release")
	}

	path := filepath.Join(releaseDir, name)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path, nil
	}

	return "", forgeerrors.ArtifactMissing(path, "binary not found in toolchain output directory")
}

// collectAuxiliary gathers the non-binary files the build declares as part
// of a deployable archive: the wwwroot static assets (at wwwroot-relative
// archive paths) and the license file when present.
func collectAuxiliary(treePath string) ([]artifact.AuxiliaryFile, error) {
	var aux []artifact.AuxiliaryFile

	webroot := filepath.Join(treePath, wwwrootDir)
	if info, err := os.Stat(webroot); err == nil && info.IsDir() {
		err := filepath.WalkDir(webroot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(webroot, path)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}
			aux = append(aux, artifact.AuxiliaryFile{
				Path:        path,
				ArchivePath: filepath.ToSlash(filepath.Join(wwwrootDir, rel)),
				Dir:         d.IsDir(),
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	for _, name := range licenseNames {
		path := filepath.Join(treePath, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			aux = append(aux, artifact.AuxiliaryFile{Path: path, ArchivePath: name})
			break
		}
	}

	return aux, nil
}
