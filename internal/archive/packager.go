// Package archive assembles collected build artifacts into the ZIP layout
// the Ferron installer consumes: the binary at a fixed top-level name, the
// manifest at a fixed top-level name, a generated default server config,
// and auxiliary files at their declared relative paths.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"gopkg.in/yaml.v3"

	"github.com/ferronweb/ferron-forge/internal/artifact"
	"github.com/ferronweb/ferron-forge/internal/forgeerrors"
	"github.com/ferronweb/ferron-forge/internal/logfields"
	"github.com/ferronweb/ferron-forge/internal/manifest"
)

// ConfigEntryName is the fixed archive path of the generated server config.
const ConfigEntryName = "ferron.yaml"

// rename is swappable in tests to simulate a crash between the temp-file
// write and the final rename.
var rename = os.Rename

// defaultServerConfig is the out-of-the-box config shipped in every archive.
type defaultServerConfig struct {
	Global struct {
		WWWRoot string `yaml:"wwwroot"`
	} `yaml:"global"`
}

// PrimaryEntryName returns the fixed top-level binary name inside the
// archive for a given target triple.
func PrimaryEntryName(targetTriple string) string {
	if strings.Contains(targetTriple, "windows") {
		return "ferron.exe"
	}
	return "ferron"
}

// Package writes the output archive atomically: the ZIP is built in a
// temporary file next to outputPath and renamed into place only on success,
// so a crash mid-write never leaves a corrupt file at the destination. An
// existing file at outputPath is overwritten.
func Package(a *artifact.BuildArtifact, m *manifest.ArchiveManifest, outputPath string) error {
	dir := filepath.Dir(outputPath)
	tmp, err := os.CreateTemp(dir, ".ferron-forge-*.zip")
	if err != nil {
		return forgeerrors.PackagingFailed(err, outputPath)
	}
	tmpPath := tmp.Name()
	defer func() {
		// Best-effort removal; a successful rename already moved the file.
		_ = os.Remove(tmpPath)
	}()

	if err := writeArchive(tmp, a, m); err != nil {
		_ = tmp.Close()
		return forgeerrors.PackagingFailed(err, outputPath)
	}
	if err := tmp.Close(); err != nil {
		return forgeerrors.PackagingFailed(err, outputPath)
	}

	if err := rename(tmpPath, outputPath); err != nil {
		return forgeerrors.PackagingFailed(err, outputPath)
	}

	slog.Info("Archive written", logfields.Path(outputPath), logfields.Target(a.TargetTriple))
	return nil
}

// writeArchive streams every entry into the ZIP writer.
func writeArchive(w io.Writer, a *artifact.BuildArtifact, m *manifest.ArchiveManifest) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	if err := writeFileEntry(zw, PrimaryEntryName(a.TargetTriple), a.BinaryPath, 0o755); err != nil {
		return fmt.Errorf("binary entry: %w", err)
	}

	manifestData, err := m.ToJSON()
	if err != nil {
		return err
	}
	if err := writeDataEntry(zw, manifest.EntryName, manifestData); err != nil {
		return fmt.Errorf("manifest entry: %w", err)
	}

	configData, err := renderDefaultConfig()
	if err != nil {
		return err
	}
	if err := writeDataEntry(zw, ConfigEntryName, configData); err != nil {
		return fmt.Errorf("config entry: %w", err)
	}

	for _, aux := range a.Auxiliary {
		if aux.Dir {
			if _, err := zw.Create(aux.ArchivePath + "/"); err != nil {
				return fmt.Errorf("directory entry %s: %w", aux.ArchivePath, err)
			}
			continue
		}
		if err := writeFileEntry(zw, aux.ArchivePath, aux.Path, 0o644); err != nil {
			return fmt.Errorf("auxiliary entry %s: %w", aux.ArchivePath, err)
		}
	}

	if err := zw.SetComment(fmt.Sprintf("Ferron built for %q target using Ferron Forge", a.TargetTriple)); err != nil {
		return fmt.Errorf("archive comment: %w", err)
	}

	return zw.Close()
}

// writeFileEntry copies a file from disk into the archive with the given mode.
func writeFileEntry(zw *zip.Writer, name, path string, mode os.FileMode) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
	hdr.SetMode(mode)

	entry, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(entry, f)
	return err
}

// writeDataEntry writes an in-memory payload into the archive.
func writeDataEntry(zw *zip.Writer, name string, data []byte) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
	hdr.SetMode(0o644)

	entry, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = entry.Write(data)
	return err
}

// renderDefaultConfig produces the default ferron.yaml shipped in the archive.
func renderDefaultConfig() ([]byte, error) {
	var cfg defaultServerConfig
	cfg.Global.WWWRoot = "wwwroot"

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal default config: %w", err)
	}
	return data, nil
}
