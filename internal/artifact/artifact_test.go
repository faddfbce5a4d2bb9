package artifact

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferronweb/ferron-forge/internal/forgeerrors"
)

func writeBinary(t *testing.T, dir string, mode os.FileMode, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, "ferron")
	require.NoError(t, os.WriteFile(path, content, mode))
	return path
}

func TestCollect_ValidArtifact(t *testing.T) {
	dir := t.TempDir()
	bin := writeBinary(t, dir, 0o755, []byte("\x7fELF"))
	aux := filepath.Join(dir, "ferron.yaml")
	require.NoError(t, os.WriteFile(aux, []byte("global:\n"), 0o644))

	a := &BuildArtifact{
		BinaryPath:   bin,
		Auxiliary:    []AuxiliaryFile{{Path: aux, ArchivePath: "ferron.yaml"}},
		TargetTriple: "x86_64-unknown-linux-gnu",
	}

	got, err := Collect(a)
	require.NoError(t, err)
	assert.Same(t, a, got)
}

func TestCollect_MissingBinary(t *testing.T) {
	a := &BuildArtifact{BinaryPath: filepath.Join(t.TempDir(), "ferron")}

	_, err := Collect(a)
	require.Error(t, err)
	assert.True(t, forgeerrors.IsKind(err, forgeerrors.KindArtifactMissing))
	assert.Contains(t, err.Error(), "ferron")
}

func TestCollect_EmptyBinary(t *testing.T) {
	a := &BuildArtifact{BinaryPath: writeBinary(t, t.TempDir(), 0o755, nil)}

	_, err := Collect(a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestCollect_NotExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bit not applicable on windows")
	}
	a := &BuildArtifact{BinaryPath: writeBinary(t, t.TempDir(), 0o644, []byte("\x7fELF"))}

	_, err := Collect(a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not executable")
}

func TestCollect_MissingAuxiliary(t *testing.T) {
	dir := t.TempDir()
	a := &BuildArtifact{
		BinaryPath: writeBinary(t, dir, 0o755, []byte("\x7fELF")),
		Auxiliary:  []AuxiliaryFile{{Path: filepath.Join(dir, "gone.txt"), ArchivePath: "gone.txt"}},
	}

	_, err := Collect(a)
	require.Error(t, err)
	assert.True(t, forgeerrors.IsKind(err, forgeerrors.KindArtifactMissing))
	assert.Contains(t, err.Error(), "gone.txt")
}
