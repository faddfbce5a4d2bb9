package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReadModuleCatalogue_SingleCrate(t *testing.T) {
	tree := t.TempDir()
	writeFile(t, filepath.Join(tree, "Cargo.toml"), `
[package]
name = "ferron"
version = "1.0.0"

[features]
default = ["cache", "rproxy"]
cache = []
rproxy = []
fcgi = ["dep:fastcgi-client"]
`)

	available, defaults, err := ReadModuleCatalogue(tree)
	require.NoError(t, err)

	assert.Equal(t, []string{"cache", "fcgi", "rproxy"}, available)
	assert.Equal(t, []string{"cache", "rproxy"}, defaults)
}

func TestReadModuleCatalogue_WorkspaceMember(t *testing.T) {
	tree := t.TempDir()
	writeFile(t, filepath.Join(tree, "Cargo.toml"), `
[workspace]
members = ["ferron", "ferron-common"]
`)
	writeFile(t, filepath.Join(tree, "ferron", "Cargo.toml"), `
[package]
name = "ferron"

[features]
default = ["cache"]
cache = []
cgi = []
`)
	writeFile(t, filepath.Join(tree, "ferron-common", "Cargo.toml"), `
[package]
name = "ferron-common"
`)

	available, defaults, err := ReadModuleCatalogue(tree)
	require.NoError(t, err)

	assert.Equal(t, []string{"cache", "cgi"}, available)
	assert.Equal(t, []string{"cache"}, defaults)
}

func TestReadModuleCatalogue_TransitiveDefaults(t *testing.T) {
	tree := t.TempDir()
	writeFile(t, filepath.Join(tree, "Cargo.toml"), `
[package]
name = "ferron"

[features]
default = ["full"]
full = ["cache", "rproxy"]
cache = []
rproxy = ["dep:hyper-util"]
`)

	_, defaults, err := ReadModuleCatalogue(tree)
	require.NoError(t, err)

	assert.Equal(t, []string{"cache", "full", "rproxy"}, defaults)
}

func TestReadModuleCatalogue_NoFeatureTable(t *testing.T) {
	tree := t.TempDir()
	writeFile(t, filepath.Join(tree, "Cargo.toml"), `
[package]
name = "something-else"
`)

	_, _, err := ReadModuleCatalogue(tree)
	assert.Error(t, err)
}

func TestReadModuleCatalogue_MissingManifest(t *testing.T) {
	_, _, err := ReadModuleCatalogue(t.TempDir())
	assert.Error(t, err)
}
