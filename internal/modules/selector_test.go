package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferronweb/ferron-forge/internal/forgeerrors"
)

var (
	available = []string{"cache", "rproxy", "cgi", "fcgi"}
	defaults  = []string{"cache", "rproxy"}
)

func TestSelect_ValidModules(t *testing.T) {
	cfg, err := Select([]string{"rproxy", "cache"}, available, defaults, "x86_64-unknown-linux-gnu")
	require.NoError(t, err)

	assert.Equal(t, []string{"cache", "rproxy"}, cfg.Modules)
	assert.Equal(t, []string{"ferron/cache", "ferron/rproxy"}, cfg.FeatureFlags)
	assert.Equal(t, "x86_64-unknown-linux-gnu", cfg.TargetTriple)
	assert.False(t, cfg.DefaultSelection)
}

func TestSelect_ReportsAllUnknownModulesAtOnce(t *testing.T) {
	_, err := Select([]string{"cache", "bogus1", "bogus2"}, []string{"cache", "rproxy"}, defaults, "")
	require.Error(t, err)

	assert.True(t, forgeerrors.IsKind(err, forgeerrors.KindUnknownModule))
	assert.Contains(t, err.Error(), "bogus1")
	assert.Contains(t, err.Error(), "bogus2")
	assert.NotContains(t, err.Error(), "cache,")
}

func TestSelect_EmptyRequestUsesDeclaredDefaults(t *testing.T) {
	cfg, err := Select(nil, available, defaults, "")
	require.NoError(t, err)

	assert.True(t, cfg.DefaultSelection)
	assert.Equal(t, []string{"cache", "rproxy"}, cfg.Modules)

	// Requesting the default set explicitly yields the same flags.
	explicit, err := Select(defaults, available, defaults, "")
	require.NoError(t, err)
	assert.Equal(t, cfg.FeatureFlags, explicit.FeatureFlags)
	assert.Equal(t, cfg.Modules, explicit.Modules)
}

func TestSelect_OrderIndependent(t *testing.T) {
	a, err := Select([]string{"fcgi", "cache", "cgi"}, available, defaults, "")
	require.NoError(t, err)
	b, err := Select([]string{"cgi", "fcgi", "cache"}, available, defaults, "")
	require.NoError(t, err)

	assert.Equal(t, a.FeatureFlags, b.FeatureFlags)
	assert.Equal(t, a.Modules, b.Modules)
}

func TestSelect_DeduplicatesRequest(t *testing.T) {
	cfg, err := Select([]string{"cache", "cache"}, available, defaults, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"cache"}, cfg.Modules)
}

func TestSelect_DoesNotMutateInputs(t *testing.T) {
	requested := []string{"rproxy", "cache"}
	_, err := Select(requested, available, defaults, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"rproxy", "cache"}, requested)
}
