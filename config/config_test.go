package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryConfig(t *testing.T) {
	cfg := DefaultRegistryConfig()
	assert.Equal(t, 40000, cfg.CommandPort)
	assert.Equal(t, "239.17.12.1:9999", cfg.StatusMulticastAddr)
	assert.False(t, cfg.Verbose)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRegistryConfig(), cfg)
}

func TestLoadPartialFileOverridesOnlyNamedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"command_port": 50555, "verbose": true}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50555, cfg.CommandPort)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "239.17.12.1:9999", cfg.StatusMulticastAddr)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/registry.json")
	assert.Error(t, err)
}

func TestResolvePathPrefersFlagOverEnv(t *testing.T) {
	t.Setenv(EnvOverrideVar, "/env/path.json")
	assert.Equal(t, "/flag/path.json", ResolvePath("/flag/path.json"))
}

func TestResolvePathFallsBackToEnv(t *testing.T) {
	t.Setenv(EnvOverrideVar, "/env/path.json")
	assert.Equal(t, "/env/path.json", ResolvePath(""))
}

func TestDurationHelpers(t *testing.T) {
	cfg := DefaultRegistryConfig()
	assert.Equal(t, int64(1000), cfg.StartupProbeTimeout().Milliseconds())
	assert.Equal(t, int64(2000), cfg.ShutdownTimeout().Milliseconds())
	assert.Equal(t, int64(5000), cfg.StatsInterval().Milliseconds())
}
