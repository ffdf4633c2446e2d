package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into a temp directory so the loader cannot pick up a stray
// latticemeta.yml from the repository.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.NoColor)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, "complete", cfg.RequestedState)
	assert.Equal(t, "localhost:6061", cfg.ListenAddr)
}

func TestLoadFromFile(t *testing.T) {
	dir := chdir(t)
	content := []byte("no_color: true\nrequested_state: layout\nlisten_addr: \"127.0.0.1:9999\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "latticemeta.yml"), content, 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "layout", cfg.RequestedState)
	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddr)
}

func TestLoadRejectsBadState(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "latticemeta.yml"),
		[]byte("requested_state: abstract\n"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requested_state")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "latticemeta.yml"),
		[]byte(":\n  bad yaml ["), 0o644))

	_, err := Load()
	require.Error(t, err)
}
