package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "") // registers the restore on cleanup
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t, "SENTINEL_POLL_TIME", "SENTINEL_STATE_FILE", "SENTINEL_RESTART_LIMIT")
	t.Setenv("SENTINEL_STATE_FILE", filepath.Join(t.TempDir(), "state.db"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.PollTime)
	assert.Equal(t, 5, cfg.RestartLimit)
}

func TestLoad_PollTimeFromEnv(t *testing.T) {
	t.Setenv("SENTINEL_POLL_TIME", "10s")
	t.Setenv("SENTINEL_STATE_FILE", filepath.Join(t.TempDir(), "state.db"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.PollTime)
}

func TestLoad_InvalidDurationIsAnError(t *testing.T) {
	t.Setenv("SENTINEL_POLL_TIME", "not-a-duration")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_CollectorURLsSplitOnComma(t *testing.T) {
	t.Setenv("SENTINEL_COLLECTOR_URLS", "ws://a.example, ws://b.example")
	t.Setenv("SENTINEL_STATE_FILE", filepath.Join(t.TempDir(), "state.db"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"ws://a.example", "ws://b.example"}, cfg.CollectorURLs)
}

func TestLoad_StateFileResolvedToAbsoluteAndDirectoryCreated(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested", "state.db")
	t.Setenv("SENTINEL_STATE_FILE", nested)

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.StateFile))
	assert.DirExists(t, filepath.Dir(nested))
}

func TestLoad_RestartLimitFromEnv(t *testing.T) {
	t.Setenv("SENTINEL_RESTART_LIMIT", "3")
	t.Setenv("SENTINEL_STATE_FILE", filepath.Join(t.TempDir(), "state.db"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.RestartLimit)
}
