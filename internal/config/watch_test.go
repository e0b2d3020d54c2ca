package config

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/healthmon/internal/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReloadNotifiesSubscribers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "healthmon.toml")
	require.NoError(t, os.WriteFile(path, []byte("interval = 2\ncpu_threshold = 80\n"), 0o600))

	store, err := Load(nil, WithConfigFile(path), WithLogger(logger.Nop()))
	require.NoError(t, err)

	calls := 0
	var seen Settings
	store.OnSettingsSaved(func() {
		calls++
		seen = store.LoadSettings()
	})

	require.NoError(t, os.WriteFile(path, []byte("interval = 1\ncpu_threshold = 70\n"), 0o600))
	require.NoError(t, store.v.ReadInConfig())
	store.reload(fsnotify.Event{Name: path, Op: fsnotify.Write})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, seen.IntervalSeconds)
	assert.Equal(t, 70.0, seen.HighCPUPct)
}

func TestReloadIgnoresInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "healthmon.toml")
	require.NoError(t, os.WriteFile(path, []byte("interval = 3\n"), 0o600))

	store, err := Load(nil, WithConfigFile(path), WithLogger(logger.Nop()))
	require.NoError(t, err)

	calls := 0
	store.OnSettingsSaved(func() { calls++ })

	require.NoError(t, os.WriteFile(path, []byte("interval = 1\nlog_level = \"loud\"\n"), 0o600))
	require.NoError(t, store.v.ReadInConfig())
	store.reload(fsnotify.Event{Name: path, Op: fsnotify.Write})

	assert.Zero(t, calls)
	assert.Equal(t, 3, store.LoadSettings().IntervalSeconds)
}
