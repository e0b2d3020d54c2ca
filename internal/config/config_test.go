package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/healthmon/internal/config"
	"codeberg.org/mutker/healthmon/internal/errors"
	"codeberg.org/mutker/healthmon/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "healthmon.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
interval = 5
cpu_threshold = 75
temperature_threshold = 90
memory_threshold = 70
disk_threshold = 95
low_disk_space_gb = 20
read_timeout = "500ms"
log_level = "debug"
journal = true
journal_db = "/path/to/alerts.db"
`)
	t.Setenv("HEALTHMON_CONFIG", configPath)

	store, err := config.Load(nil, config.WithLogger(logger.Nop()))
	require.NoError(t, err)

	cfg := store.Config()
	assert.Equal(t, 5, cfg.Interval, "Expected Interval 5")
	assert.Equal(t, 500*time.Millisecond, cfg.ReadTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Journal)
	assert.Equal(t, "/path/to/alerts.db", cfg.JournalDB)

	settings := store.LoadSettings()
	assert.Equal(t, 5, settings.IntervalSeconds)
	assert.Equal(t, 75.0, settings.HighCPUPct)
	assert.Equal(t, 90.0, settings.HighTempC)
	assert.Equal(t, 70.0, settings.HighMemPct)
	assert.Equal(t, 95.0, settings.HighDiskPct)
	assert.Equal(t, int64(20)<<30, settings.LowDiskBytes)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HEALTHMON_CONFIG", "")

	store, err := config.Load(nil, config.WithLogger(logger.Nop()))
	require.NoError(t, err, "Failed to load config")

	cfg := store.Config()
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, config.DefaultReadTimeout, cfg.ReadTimeout)
	assert.False(t, cfg.Journal)
	assert.False(t, cfg.TUI)
	assert.Equal(t, config.DefaultSettings(), store.LoadSettings())
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	configPath := writeConfig(t, `
This is not a valid TOML file
`)
	t.Setenv("HEALTHMON_CONFIG", configPath)

	_, err := config.Load(nil, config.WithLogger(logger.Nop()))
	require.Error(t, err)
	assert.Equal(t, errors.ErrReadConfig, errors.CodeOf(err))
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := config.Load(nil,
		config.WithConfigFile(filepath.Join(t.TempDir(), "missing.toml")),
		config.WithLogger(logger.Nop()))

	require.Error(t, err)
	assert.Equal(t, errors.ErrReadConfig, errors.CodeOf(err))
}

func TestInvalidLogLevel(t *testing.T) {
	configPath := writeConfig(t, `
log_level = "invalid"
`)
	t.Setenv("HEALTHMON_CONFIG", configPath)

	_, err := config.Load(nil, config.WithLogger(logger.Nop()))
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidLogLevel, errors.CodeOf(err))
}

func TestInvalidThresholdsFallBackToDefaults(t *testing.T) {
	configPath := writeConfig(t, `
interval = 0
cpu_threshold = 150
memory_threshold = -1
disk_threshold = 60
low_disk_space_gb = 0
`)
	t.Setenv("HEALTHMON_CONFIG", configPath)

	store, err := config.Load(nil, config.WithLogger(logger.Nop()))
	require.NoError(t, err)

	settings := store.LoadSettings()
	def := config.DefaultSettings()
	assert.Equal(t, def.IntervalSeconds, settings.IntervalSeconds)
	assert.Equal(t, def.HighCPUPct, settings.HighCPUPct)
	assert.Equal(t, def.HighMemPct, settings.HighMemPct)
	assert.Equal(t, 60.0, settings.HighDiskPct)
	assert.Equal(t, def.LowDiskBytes, settings.LowDiskBytes)
}

func TestFlagsOverrideFile(t *testing.T) {
	configPath := writeConfig(t, `
interval = 5
cpu_threshold = 75
`)

	store, err := config.Load(
		[]string{"--config", configPath, "--cpu-threshold", "60", "--log-level", "debug", "--tui"},
		config.WithLogger(logger.Nop()))
	require.NoError(t, err)

	cfg := store.Config()
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
	assert.True(t, cfg.TUI)
	assert.Equal(t, 60.0, store.LoadSettings().HighCPUPct)
	assert.Equal(t, 5, store.LoadSettings().IntervalSeconds)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("HEALTHMON_CONFIG", "")
	t.Setenv("HEALTHMON_MEMORY_THRESHOLD", "65")

	store, err := config.Load(nil, config.WithLogger(logger.Nop()))
	require.NoError(t, err)

	assert.Equal(t, 65.0, store.LoadSettings().HighMemPct)
}

func TestUnknownFlag(t *testing.T) {
	_, err := config.Load([]string{"--no-such-flag"}, config.WithLogger(logger.Nop()))

	require.Error(t, err)
	assert.Equal(t, errors.ErrBindFlags, errors.CodeOf(err))
}
