package config

import (
	"math"

	"codeberg.org/mutker/healthmon/internal/logger"
)

const bytesPerGiB = 1 << 30

const (
	DefaultInterval             = 2
	DefaultCPUThreshold         = 80
	DefaultTemperatureThreshold = 80
	DefaultMemoryThreshold      = 85
	DefaultDiskThreshold        = 90
	DefaultLowDiskSpaceGB       = 10
)

// Settings is the monitoring subset of the configuration: sampling interval
// and alert thresholds. It is what the monitor reloads when the file changes.
type Settings struct {
	IntervalSeconds int
	HighCPUPct      float64
	HighTempC       float64
	HighMemPct      float64
	HighDiskPct     float64
	LowDiskBytes    int64
}

// DefaultSettings returns the built-in monitoring settings.
func DefaultSettings() Settings {
	return Settings{
		IntervalSeconds: DefaultInterval,
		HighCPUPct:      DefaultCPUThreshold,
		HighTempC:       DefaultTemperatureThreshold,
		HighMemPct:      DefaultMemoryThreshold,
		HighDiskPct:     DefaultDiskThreshold,
		LowDiskBytes:    DefaultLowDiskSpaceGB * bytesPerGiB,
	}
}

// settingsFrom converts cfg into Settings, replacing every out-of-range
// field with its default and logging a warning for it.
func settingsFrom(cfg *Config, log logger.Logger) Settings {
	def := DefaultSettings()
	s := def

	if cfg.Interval > 0 {
		s.IntervalSeconds = cfg.Interval
	} else {
		warnFallback(log, "interval", cfg.Interval, def.IntervalSeconds)
	}

	s.HighCPUPct = percentOr(log, "cpu_threshold", cfg.CPUThreshold, def.HighCPUPct)
	s.HighMemPct = percentOr(log, "memory_threshold", cfg.MemoryThreshold, def.HighMemPct)
	s.HighDiskPct = percentOr(log, "disk_threshold", cfg.DiskThreshold, def.HighDiskPct)

	if cfg.TemperatureThreshold > 0 && cfg.TemperatureThreshold < 150 {
		s.HighTempC = cfg.TemperatureThreshold
	} else {
		warnFallback(log, "temperature_threshold", cfg.TemperatureThreshold, def.HighTempC)
	}

	if cfg.LowDiskSpaceGB > 0 && !math.IsInf(cfg.LowDiskSpaceGB, 0) {
		s.LowDiskBytes = int64(cfg.LowDiskSpaceGB * bytesPerGiB)
	} else {
		warnFallback(log, "low_disk_space_gb", cfg.LowDiskSpaceGB, DefaultLowDiskSpaceGB)
	}

	return s
}

func percentOr(log logger.Logger, key string, v, def float64) float64 {
	if v > 0 && v <= 100 {
		return v
	}
	warnFallback(log, key, v, def)

	return def
}

func warnFallback(log logger.Logger, key string, got, def any) {
	log.Warn().
		Str("key", key).
		Interface("value", got).
		Interface("default", def).
		Msg("Invalid setting, using default")
}
