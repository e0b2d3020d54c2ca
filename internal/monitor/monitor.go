// Package monitor ties the metric source, store, alert evaluator and poller
// together behind one lifecycle.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/healthmon/internal/alert"
	"codeberg.org/mutker/healthmon/internal/config"
	"codeberg.org/mutker/healthmon/internal/errors"
	"codeberg.org/mutker/healthmon/internal/logger"
	"codeberg.org/mutker/healthmon/internal/metrics"
	"codeberg.org/mutker/healthmon/internal/notify"
	"codeberg.org/mutker/healthmon/internal/poller"
	"codeberg.org/mutker/healthmon/internal/source"
	"codeberg.org/mutker/healthmon/internal/sysinfo"
	"codeberg.org/mutker/healthmon/internal/throughput"
)

// SettingsProvider supplies the monitoring settings and announces when they
// were saved. *config.Store implements it.
type SettingsProvider interface {
	LoadSettings() config.Settings
	OnSettingsSaved(fn func())
}

type Option func(*Monitor)

func WithLogger(log logger.Logger) Option {
	return func(m *Monitor) { m.log = log }
}

// WithReadTimeout bounds every single source call.
func WithReadTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.readTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithSystemInfo replaces the collector behind SystemInformation.
func WithSystemInfo(collect func(context.Context, logger.Logger) (sysinfo.Info, error)) Option {
	return func(m *Monitor) { m.collectInfo = collect }
}

type Monitor struct {
	src         source.Source
	settings    SettingsProvider
	log         logger.Logger
	readTimeout time.Duration
	now         func() time.Time
	collectInfo func(context.Context, logger.Logger) (sysinfo.Info, error)

	store      *metrics.Store
	evaluator  *alert.Evaluator
	calc       *throughput.Calculator
	poller     *poller.Poller
	alerts     notify.Hub[alert.Event]
	thresholds atomic.Pointer[alert.Thresholds]

	// serializes lifecycle and settings changes
	mu sync.Mutex
}

// New builds a stopped Monitor and subscribes it to settings changes.
func New(src source.Source, settings SettingsProvider, opts ...Option) *Monitor {
	m := &Monitor{
		src:         src,
		settings:    settings,
		log:         logger.Default(),
		readTimeout: config.DefaultReadTimeout,
		now:         time.Now,
		collectInfo: sysinfo.Collect,
		store:       metrics.NewStore(),
		evaluator:   alert.NewEvaluator(),
		calc:        throughput.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With("monitor")

	th := thresholdsFrom(settings.LoadSettings())
	m.thresholds.Store(&th)
	m.poller = poller.New(m.SampleOnce, m.log)

	settings.OnSettingsSaved(func() {
		m.ApplySettingsChanged(settings.LoadSettings())
	})

	return m
}

// StartMonitoring loads the current settings and starts sampling. It does
// nothing when already monitoring.
func (m *Monitor) StartMonitoring() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poller.IsRunning() {
		return nil
	}

	s := m.settings.LoadSettings()
	th := thresholdsFrom(s)
	m.thresholds.Store(&th)

	if err := m.poller.Start(intervalOf(s)); err != nil {
		return errors.New().Wrap(errors.ErrStartMonitor, err)
	}
	m.log.Info().
		Int("interval_s", s.IntervalSeconds).
		Float64("cpu_threshold", th.HighCPUPct).
		Float64("temperature_threshold", th.HighTempC).
		Float64("memory_threshold", th.HighMemPct).
		Float64("disk_threshold", th.HighDiskPct).
		Int64("low_disk_bytes", th.LowDiskBytes).
		Msg("Monitoring started")

	return nil
}

// StopMonitoring stops sampling and waits for an in-flight tick. It must not
// be called from a change or alert subscriber.
func (m *Monitor) StopMonitoring() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.poller.IsRunning() {
		return
	}

	m.poller.Stop()
	m.log.Info().Msg("Monitoring stopped")
}

func (m *Monitor) IsMonitoring() bool {
	return m.poller.IsRunning()
}

// ApplySettingsChanged swaps in new thresholds and, if it differs, the new
// interval. While monitoring both take effect together between two ticks.
func (m *Monitor) ApplySettingsChanged(s config.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()

	th := thresholdsFrom(s)
	m.poller.Reconfigure(intervalOf(s), func() {
		m.thresholds.Store(&th)
	})

	m.log.Info().
		Int("interval_s", s.IntervalSeconds).
		Bool("monitoring", m.poller.IsRunning()).
		Msg("Settings applied")
}

func thresholdsFrom(s config.Settings) alert.Thresholds {
	return alert.Thresholds{
		HighCPUPct:   s.HighCPUPct,
		HighTempC:    s.HighTempC,
		HighMemPct:   s.HighMemPct,
		HighDiskPct:  s.HighDiskPct,
		LowDiskBytes: s.LowDiskBytes,
	}
}

func intervalOf(s config.Settings) time.Duration {
	if s.IntervalSeconds <= 0 {
		return config.DefaultInterval * time.Second
	}

	return time.Duration(s.IntervalSeconds) * time.Second
}
