// Package exporter mirrors the monitor state as Prometheus metrics for the
// node_exporter textfile collector or a one-shot dump.
package exporter

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/healthmon/internal/alert"
	"codeberg.org/mutker/healthmon/internal/errors"
	"codeberg.org/mutker/healthmon/internal/logger"
	"codeberg.org/mutker/healthmon/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "healthmon"

const (
	ErrGather = errors.ErrorCode("exporter_gather_failed")
	ErrWrite  = errors.ErrorCode("exporter_write_failed")
)

var gaugeOpts = map[metrics.Field]prometheus.GaugeOpts{
	metrics.FieldCPUUsage:         {Name: "cpu_usage_percent", Help: "CPU usage in percent."},
	metrics.FieldCPUTemperature:   {Name: "cpu_temperature_celsius", Help: "CPU package temperature in degrees Celsius."},
	metrics.FieldMemoryUsage:      {Name: "memory_usage_percent", Help: "Used memory in percent."},
	metrics.FieldMemoryAvailable:  {Name: "memory_available_bytes", Help: "Available memory in bytes."},
	metrics.FieldMemoryTotal:      {Name: "memory_total_bytes", Help: "Total memory in bytes."},
	metrics.FieldDiskUsage:        {Name: "disk_usage_percent", Help: "Used disk space over all physical disks in percent."},
	metrics.FieldDiskAvailable:    {Name: "disk_available_bytes", Help: "Free disk space over all physical disks in bytes."},
	metrics.FieldDiskTotal:        {Name: "disk_total_bytes", Help: "Disk capacity over all physical disks in bytes."},
	metrics.FieldNetworkDownload:  {Name: "network_download_kbps", Help: "Download rate of the active interface in kilobits per second."},
	metrics.FieldNetworkUpload:    {Name: "network_upload_kbps", Help: "Upload rate of the active interface in kilobits per second."},
	metrics.FieldNetworkConnected: {Name: "network_connected", Help: "1 when the network is available."},
}

// Source is the part of the monitor the exporter reads from.
type Source interface {
	Snapshot() metrics.Snapshot
	SubscribeChanges(fn func(metrics.Change)) (unsubscribe func())
	SubscribeAlerts(fn func(alert.Event), names ...alert.Name) (unsubscribe func())
}

type Exporter struct {
	registry    *prometheus.Registry
	gauges      map[metrics.Field]prometheus.Gauge
	lastSample  prometheus.Gauge
	alertActive *prometheus.GaugeVec
	transitions *prometheus.CounterVec
}

func New() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		gauges:   make(map[metrics.Field]prometheus.Gauge, len(gaugeOpts)),
		lastSample: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sample_timestamp_seconds",
			Help:      "Unix time of the last sample that changed a value.",
		}),
		alertActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_active",
			Help:      "1 while the alert of the given kind is raised.",
		}, []string{"kind"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_transitions_total",
			Help:      "Alert transitions by event name.",
		}, []string{"name"}),
	}

	for _, f := range metrics.Fields() {
		opts := gaugeOpts[f]
		opts.Namespace = namespace
		g := prometheus.NewGauge(opts)
		e.gauges[f] = g
		e.registry.MustRegister(g)
	}
	e.registry.MustRegister(e.lastSample, e.alertActive, e.transitions)

	for _, k := range alert.Kinds() {
		e.alertActive.WithLabelValues(k.String()).Set(0)
	}

	return e
}

// Attach mirrors src into the exporter until the returned function is called.
func (e *Exporter) Attach(src Source) (detach func()) {
	e.Observe(src.Snapshot())

	unsubChanges := src.SubscribeChanges(e.observeChange)
	unsubAlerts := src.SubscribeAlerts(e.ObserveAlert)

	return func() {
		unsubChanges()
		unsubAlerts()
	}
}

// Observe sets every gauge from s.
func (e *Exporter) Observe(s metrics.Snapshot) {
	for _, f := range metrics.Fields() {
		e.set(f, s.Value(f))
	}
	if !s.Timestamp.IsZero() {
		e.lastSample.Set(float64(s.Timestamp.UnixMilli()) / 1000)
	}
}

func (e *Exporter) observeChange(c metrics.Change) {
	e.set(c.Field, c.Value)
	e.lastSample.Set(float64(c.Time.UnixMilli()) / 1000)
}

// ObserveAlert records one alert transition.
func (e *Exporter) ObserveAlert(ev alert.Event) {
	active := 0.0
	if ev.Active {
		active = 1
	}
	e.alertActive.WithLabelValues(ev.Kind.String()).Set(active)
	e.transitions.WithLabelValues(string(ev.Name())).Inc()
}

func (e *Exporter) set(f metrics.Field, v any) {
	g, ok := e.gauges[f]
	if !ok {
		return
	}

	switch v := v.(type) {
	case float64:
		g.Set(v)
	case int64:
		g.Set(float64(v))
	case bool:
		if v {
			g.Set(1)
		} else {
			g.Set(0)
		}
	}
}

func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// WriteText writes all metrics in the Prometheus text exposition format.
func (e *Exporter) WriteText(w io.Writer) error {
	errFactory := errors.New()

	families, err := e.registry.Gather()
	if err != nil {
		return errFactory.Wrap(ErrGather, err)
	}

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errFactory.Wrap(ErrWrite, err)
		}
	}

	return nil
}

// WriteFile replaces path atomically so a textfile collector never reads a
// partial file.
func (e *Exporter) WriteFile(path string) error {
	errFactory := errors.New()

	var buf bytes.Buffer
	if err := e.WriteText(&buf); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errFactory.Wrap(ErrWrite, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return errFactory.Wrap(ErrWrite, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return errFactory.Wrap(ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return errFactory.Wrap(ErrWrite, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return errFactory.Wrap(ErrWrite, err)
	}

	return nil
}

// WriteFileEvery rewrites path every interval() until ctx is done. A value on
// changed makes it read interval() again and restart the period.
func (e *Exporter) WriteFileEvery(ctx context.Context, path string, interval func() time.Duration, changed <-chan struct{}, log logger.Logger) {
	period := interval()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	log.Info().Str("path", path).Dur("interval", period).Msg("Writing metrics file")

	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			if d := interval(); d > 0 && d != period {
				period = d
				ticker.Reset(period)
				log.Info().Dur("interval", period).Msg("Metrics file interval changed")
			}
		case <-ticker.C:
			if err := e.WriteFile(path); err != nil {
				log.Warn().Err(err).Msg("Failed to write metrics file")
			}
		}
	}
}
