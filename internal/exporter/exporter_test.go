package exporter_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/healthmon/internal/alert"
	"codeberg.org/mutker/healthmon/internal/exporter"
	"codeberg.org/mutker/healthmon/internal/logger"
	"codeberg.org/mutker/healthmon/internal/metrics"
	"codeberg.org/mutker/healthmon/internal/notify"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMonitor struct {
	store  *metrics.Store
	alerts notify.Hub[alert.Event]
}

func (f *fakeMonitor) Snapshot() metrics.Snapshot { return f.store.Snapshot() }

func (f *fakeMonitor) SubscribeChanges(fn func(metrics.Change)) func() {
	return f.store.Subscribe(fn)
}

func (f *fakeMonitor) SubscribeAlerts(fn func(alert.Event), _ ...alert.Name) func() {
	return f.alerts.Subscribe(fn)
}

func TestAttachMirrorsChanges(t *testing.T) {
	mon := &fakeMonitor{store: metrics.NewStore()}
	e := exporter.New()
	detach := e.Attach(mon)

	var u metrics.Update
	u.SetCPU(42.5, 61)
	u.SetDisk(70, 300, 1000)
	u.SetConnected(true)
	mon.store.Apply(u, time.Unix(1700000000, 0))

	var buf bytes.Buffer
	require.NoError(t, e.WriteText(&buf))
	out := buf.String()

	assert.Contains(t, out, "healthmon_cpu_usage_percent 42.5\n")
	assert.Contains(t, out, "healthmon_cpu_temperature_celsius 61\n")
	assert.Contains(t, out, "healthmon_disk_available_bytes 300\n")
	assert.Contains(t, out, "healthmon_network_connected 1\n")
	assert.Contains(t, out, "healthmon_last_sample_timestamp_seconds 1.7e+09\n")
	// no transition yet, so the counter vector has no children to expose
	assert.NotContains(t, out, "healthmon_alert_transitions_total")

	detach()

	var later metrics.Update
	later.SetCPU(99, 61)
	mon.store.Apply(later, time.Now())

	buf.Reset()
	require.NoError(t, e.WriteText(&buf))
	assert.Contains(t, buf.String(), "healthmon_cpu_usage_percent 42.5\n")
}

func TestAlertMetrics(t *testing.T) {
	mon := &fakeMonitor{store: metrics.NewStore()}
	e := exporter.New()
	e.Attach(mon)

	mon.alerts.Publish(alert.Event{Kind: alert.KindHighCPU, Active: true})
	mon.alerts.Publish(alert.Event{Kind: alert.KindHighCPU, Active: false})
	mon.alerts.Publish(alert.Event{Kind: alert.KindNetwork, Active: true})

	expected := `
# HELP healthmon_alert_active 1 while the alert of the given kind is raised.
# TYPE healthmon_alert_active gauge
healthmon_alert_active{kind="HighCpu"} 0
healthmon_alert_active{kind="HighDisk"} 0
healthmon_alert_active{kind="HighMemory"} 0
healthmon_alert_active{kind="HighTemperature"} 0
healthmon_alert_active{kind="LowDiskSpace"} 0
healthmon_alert_active{kind="Network"} 1
# HELP healthmon_alert_transitions_total Alert transitions by event name.
# TYPE healthmon_alert_transitions_total counter
healthmon_alert_transitions_total{name="HighCpu"} 1
healthmon_alert_transitions_total{name="HighCpuCleared"} 1
healthmon_alert_transitions_total{name="NetworkDisconnected"} 1
`
	require.NoError(t, testutil.GatherAndCompare(e.Registry(), strings.NewReader(expected),
		"healthmon_alert_active", "healthmon_alert_transitions_total"))
}

func TestWriteFile(t *testing.T) {
	e := exporter.New()
	e.Observe(metrics.Snapshot{MemTotalBytes: 16 << 30})

	path := filepath.Join(t.TempDir(), "healthmon.prom")
	require.NoError(t, e.WriteFile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "healthmon_memory_total_bytes 1.7179869184e+10\n")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFileEveryFollowsIntervalChange(t *testing.T) {
	e := exporter.New()
	e.Observe(metrics.Snapshot{CPUUsagePct: 12})
	path := filepath.Join(t.TempDir(), "healthmon.prom")

	var mu sync.Mutex
	period := time.Hour
	interval := func() time.Duration {
		mu.Lock()
		defer mu.Unlock()
		return period
	}
	changed := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.WriteFileEvery(ctx, path, interval, changed, logger.Nop())
		close(done)
	}()

	mu.Lock()
	period = 20 * time.Millisecond
	mu.Unlock()
	changed <- struct{}{}

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
