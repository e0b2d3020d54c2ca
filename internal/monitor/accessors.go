package monitor

import (
	"context"

	"codeberg.org/mutker/healthmon/internal/alert"
	"codeberg.org/mutker/healthmon/internal/metrics"
	"codeberg.org/mutker/healthmon/internal/sysinfo"
)

// Snapshot returns a consistent copy of the latest readings.
func (m *Monitor) Snapshot() metrics.Snapshot {
	return m.store.Snapshot()
}

func (m *Monitor) CPUUsage() float64             { return m.store.Snapshot().CPUUsagePct }
func (m *Monitor) CPUTemperature() float64       { return m.store.Snapshot().CPUTempC }
func (m *Monitor) MemoryUsage() float64          { return m.store.Snapshot().MemUsagePct }
func (m *Monitor) AvailableMemory() int64        { return m.store.Snapshot().MemAvailableBytes }
func (m *Monitor) TotalMemory() int64            { return m.store.Snapshot().MemTotalBytes }
func (m *Monitor) DiskUsage() float64            { return m.store.Snapshot().DiskUsagePct }
func (m *Monitor) AvailableDiskSpace() int64     { return m.store.Snapshot().DiskAvailableBytes }
func (m *Monitor) TotalDiskSpace() int64         { return m.store.Snapshot().DiskTotalBytes }
func (m *Monitor) NetworkDownloadSpeed() float64 { return m.store.Snapshot().NetDownKBs }
func (m *Monitor) NetworkUploadSpeed() float64   { return m.store.Snapshot().NetUpKBs }
func (m *Monitor) IsNetworkConnected() bool      { return m.store.Snapshot().NetConnected }

// SubscribeChanges registers fn for every changed field. Callbacks run on the
// sampling goroutine and must not block.
func (m *Monitor) SubscribeChanges(fn func(metrics.Change)) (unsubscribe func()) {
	return m.store.Subscribe(fn)
}

// SubscribeAlerts registers fn for alert transitions with one of the given
// names, or for all of them when names is empty.
func (m *Monitor) SubscribeAlerts(fn func(alert.Event), names ...alert.Name) (unsubscribe func()) {
	if len(names) == 0 {
		return m.alerts.Subscribe(fn)
	}

	want := make(map[alert.Name]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	return m.alerts.Subscribe(func(e alert.Event) {
		if want[e.Name()] {
			fn(e)
		}
	})
}

// ActiveAlerts returns the currently raised alert kinds.
func (m *Monitor) ActiveAlerts() []alert.Kind {
	return m.evaluator.ActiveKinds()
}

// Thresholds returns the thresholds the next tick evaluates against.
func (m *Monitor) Thresholds() alert.Thresholds {
	return *m.thresholds.Load()
}

// ActiveInterface returns the network interface throughput is measured on.
func (m *Monitor) ActiveInterface() string {
	return m.calc.Interface()
}

// SystemInformation combines static machine facts with the current network
// adapter and storage figures.
type SystemInformation struct {
	sysinfo.Info

	NetworkAdapter        string
	NetworkConnected      bool
	StorageTotalBytes     int64
	StorageAvailableBytes int64
}

func (m *Monitor) SystemInformation(ctx context.Context) (SystemInformation, error) {
	info, err := m.collectInfo(ctx, m.log)
	if err != nil {
		return SystemInformation{}, err
	}

	snap := m.store.Snapshot()

	return SystemInformation{
		Info:                  info,
		NetworkAdapter:        m.calc.Interface(),
		NetworkConnected:      snap.NetConnected,
		StorageTotalBytes:     snap.DiskTotalBytes,
		StorageAvailableBytes: snap.DiskAvailableBytes,
	}, nil
}
