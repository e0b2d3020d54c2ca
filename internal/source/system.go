package source

import (
	"context"
	"net/netip"
	"strings"
	"sync"

	"codeberg.org/mutker/healthmon/internal/errors"
	"codeberg.org/mutker/healthmon/internal/logger"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// sensor keys that carry the package/die temperature, most specific first
var cpuSensorKeys = []string{"coretemp_package_id_0", "k10temp_tctl", "k10temp_tdie", "cpu_thermal", "coretemp", "k10temp", "cpu", "package"}

// System reads metrics from the running machine through gopsutil.
type System struct {
	log logger.Logger

	mu       sync.Mutex
	lastTemp float64
	iface    string
}

func NewSystem(log logger.Logger) *System {
	return &System{log: log.With("source")}
}

func (s *System) ReadCPU(ctx context.Context) (usagePct, tempC float64, err error) {
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, 0, errors.New().Wrap(ErrReadCPU, err)
	}
	if len(pct) == 0 {
		return 0, 0, errors.New().New(ErrReadCPU)
	}

	return pct[0], s.cpuTemperature(ctx), nil
}

// cpuTemperature returns the CPU package temperature, or the last good
// reading when sensors are unavailable. Machines without sensors read 0.
func (s *System) cpuTemperature(ctx context.Context) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	// gopsutil returns partial results together with a warnings error
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if len(temps) == 0 {
		if err != nil {
			s.log.Debug().Err(err).Msg("No temperature sensors")
		}
		return s.lastTemp
	}

	if t, ok := pickCPUTemperature(temps); ok {
		s.lastTemp = t
	}

	return s.lastTemp
}

func pickCPUTemperature(temps []host.TemperatureStat) (float64, bool) {
	for _, key := range cpuSensorKeys {
		for _, t := range temps {
			if t.Temperature <= 0 {
				continue
			}
			if strings.HasPrefix(strings.ToLower(t.SensorKey), key) {
				return t.Temperature, true
			}
		}
	}

	return 0, false
}

func (*System) ReadMemory(ctx context.Context) (usedPct float64, availableBytes, totalBytes int64, err error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, 0, errors.New().Wrap(ErrReadMemory, err)
	}

	return vm.UsedPercent, int64(vm.Available), int64(vm.Total), nil
}

// ReadDisks sums capacity and free space over all physical partitions.
// Partitions that cannot be read are skipped.
func (s *System) ReadDisks(ctx context.Context) (usagePct float64, availableBytes, totalBytes int64, err error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return 0, 0, 0, errors.New().Wrap(ErrReadDisks, err)
	}

	var usages []disk.UsageStat
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		if seen[p.Device] {
			continue
		}
		seen[p.Device] = true

		u, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			s.log.Warn().Err(err).Str("mountpoint", p.Mountpoint).Msg("Skipping unreadable partition")
			continue
		}
		usages = append(usages, *u)
	}

	return aggregateDisks(usages)
}

func aggregateDisks(usages []disk.UsageStat) (usagePct float64, availableBytes, totalBytes int64, err error) {
	var total, free uint64
	for _, u := range usages {
		total += u.Total
		free += u.Free
	}
	if total == 0 {
		return 0, 0, 0, errors.New().New(ErrNoDisks)
	}

	return float64(total-free) / float64(total) * 100, int64(free), int64(total), nil
}

// ReadActiveInterface keeps the previously selected interface while it is
// up, otherwise selects the first up Ethernet or Wi-Fi interface that has an
// IPv4 address.
func (s *System) ReadActiveInterface(ctx context.Context) (string, error) {
	ifaces, err := net.InterfacesWithContext(ctx)
	if err != nil {
		return "", errors.New().Wrap(ErrReadNetwork, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := selectInterface(ifaces, s.iface)
	if !ok {
		s.iface = ""
		return "", errors.New().New(ErrNoInterface)
	}
	if name != s.iface {
		s.log.Info().Str("interface", name).Msg("Active network interface selected")
	}
	s.iface = name

	return name, nil
}

func (*System) ReadInterfaceCounters(ctx context.Context, name string) (rx, tx uint64, err error) {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return 0, 0, errors.New().Wrap(ErrReadNetwork, err)
	}

	for _, c := range counters {
		if c.Name == name {
			return c.BytesRecv, c.BytesSent, nil
		}
	}

	return 0, 0, errors.New().WithData(ErrUnknownIfname, name)
}

// IsNetworkAvailable reports whether any non-loopback interface is up and
// has an address.
func (*System) IsNetworkAvailable(ctx context.Context) bool {
	ifaces, err := net.InterfacesWithContext(ctx)
	if err != nil {
		return false
	}

	for _, i := range ifaces {
		if isUp(i) && !isLoopback(i) && len(i.Addrs) > 0 {
			return true
		}
	}

	return false
}

func selectInterface(ifaces []net.InterfaceStat, current string) (string, bool) {
	if current != "" {
		for _, i := range ifaces {
			if i.Name == current && isUp(i) && !isLoopback(i) {
				return current, true
			}
		}
	}

	for _, i := range ifaces {
		if isUp(i) && !isLoopback(i) && isEthernetOrWireless(i.Name) && hasIPv4(i) {
			return i.Name, true
		}
	}

	return "", false
}

func hasFlag(i net.InterfaceStat, flag string) bool {
	for _, f := range i.Flags {
		if f == flag {
			return true
		}
	}

	return false
}

func isUp(i net.InterfaceStat) bool       { return hasFlag(i, "up") }
func isLoopback(i net.InterfaceStat) bool { return hasFlag(i, "loopback") }

var ifacePrefixes = []string{"eth", "en", "wl", "wlan", "ethernet", "wi-fi", "wifi"}

func isEthernetOrWireless(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range ifacePrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}

	return false
}

func hasIPv4(i net.InterfaceStat) bool {
	for _, a := range i.Addrs {
		addr := a.Addr
		if prefix, err := netip.ParsePrefix(addr); err == nil {
			if prefix.Addr().Is4() {
				return true
			}
			continue
		}
		if ip, err := netip.ParseAddr(addr); err == nil && ip.Is4() {
			return true
		}
	}

	return false
}
