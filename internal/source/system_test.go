package source

import (
	"testing"

	"codeberg.org/mutker/healthmon/internal/errors"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iface(name string, flags []string, addrs ...string) net.InterfaceStat {
	i := net.InterfaceStat{Name: name, Flags: flags}
	for _, a := range addrs {
		i.Addrs = append(i.Addrs, net.InterfaceAddr{Addr: a})
	}
	return i
}

func TestSelectInterface(t *testing.T) {
	lo := iface("lo", []string{"up", "loopback"}, "127.0.0.1/8")
	docker := iface("docker0", []string{"up"}, "172.17.0.1/16")
	eth := iface("eth0", []string{"up", "broadcast"}, "192.168.1.10/24")
	wlan := iface("wlp3s0", []string{"up"}, "10.0.0.5/24")
	v6only := iface("enp2s0", []string{"up"}, "fe80::1/64")
	down := iface("eth1", nil, "192.168.2.10/24")

	tests := []struct {
		name    string
		ifaces  []net.InterfaceStat
		current string
		want    string
		ok      bool
	}{
		{"first candidate", []net.InterfaceStat{lo, docker, eth, wlan}, "", "eth0", true},
		{"keeps current while up", []net.InterfaceStat{lo, eth, wlan}, "wlp3s0", "wlp3s0", true},
		{"current went down", []net.InterfaceStat{lo, down, wlan}, "eth1", "wlp3s0", true},
		{"ipv6 only is skipped", []net.InterfaceStat{v6only, wlan}, "", "wlp3s0", true},
		{"nothing usable", []net.InterfaceStat{lo, docker, down}, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := selectInterface(tt.ifaces, tt.current)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsEthernetOrWireless(t *testing.T) {
	for _, name := range []string{"eth0", "enp0s31f6", "en0", "wlan0", "wlp2s0", "Ethernet 2", "Wi-Fi"} {
		assert.True(t, isEthernetOrWireless(name), name)
	}
	for _, name := range []string{"lo", "docker0", "tun0", "virbr0", "br-1234"} {
		assert.False(t, isEthernetOrWireless(name), name)
	}
}

func TestAggregateDisks(t *testing.T) {
	usagePct, avail, total, err := aggregateDisks([]disk.UsageStat{
		{Total: 100, Free: 25},
		{Total: 300, Free: 75},
	})
	require.NoError(t, err)
	assert.InDelta(t, 75, usagePct, 0.0001)
	assert.Equal(t, int64(100), avail)
	assert.Equal(t, int64(400), total)

	_, _, _, err = aggregateDisks(nil)
	require.Error(t, err)
	assert.Equal(t, ErrNoDisks, errors.CodeOf(err))
}

func TestPickCPUTemperature(t *testing.T) {
	temps := []host.TemperatureStat{
		{SensorKey: "nvme_composite", Temperature: 38},
		{SensorKey: "coretemp_core_0", Temperature: 51},
		{SensorKey: "coretemp_package_id_0", Temperature: 55},
	}

	got, ok := pickCPUTemperature(temps)
	require.True(t, ok)
	assert.Equal(t, 55.0, got)

	_, ok = pickCPUTemperature([]host.TemperatureStat{{SensorKey: "acpitz", Temperature: 27}})
	assert.False(t, ok)
}
