// Package sysinfo collects static facts about the machine.
package sysinfo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codeberg.org/mutker/healthmon/internal/errors"
	"codeberg.org/mutker/healthmon/internal/gpu"
	"codeberg.org/mutker/healthmon/internal/logger"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

const ErrCollect = errors.ErrorCode("sysinfo_collect_failed")

type Info struct {
	Hostname         string
	OS               string
	Platform         string
	PlatformVersion  string
	KernelVersion    string
	Arch             string
	Uptime           time.Duration
	CPUModel         string
	CPUCores         int
	CPUThreads       int
	MemoryTotalBytes uint64
	GPUs             []string
}

// Collect gathers host, CPU, memory and GPU facts. Only a host lookup failure
// is an error; the remaining facts are best effort.
func Collect(ctx context.Context, log logger.Logger) (Info, error) {
	h, err := host.InfoWithContext(ctx)
	if err != nil {
		return Info{}, errors.New().Wrap(ErrCollect, err)
	}

	info := Info{
		Hostname:        h.Hostname,
		OS:              h.OS,
		Platform:        h.Platform,
		PlatformVersion: h.PlatformVersion,
		KernelVersion:   h.KernelVersion,
		Arch:            h.KernelArch,
		Uptime:          time.Duration(h.Uptime) * time.Second,
	}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.CPUModel = strings.TrimSpace(cpus[0].ModelName)
	} else if err != nil {
		log.Debug().Err(err).Msg("CPU info unavailable")
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		info.CPUCores = n
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CPUThreads = n
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryTotalBytes = vm.Total
	} else {
		log.Debug().Err(err).Msg("Memory info unavailable")
	}

	info.GPUs = gpu.Names(log)

	return info, nil
}

// OSName returns a human readable platform string, e.g. "ubuntu 24.04 (linux)".
func (i Info) OSName() string {
	if i.Platform == "" {
		return i.OS
	}
	if i.PlatformVersion == "" {
		return fmt.Sprintf("%s (%s)", i.Platform, i.OS)
	}

	return fmt.Sprintf("%s %s (%s)", i.Platform, i.PlatformVersion, i.OS)
}
