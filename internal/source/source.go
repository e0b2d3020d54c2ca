// Package source reads raw, instantaneous machine metrics.
package source

import (
	"context"

	"codeberg.org/mutker/healthmon/internal/errors"
)

const (
	ErrReadCPU       = errors.ErrorCode("source_read_cpu_failed")
	ErrReadMemory    = errors.ErrorCode("source_read_memory_failed")
	ErrReadDisks     = errors.ErrorCode("source_read_disks_failed")
	ErrNoDisks       = errors.ErrorCode("source_no_disks")
	ErrReadNetwork   = errors.ErrorCode("source_read_network_failed")
	ErrNoInterface   = errors.ErrorCode("source_no_active_interface")
	ErrUnknownIfname = errors.ErrorCode("source_unknown_interface")
)

// Source is the per-OS metric acquisition surface. Every call may fail
// independently; callers bound each call with ctx.
type Source interface {
	ReadCPU(ctx context.Context) (usagePct, tempC float64, err error)
	ReadMemory(ctx context.Context) (usedPct float64, availableBytes, totalBytes int64, err error)
	ReadDisks(ctx context.Context) (usagePct float64, availableBytes, totalBytes int64, err error)
	ReadActiveInterface(ctx context.Context) (string, error)
	ReadInterfaceCounters(ctx context.Context, name string) (rx, tx uint64, err error)
	IsNetworkAvailable(ctx context.Context) bool
}
