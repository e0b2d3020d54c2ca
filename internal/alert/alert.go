// Package alert tracks the alert state of every monitored metric and turns
// threshold crossings into events.
package alert

import (
	"time"

	"github.com/google/uuid"
)

// Kind is one alertable condition.
type Kind int

const (
	KindHighCPU Kind = iota
	KindHighTemperature
	KindHighMemory
	KindHighDisk
	KindLowDiskSpace
	KindNetwork

	kindCount
)

var kindNames = [kindCount]string{
	KindHighCPU:         "HighCpu",
	KindHighTemperature: "HighTemperature",
	KindHighMemory:      "HighMemory",
	KindHighDisk:        "HighDisk",
	KindLowDiskSpace:    "LowDiskSpace",
	KindNetwork:         "Network",
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return "Unknown"
	}

	return kindNames[k]
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}

	return 0, false
}

// Kinds returns every alert kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		kinds = append(kinds, k)
	}

	return kinds
}

// Name is the identifier consumers subscribe to.
type Name string

const (
	HighCPU                Name = "HighCpu"
	HighCPUCleared         Name = "HighCpuCleared"
	HighTemperature        Name = "HighTemperature"
	HighTemperatureCleared Name = "HighTemperatureCleared"
	HighMemory             Name = "HighMemory"
	HighMemoryCleared      Name = "HighMemoryCleared"
	HighDisk               Name = "HighDisk"
	HighDiskCleared        Name = "HighDiskCleared"
	LowDiskSpace           Name = "LowDiskSpace"
	LowDiskSpaceCleared    Name = "LowDiskSpaceCleared"
	NetworkDisconnected    Name = "NetworkDisconnected"
	NetworkConnected       Name = "NetworkConnected"
)

// Names returns every event name.
func Names() []Name {
	return []Name{
		HighCPU, HighCPUCleared,
		HighTemperature, HighTemperatureCleared,
		HighMemory, HighMemoryCleared,
		HighDisk, HighDiskCleared,
		LowDiskSpace, LowDiskSpaceCleared,
		NetworkDisconnected, NetworkConnected,
	}
}

// Event is a single alert transition.
type Event struct {
	ID     uuid.UUID
	Kind   Kind
	Active bool
	// Value is the reading that caused the transition: percent, °C, bytes
	// for low disk space, 1/0 for network connectivity.
	Value     float64
	Threshold float64
	Time      time.Time
}

// Name returns the event name for the transition.
func (e Event) Name() Name {
	if e.Kind == KindNetwork {
		if e.Active {
			return NetworkDisconnected
		}
		return NetworkConnected
	}

	name := Name(e.Kind.String())
	if !e.Active {
		name += "Cleared"
	}

	return name
}
