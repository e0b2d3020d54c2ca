package alert

import (
	"sync"
	"time"

	"codeberg.org/mutker/healthmon/internal/metrics"
	"github.com/google/uuid"
)

// Evaluator holds one active flag per Kind and applies hysteresis to every
// fresh reading. All flags start inactive, which for Kind Network means the
// machine is assumed to be connected.
type Evaluator struct {
	mu     sync.RWMutex
	active [kindCount]bool
}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate checks the readings present in u against t and returns one event
// per state transition. Fields missing from u were not sampled this tick and
// never change state.
func (e *Evaluator) Evaluate(u metrics.Update, t Thresholds, now time.Time) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	var events []Event
	emit := func(k Kind, active bool, value, threshold float64) {
		e.active[k] = active
		events = append(events, Event{
			ID:        uuid.New(),
			Kind:      k,
			Active:    active,
			Value:     value,
			Threshold: threshold,
			Time:      now,
		})
	}

	high := func(k Kind, v *float64, threshold float64) {
		if v == nil {
			return
		}
		switch {
		case !e.active[k] && *v > threshold:
			emit(k, true, *v, threshold)
		case e.active[k] && *v < threshold-Margin:
			emit(k, false, *v, threshold)
		}
	}

	high(KindHighCPU, u.CPUUsagePct, t.HighCPUPct)
	high(KindHighTemperature, u.CPUTempC, t.HighTempC)
	high(KindHighMemory, u.MemUsagePct, t.HighMemPct)
	high(KindHighDisk, u.DiskUsagePct, t.HighDiskPct)

	if u.DiskAvailableBytes != nil {
		avail := *u.DiskAvailableBytes
		switch {
		case !e.active[KindLowDiskSpace] && avail < t.LowDiskBytes:
			emit(KindLowDiskSpace, true, float64(avail), float64(t.LowDiskBytes))
		case e.active[KindLowDiskSpace] && avail > t.LowDiskBytes+LowDiskMargin:
			emit(KindLowDiskSpace, false, float64(avail), float64(t.LowDiskBytes))
		}
	}

	if u.NetConnected != nil {
		disconnected := !*u.NetConnected
		if disconnected != e.active[KindNetwork] {
			value := 1.0
			if disconnected {
				value = 0
			}
			emit(KindNetwork, disconnected, value, 0)
		}
	}

	return events
}

// Active reports whether k is currently raised.
func (e *Evaluator) Active(k Kind) bool {
	if k < 0 || k >= kindCount {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.active[k]
}

// ActiveKinds returns the raised kinds in declaration order.
func (e *Evaluator) ActiveKinds() []Kind {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var kinds []Kind
	for k, on := range e.active {
		if on {
			kinds = append(kinds, Kind(k))
		}
	}

	return kinds
}
