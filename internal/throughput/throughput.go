// Package throughput turns cumulative interface byte counters into KB/s
// rates.
package throughput

import (
	"sync"
	"time"
)

type sample struct {
	rx, tx uint64
	at     time.Time
}

// Calculator keeps the last counter sample of the active interface.
type Calculator struct {
	mu     sync.Mutex
	iface  string
	last   *sample
	downKB float64
	upKB   float64
}

func New() *Calculator {
	return &Calculator{}
}

// Update records the counters read for iface at now and returns the download
// and upload rates in KB/s (kilobits per second, 1000-based). The first sample
// after construction, Reset, an interface change or a counter reset yields 0.
// When no time has elapsed since the last sample the previous rates are
// returned and the last sample is kept.
func (c *Calculator) Update(iface string, rx, tx uint64, now time.Time) (down, up float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last == nil || iface != c.iface || rx < c.last.rx || tx < c.last.tx {
		c.iface = iface
		c.last = &sample{rx: rx, tx: tx, at: now}
		c.downKB, c.upKB = 0, 0

		return 0, 0
	}

	elapsed := now.Sub(c.last.at).Seconds()
	if elapsed <= 0 {
		return c.downKB, c.upKB
	}

	c.downKB = rate(rx-c.last.rx, elapsed)
	c.upKB = rate(tx-c.last.tx, elapsed)
	c.last = &sample{rx: rx, tx: tx, at: now}

	return c.downKB, c.upKB
}

// Reset forgets the sample history. Rates read as zero until two samples of
// the same interface have been seen again.
func (c *Calculator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.iface = ""
	c.last = nil
	c.downKB, c.upKB = 0, 0
}

// Interface returns the interface the history belongs to, or "".
func (c *Calculator) Interface() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.iface
}

func rate(bytes uint64, seconds float64) float64 {
	return float64(bytes) * 8 / seconds / 1000
}
