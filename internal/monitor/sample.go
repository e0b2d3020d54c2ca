package monitor

import (
	"context"
	"time"

	"codeberg.org/mutker/healthmon/internal/alert"
	"codeberg.org/mutker/healthmon/internal/errors"
	"codeberg.org/mutker/healthmon/internal/metrics"
)

type family struct {
	name string
	read func(ctx context.Context, u *metrics.Update)
}

// SampleOnce runs one sampling pass: read every metric family, store the
// fresh values and publish alert transitions. A family that fails or exceeds
// the read timeout keeps its previous values. Cancelling ctx abandons the
// pass without storing anything.
func (m *Monitor) SampleOnce(ctx context.Context) {
	th := *m.thresholds.Load()
	now := m.now()

	families := []family{
		{"cpu", m.readCPU},
		{"memory", m.readMemory},
		{"disk", m.readDisks},
		{"network", m.readNetwork},
	}

	var u metrics.Update
	for _, f := range families {
		if ctx.Err() != nil {
			m.log.Debug().Str("next", f.name).Msg("Sampling cancelled")
			return
		}
		f.read(ctx, &u)
	}
	if ctx.Err() != nil {
		m.log.Debug().Msg("Sampling cancelled")
		return
	}

	if u.Empty() {
		m.log.Warn().Msg("No metric could be read")
		return
	}

	changes := m.store.Apply(u, now)
	events := m.evaluator.Evaluate(u, th, now)

	m.log.Debug().Int("changes", len(changes)).Int("alerts", len(events)).Msg("Sampled")

	for _, e := range events {
		m.logEvent(e)
		m.alerts.Publish(e)
	}
}

type result[T any] struct {
	v   T
	err error
}

// bounded runs read on its own goroutine and returns once it finished or
// timeout elapsed, whichever comes first. A read that ignores its context is
// abandoned; it finishes in the background and its result is dropped.
func bounded[T any](ctx context.Context, timeout time.Duration, read func(context.Context) (T, error)) (T, error) {
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := read(rctx)
		done <- result[T]{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-rctx.Done():
		var zero T
		return zero, errors.New().Wrap(errors.ErrTimeout, rctx.Err())
	}
}

func (m *Monitor) warnRead(family string, err error) {
	m.log.Warn().Err(err).Str("family", family).Msg("Failed to read metric, keeping previous value")
}

type cpuReading struct {
	usage, temp float64
}

type usageReading struct {
	pct          float64
	avail, total int64
}

type counters struct {
	rx, tx uint64
}

func (m *Monitor) readCPU(ctx context.Context, u *metrics.Update) {
	r, err := bounded(ctx, m.readTimeout, func(ctx context.Context) (cpuReading, error) {
		usage, temp, err := m.src.ReadCPU(ctx)
		return cpuReading{usage, temp}, err
	})
	if err != nil {
		m.warnRead("cpu", err)
		return
	}
	u.SetCPU(r.usage, r.temp)
}

func (m *Monitor) readMemory(ctx context.Context, u *metrics.Update) {
	r, err := bounded(ctx, m.readTimeout, func(ctx context.Context) (usageReading, error) {
		pct, avail, total, err := m.src.ReadMemory(ctx)
		return usageReading{pct, avail, total}, err
	})
	if err != nil {
		m.warnRead("memory", err)
		return
	}
	u.SetMemory(r.pct, r.avail, r.total)
}

func (m *Monitor) readDisks(ctx context.Context, u *metrics.Update) {
	r, err := bounded(ctx, m.readTimeout, func(ctx context.Context) (usageReading, error) {
		pct, avail, total, err := m.src.ReadDisks(ctx)
		return usageReading{pct, avail, total}, err
	})
	if err != nil {
		m.warnRead("disk", err)
		return
	}
	u.SetDisk(r.pct, r.avail, r.total)
}

// readNetwork leaves every network field untouched when connectivity itself
// could not be determined in time.
func (m *Monitor) readNetwork(ctx context.Context, u *metrics.Update) {
	connected, err := bounded(ctx, m.readTimeout, func(ctx context.Context) (bool, error) {
		return m.src.IsNetworkAvailable(ctx), nil
	})
	if err != nil {
		m.warnRead("network", err)
		return
	}
	u.SetConnected(connected)

	if !connected {
		m.calc.Reset()
		u.SetThroughput(0, 0)
		return
	}

	name, err := bounded(ctx, m.readTimeout, m.src.ReadActiveInterface)
	if err != nil {
		m.warnRead("network", err)
		m.calc.Reset()
		u.SetThroughput(0, 0)
		return
	}

	c, err := bounded(ctx, m.readTimeout, func(ctx context.Context) (counters, error) {
		rx, tx, err := m.src.ReadInterfaceCounters(ctx, name)
		return counters{rx, tx}, err
	})
	if err != nil {
		m.warnRead("network", err)
		return
	}

	down, up := m.calc.Update(name, c.rx, c.tx, m.now())
	u.SetThroughput(down, up)
}

func (m *Monitor) logEvent(e alert.Event) {
	ev := m.log.Info()
	if e.Active {
		ev = m.log.Warn()
	}

	ev.Str("alert", string(e.Name())).
		Str("id", e.ID.String()).
		Float64("value", e.Value).
		Float64("threshold", e.Threshold).
		Msg("Alert state changed")
}
