// Package poller drives the sampling cadence: one worker goroutine, one tick
// at a time.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/healthmon/internal/errors"
	"codeberg.org/mutker/healthmon/internal/logger"
)

// TickFunc performs one sampling pass. It must return promptly once ctx is
// cancelled and must not call back into the Poller.
type TickFunc func(ctx context.Context)

type reconfigure struct {
	interval time.Duration
	apply    func()
	ack      chan struct{}
}

// Poller runs a TickFunc on a fixed period. Ticks never overlap; a tick that
// comes due while the previous one is still running is dropped.
type Poller struct {
	log  logger.Logger
	tick TickFunc

	mu       sync.Mutex
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	reconf   chan reconfigure

	running atomic.Bool
}

func New(tick TickFunc, log logger.Logger) *Poller {
	return &Poller{
		log:  log.With("poller"),
		tick: tick,
	}
}

// Start begins ticking every interval. The first tick fires one interval
// after Start. Calling Start on a running Poller does nothing.
func (p *Poller) Start(interval time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		p.log.Debug().Msg("Already running")
		return nil
	}
	if interval <= 0 {
		return errors.New().WithData(errors.ErrInvalidInterval, interval.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.interval = interval
	p.cancel = cancel
	p.done = make(chan struct{})
	p.reconf = make(chan reconfigure)
	p.running.Store(true)

	go p.loop(ctx, interval, p.reconf, p.done)

	p.log.Info().Dur("interval", interval).Msg("Polling started")

	return nil
}

// Stop cancels the timer and waits for an in-flight tick to finish. Calling
// Stop on a stopped Poller does nothing.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running.Load() {
		return
	}

	p.cancel()
	<-p.done
	p.running.Store(false)
	p.cancel, p.done, p.reconf = nil, nil, nil

	p.log.Info().Msg("Polling stopped")
}

// Reconfigure runs apply (if not nil) and switches to interval (if > 0) as one
// step. While running, both happen on the worker between two ticks and
// Reconfigure returns once they took effect; otherwise apply runs inline and
// interval is used by the next Start.
func (p *Poller) Reconfigure(interval time.Duration, apply func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running.Load() {
		if apply != nil {
			apply()
		}
		if interval > 0 {
			p.interval = interval
		}
		return
	}

	r := reconfigure{interval: interval, apply: apply, ack: make(chan struct{})}
	select {
	case p.reconf <- r:
		<-r.ack
	case <-p.done:
	}

	if interval > 0 {
		p.interval = interval
	}
}

// IsRunning never blocks.
func (p *Poller) IsRunning() bool {
	return p.running.Load()
}

// Interval returns the current (or next, when stopped) tick period.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.interval
}

func (p *Poller) loop(ctx context.Context, interval time.Duration, reconf <-chan reconfigure, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case r := <-reconf:
			if r.apply != nil {
				p.safely("apply", r.apply)
			}
			if r.interval > 0 && r.interval != interval {
				interval = r.interval
				ticker.Reset(interval)
				p.log.Info().Dur("interval", interval).Msg("Polling interval changed")
			}
			close(r.ack)
		case <-ticker.C:
			p.safely("tick", func() { p.tick(ctx) })

			// drop a tick that came due while this one ran
			select {
			case <-ticker.C:
				p.log.Debug().Msg("Skipped overdue tick")
			default:
			}
		}
	}
}

func (p *Poller) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.New().WithData(errors.ErrSampleTick, r)
			p.log.ErrorWithCode(err).Str("in", what).Msg("Recovered from panic")
		}
	}()

	fn()
}
