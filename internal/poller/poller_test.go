package poller_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/healthmon/internal/logger"
	"codeberg.org/mutker/healthmon/internal/poller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	ticks atomic.Int64
}

func (c *counter) tick(context.Context) {
	c.ticks.Add(1)
}

func TestStartIsIdempotent(t *testing.T) {
	var c counter
	p := poller.New(c.tick, logger.Nop())

	require.NoError(t, p.Start(50*time.Millisecond))
	require.NoError(t, p.Start(50*time.Millisecond))
	assert.True(t, p.IsRunning())

	time.Sleep(275 * time.Millisecond)
	p.Stop()

	// one timer yields about five ticks, two timers about ten
	n := c.ticks.Load()
	assert.GreaterOrEqual(t, n, int64(3))
	assert.LessOrEqual(t, n, int64(7))
}

func TestStartRejectsInvalidInterval(t *testing.T) {
	var c counter
	p := poller.New(c.tick, logger.Nop())

	assert.Error(t, p.Start(0))
	assert.False(t, p.IsRunning())
}

func TestStopIsIdempotent(t *testing.T) {
	var c counter
	p := poller.New(c.tick, logger.Nop())

	p.Stop()
	require.NoError(t, p.Start(10*time.Millisecond))
	p.Stop()
	p.Stop()
	assert.False(t, p.IsRunning())

	n := c.ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, c.ticks.Load())
}

func TestStopWaitsForInflightTick(t *testing.T) {
	started := make(chan struct{}, 1)
	var finished atomic.Bool

	p := poller.New(func(context.Context) {
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
	}, logger.Nop())

	require.NoError(t, p.Start(10*time.Millisecond))
	<-started
	p.Stop()

	assert.True(t, finished.Load())
}

func TestStopCancelsTickContext(t *testing.T) {
	started := make(chan struct{}, 1)
	var cancelled atomic.Bool

	p := poller.New(func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-ctx.Done():
			cancelled.Store(true)
		case <-time.After(5 * time.Second):
		}
	}, logger.Nop())

	require.NoError(t, p.Start(10*time.Millisecond))
	<-started

	begin := time.Now()
	p.Stop()

	assert.True(t, cancelled.Load())
	assert.Less(t, time.Since(begin), time.Second)
}

func TestTicksNeverOverlap(t *testing.T) {
	var inflight, maxInflight atomic.Int64

	p := poller.New(func(context.Context) {
		n := inflight.Add(1)
		if n > maxInflight.Load() {
			maxInflight.Store(n)
		}
		time.Sleep(30 * time.Millisecond)
		inflight.Add(-1)
	}, logger.Nop())

	require.NoError(t, p.Start(5*time.Millisecond))
	time.Sleep(200 * time.Millisecond)
	p.Stop()

	assert.Equal(t, int64(1), maxInflight.Load())
}

func TestPanicInTickIsRecovered(t *testing.T) {
	var c counter

	p := poller.New(func(context.Context) {
		if c.ticks.Add(1) == 1 {
			panic("boom")
		}
	}, logger.Nop())

	require.NoError(t, p.Start(20*time.Millisecond))
	assert.Eventually(t, func() bool { return c.ticks.Load() >= 3 }, time.Second, 10*time.Millisecond)
	p.Stop()
}

func TestReconfigureChangesCadence(t *testing.T) {
	var c counter
	p := poller.New(c.tick, logger.Nop())

	require.NoError(t, p.Start(200*time.Millisecond))
	defer p.Stop()

	time.Sleep(250 * time.Millisecond)
	before := c.ticks.Load()
	assert.Equal(t, int64(1), before)

	var applied atomic.Bool
	p.Reconfigure(100*time.Millisecond, func() { applied.Store(true) })
	assert.True(t, applied.Load())
	assert.Equal(t, 100*time.Millisecond, p.Interval())

	time.Sleep(450 * time.Millisecond)

	// four ticks at the new period, two at the old one
	delta := c.ticks.Load() - before
	assert.GreaterOrEqual(t, delta, int64(3))
	assert.LessOrEqual(t, delta, int64(5))
}

func TestReconfigureWhileStopped(t *testing.T) {
	var c counter
	p := poller.New(c.tick, logger.Nop())

	var applied bool
	p.Reconfigure(30*time.Millisecond, func() { applied = true })

	assert.True(t, applied)
	assert.Equal(t, 30*time.Millisecond, p.Interval())
	assert.False(t, p.IsRunning())
}
