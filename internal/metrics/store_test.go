package metrics_test

import (
	"math"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/healthmon/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEmitsOnlyChangedFields(t *testing.T) {
	store := metrics.NewStore()
	now := time.Now()

	var u metrics.Update
	u.SetCPU(42, 55)
	u.SetConnected(true)
	changes := store.Apply(u, now)

	require.Len(t, changes, 3)
	assert.Equal(t, metrics.FieldCPUUsage, changes[0].Field)
	assert.Equal(t, 42.0, changes[0].Value)
	assert.Equal(t, metrics.FieldCPUTemperature, changes[1].Field)
	assert.Equal(t, metrics.FieldNetworkConnected, changes[2].Field)
	assert.Equal(t, true, changes[2].Value)

	var again metrics.Update
	again.SetCPU(42, 56)
	changes = store.Apply(again, now.Add(time.Second))

	require.Len(t, changes, 1)
	assert.Equal(t, metrics.FieldCPUTemperature, changes[0].Field)
	assert.Equal(t, 56.0, changes[0].Value)
}

func TestApplyLeavesAbsentFieldsUntouched(t *testing.T) {
	store := metrics.NewStore()
	now := time.Now()

	var u metrics.Update
	u.SetDisk(50, 100<<30, 200<<30)
	store.Apply(u, now)

	var cpuOnly metrics.Update
	cpuOnly.SetCPU(10, 40)
	store.Apply(cpuOnly, now.Add(time.Second))

	snap := store.Snapshot()
	assert.Equal(t, 50.0, snap.DiskUsagePct)
	assert.Equal(t, int64(100<<30), snap.DiskAvailableBytes)
	assert.Equal(t, int64(200<<30), snap.DiskTotalBytes)
	assert.Equal(t, 10.0, snap.CPUUsagePct)
}

func TestApplyIgnoresNaN(t *testing.T) {
	store := metrics.NewStore()

	var u metrics.Update
	u.SetCPU(30, 50)
	store.Apply(u, time.Now())

	var bad metrics.Update
	bad.SetCPU(math.NaN(), 51)
	changes := store.Apply(bad, time.Now())

	require.Len(t, changes, 1)
	assert.Equal(t, 30.0, store.Snapshot().CPUUsagePct)
}

func TestNoChangeKeepsTimestamp(t *testing.T) {
	store := metrics.NewStore()
	first := time.Now()

	var u metrics.Update
	u.SetCPU(30, 50)
	store.Apply(u, first)
	store.Apply(u, first.Add(time.Minute))

	assert.Equal(t, first, store.Snapshot().Timestamp)
}

func TestSubscribersReceiveChanges(t *testing.T) {
	store := metrics.NewStore()

	var got []metrics.Field
	unsubscribe := store.Subscribe(func(c metrics.Change) {
		got = append(got, c.Field)
	})

	var u metrics.Update
	u.SetMemory(60, 4<<30, 16<<30)
	store.Apply(u, time.Now())
	unsubscribe()

	var more metrics.Update
	more.SetMemory(61, 4<<30, 16<<30)
	store.Apply(more, time.Now())

	assert.Equal(t, []metrics.Field{
		metrics.FieldMemoryUsage,
		metrics.FieldMemoryAvailable,
		metrics.FieldMemoryTotal,
	}, got)
}

func TestSnapshotIsNeverTorn(t *testing.T) {
	store := metrics.NewStore()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 2000; i++ {
			v := float64(i)
			var u metrics.Update
			u.SetCPU(v, v)
			u.SetMemory(v, int64(i), int64(i))
			u.SetDisk(v, int64(i), int64(i))
			u.SetThroughput(v, v)
			store.Apply(u, time.Now())
		}
		close(stop)
	}()

	for {
		select {
		case <-stop:
			wg.Wait()
			return
		default:
		}

		s := store.Snapshot()
		v := s.CPUUsagePct
		require.Equal(t, v, s.CPUTempC)
		require.Equal(t, v, s.MemUsagePct)
		require.Equal(t, int64(v), s.MemTotalBytes)
		require.Equal(t, v, s.DiskUsagePct)
		require.Equal(t, int64(v), s.DiskAvailableBytes)
		require.Equal(t, v, s.NetUpKBs)
	}
}

func TestFieldNames(t *testing.T) {
	assert.Equal(t, "CpuUsage", metrics.FieldCPUUsage.String())
	assert.Equal(t, "IsNetworkConnected", metrics.FieldNetworkConnected.String())
	assert.Equal(t, "Unknown", metrics.Field(99).String())
	assert.Len(t, metrics.Fields(), 11)

	snap := metrics.Snapshot{DiskTotalBytes: 7, NetConnected: true}
	assert.Equal(t, int64(7), snap.Value(metrics.FieldDiskTotal))
	assert.Equal(t, true, snap.Value(metrics.FieldNetworkConnected))
}

func TestUpdateEmpty(t *testing.T) {
	var u metrics.Update
	assert.True(t, u.Empty())

	u.SetConnected(false)
	assert.False(t, u.Empty())
}
