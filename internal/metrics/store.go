package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/healthmon/internal/notify"
)

// Store holds the latest Snapshot. Writers are serialized and publish a
// whole new snapshot per Apply; readers load it without locking.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	changes notify.Hub[Change]
}

func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Snapshot{})

	return s
}

// Snapshot returns a copy of the latest snapshot.
func (s *Store) Snapshot() Snapshot {
	return *s.current.Load()
}

// Subscribe registers fn for per-field change notifications.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	return s.changes.Subscribe(fn)
}

// Apply merges u into the current snapshot and notifies subscribers of each
// field that actually changed, in field order. NaN readings are ignored.
func (s *Store) Apply(u Update, now time.Time) []Change {
	s.mu.Lock()

	next := *s.current.Load()
	c := changeSet{time: now}

	c.setFloat(FieldCPUUsage, &next.CPUUsagePct, u.CPUUsagePct)
	c.setFloat(FieldCPUTemperature, &next.CPUTempC, u.CPUTempC)
	c.setFloat(FieldMemoryUsage, &next.MemUsagePct, u.MemUsagePct)
	c.setInt(FieldMemoryAvailable, &next.MemAvailableBytes, u.MemAvailableBytes)
	c.setInt(FieldMemoryTotal, &next.MemTotalBytes, u.MemTotalBytes)
	c.setFloat(FieldDiskUsage, &next.DiskUsagePct, u.DiskUsagePct)
	c.setInt(FieldDiskAvailable, &next.DiskAvailableBytes, u.DiskAvailableBytes)
	c.setInt(FieldDiskTotal, &next.DiskTotalBytes, u.DiskTotalBytes)
	c.setFloat(FieldNetworkDownload, &next.NetDownKBs, u.NetDownKBs)
	c.setFloat(FieldNetworkUpload, &next.NetUpKBs, u.NetUpKBs)
	c.setBool(FieldNetworkConnected, &next.NetConnected, u.NetConnected)

	if len(c.changes) > 0 {
		next.Timestamp = now
		s.current.Store(&next)
	}
	s.mu.Unlock()

	for _, ch := range c.changes {
		s.changes.Publish(ch)
	}

	return c.changes
}

type changeSet struct {
	time    time.Time
	changes []Change
}

func (c *changeSet) setFloat(f Field, dst, src *float64) {
	if src == nil || math.IsNaN(*src) || *dst == *src {
		return
	}
	*dst = *src
	c.changes = append(c.changes, Change{Field: f, Value: *src, Time: c.time})
}

func (c *changeSet) setInt(f Field, dst, src *int64) {
	if src == nil || *dst == *src {
		return
	}
	*dst = *src
	c.changes = append(c.changes, Change{Field: f, Value: *src, Time: c.time})
}

func (c *changeSet) setBool(f Field, dst, src *bool) {
	if src == nil || *dst == *src {
		return
	}
	*dst = *src
	c.changes = append(c.changes, Change{Field: f, Value: *src, Time: c.time})
}
