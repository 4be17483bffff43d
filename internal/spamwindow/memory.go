package spamwindow

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryTracker keeps windows in process memory. Updates to one key are atomic;
// different keys never contend on a shared lock.
type MemoryTracker struct {
	windows *xsync.MapOf[Key, []time.Time]
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		windows: xsync.NewMapOf[Key, []time.Time](),
	}
}

func (m *MemoryTracker) RecordAndCheck(_ context.Context, key Key, now time.Time, interval time.Duration, burst int) (bool, error) {
	window, _ := m.windows.Compute(key, func(old []time.Time, _ bool) ([]time.Time, bool) {
		next := prune(old, now, interval)
		return append(next, now), false
	})
	return len(window) >= burst, nil
}

// Window returns a copy of the stored timestamps for key, unpruned.
func (m *MemoryTracker) Window(key Key) []time.Time {
	ts, ok := m.windows.Load(key)
	if !ok {
		return nil
	}
	out := make([]time.Time, len(ts))
	copy(out, ts)
	return out
}

// Sweep forgets keys whose newest timestamp is older than maxAge and returns
// how many were dropped. Pruning stays lazy; this only bounds idle memory.
func (m *MemoryTracker) Sweep(now time.Time, maxAge time.Duration) int {
	dropped := 0
	cutoff := now.Add(-maxAge)
	m.windows.Range(func(key Key, ts []time.Time) bool {
		if len(ts) == 0 || ts[len(ts)-1].Before(cutoff) {
			m.windows.Compute(key, func(cur []time.Time, loaded bool) ([]time.Time, bool) {
				// re-check under the key lock, a message may have landed since Range
				if !loaded || len(cur) == 0 || cur[len(cur)-1].Before(cutoff) {
					dropped++
					return nil, true
				}
				return cur, false
			})
		}
		return true
	})
	trackedKeys.Set(float64(m.windows.Size()))
	return dropped
}

// Len reports how many keys are currently tracked.
func (m *MemoryTracker) Len() int {
	return m.windows.Size()
}
