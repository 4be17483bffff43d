package spamwindow

import (
	"context"
	"fmt"
	"time"
)

// Key identifies one author inside one community.
type Key struct {
	CommunityID int64
	AuthorID    int64
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.CommunityID, k.AuthorID)
}

// Tracker records message timestamps per key and reports bursts.
//
// RecordAndCheck drops every stored timestamp older than now-interval (a
// timestamp exactly interval old is kept), appends now, and reports whether the
// resulting window holds at least burst entries. Triggering does not reset the
// window, so every further message inside the interval triggers again.
type Tracker interface {
	RecordAndCheck(ctx context.Context, key Key, now time.Time, interval time.Duration, burst int) (bool, error)
}

// prune returns the timestamps of ts still inside the window ending at now.
func prune(ts []time.Time, now time.Time, interval time.Duration) []time.Time {
	cutoff := now.Add(-interval)
	out := make([]time.Time, 0, len(ts)+1)
	for _, t := range ts {
		if !t.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out
}
