package giveaway

import (
	"math/rand"
	"sync"
	"time"
)

const (
	MinWinners = 1
	MaxWinners = 20

	// DefaultMarker is the reaction participants use to enter.
	DefaultMarker = "🎉"

	// EndLayout renders the end time in announcements.
	EndLayout = "2006-01-02 15:04:05 UTC"
)

// ClampWinnerCount bounds a requested winner count to [MinWinners, MaxWinners].
// It is applied when a giveaway is created, not when it is resolved.
func ClampWinnerCount(n int) int {
	if n < MinWinners {
		return MinWinners
	}
	if n > MaxWinners {
		return MaxWinners
	}
	return n
}

// Resolver samples winners. The zero value is not usable, use NewResolver.
type Resolver struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewResolver(seed int64) *Resolver {
	return &Resolver{rng: rand.New(rand.NewSource(seed))}
}

// NewTimeSeededResolver returns a Resolver seeded from the current time.
func NewTimeSeededResolver() *Resolver {
	return NewResolver(time.Now().UnixNano())
}

// ChooseWinners returns min(requested, |participants|) distinct participants,
// sampled uniformly without replacement. Duplicate ids count once.
// An empty participant set yields an empty result.
func (r *Resolver) ChooseWinners(participants []int64, requested int) []int64 {
	pool := dedupe(participants)
	if len(pool) == 0 || requested <= 0 {
		return []int64{}
	}

	k := requested
	if k > len(pool) {
		k = len(pool)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// partial Fisher-Yates: the first k slots end up a uniform sample
	for i := 0; i < k; i++ {
		j := i + r.rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	winners := make([]int64, k)
	copy(winners, pool[:k])
	return winners
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
