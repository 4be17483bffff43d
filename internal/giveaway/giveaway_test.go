package giveaway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampWinnerCount(t *testing.T) {
	assert.Equal(t, 1, ClampWinnerCount(0))
	assert.Equal(t, 1, ClampWinnerCount(-3))
	assert.Equal(t, 7, ClampWinnerCount(7))
	assert.Equal(t, 20, ClampWinnerCount(20))
	assert.Equal(t, 20, ClampWinnerCount(50))
}

func TestChooseWinnersEmpty(t *testing.T) {
	r := NewResolver(1)
	got := r.ChooseWinners(nil, 5)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestChooseWinnersFewerThanRequested(t *testing.T) {
	r := NewResolver(1)
	got := r.ChooseWinners([]int64{10, 20}, 5)
	assert.Len(t, got, 2)
	assert.ElementsMatch(t, []int64{10, 20}, got)
}

func TestChooseWinnersDistinct(t *testing.T) {
	r := NewResolver(42)
	participants := make([]int64, 26)
	for i := range participants {
		participants[i] = int64(i + 1)
	}

	got := r.ChooseWinners(participants, 3)
	require.Len(t, got, 3)

	seen := map[int64]bool{}
	for _, id := range got {
		assert.False(t, seen[id], "duplicate winner %d", id)
		seen[id] = true
		assert.Contains(t, participants, id)
	}
}

func TestChooseWinnersDuplicatesCountOnce(t *testing.T) {
	r := NewResolver(7)
	got := r.ChooseWinners([]int64{5, 5, 5}, 3)
	assert.Equal(t, []int64{5}, got)
}

func TestChooseWinnersDoesNotMutateInput(t *testing.T) {
	r := NewResolver(3)
	in := []int64{1, 2, 3, 4, 5}
	r.ChooseWinners(in, 2)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, in)
}

func TestChooseWinnersUniform(t *testing.T) {
	r := NewResolver(1234)
	participants := []int64{1, 2, 3, 4, 5}
	counts := map[int64]int{}

	const trials = 50000
	for i := 0; i < trials; i++ {
		for _, w := range r.ChooseWinners(participants, 2) {
			counts[w]++
		}
	}

	// each participant is picked with probability 2/5
	expected := float64(trials) * 2 / 5
	for _, id := range participants {
		assert.InDelta(t, expected, float64(counts[id]), expected*0.05, "participant %d", id)
	}
}
