package models

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetTranslationFallbacks(t *testing.T) {
	assert.Equal(t, "Aucune infraction.", GetTranslation(LangFrench, "reply_no_infractions"))
	assert.Equal(t, "No infractions.", GetTranslation("de", "reply_no_infractions"))
	assert.Equal(t, "missing_key", GetTranslation(LangFrench, "missing_key"))
}

func TestTranslationsHaveSameKeys(t *testing.T) {
	for key := range Translations[LangEnglish] {
		_, ok := Translations[LangFrench][key]
		assert.True(t, ok, "french is missing %q", key)
	}
}

func TestGuildConfigDurations(t *testing.T) {
	c := GuildConfig{SpamIntervalSec: 2.5, SpamTimeoutMin: 10}
	assert.Equal(t, 2500*time.Millisecond, c.SpamInterval())
	assert.Equal(t, 10*time.Minute, c.SpamTimeout())
}

func TestGuildConfigCache(t *testing.T) {
	cache := NewGuildConfigCache()

	_, ok := cache.Get(1)
	assert.False(t, ok)

	cache.Put(GuildConfig{GuildID: 1, CapsThreshold: 70})
	got, ok := cache.Get(1)
	assert.True(t, ok)
	assert.Equal(t, 70, got.CapsThreshold)

	// mutating the copy leaves the cache untouched
	got.CapsThreshold = 5
	again, _ := cache.Get(1)
	assert.Equal(t, 70, again.CapsThreshold)

	cache.Remove(1)
	assert.Equal(t, 0, cache.Len())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			cache.Put(GuildConfig{GuildID: id})
			cache.Get(id)
		}(int64(i))
	}
	wg.Wait()
	assert.Equal(t, 20, cache.Len())

	cache.Reset()
	assert.Equal(t, 0, cache.Len())
}
