package models

import (
	"sync"
	"time"
)

// Upper bounds on the spam settings. MaxSpamTimeoutMin is 28 days, the
// longest timeout Discord applies.
const (
	MaxSpamIntervalSec = 3600
	MaxSpamTimeoutMin  = 40320

	MaxSpamInterval = MaxSpamIntervalSec * time.Second
)

// GuildConfig holds the automod settings of one community. A row is created
// with defaults the first time the community is seen and is never deleted.
type GuildConfig struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	GuildID   int64     `gorm:"uniqueIndex;not null" json:"guild_id,string"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ModlogChannelID *int64 `json:"modlog_channel_id,omitempty"`
	Language        string `gorm:"size:8" json:"language" validate:"oneof=en fr"`

	AutomodEnabled  bool    `json:"automod_enabled"`
	AntiInvite      bool    `json:"anti_invite"`
	AntiLink        bool    `json:"anti_link"`
	AntiCaps        bool    `json:"anti_caps"`
	CapsThreshold   int     `json:"caps_threshold" validate:"min=0,max=100"`
	SpamIntervalSec float64 `json:"spam_interval_sec" validate:"gt=0,lte=3600"`
	SpamBurst       int     `json:"spam_burst" validate:"min=1"`
	SpamTimeoutMin  int     `json:"spam_timeout_min" validate:"min=1,max=40320"`
}

func (c *GuildConfig) SpamInterval() time.Duration {
	return time.Duration(c.SpamIntervalSec * float64(time.Second))
}

func (c *GuildConfig) SpamTimeout() time.Duration {
	return time.Duration(c.SpamTimeoutMin) * time.Minute
}

// GuildConfigCache is the in-memory front of the guild_configs table.
type GuildConfigCache struct {
	configs map[int64]GuildConfig
	mu      sync.RWMutex
}

func NewGuildConfigCache() *GuildConfigCache {
	return &GuildConfigCache{
		configs: make(map[int64]GuildConfig),
	}
}

// Get returns a copy so callers cannot mutate the cached entry.
func (c *GuildConfigCache) Get(guildID int64) (GuildConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cfg, ok := c.configs[guildID]
	return cfg, ok
}

func (c *GuildConfigCache) Put(cfg GuildConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs[cfg.GuildID] = cfg
}

func (c *GuildConfigCache) Remove(guildID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.configs, guildID)
}

// Reset drops every cached entry.
func (c *GuildConfigCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs = make(map[int64]GuildConfig)
}

func (c *GuildConfigCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.configs)
}
