package models

import "time"

// Giveaway is a timed draw announced in a channel. Ended flips to true exactly
// once, after which the row is kept for audit only.
type Giveaway struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	GuildID   int64     `gorm:"index;not null" json:"guild_id,string"`
	ChannelID int64     `gorm:"not null" json:"channel_id,string"`
	MessageID int64     `json:"message_id,string"`
	EndAt     time.Time `gorm:"index:idx_giveaway_due,priority:2;not null" json:"end_at"`
	Winners   int       `gorm:"not null" json:"winners"`
	Prize     string    `gorm:"type:text;not null" json:"prize"`
	Emoji     string    `gorm:"size:64;not null" json:"emoji"`
	Ended     bool      `gorm:"index:idx_giveaway_due,priority:1;not null" json:"ended"`
}

// GiveawayEntry records one participant for platforms where entries are not
// collected from message reactions.
type GiveawayEntry struct {
	ID         uint `gorm:"primarykey"`
	CreatedAt  time.Time
	GiveawayID uint  `gorm:"uniqueIndex:idx_giveaway_entry;not null"`
	UserID     int64 `gorm:"uniqueIndex:idx_giveaway_entry;not null"`
}
