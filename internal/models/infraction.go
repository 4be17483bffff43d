package models

import "time"

type InfractionKind string

const (
	InfractionWarn      InfractionKind = "warn"
	InfractionKick      InfractionKind = "kick"
	InfractionBan       InfractionKind = "ban"
	InfractionTimeout   InfractionKind = "timeout"
	InfractionUntimeout InfractionKind = "untimeout"
)

// Infraction is an append-only audit record of a moderation action.
// ModID is nil when the action was taken automatically.
type Infraction struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	GuildID   int64          `gorm:"index:idx_infraction_subject;not null" json:"guild_id,string"`
	UserID    int64          `gorm:"index:idx_infraction_subject;not null" json:"user_id,string"`
	ModID     *int64         `json:"mod_id,omitempty"`
	Kind      InfractionKind `gorm:"size:16;not null" json:"kind"`
	Reason    string         `gorm:"type:text" json:"reason"`
	CreatedAt time.Time      `json:"created_at"`
}
