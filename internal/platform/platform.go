package platform

import (
	"context"
	"time"

	"leviathan/internal/models"
)

// Message is the platform-neutral view of an inbound chat message.
type Message struct {
	ID        int64
	ChannelID int64
	GuildID   int64
	AuthorID  int64
	Content   string

	AuthorIsBot bool
	// AuthorCanManageMessages exempts the author from the caps and spam rules.
	AuthorCanManageMessages bool
	// AuthorCanModerate allows mute, unmute, warn and infraction commands.
	AuthorCanModerate bool
	// AuthorCanManageGuild allows giveaway and automod commands.
	AuthorCanManageGuild bool
}

// Adapter is everything the moderation core needs from a chat platform.
// Every call is best-effort from the caller's point of view.
type Adapter interface {
	Name() string

	DeleteMessage(ctx context.Context, channelID, messageID int64) error
	SendNotice(ctx context.Context, channelID int64, text string) error
	ApplyTimeout(ctx context.Context, guildID, userID int64, d time.Duration, reason string) error
	RemoveTimeout(ctx context.Context, guildID, userID int64, reason string) error
	SendDirect(ctx context.Context, userID int64, text string) error

	// PostGiveaway publishes the giveaway and sets up its participation
	// mechanism. It returns the announcement message id.
	PostGiveaway(ctx context.Context, g *models.Giveaway, lang string) (int64, error)
	ChannelExists(ctx context.Context, guildID, channelID int64) (bool, error)
	// FetchParticipants returns the non-bot users that entered g.
	FetchParticipants(ctx context.Context, g *models.Giveaway) ([]int64, error)
	Announce(ctx context.Context, channelID int64, text string) error

	Mention(userID int64) string
	ChannelMention(channelID int64) string

	// MaxTimeout is the longest timeout the platform accepts, 0 when unbounded.
	MaxTimeout() time.Duration
	Connected() bool
	Communities() int
}

// MessageHandler consumes inbound messages from an adapter.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
}

// EntryRecorder stores giveaway entries for adapters that collect them
// themselves instead of reading reactions.
type EntryRecorder interface {
	AddGiveawayEntry(ctx context.Context, giveawayID uint, userID int64) error
	GiveawayEntries(ctx context.Context, giveawayID uint) ([]int64, error)
}
