// Package discord adapts a discordgo session to platform.Adapter.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"leviathan/internal/giveaway"
	"leviathan/internal/models"
	"leviathan/internal/platform"
)

// MaxTimeout is the longest communication timeout Discord accepts.
const MaxTimeout = 28 * 24 * time.Hour

// reactionPage is the largest page the reactions endpoint returns.
const reactionPage = 100

type Adapter struct {
	session   *discordgo.Session
	log       *zap.Logger
	connected atomic.Bool

	ctx     context.Context
	handler platform.MessageHandler
}

var _ platform.Adapter = (*Adapter)(nil)

func New(token string, log *zap.Logger) (*Adapter, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent

	return &Adapter{session: session, log: log}, nil
}

// Open registers the event handlers and connects the gateway. Messages are
// delivered to h with ctx until Close.
func (a *Adapter) Open(ctx context.Context, h platform.MessageHandler) error {
	a.ctx = ctx
	a.handler = h

	a.session.AddHandler(a.onReady)
	a.session.AddHandler(a.onResumed)
	a.session.AddHandler(a.onDisconnect)
	a.session.AddHandler(a.onMessageCreate)

	if err := a.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	return nil
}

func (a *Adapter) Close() error {
	a.connected.Store(false)
	return a.session.Close()
}

func (a *Adapter) onReady(s *discordgo.Session, r *discordgo.Ready) {
	a.connected.Store(true)
	a.log.Info("discord ready", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
}

func (a *Adapter) onResumed(s *discordgo.Session, r *discordgo.Resumed) {
	a.connected.Store(true)
}

func (a *Adapter) onDisconnect(s *discordgo.Session, d *discordgo.Disconnect) {
	a.connected.Store(false)
	a.log.Warn("discord gateway disconnected")
}

func (a *Adapter) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if a.handler == nil || m.Author == nil || m.GuildID == "" {
		return
	}
	var perms int64
	if !m.Author.Bot {
		perms = a.permissions(s, m.Message)
	}
	msg, ok := convertMessage(m.Message, perms)
	if !ok {
		return
	}
	a.handler.HandleMessage(a.ctx, msg)
}

// permissions resolves the author's channel permissions from the state cache,
// falling back to the REST API.
func (a *Adapter) permissions(s *discordgo.Session, m *discordgo.Message) int64 {
	if perms, err := s.State.MessagePermissions(m); err == nil {
		return perms
	}
	perms, err := s.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		a.log.Debug("failed to resolve permissions", zap.String("user", m.Author.ID), zap.Error(err))
		return 0
	}
	return perms
}

// convertMessage maps a guild message. ok is false when an id is malformed.
func convertMessage(m *discordgo.Message, perms int64) (platform.Message, bool) {
	id, err1 := parseID(m.ID)
	channelID, err2 := parseID(m.ChannelID)
	guildID, err3 := parseID(m.GuildID)
	authorID, err4 := parseID(m.Author.ID)
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return platform.Message{}, false
	}

	manageMessages, moderate, manageGuild := flags(perms)
	return platform.Message{
		ID:                      id,
		ChannelID:               channelID,
		GuildID:                 guildID,
		AuthorID:                authorID,
		Content:                 m.Content,
		AuthorIsBot:             m.Author.Bot,
		AuthorCanManageMessages: manageMessages,
		AuthorCanModerate:       moderate,
		AuthorCanManageGuild:    manageGuild,
	}, true
}

// flags maps a permission bitset onto the three privileges the core checks.
// Administrator implies all of them.
func flags(perms int64) (manageMessages, moderate, manageGuild bool) {
	if perms&discordgo.PermissionAdministrator != 0 {
		return true, true, true
	}
	return perms&discordgo.PermissionManageMessages != 0,
		perms&discordgo.PermissionModerateMembers != 0,
		perms&discordgo.PermissionManageServer != 0
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (a *Adapter) Name() string { return "discord" }

func (a *Adapter) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	return a.session.ChannelMessageDelete(formatID(channelID), formatID(messageID), discordgo.WithContext(ctx))
}

func (a *Adapter) send(ctx context.Context, channelID int64, text string) (*discordgo.Message, error) {
	return a.session.ChannelMessageSend(formatID(channelID), text, discordgo.WithContext(ctx))
}

func (a *Adapter) SendNotice(ctx context.Context, channelID int64, text string) error {
	_, err := a.send(ctx, channelID, text)
	return err
}

func (a *Adapter) Announce(ctx context.Context, channelID int64, text string) error {
	_, err := a.send(ctx, channelID, text)
	return err
}

func (a *Adapter) ApplyTimeout(ctx context.Context, guildID, userID int64, d time.Duration, reason string) error {
	until := time.Now().Add(d)
	return a.session.GuildMemberTimeout(formatID(guildID), formatID(userID), &until,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
}

func (a *Adapter) RemoveTimeout(ctx context.Context, guildID, userID int64, reason string) error {
	return a.session.GuildMemberTimeout(formatID(guildID), formatID(userID), nil,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
}

func (a *Adapter) SendDirect(ctx context.Context, userID int64, text string) error {
	ch, err := a.session.UserChannelCreate(formatID(userID), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}
	_, err = a.session.ChannelMessageSend(ch.ID, text, discordgo.WithContext(ctx))
	return err
}

// PostGiveaway sends the announcement and seeds the entry reaction. A failed
// reaction is logged only; members can still add it themselves.
func (a *Adapter) PostGiveaway(ctx context.Context, g *models.Giveaway, lang string) (int64, error) {
	msg, err := a.send(ctx, g.ChannelID, giveawayText(g, lang))
	if err != nil {
		return 0, err
	}
	if err := a.session.MessageReactionAdd(msg.ChannelID, msg.ID, g.Emoji, discordgo.WithContext(ctx)); err != nil {
		a.log.Warn("failed to add giveaway reaction", zap.Uint("giveaway", g.ID), zap.Error(err))
	}
	return parseID(msg.ID)
}

func giveawayText(g *models.Giveaway, lang string) string {
	return fmt.Sprintf(models.GetTranslation(lang, "giveaway_post"),
		g.Prize, g.Winners, g.EndAt.UTC().Format(giveaway.EndLayout), g.Emoji)
}

// FetchParticipants pages through the giveaway reactions, skipping bots.
func (a *Adapter) FetchParticipants(ctx context.Context, g *models.Giveaway) ([]int64, error) {
	if g.MessageID == 0 {
		return nil, nil
	}
	var (
		out   []int64
		after string
	)
	for {
		users, err := a.session.MessageReactions(formatID(g.ChannelID), formatID(g.MessageID), g.Emoji,
			reactionPage, "", after, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch reactions: %w", err)
		}
		out = append(out, humanIDs(users)...)
		if len(users) < reactionPage {
			return out, nil
		}
		after = users[len(users)-1].ID
	}
}

func humanIDs(users []*discordgo.User) []int64 {
	out := make([]int64, 0, len(users))
	for _, u := range users {
		if u == nil || u.Bot {
			continue
		}
		if id, err := parseID(u.ID); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// ChannelExists reports whether channelID is a channel of guildID the bot can
// see. Unknown and inaccessible channels are reported as missing.
func (a *Adapter) ChannelExists(ctx context.Context, guildID, channelID int64) (bool, error) {
	if ch, err := a.session.State.Channel(formatID(channelID)); err == nil {
		return ch.GuildID == formatID(guildID), nil
	}
	ch, err := a.session.Channel(formatID(channelID), discordgo.WithContext(ctx))
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil &&
			(restErr.Response.StatusCode == http.StatusNotFound || restErr.Response.StatusCode == http.StatusForbidden) {
			return false, nil
		}
		return false, err
	}
	return ch.GuildID == formatID(guildID), nil
}

func (a *Adapter) Mention(userID int64) string { return fmt.Sprintf("<@%d>", userID) }

func (a *Adapter) ChannelMention(channelID int64) string { return fmt.Sprintf("<#%d>", channelID) }

func (a *Adapter) MaxTimeout() time.Duration { return MaxTimeout }

func (a *Adapter) Connected() bool { return a.connected.Load() }

func (a *Adapter) Communities() int {
	a.session.State.RLock()
	defer a.session.State.RUnlock()
	return len(a.session.State.Guilds)
}
