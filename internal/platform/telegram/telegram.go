// Package telegram adapts a telego bot to platform.Adapter. A group chat is
// both the community and the channel, so guild ids equal chat ids.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	th "github.com/mymmrac/telego/telegohandler"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"leviathan/internal/config"
	"leviathan/internal/giveaway"
	"leviathan/internal/models"
	"leviathan/internal/platform"
)

const (
	// MaxTimeout is the longest restriction Telegram applies as given; longer
	// ones are treated as permanent.
	MaxTimeout = 366 * 24 * time.Hour
	// minTimeout is the shortest one; shorter ones are treated as permanent too.
	minTimeout = 30 * time.Second

	joinPrefix = "giveaway:join:"

	// DefaultAdminCacheTTL bounds how stale a cached administrator list may be.
	DefaultAdminCacheTTL = 5 * time.Minute
)

type Adapter struct {
	bot   *telego.Bot
	log   *zap.Logger
	token string
	// username is the bot's own handle, known after Open.
	username string
	webhook  config.WebhookConfig
	entries  platform.EntryRecorder
	admins   *adminCache
	chats    *xsync.MapOf[int64, struct{}]

	connected atomic.Bool
	ctx       context.Context
	handler   platform.MessageHandler
	bh        *th.BotHandler
}

var _ platform.Adapter = (*Adapter)(nil)

// New creates the bot. Giveaway entries collected from the join button are
// stored through entries.
func New(token string, webhook config.WebhookConfig, entries platform.EntryRecorder, log *zap.Logger) (*Adapter, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	bot, err := telego.NewBot(token, telego.WithLogger(log.Sugar()))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}
	a := &Adapter{
		bot:     bot,
		log:     log,
		token:   token,
		webhook: webhook,
		entries: entries,
		chats:   xsync.NewMapOf[int64, struct{}](),
	}
	a.admins = newAdminCache(DefaultAdminCacheTTL, a.loadAdmins)
	return a, nil
}

func (a *Adapter) Name() string { return "telegram" }

func chatID(id int64) telego.ChatID { return telego.ChatID{ID: id} }

func (a *Adapter) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	return a.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    chatID(channelID),
		MessageID: int(messageID),
	})
}

// send posts HTML text. Text that Telegram refuses to parse is resent plain
// so user supplied reasons cannot block a notice.
func (a *Adapter) send(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	params.ParseMode = telego.ModeHTML
	msg, err := a.bot.SendMessage(ctx, params)
	if err == nil || !isParseError(err) {
		return msg, err
	}
	params.ParseMode = ""
	params.Text = stripMentions(params.Text)
	return a.bot.SendMessage(ctx, params)
}

func (a *Adapter) SendNotice(ctx context.Context, channelID int64, text string) error {
	_, err := a.send(ctx, &telego.SendMessageParams{ChatID: chatID(channelID), Text: text})
	return err
}

func (a *Adapter) Announce(ctx context.Context, channelID int64, text string) error {
	return a.SendNotice(ctx, channelID, text)
}

// SendDirect only reaches users who have started a private chat with the bot.
func (a *Adapter) SendDirect(ctx context.Context, userID int64, text string) error {
	return a.SendNotice(ctx, userID, text)
}

func (a *Adapter) ApplyTimeout(ctx context.Context, guildID, userID int64, d time.Duration, reason string) error {
	return a.bot.RestrictChatMember(ctx, &telego.RestrictChatMemberParams{
		ChatID:      chatID(guildID),
		UserID:      userID,
		Permissions: telego.ChatPermissions{},
		UntilDate:   time.Now().Add(clampTimeout(d)).Unix(),
	})
}

func (a *Adapter) RemoveTimeout(ctx context.Context, guildID, userID int64, reason string) error {
	return a.bot.RestrictChatMember(ctx, &telego.RestrictChatMemberParams{
		ChatID:      chatID(guildID),
		UserID:      userID,
		Permissions: fullPermissions(),
	})
}

func clampTimeout(d time.Duration) time.Duration {
	if d < minTimeout {
		return minTimeout
	}
	return d
}

func fullPermissions() telego.ChatPermissions {
	yes := true
	return telego.ChatPermissions{
		CanSendMessages:       &yes,
		CanSendAudios:         &yes,
		CanSendDocuments:      &yes,
		CanSendPhotos:         &yes,
		CanSendVideos:         &yes,
		CanSendVideoNotes:     &yes,
		CanSendVoiceNotes:     &yes,
		CanSendPolls:          &yes,
		CanSendOtherMessages:  &yes,
		CanAddWebPagePreviews: &yes,
	}
}

// PostGiveaway sends the announcement with a join button bound to the
// giveaway id.
func (a *Adapter) PostGiveaway(ctx context.Context, g *models.Giveaway, lang string) (int64, error) {
	msg, err := a.send(ctx, &telego.SendMessageParams{
		ChatID:      chatID(g.ChannelID),
		Text:        giveawayText(g, lang),
		ReplyMarkup: joinKeyboard(g, lang),
	})
	if err != nil {
		return 0, err
	}
	return int64(msg.MessageID), nil
}

func giveawayText(g *models.Giveaway, lang string) string {
	return fmt.Sprintf(models.GetTranslation(lang, "giveaway_post_button"),
		html.EscapeString(g.Prize), g.Winners, g.EndAt.UTC().Format(giveaway.EndLayout))
}

func joinKeyboard(g *models.Giveaway, lang string) *telego.InlineKeyboardMarkup {
	return &telego.InlineKeyboardMarkup{
		InlineKeyboard: [][]telego.InlineKeyboardButton{{
			{
				Text:         fmt.Sprintf(models.GetTranslation(lang, "giveaway_join_button"), g.Emoji),
				CallbackData: joinData(g.ID),
			},
		}},
	}
}

func joinData(id uint) string {
	return joinPrefix + strconv.FormatUint(uint64(id), 10)
}

func parseJoinData(data string) (uint, bool) {
	raw, ok := strings.CutPrefix(data, joinPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (a *Adapter) FetchParticipants(ctx context.Context, g *models.Giveaway) ([]int64, error) {
	return a.entries.GiveawayEntries(ctx, g.ID)
}

// ChannelExists reports whether the bot can see the chat. Chats the API
// refuses are reported as missing.
func (a *Adapter) ChannelExists(ctx context.Context, guildID, channelID int64) (bool, error) {
	_, err := a.bot.GetChat(ctx, &telego.GetChatParams{ChatID: chatID(channelID)})
	if err == nil {
		return true, nil
	}
	var apiErr *telegoapi.Error
	if errors.As(err, &apiErr) && (apiErr.ErrorCode == http.StatusBadRequest || apiErr.ErrorCode == http.StatusForbidden) {
		return false, nil
	}
	return false, err
}

func isParseError(err error) bool {
	var apiErr *telegoapi.Error
	return errors.As(err, &apiErr) && apiErr.ErrorCode == http.StatusBadRequest &&
		strings.Contains(apiErr.Description, "can't parse entities")
}

func (a *Adapter) Mention(userID int64) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%d</a>`, userID, userID)
}

// stripMentions turns HTML mentions back into bare ids for plain sends.
func stripMentions(text string) string {
	for {
		start := strings.Index(text, `<a href="tg://user?id=`)
		if start < 0 {
			return text
		}
		open := strings.Index(text[start:], `">`)
		end := strings.Index(text[start:], `</a>`)
		if open < 0 || end < open {
			return text
		}
		text = text[:start] + text[start+open+2:start+end] + text[start+end+4:]
	}
}

func (a *Adapter) ChannelMention(channelID int64) string { return strconv.FormatInt(channelID, 10) }

func (a *Adapter) MaxTimeout() time.Duration { return MaxTimeout }

func (a *Adapter) Connected() bool { return a.connected.Load() }

// Communities counts the group chats seen since start.
func (a *Adapter) Communities() int { return a.chats.Size() }
