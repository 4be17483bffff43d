package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	"go.uber.org/zap"

	"leviathan/internal/config"
	"leviathan/internal/crash"
	"leviathan/internal/models"
	"leviathan/internal/platform"
	"leviathan/internal/service"
)

var allowedUpdates = []string{"message", "callback_query"}

// Open starts receiving updates and delivers group messages to h with ctx.
// With a webhook endpoint configured the webhook handler is registered on
// mux, which the caller must serve; otherwise long polling is used.
func (a *Adapter) Open(ctx context.Context, h platform.MessageHandler, mux *http.ServeMux) error {
	a.ctx = ctx
	a.handler = h

	me, err := a.bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	a.username = me.Username
	a.log.Info("authorized on telegram", zap.String("username", me.Username))

	var updates <-chan telego.Update
	if a.webhook.Endpoint != "" {
		updates, err = a.viaWebhook(ctx, mux)
	} else {
		updates, err = a.viaLongPolling(ctx)
	}
	if err != nil {
		return err
	}

	bh, err := th.NewBotHandler(a.bot, updates)
	if err != nil {
		return fmt.Errorf("failed to create bot handler: %w", err)
	}
	bh.HandleMessage(a.onMessage)
	bh.HandleCallbackQuery(a.onCallback, th.CallbackDataPrefix(joinPrefix))
	a.bh = bh

	crash.SafeGoroutine("telegram-updates", func() {
		bh.Start()
	})
	a.connected.Store(true)
	return nil
}

func (a *Adapter) Close() error {
	a.connected.Store(false)
	if a.bh != nil {
		a.bh.Stop()
	}
	return nil
}

func (a *Adapter) viaLongPolling(ctx context.Context) (<-chan telego.Update, error) {
	if err := a.bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{}); err != nil {
		return nil, fmt.Errorf("failed to delete existing webhook: %w", err)
	}
	a.log.Info("receiving updates via long polling")
	updates, err := a.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: allowedUpdates,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start long polling: %w", err)
	}
	return updates, nil
}

func (a *Adapter) viaWebhook(ctx context.Context, mux *http.ServeMux) (<-chan telego.Update, error) {
	if mux == nil {
		return nil, errors.New("webhook mode needs an HTTP mux")
	}
	path, err := webhookPath(a.webhook)
	if err != nil {
		return nil, err
	}
	secret := webhookSecret(a.webhook.Secret, a.token)

	a.log.Info("setting webhook", zap.String("url", a.webhook.Endpoint), zap.String("path", path))
	err = a.bot.SetWebhook(ctx, &telego.SetWebhookParams{
		URL:            a.webhook.Endpoint,
		AllowedUpdates: allowedUpdates,
		SecretToken:    secret,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook: %w", err)
	}

	if info, err := a.bot.GetWebhookInfo(ctx); err != nil {
		a.log.Warn("failed to get webhook info", zap.Error(err))
	} else {
		a.log.Info("webhook info",
			zap.String("url", info.URL),
			zap.Any("pending_updates", info.PendingUpdateCount),
			zap.String("last_error", info.LastErrorMessage))
	}

	updates, err := a.bot.UpdatesViaWebhook(ctx, telego.WebhookHTTPServeMux(mux, path, secret))
	if err != nil {
		return nil, fmt.Errorf("failed to get updates channel: %w", err)
	}
	return updates, nil
}

// webhookPath picks the configured path, else the endpoint's own path.
func webhookPath(cfg config.WebhookConfig) (string, error) {
	if !strings.HasPrefix(cfg.Endpoint, "https://") {
		return "", fmt.Errorf("webhook endpoint must be an https URL: %q", cfg.Endpoint)
	}
	if cfg.Path != "" {
		return cfg.Path, nil
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	if u.Path == "" || u.Path == "/" {
		return "/telegram", nil
	}
	return u.Path, nil
}

// webhookSecret falls back to a value derived from the token so restarts
// keep the same secret.
func webhookSecret(configured, token string) string {
	if configured != "" {
		return configured
	}
	tail := token
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	return "leviathan_webhook_" + strings.NewReplacer(":", "_").Replace(tail)
}

func (a *Adapter) onMessage(ctx *th.Context, message telego.Message) error {
	msg, ok := convertMessage(message)
	if !ok || a.handler == nil {
		return nil
	}
	msg.Content = trimCommandTarget(msg.Content, a.username)
	if msg.GuildID != 0 {
		a.chats.Store(msg.GuildID, struct{}{})
		if !msg.AuthorIsBot {
			r, err := a.admins.lookup(ctx.Context(), msg.GuildID, msg.AuthorID)
			if err != nil {
				a.log.Warn("failed to load chat administrators", zap.Int64("chat", msg.GuildID), zap.Error(err))
			}
			msg.AuthorCanManageMessages = r.manageMessages
			msg.AuthorCanModerate = r.moderate
			msg.AuthorCanManageGuild = r.manageGuild
		}
	}
	a.handler.HandleMessage(a.ctx, msg)
	return nil
}

// convertMessage maps a telego message. Private chats keep GuildID zero.
// Messages without a sender, like channel posts, are dropped.
func convertMessage(m telego.Message) (platform.Message, bool) {
	if m.From == nil {
		return platform.Message{}, false
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	msg := platform.Message{
		ID:          int64(m.MessageID),
		ChannelID:   m.Chat.ID,
		AuthorID:    m.From.ID,
		Content:     text,
		AuthorIsBot: m.From.IsBot,
	}
	if m.Chat.Type == telego.ChatTypeGroup || m.Chat.Type == telego.ChatTypeSupergroup {
		msg.GuildID = m.Chat.ID
	}
	return msg, true
}

func (a *Adapter) onCallback(ctx *th.Context, query telego.CallbackQuery) error {
	text := a.join(ctx.Context(), query.Data, query.From.ID, callbackLanguage(query.From.LanguageCode))
	return a.bot.AnswerCallbackQuery(ctx.Context(), &telego.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
		Text:            text,
	})
}

// join records a button press and returns the answer shown to the user.
func (a *Adapter) join(ctx context.Context, data string, userID int64, lang string) string {
	id, ok := parseJoinData(data)
	if !ok {
		return models.GetTranslation(lang, "giveaway_closed")
	}
	err := a.entries.AddGiveawayEntry(ctx, id, userID)
	switch {
	case err == nil:
		return models.GetTranslation(lang, "giveaway_joined")
	case errors.Is(err, service.ErrGiveawayEnded), errors.Is(err, service.ErrNotFound):
		return models.GetTranslation(lang, "giveaway_closed")
	default:
		a.log.Error("failed to record giveaway entry", zap.Uint("giveaway", id), zap.Int64("user", userID), zap.Error(err))
		return fmt.Sprintf(models.GetTranslation(lang, "reply_failed"), "try again later")
	}
}

func callbackLanguage(code string) string {
	if strings.HasPrefix(strings.ToLower(code), models.LangFrench) {
		return models.LangFrench
	}
	return models.LangEnglish
}

func (a *Adapter) loadAdmins(ctx context.Context, chat int64) (map[int64]rights, error) {
	admins, err := a.bot.GetChatAdministrators(ctx, &telego.GetChatAdministratorsParams{ChatID: chatID(chat)})
	if err != nil {
		return nil, err
	}
	out := make(map[int64]rights, len(admins))
	for _, admin := range admins {
		out[admin.MemberUser().ID] = rightsOf(admin)
	}
	return out, nil
}
