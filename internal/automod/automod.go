package automod

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"leviathan/internal/clock"
	"leviathan/internal/models"
	"leviathan/internal/platform"
	"leviathan/internal/spamwindow"
)

// Action is what the engine did to a message.
type Action int

const (
	ActionNone Action = iota
	ActionDeleted
	ActionDeletedTimeout
)

func (a Action) String() string {
	switch a {
	case ActionDeleted:
		return "deleted"
	case ActionDeletedTimeout:
		return "deleted+timeout"
	default:
		return "none"
	}
}

const (
	// MinCapsLength is the shortest message the caps rule looks at.
	MinCapsLength = 10

	SpamReason = "Automod: spam"

	DefaultActionTimeout = 5 * time.Second
)

var (
	inviteRegex = regexp.MustCompile(`(?i)(discord\.gg/|discord(app)?\.com/invite/|t\.me/(\+|joinchat/))`)
	linkRegex   = regexp.MustCompile(`(?i)https?://`)
)

// Store is the persistence the engine reads config from and writes
// infractions to.
type Store interface {
	GetConfig(ctx context.Context, guildID int64) (models.GuildConfig, error)
	AppendInfraction(ctx context.Context, inf *models.Infraction) error
}

// Engine evaluates the fixed rule chain (invite, link, caps, spam burst)
// against inbound messages. The first matching rule wins.
type Engine struct {
	Logger   *zap.Logger
	Store    Store
	Tracker  spamwindow.Tracker
	Platform platform.Adapter
	Clock    clock.Clock
	// ActionTimeout bounds every platform call made for one message.
	ActionTimeout time.Duration
}

func NewEngine(logger *zap.Logger, store Store, tracker spamwindow.Tracker, adapter platform.Adapter, clk clock.Clock, actionTimeout time.Duration) *Engine {
	if clk == nil {
		clk = clock.Real()
	}
	if actionTimeout <= 0 {
		actionTimeout = DefaultActionTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Logger:        logger,
		Store:         store,
		Tracker:       tracker,
		Platform:      adapter,
		Clock:         clk,
		ActionTimeout: actionTimeout,
	}
}

// Evaluate runs the rule chain for msg. Bot and guild-less messages must be
// filtered by the caller. Platform failures are logged, never returned; the
// returned error only reports a config lookup failure or a recovered panic.
func (eng *Engine) Evaluate(ctx context.Context, msg platform.Message) (act Action, err error) {
	start := time.Now()
	defer func() {
		evaluationDuration.Observe(time.Since(start).Seconds())
	}()

	// similar to an HTTP server, recover any panic from rule execution
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("automod rule panicked", zap.Any("panic", r), zap.Int64("guild", msg.GuildID), zap.Int64("message", msg.ID))
			evaluationErrors.WithLabelValues("panic").Inc()
			act, err = ActionNone, fmt.Errorf("automod panic: %v", r)
		}
	}()

	cfg, err := eng.Store.GetConfig(ctx, msg.GuildID)
	if err != nil {
		evaluationErrors.WithLabelValues("config").Inc()
		return ActionNone, fmt.Errorf("loading automod config for guild %d: %w", msg.GuildID, err)
	}

	if !cfg.AutomodEnabled {
		return ActionNone, nil
	}

	lang := cfg.Language
	author := eng.Platform.Mention(msg.AuthorID)
	channel := eng.Platform.ChannelMention(msg.ChannelID)

	if cfg.AntiInvite && inviteRegex.MatchString(msg.Content) {
		eng.deleteMessage(ctx, msg, "invite")
		eng.notice(ctx, cfg, fmt.Sprintf(models.GetTranslation(lang, "notice_invite"), author, channel))
		return eng.record("invite", ActionDeleted), nil
	}

	if cfg.AntiLink && linkRegex.MatchString(msg.Content) {
		eng.deleteMessage(ctx, msg, "link")
		eng.notice(ctx, cfg, fmt.Sprintf(models.GetTranslation(lang, "notice_link"), author, channel))
		return eng.record("link", ActionDeleted), nil
	}

	if cfg.AntiCaps && !msg.AuthorCanManageMessages && utf8.RuneCountInString(msg.Content) >= MinCapsLength {
		if ratio := CapsRatio(msg.Content); ratio >= cfg.CapsThreshold {
			eng.deleteMessage(ctx, msg, "caps")
			eng.notice(ctx, cfg, fmt.Sprintf(models.GetTranslation(lang, "notice_caps"), ratio, author, channel))
			return eng.record("caps", ActionDeleted), nil
		}
	}

	if msg.AuthorCanManageMessages {
		return ActionNone, nil
	}

	key := spamwindow.Key{CommunityID: msg.GuildID, AuthorID: msg.AuthorID}
	hit, err := eng.Tracker.RecordAndCheck(ctx, key, eng.Clock.Now(), cfg.SpamInterval(), cfg.SpamBurst)
	if err != nil {
		// a tracker outage must not block messages
		eng.Logger.Warn("spam window unavailable", zap.Stringer("key", key), zap.Error(err))
		evaluationErrors.WithLabelValues("tracker").Inc()
		return ActionNone, nil
	}
	if !hit {
		return ActionNone, nil
	}

	eng.punishSpam(ctx, cfg, msg, author)
	return eng.record("spam", ActionDeletedTimeout), nil
}

func (eng *Engine) punishSpam(ctx context.Context, cfg models.GuildConfig, msg platform.Message, author string) {
	eng.deleteMessage(ctx, msg, "spam")

	d := cfg.SpamTimeout()
	if limit := eng.Platform.MaxTimeout(); limit > 0 && d > limit {
		d = limit
	}

	tctx, cancel := context.WithTimeout(ctx, eng.ActionTimeout)
	err := eng.Platform.ApplyTimeout(tctx, msg.GuildID, msg.AuthorID, d, SpamReason)
	cancel()
	if err != nil {
		eng.Logger.Warn("failed to apply spam timeout",
			zap.Int64("guild", msg.GuildID), zap.Int64("user", msg.AuthorID), zap.Error(err))
		eng.notice(ctx, cfg, fmt.Sprintf(models.GetTranslation(cfg.Language, "notice_spam_error"), err))
		return
	}

	inf := &models.Infraction{
		GuildID: msg.GuildID,
		UserID:  msg.AuthorID,
		Kind:    models.InfractionTimeout,
		Reason:  SpamReason,
	}
	if err := eng.Store.AppendInfraction(ctx, inf); err != nil {
		eng.Logger.Error("failed to record spam infraction",
			zap.Int64("guild", msg.GuildID), zap.Int64("user", msg.AuthorID), zap.Error(err))
	}

	eng.notice(ctx, cfg, fmt.Sprintf(models.GetTranslation(cfg.Language, "notice_spam"), author, cfg.SpamTimeoutMin))
}

func (eng *Engine) deleteMessage(ctx context.Context, msg platform.Message, rule string) {
	tctx, cancel := context.WithTimeout(ctx, eng.ActionTimeout)
	defer cancel()
	if err := eng.Platform.DeleteMessage(tctx, msg.ChannelID, msg.ID); err != nil {
		eng.Logger.Warn("failed to delete message",
			zap.String("rule", rule), zap.Int64("channel", msg.ChannelID), zap.Int64("message", msg.ID), zap.Error(err))
	}
}

// notice posts to the guild's modlog channel when one is configured.
func (eng *Engine) notice(ctx context.Context, cfg models.GuildConfig, text string) {
	if cfg.ModlogChannelID == nil {
		return
	}
	tctx, cancel := context.WithTimeout(ctx, eng.ActionTimeout)
	defer cancel()
	if err := eng.Platform.SendNotice(tctx, *cfg.ModlogChannelID, text); err != nil {
		eng.Logger.Warn("failed to send modlog notice", zap.Int64("channel", *cfg.ModlogChannelID), zap.Error(err))
	}
}

func (eng *Engine) record(rule string, act Action) Action {
	actionCount.WithLabelValues(rule).Inc()
	return act
}

// CapsRatio returns the rounded percentage of upper-case letters among the
// letters of text. Non-letters are ignored; text without letters scores 0.
func CapsRatio(text string) int {
	letters, upper := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return 0
	}
	return int(math.Round(100 * float64(upper) / float64(letters)))
}

// IsInvite reports whether text contains an invite link.
func IsInvite(text string) bool {
	return inviteRegex.MatchString(text)
}
