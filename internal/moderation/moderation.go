// Package moderation implements the manual moderation actions shared by the
// chat commands and the admin API.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"leviathan/internal/clock"
	"leviathan/internal/duration"
	"leviathan/internal/giveaway"
	"leviathan/internal/models"
	"leviathan/internal/platform"
)

// DefaultReason is recorded when a moderator gives none.
const DefaultReason = "No reason"

var ErrTimeoutTooLong = errors.New("timeout exceeds the platform maximum")

// Store is the persistence the actions need.
type Store interface {
	GetConfig(ctx context.Context, guildID int64) (models.GuildConfig, error)
	AppendInfraction(ctx context.Context, inf *models.Infraction) error
	ListInfractions(ctx context.Context, guildID, userID int64, limit int) ([]models.Infraction, error)
	ClearWarns(ctx context.Context, guildID, userID int64) (int64, error)
	AddReminder(ctx context.Context, userID int64, remindAt time.Time, content string) (*models.Reminder, error)
	CreateGiveaway(ctx context.Context, g *models.Giveaway) error
	SetGiveawayMessage(ctx context.Context, id uint, messageID int64) error
	MarkGiveawayEnded(ctx context.Context, id uint) error
}

// Moderator executes moderation actions. Platform failures of the primary
// action are returned; modlog notices are best effort.
type Moderator struct {
	Logger      *zap.Logger
	Store       Store
	Platform    platform.Adapter
	Clock       clock.Clock
	CallTimeout time.Duration
}

func New(logger *zap.Logger, store Store, adapter platform.Adapter, clk clock.Clock) *Moderator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Moderator{
		Logger:      logger,
		Store:       store,
		Platform:    adapter,
		Clock:       clk,
		CallTimeout: 10 * time.Second,
	}
}

// Actor identifies who performed an action. A nil ModID means the action was
// taken through the admin API.
type Actor struct {
	ModID *int64
	Name  string
}

// UserActor is a chat moderator.
func (m *Moderator) UserActor(userID int64) Actor {
	id := userID
	return Actor{ModID: &id, Name: m.Platform.Mention(userID)}
}

// PanelActor is the admin API.
func PanelActor() Actor {
	return Actor{Name: "panel"}
}

func orDefault(reason string) string {
	if reason == "" {
		return DefaultReason
	}
	return reason
}

// Mute times the target out for d. durText is the duration as the moderator
// wrote it and ends up in the infraction reason.
func (m *Moderator) Mute(ctx context.Context, guildID, targetID int64, actor Actor, d time.Duration, durText, reason string) error {
	if d <= 0 {
		return fmt.Errorf("%w: timeout must be positive", duration.ErrInvalidDuration)
	}
	if limit := m.Platform.MaxTimeout(); limit > 0 && d > limit {
		return fmt.Errorf("%w (%s > %s)", ErrTimeoutTooLong, durText, duration.Format(int64(limit/time.Second)))
	}
	reason = orDefault(reason)

	cctx, cancel := context.WithTimeout(ctx, m.CallTimeout)
	err := m.Platform.ApplyTimeout(cctx, guildID, targetID, d, reason)
	cancel()
	if err != nil {
		return fmt.Errorf("applying timeout: %w", err)
	}

	if err := m.record(ctx, guildID, targetID, actor, models.InfractionTimeout, fmt.Sprintf("%s | %s", durText, reason)); err != nil {
		return err
	}
	m.notice(ctx, guildID, "notice_mute", m.Platform.Mention(targetID), durText, reason, actor.Name)
	return nil
}

func (m *Moderator) Unmute(ctx context.Context, guildID, targetID int64, actor Actor, reason string) error {
	reason = orDefault(reason)

	cctx, cancel := context.WithTimeout(ctx, m.CallTimeout)
	err := m.Platform.RemoveTimeout(cctx, guildID, targetID, reason)
	cancel()
	if err != nil {
		return fmt.Errorf("removing timeout: %w", err)
	}

	if err := m.record(ctx, guildID, targetID, actor, models.InfractionUntimeout, reason); err != nil {
		return err
	}
	m.notice(ctx, guildID, "notice_unmute", m.Platform.Mention(targetID), reason, actor.Name)
	return nil
}

func (m *Moderator) Warn(ctx context.Context, guildID, targetID int64, actor Actor, reason string) error {
	reason = orDefault(reason)
	if err := m.record(ctx, guildID, targetID, actor, models.InfractionWarn, reason); err != nil {
		return err
	}
	m.notice(ctx, guildID, "notice_warn", m.Platform.Mention(targetID), reason, actor.Name)

	cctx, cancel := context.WithTimeout(ctx, m.CallTimeout)
	defer cancel()
	text := fmt.Sprintf(models.GetTranslation(m.language(ctx, guildID), "warn_dm"), reason)
	if err := m.Platform.SendDirect(cctx, targetID, text); err != nil {
		m.Logger.Debug("warn DM not delivered", zap.Int64("user", targetID), zap.Error(err))
	}
	return nil
}

// ClearWarns removes the target's warns and returns how many were deleted.
func (m *Moderator) ClearWarns(ctx context.Context, guildID, targetID int64, actor Actor) (int64, error) {
	n, err := m.Store.ClearWarns(ctx, guildID, targetID)
	if err != nil {
		return 0, err
	}
	m.notice(ctx, guildID, "notice_clearwarns", m.Platform.Mention(targetID), actor.Name)
	return n, nil
}

func (m *Moderator) Infractions(ctx context.Context, guildID, targetID int64, limit int) ([]models.Infraction, error) {
	return m.Store.ListInfractions(ctx, guildID, targetID, limit)
}

// Remind schedules content to be sent to userID after d.
func (m *Moderator) Remind(ctx context.Context, userID int64, d time.Duration, content string) (*models.Reminder, error) {
	if d <= 0 {
		return nil, fmt.Errorf("%w: delay must be positive", duration.ErrInvalidDuration)
	}
	return m.Store.AddReminder(ctx, userID, m.Clock.Now().Add(d), content)
}

// GiveawayRequest describes a giveaway to start.
type GiveawayRequest struct {
	GuildID   int64
	ChannelID int64
	Duration  time.Duration
	Winners   int
	Prize     string
}

// StartGiveaway persists the giveaway, posts its announcement and records the
// announcement id. If posting fails the giveaway is closed immediately so the
// scheduler never picks it up.
func (m *Moderator) StartGiveaway(ctx context.Context, req GiveawayRequest) (*models.Giveaway, error) {
	if req.Duration <= 0 {
		return nil, fmt.Errorf("%w: giveaway duration must be positive", duration.ErrInvalidDuration)
	}

	g := &models.Giveaway{
		GuildID:   req.GuildID,
		ChannelID: req.ChannelID,
		EndAt:     m.Clock.Now().Add(req.Duration),
		Winners:   giveaway.ClampWinnerCount(req.Winners),
		Prize:     req.Prize,
		Emoji:     giveaway.DefaultMarker,
	}
	if err := m.Store.CreateGiveaway(ctx, g); err != nil {
		return nil, err
	}

	lang := m.language(ctx, req.GuildID)
	cctx, cancel := context.WithTimeout(ctx, m.CallTimeout)
	msgID, err := m.Platform.PostGiveaway(cctx, g, lang)
	cancel()
	if err != nil {
		if endErr := m.Store.MarkGiveawayEnded(ctx, g.ID); endErr != nil {
			m.Logger.Error("failed to close unposted giveaway", zap.Uint("giveaway", g.ID), zap.Error(endErr))
		}
		return nil, fmt.Errorf("posting giveaway: %w", err)
	}

	if err := m.Store.SetGiveawayMessage(ctx, g.ID, msgID); err != nil {
		return nil, err
	}
	g.MessageID = msgID
	m.Logger.Info("giveaway started", zap.Uint("giveaway", g.ID), zap.Int64("guild", g.GuildID), zap.Time("end_at", g.EndAt))
	return g, nil
}

func (m *Moderator) record(ctx context.Context, guildID, targetID int64, actor Actor, kind models.InfractionKind, reason string) error {
	inf := &models.Infraction{
		GuildID: guildID,
		UserID:  targetID,
		ModID:   actor.ModID,
		Kind:    kind,
		Reason:  reason,
	}
	if err := m.Store.AppendInfraction(ctx, inf); err != nil {
		return fmt.Errorf("recording %s infraction: %w", kind, err)
	}
	return nil
}

func (m *Moderator) language(ctx context.Context, guildID int64) string {
	cfg, err := m.Store.GetConfig(ctx, guildID)
	if err != nil {
		return models.LangEnglish
	}
	return cfg.Language
}

func (m *Moderator) notice(ctx context.Context, guildID int64, key string, args ...any) {
	cfg, err := m.Store.GetConfig(ctx, guildID)
	if err != nil {
		m.Logger.Warn("no config for modlog notice", zap.Int64("guild", guildID), zap.Error(err))
		return
	}
	if cfg.ModlogChannelID == nil {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, m.CallTimeout)
	defer cancel()
	text := fmt.Sprintf(models.GetTranslation(cfg.Language, key), args...)
	if err := m.Platform.SendNotice(cctx, *cfg.ModlogChannelID, text); err != nil {
		m.Logger.Warn("failed to send modlog notice", zap.Int64("guild", guildID), zap.String("key", key), zap.Error(err))
	}
}
