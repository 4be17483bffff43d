package service

import (
	"context"
	"strings"
	"time"

	"leviathan/internal/giveaway"
	"leviathan/internal/logger"
	"leviathan/internal/models"
)

func (s *Service) AddReminder(ctx context.Context, userID int64, remindAt time.Time, content string) (*models.Reminder, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}

	rem := &models.Reminder{UserID: userID, RemindAt: remindAt, Content: content}
	if err := s.reminders.Create(ctx, rem); err != nil {
		return nil, err
	}
	logger.Infof("Reminder #%d scheduled for user %d at %s", rem.ID, userID, rem.RemindAt.Format(time.RFC3339))
	return rem, nil
}

func (s *Service) DueReminders(ctx context.Context, now time.Time, limit int) ([]models.Reminder, error) {
	return s.reminders.Due(ctx, now, limit)
}

func (s *Service) DeleteReminder(ctx context.Context, id uint) error {
	return s.reminders.Delete(ctx, id)
}

// CreateGiveaway validates and stores a giveaway. The winner count is clamped
// here, once, at creation time.
func (s *Service) CreateGiveaway(ctx context.Context, g *models.Giveaway) error {
	g.Prize = strings.TrimSpace(g.Prize)
	if g.Prize == "" {
		return &ValidationError{Field: "prize", Reason: "must not be empty"}
	}
	if !g.EndAt.After(s.clock.Now()) {
		return &ValidationError{Field: "end_at", Reason: "must be in the future"}
	}
	g.Winners = giveaway.ClampWinnerCount(g.Winners)
	if strings.TrimSpace(g.Emoji) == "" {
		g.Emoji = giveaway.DefaultMarker
	}
	g.Ended = false

	if err := s.giveaways.Create(ctx, g); err != nil {
		return err
	}
	logger.Infof("Giveaway #%d created guild=%d channel=%d end=%s", g.ID, g.GuildID, g.ChannelID, g.EndAt.Format(time.RFC3339))
	return nil
}

// SetGiveawayMessage records the announcement message once it is posted.
func (s *Service) SetGiveawayMessage(ctx context.Context, id uint, messageID int64) error {
	return s.giveaways.SetMessageID(ctx, id, messageID)
}

func (s *Service) GetGiveaway(ctx context.Context, id uint) (*models.Giveaway, error) {
	g, err := s.giveaways.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrNotFound
	}
	return g, nil
}

func (s *Service) DueGiveaways(ctx context.Context, now time.Time, limit int) ([]models.Giveaway, error) {
	return s.giveaways.Due(ctx, now, limit)
}

func (s *Service) MarkGiveawayEnded(ctx context.Context, id uint) error {
	flipped, err := s.giveaways.MarkEnded(ctx, id)
	if err != nil {
		return err
	}
	if !flipped {
		logger.Warningf("Giveaway #%d was already ended", id)
	}
	return nil
}

// AddGiveawayEntry enters userID into a running giveaway.
func (s *Service) AddGiveawayEntry(ctx context.Context, giveawayID uint, userID int64) error {
	g, err := s.GetGiveaway(ctx, giveawayID)
	if err != nil {
		return err
	}
	if g.Ended || !s.clock.Now().Before(g.EndAt) {
		return ErrGiveawayEnded
	}
	return s.giveaways.AddEntry(ctx, giveawayID, userID)
}

func (s *Service) GiveawayEntries(ctx context.Context, giveawayID uint) ([]int64, error) {
	return s.giveaways.Entries(ctx, giveawayID)
}
