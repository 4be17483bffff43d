package service

import (
	"context"

	"leviathan/internal/logger"
	"leviathan/internal/models"
)

// DefaultInfractionLimit is how many records a history listing shows.
const DefaultInfractionLimit = 15

func (s *Service) AppendInfraction(ctx context.Context, inf *models.Infraction) error {
	if inf.CreatedAt.IsZero() {
		inf.CreatedAt = s.clock.Now().UTC()
	}
	if err := s.infractions.Create(ctx, inf); err != nil {
		return err
	}
	logger.Infof("Infraction #%d %s guild=%d user=%d: %s", inf.ID, inf.Kind, inf.GuildID, inf.UserID, inf.Reason)
	return nil
}

func (s *Service) ListInfractions(ctx context.Context, guildID, userID int64, limit int) ([]models.Infraction, error) {
	if limit <= 0 {
		limit = DefaultInfractionLimit
	}
	return s.infractions.ListByUser(ctx, guildID, userID, limit)
}

// ClearWarns deletes only the warn records of a user.
func (s *Service) ClearWarns(ctx context.Context, guildID, userID int64) (int64, error) {
	return s.infractions.DeleteWarns(ctx, guildID, userID)
}
