package storage

import (
	"context"

	"gorm.io/gorm"

	"leviathan/internal/models"
)

// InfractionRepository handles database operations for Infraction
type InfractionRepository struct {
	db *gorm.DB
}

func NewInfractionRepository(db *gorm.DB) *InfractionRepository {
	return &InfractionRepository{db: db}
}

func (r *InfractionRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.Infraction{})
}

func (r *InfractionRepository) Create(ctx context.Context, inf *models.Infraction) error {
	return r.db.WithContext(ctx).Create(inf).Error
}

// ListByUser returns the newest infractions of a user in a guild, newest first.
func (r *InfractionRepository) ListByUser(ctx context.Context, guildID, userID int64, limit int) ([]models.Infraction, error) {
	var infs []models.Infraction
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Order("id DESC").
		Limit(limit).
		Find(&infs).Error
	return infs, err
}

// DeleteWarns removes the warn records of a user and reports how many went.
// Other kinds are left alone.
func (r *InfractionRepository) DeleteWarns(ctx context.Context, guildID, userID int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ? AND kind = ?", guildID, userID, models.InfractionWarn).
		Delete(&models.Infraction{})
	return result.RowsAffected, result.Error
}

func (r *InfractionRepository) CountByKind(ctx context.Context, guildID int64, kind models.InfractionKind) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Infraction{}).
		Where("guild_id = ? AND kind = ?", guildID, kind).
		Count(&n).Error
	return n, err
}
