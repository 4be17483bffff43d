package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"leviathan/internal/models"
)

// GiveawayRepository handles database operations for Giveaway and its entries
type GiveawayRepository struct {
	db *gorm.DB
}

func NewGiveawayRepository(db *gorm.DB) *GiveawayRepository {
	return &GiveawayRepository{db: db}
}

func (r *GiveawayRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.Giveaway{}, &models.GiveawayEntry{})
}

func (r *GiveawayRepository) Create(ctx context.Context, g *models.Giveaway) error {
	g.EndAt = g.EndAt.UTC()
	return r.db.WithContext(ctx).Create(g).Error
}

// Get returns the giveaway with id, or nil when it does not exist.
func (r *GiveawayRepository) Get(ctx context.Context, id uint) (*models.Giveaway, error) {
	var g models.Giveaway
	err := r.db.WithContext(ctx).First(&g, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GiveawayRepository) SetMessageID(ctx context.Context, id uint, messageID int64) error {
	return r.db.WithContext(ctx).Model(&models.Giveaway{}).
		Where("id = ?", id).
		Update("message_id", messageID).Error
}

// Due returns up to limit running giveaways with EndAt <= now, oldest first.
func (r *GiveawayRepository) Due(ctx context.Context, now time.Time, limit int) ([]models.Giveaway, error) {
	var gs []models.Giveaway
	err := r.db.WithContext(ctx).
		Where("ended = ? AND end_at <= ?", false, now.UTC()).
		Order("end_at ASC, id ASC").
		Limit(limit).
		Find(&gs).Error
	return gs, err
}

// MarkEnded flips Ended once. It reports whether this call did the flip.
func (r *GiveawayRepository) MarkEnded(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Giveaway{}).
		Where("id = ? AND ended = ?", id, false).
		Update("ended", true)
	return result.RowsAffected > 0, result.Error
}

// AddEntry records a participant. Entering twice is a no-op.
func (r *GiveawayRepository) AddEntry(ctx context.Context, giveawayID uint, userID int64) error {
	entry := models.GiveawayEntry{GiveawayID: giveawayID, UserID: userID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entry).Error
}

func (r *GiveawayRepository) Entries(ctx context.Context, giveawayID uint) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.GiveawayEntry{}).
		Where("giveaway_id = ?", giveawayID).
		Order("id").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *GiveawayRepository) CountRunning(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Giveaway{}).Where("ended = ?", false).Count(&n).Error
	return n, err
}
