package storage

import (
	"context"
	"time"

	"gorm.io/gorm"

	"leviathan/internal/models"
)

// ReminderRepository handles database operations for Reminder
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.Reminder{})
}

func (r *ReminderRepository) Create(ctx context.Context, rem *models.Reminder) error {
	rem.RemindAt = rem.RemindAt.UTC()
	return r.db.WithContext(ctx).Create(rem).Error
}

// Due returns up to limit reminders with RemindAt <= now, oldest first.
func (r *ReminderRepository) Due(ctx context.Context, now time.Time, limit int) ([]models.Reminder, error) {
	var rems []models.Reminder
	err := r.db.WithContext(ctx).
		Where("remind_at <= ?", now.UTC()).
		Order("remind_at ASC, id ASC").
		Limit(limit).
		Find(&rems).Error
	return rems, err
}

// Delete removes a reminder. Deleting a missing row is not an error.
func (r *ReminderRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Reminder{}, id).Error
}

func (r *ReminderRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Reminder{}).Count(&n).Error
	return n, err
}
