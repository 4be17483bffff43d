package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"leviathan/internal/models"
)

// ConfigRepository handles database operations for GuildConfig
type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// MigrateTable ensures the GuildConfig table exists with the right schema
func (r *ConfigRepository) MigrateTable() error {
	if err := r.db.AutoMigrate(&models.GuildConfig{}); err != nil {
		return err
	}

	// rows written before the language column existed
	return r.db.Model(&models.GuildConfig{}).
		Where("language = ? OR language IS NULL", "").
		Update("language", models.LangEnglish).Error
}

// Get returns the stored config for guildID, or nil when there is none.
func (r *ConfigRepository) Get(ctx context.Context, guildID int64) (*models.GuildConfig, error) {
	var cfg models.GuildConfig
	err := r.db.WithContext(ctx).Where("guild_id = ?", guildID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetOrCreate returns the stored config, inserting defaults first when the
// guild has none. Concurrent callers all observe the same row.
func (r *ConfigRepository) GetOrCreate(ctx context.Context, defaults models.GuildConfig) (*models.GuildConfig, error) {
	defaults.ID = 0
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "guild_id"}}, DoNothing: true}).
		Create(&defaults).Error
	if err != nil {
		return nil, err
	}

	cfg, err := r.Get(ctx, defaults.GuildID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return cfg, nil
}

// Save writes every column of cfg.
func (r *ConfigRepository) Save(ctx context.Context, cfg *models.GuildConfig) error {
	return r.db.WithContext(ctx).Save(cfg).Error
}

func (r *ConfigRepository) List(ctx context.Context) ([]models.GuildConfig, error) {
	var cfgs []models.GuildConfig
	err := r.db.WithContext(ctx).Order("guild_id").Find(&cfgs).Error
	return cfgs, err
}

func (r *ConfigRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.GuildConfig{}).Count(&n).Error
	return n, err
}
