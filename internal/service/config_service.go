package service

import (
	"context"
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"

	"leviathan/internal/logger"
	"leviathan/internal/models"
)

// DefaultConfig returns the config a guild starts with.
func (s *Service) DefaultConfig(guildID int64) models.GuildConfig {
	d := s.defaults
	return models.GuildConfig{
		GuildID:         guildID,
		Language:        d.Language,
		AutomodEnabled:  d.Enabled,
		AntiInvite:      d.AntiInvite,
		AntiLink:        d.AntiLink,
		AntiCaps:        d.AntiCaps,
		CapsThreshold:   d.CapsThreshold,
		SpamIntervalSec: d.SpamIntervalSec,
		SpamBurst:       d.SpamBurst,
		SpamTimeoutMin:  d.SpamTimeoutMin,
	}
}

// GetConfig returns the guild's config, creating it with defaults on first use.
func (s *Service) GetConfig(ctx context.Context, guildID int64) (models.GuildConfig, error) {
	if cfg, ok := s.cache.Get(guildID); ok {
		return cfg, nil
	}

	cfg, err := s.configs.GetOrCreate(ctx, s.DefaultConfig(guildID))
	if err != nil {
		return models.GuildConfig{}, err
	}
	if cfg.Language == "" {
		cfg.Language = models.LangEnglish
	}

	s.cache.Put(*cfg)
	return *cfg, nil
}

// UpdateConfig applies mutate to the guild's config, validates the result and
// persists it. Updates for one guild are serialized.
func (s *Service) UpdateConfig(ctx context.Context, guildID int64, mutate func(*models.GuildConfig) error) (models.GuildConfig, error) {
	mu, _ := s.configLocks.LoadOrCompute(guildID, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	defer mu.Unlock()

	current, err := s.GetConfig(ctx, guildID)
	if err != nil {
		return models.GuildConfig{}, err
	}

	next := current
	if err := mutate(&next); err != nil {
		return models.GuildConfig{}, err
	}
	next.ID = current.ID
	next.GuildID = guildID

	if err := s.ValidateConfig(&next); err != nil {
		return models.GuildConfig{}, err
	}

	if err := s.configs.Save(ctx, &next); err != nil {
		return models.GuildConfig{}, err
	}
	s.cache.Put(next)

	logger.Infof("Guild %d config updated", guildID)
	return next, nil
}

// ValidateConfig reports the first invalid field as a *ValidationError.
func (s *Service) ValidateConfig(cfg *models.GuildConfig) error {
	err := s.validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ValidationError{Field: verrs[0].Field(), Reason: "failed " + verrs[0].Tag() + " " + verrs[0].Param()}
	}
	return err
}
