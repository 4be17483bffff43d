package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/puzpuzpuz/xsync/v3"
	"gorm.io/gorm"

	"leviathan/internal/clock"
	"leviathan/internal/config"
	"leviathan/internal/crash"
	"leviathan/internal/logger"
	"leviathan/internal/models"
	"leviathan/internal/storage"
)

// ErrGiveawayEnded is returned when entering a giveaway that is over.
var ErrGiveawayEnded = errors.New("giveaway has ended")

// ErrNotFound is returned for unknown giveaways.
var ErrNotFound = errors.New("not found")

// ValidationError describes a rejected field value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Service is the persistence side of the bot: guild configs behind a cache,
// infractions, reminders and giveaways.
type Service struct {
	configs     *storage.ConfigRepository
	infractions *storage.InfractionRepository
	reminders   *storage.ReminderRepository
	giveaways   *storage.GiveawayRepository

	cache       *models.GuildConfigCache
	configLocks *xsync.MapOf[int64, *sync.Mutex]
	defaults    config.AutomodDefaults
	validate    *validator.Validate
	clock       clock.Clock
}

func New(db *gorm.DB, defaults config.AutomodDefaults, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	return &Service{
		configs:     storage.NewConfigRepository(db),
		infractions: storage.NewInfractionRepository(db),
		reminders:   storage.NewReminderRepository(db),
		giveaways:   storage.NewGiveawayRepository(db),
		cache:       models.NewGuildConfigCache(),
		configLocks: xsync.NewMapOf[int64, *sync.Mutex](),
		defaults:    defaults,
		validate:    validator.New(),
		clock:       clk,
	}
}

// InitRepositories migrates every table and warms the config cache.
func (s *Service) InitRepositories(ctx context.Context) error {
	if err := s.configs.MigrateTable(); err != nil {
		return fmt.Errorf("error migrating GuildConfig table: %w", err)
	}
	if err := s.infractions.MigrateTable(); err != nil {
		return fmt.Errorf("error migrating Infraction table: %w", err)
	}
	if err := s.reminders.MigrateTable(); err != nil {
		return fmt.Errorf("error migrating Reminder table: %w", err)
	}
	if err := s.giveaways.MigrateTable(); err != nil {
		return fmt.Errorf("error migrating Giveaway tables: %w", err)
	}

	cfgs, err := s.configs.List(ctx)
	if err != nil {
		logger.Warningf("Error loading guild configs from database: %v", err)
		return nil
	}
	for _, c := range cfgs {
		s.cache.Put(c)
	}
	logger.Infof("Loaded %d guild configs", len(cfgs))
	return nil
}

// StartCacheCleanup periodically drops the config cache so rows edited
// directly in the database are picked up.
func (s *Service) StartCacheCleanup(ctx context.Context, interval time.Duration) {
	crash.SafeGoroutine("config-cache-cleanup", func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		logger.Infof("Starting guild config cache cleanup with interval: %v", interval)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cache.Reset()
				logger.Debugf("Guild config cache reset")
			}
		}
	})
}

func (s *Service) Clock() clock.Clock {
	return s.clock
}
