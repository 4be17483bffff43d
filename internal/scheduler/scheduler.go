// Package scheduler runs the background loops that deliver due reminders and
// close expired giveaways.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"leviathan/internal/clock"
	"leviathan/internal/config"
	"leviathan/internal/crash"
	"leviathan/internal/giveaway"
	"leviathan/internal/models"
	"leviathan/internal/platform"
)

// ReminderTimeLayout is how the scheduled time is rendered in reminder DMs.
const ReminderTimeLayout = "2006-01-02 15:04 UTC"

var ErrAlreadyStarted = errors.New("scheduler already started")

// Store is the persistence the loops need.
type Store interface {
	DueReminders(ctx context.Context, now time.Time, limit int) ([]models.Reminder, error)
	DeleteReminder(ctx context.Context, id uint) error
	DueGiveaways(ctx context.Context, now time.Time, limit int) ([]models.Giveaway, error)
	MarkGiveawayEnded(ctx context.Context, id uint) error
	GetConfig(ctx context.Context, guildID int64) (models.GuildConfig, error)
}

// Task is one periodic job.
type Task interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// Scheduler owns the reminder and giveaway loops. Only one Scheduler may run
// against a database at a time; delivery is at-most-once, except that a
// reminder whose delete fails stays due and is sent again on the next pass.
type Scheduler struct {
	Logger   *zap.Logger
	Store    Store
	Platform platform.Adapter
	Clock    clock.Clock
	Resolver *giveaway.Resolver
	Config   config.SchedulerConfig
	// CallTimeout bounds each platform call.
	CallTimeout time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

func New(logger *zap.Logger, store Store, adapter platform.Adapter, clk clock.Clock, cfg config.SchedulerConfig) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Scheduler{
		Logger:      logger,
		Store:       store,
		Platform:    adapter,
		Clock:       clk,
		Resolver:    giveaway.NewTimeSeededResolver(),
		Config:      cfg,
		CallTimeout: 10 * time.Second,
	}
}

// Tasks lists the loops Start runs.
func (s *Scheduler) Tasks() []Task {
	return []Task{
		&loop{name: "reminders", interval: s.Config.ReminderInterval, run: func(ctx context.Context) error {
			_, err := s.PollReminders(ctx)
			return err
		}},
		&loop{name: "giveaways", interval: s.Config.GiveawayInterval, run: func(ctx context.Context) error {
			_, err := s.PollGiveaways(ctx)
			return err
		}},
	}
}

// Start launches every task in its own goroutine. Each task runs once right
// away and then on its interval until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	wg := &sync.WaitGroup{}
	s.cancel = cancel
	s.wg = wg

	for _, task := range s.Tasks() {
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			s.runTask(ctx, task)
		}(task)
	}
	return nil
}

// Stop cancels the loops and waits for in-flight passes to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, wg := s.cancel, s.wg
	s.cancel, s.wg = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	wg.Wait()
}

func (s *Scheduler) runTask(ctx context.Context, task Task) {
	interval := task.Interval()
	if interval <= 0 {
		interval = time.Minute
	}
	s.Logger.Info("starting task", zap.String("task", task.Name()), zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx, task)
		select {
		case <-ctx.Done():
			s.Logger.Info("task stopped", zap.String("task", task.Name()))
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, task Task) {
	var err error
	func() {
		defer crash.RecoverToError("scheduler/"+task.Name(), &err)
		err = task.Run(ctx)
	}()
	if err != nil && ctx.Err() == nil {
		s.Logger.Error("task failed", zap.String("task", task.Name()), zap.Error(err))
	}
}

// PollReminders delivers every due reminder in one batch and returns how many
// were retired. Each reminder is deleted whether or not the DM went through.
func (s *Scheduler) PollReminders(ctx context.Context) (int, error) {
	due, err := s.Store.DueReminders(ctx, s.Clock.Now(), s.Config.ReminderBatch)
	if err != nil {
		return 0, fmt.Errorf("loading due reminders: %w", err)
	}

	retired := 0
	for i := range due {
		r := due[i]
		outcome := "delivered"

		var itemErr error
		func() {
			defer crash.RecoverToError("scheduler/reminder", &itemErr)
			text := fmt.Sprintf(models.GetTranslation(models.LangEnglish, "reminder_dm"), r.RemindAt.UTC().Format(ReminderTimeLayout), r.Content)
			cctx, cancel := context.WithTimeout(ctx, s.CallTimeout)
			defer cancel()
			itemErr = s.Platform.SendDirect(cctx, r.UserID, text)
		}()
		if itemErr != nil {
			outcome = "undelivered"
			s.Logger.Warn("reminder not delivered", zap.Uint("reminder", r.ID), zap.Int64("user", r.UserID), zap.Error(itemErr))
		}

		if err := s.Store.DeleteReminder(ctx, r.ID); err != nil {
			// still due, so the next pass sends it again
			s.Logger.Error("failed to delete reminder", zap.Uint("reminder", r.ID), zap.Error(err))
			continue
		}
		itemsProcessed.WithLabelValues("reminder", outcome).Inc()
		retired++
	}
	return retired, nil
}

// PollGiveaways resolves every expired giveaway in one batch and returns how
// many were marked ended. A giveaway is marked ended even when resolving it
// failed, so it is never announced twice.
func (s *Scheduler) PollGiveaways(ctx context.Context) (int, error) {
	due, err := s.Store.DueGiveaways(ctx, s.Clock.Now(), s.Config.GiveawayBatch)
	if err != nil {
		return 0, fmt.Errorf("loading due giveaways: %w", err)
	}

	ended := 0
	for i := range due {
		g := due[i]

		var outcome string
		var itemErr error
		func() {
			defer crash.RecoverToError("scheduler/giveaway", &itemErr)
			outcome, itemErr = s.resolveGiveaway(ctx, &g)
		}()
		if itemErr != nil {
			outcome = "failed"
			s.Logger.Error("giveaway resolution failed", zap.Uint("giveaway", g.ID), zap.Error(itemErr))
		}

		if err := s.Store.MarkGiveawayEnded(ctx, g.ID); err != nil {
			s.Logger.Error("failed to mark giveaway ended", zap.Uint("giveaway", g.ID), zap.Error(err))
			continue
		}
		itemsProcessed.WithLabelValues("giveaway", outcome).Inc()
		ended++
	}
	return ended, nil
}

func (s *Scheduler) resolveGiveaway(ctx context.Context, g *models.Giveaway) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, s.CallTimeout)
	defer cancel()

	exists, err := s.Platform.ChannelExists(cctx, g.GuildID, g.ChannelID)
	if err != nil {
		return "", fmt.Errorf("checking channel %d: %w", g.ChannelID, err)
	}
	if !exists {
		s.Logger.Info("giveaway channel gone, closing", zap.Uint("giveaway", g.ID), zap.Int64("channel", g.ChannelID))
		return "missing", nil
	}

	participants, err := s.Platform.FetchParticipants(cctx, g)
	if err != nil {
		return "", fmt.Errorf("fetching participants: %w", err)
	}

	lang := models.LangEnglish
	if cfg, err := s.Store.GetConfig(ctx, g.GuildID); err == nil {
		lang = cfg.Language
	}

	winners := s.Resolver.ChooseWinners(participants, g.Winners)
	if len(winners) == 0 {
		text := fmt.Sprintf(models.GetTranslation(lang, "giveaway_no_participants"), g.Prize)
		if err := s.Platform.Announce(cctx, g.ChannelID, text); err != nil {
			return "", fmt.Errorf("announcing empty giveaway: %w", err)
		}
		return "empty", nil
	}

	mentions := make([]string, len(winners))
	for i, w := range winners {
		mentions[i] = s.Platform.Mention(w)
	}
	text := fmt.Sprintf(models.GetTranslation(lang, "giveaway_winners"), g.Prize, strings.Join(mentions, ", "))
	if err := s.Platform.Announce(cctx, g.ChannelID, text); err != nil {
		return "", fmt.Errorf("announcing winners: %w", err)
	}
	s.Logger.Info("giveaway ended", zap.Uint("giveaway", g.ID), zap.Int("winners", len(winners)), zap.Int("participants", len(participants)))
	return "announced", nil
}

type loop struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

func (l *loop) Name() string                  { return l.name }
func (l *loop) Interval() time.Duration       { return l.interval }
func (l *loop) Run(ctx context.Context) error { return l.run(ctx) }
