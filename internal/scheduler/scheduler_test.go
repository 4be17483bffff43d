package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"leviathan/internal/clock"
	"leviathan/internal/config"
	"leviathan/internal/giveaway"
	"leviathan/internal/models"
	"leviathan/internal/platform/platformtest"
	"leviathan/internal/service"
	"leviathan/internal/storage"
)

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Scheduler, *service.Service, *platformtest.Fake, *clock.Manual) {
	t.Helper()
	db, err := storage.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	clk := clock.NewManual(t0)
	svc := service.New(db, config.Defaults().Automod.Defaults, clk)
	require.NoError(t, svc.InitRepositories(context.Background()))

	fake := platformtest.New()
	s := New(zap.NewNop(), svc, fake, clk, config.Defaults().Scheduler)
	s.Resolver = giveaway.NewResolver(1)
	return s, svc, fake, clk
}

func TestPollRemindersDeliversDueInOrder(t *testing.T) {
	s, svc, fake, clk := setup(t)
	ctx := context.Background()

	_, err := svc.AddReminder(ctx, 7, t0.Add(2*time.Minute), "second")
	require.NoError(t, err)
	_, err = svc.AddReminder(ctx, 7, t0.Add(time.Minute), "first")
	require.NoError(t, err)
	_, err = svc.AddReminder(ctx, 7, t0.Add(time.Hour), "later")
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	n, err := s.PollReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, fake.Directs, 2)
	assert.Equal(t, int64(7), fake.Directs[0].ChannelID)
	assert.Equal(t, "⏰ Reminder (2025-06-01 10:01 UTC): first", fake.Directs[0].Text)
	assert.True(t, strings.HasSuffix(fake.Directs[1].Text, ": second"))

	// delivered reminders are gone
	n, err = s.PollReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, fake.Directs, 2)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.PendingReminders)
}

func TestPollRemindersDeletesUndeliverable(t *testing.T) {
	s, svc, fake, clk := setup(t)
	ctx := context.Background()
	fake.DirectErr = errors.New("dms closed")

	_, err := svc.AddReminder(ctx, 7, t0, "hello")
	require.NoError(t, err)
	clk.Advance(time.Second)

	n, err := s.PollReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	due, err := svc.DueReminders(ctx, clk.Now(), 20)
	require.NoError(t, err)
	assert.Empty(t, due)
}

type flakyDeleteStore struct {
	*service.Service
	failures int
}

func (f *flakyDeleteStore) DeleteReminder(ctx context.Context, id uint) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("database is locked")
	}
	return f.Service.DeleteReminder(ctx, id)
}

func TestPollRemindersRetriesFailedDelete(t *testing.T) {
	s, svc, fake, clk := setup(t)
	ctx := context.Background()
	s.Store = &flakyDeleteStore{Service: svc, failures: 1}

	_, err := svc.AddReminder(ctx, 7, t0.Add(time.Minute), "tea")
	require.NoError(t, err)
	clk.Advance(time.Minute)

	n, err := s.PollReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.Len(t, fake.Directs, 1)

	// still due, sent a second time and retired
	n, err = s.PollReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, fake.Directs, 2)

	n, err = s.PollReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPollRemindersRespectsBatch(t *testing.T) {
	s, svc, _, clk := setup(t)
	ctx := context.Background()
	s.Config.ReminderBatch = 2

	for i := 0; i < 5; i++ {
		_, err := svc.AddReminder(ctx, 1, t0, "x")
		require.NoError(t, err)
	}
	clk.Advance(time.Second)

	n, err := s.PollReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func createGiveaway(t *testing.T, svc *service.Service, channel int64, winners int) *models.Giveaway {
	t.Helper()
	g := &models.Giveaway{GuildID: 1, ChannelID: channel, EndAt: t0.Add(time.Minute), Winners: winners, Prize: "Nitro"}
	require.NoError(t, svc.CreateGiveaway(context.Background(), g))
	return g
}

func TestPollGiveawaysAnnouncesWinners(t *testing.T) {
	s, svc, fake, clk := setup(t)
	ctx := context.Background()

	g := createGiveaway(t, svc, 20, 2)
	fake.Participants[g.ID] = []int64{101, 102, 103}

	// not yet due
	n, err := s.PollGiveaways(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clk.Advance(time.Minute)
	n, err = s.PollGiveaways(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, fake.Announcements, 1)
	ann := fake.Announcements[0]
	assert.Equal(t, int64(20), ann.ChannelID)
	assert.True(t, strings.HasPrefix(ann.Text, "🎉 Giveaway ended! Prize: Nitro\nWinner(s): "))
	assert.Equal(t, 1, strings.Count(ann.Text, ", "))

	stored, err := svc.GetGiveaway(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, stored.Ended)

	// announced exactly once
	n, err = s.PollGiveaways(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, fake.Announcements, 1)
}

func TestPollGiveawaysNoParticipants(t *testing.T) {
	s, svc, fake, clk := setup(t)
	createGiveaway(t, svc, 20, 1)
	clk.Advance(time.Hour)

	n, err := s.PollGiveaways(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, fake.Announcements, 1)
	assert.Equal(t, "🎁 Giveaway ended: no participants. (Prize: Nitro)", fake.Announcements[0].Text)
}

func TestPollGiveawaysMissingChannel(t *testing.T) {
	s, svc, fake, clk := setup(t)
	g := createGiveaway(t, svc, 20, 1)
	fake.MissingChannels[20] = true
	clk.Advance(time.Hour)

	n, err := s.PollGiveaways(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, fake.Announcements)

	stored, err := svc.GetGiveaway(context.Background(), g.ID)
	require.NoError(t, err)
	assert.True(t, stored.Ended)
}

func TestPollGiveawaysEndsOnFailure(t *testing.T) {
	s, svc, fake, clk := setup(t)
	ctx := context.Background()

	failing := createGiveaway(t, svc, 20, 1)
	clk.Advance(time.Hour)
	fake.PanicOnFetch = true

	n, err := s.PollGiveaways(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := svc.GetGiveaway(ctx, failing.ID)
	require.NoError(t, err)
	assert.True(t, stored.Ended)

	fake.PanicOnFetch = false
	fake.AnnounceErr = errors.New("no access")
	other := createGiveaway(t, svc, 21, 1)
	require.NoError(t, svc.SetGiveawayMessage(ctx, other.ID, 1))
	clk.Advance(time.Hour)

	n, err = s.PollGiveaways(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPollGiveawaysFrenchAnnouncement(t *testing.T) {
	s, svc, fake, clk := setup(t)
	ctx := context.Background()
	_, err := svc.UpdateConfig(ctx, 1, func(c *models.GuildConfig) error {
		c.Language = models.LangFrench
		return nil
	})
	require.NoError(t, err)

	createGiveaway(t, svc, 20, 1)
	clk.Advance(time.Hour)
	_, err = s.PollGiveaways(ctx)
	require.NoError(t, err)
	require.Len(t, fake.Announcements, 1)
	assert.Contains(t, fake.Announcements[0].Text, "aucun participant")
}

func TestStartStop(t *testing.T) {
	s, svc, fake, _ := setup(t)
	ctx := context.Background()
	s.Config.ReminderInterval = 10 * time.Millisecond
	s.Config.GiveawayInterval = 10 * time.Millisecond

	_, err := svc.AddReminder(ctx, 9, t0.Add(-time.Minute), "due")
	require.NoError(t, err)

	require.NoError(t, s.Start(ctx))
	assert.ErrorIs(t, s.Start(ctx), ErrAlreadyStarted)

	assert.Eventually(t, func() bool {
		return fake.DirectCount() > 0
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	s.Stop()
	require.NoError(t, s.Start(ctx))
	s.Stop()
}
