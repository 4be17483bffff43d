package command

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leviathan/internal/clock"
	"leviathan/internal/config"
	"leviathan/internal/moderation"
	"leviathan/internal/platform/platformtest"
	"leviathan/internal/service"
	"leviathan/internal/storage"
)

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func setupDispatcher(t *testing.T) (*Dispatcher, *service.Service, *platformtest.Fake) {
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
	return NewDispatcher(nil, svc, moderation.New(nil, svc, fake, clk)), svc, fake
}

var (
	member    = Invocation{GuildID: 1, ChannelID: 10, AuthorID: 5}
	moderator = Invocation{GuildID: 1, ChannelID: 10, AuthorID: 7, CanModerate: true}
	admin     = Invocation{GuildID: 1, ChannelID: 10, AuthorID: 8, CanModerate: true, CanManageGuild: true}
)

func run(t *testing.T, d *Dispatcher, inv Invocation, text string) (Reply, error) {
	t.Helper()
	cmd, err := Parse("!", text)
	require.NoError(t, err)
	return d.Dispatch(context.Background(), inv, cmd)
}

func TestDispatchPermissions(t *testing.T) {
	d, _, fake := setupDispatcher(t)

	tests := []struct {
		inv  Invocation
		text string
	}{
		{member, "!mute <@42>"},
		{member, "!unmute <@42>"},
		{member, "!warn <@42>"},
		{member, "!infractions <@42>"},
		{member, "!clearwarns <@42>"},
		{moderator, "!giveaway 1h 1 Nitro"},
		{moderator, "!automod caps on"},
	}
	for _, tt := range tests {
		reply, err := run(t, d, tt.inv, tt.text)
		assert.ErrorIs(t, err, ErrPermissionDenied, tt.text)
		assert.Equal(t, "⛔ You are not allowed to use this command.", reply.Text)
	}
	assert.Empty(t, fake.Timeouts)
	assert.Empty(t, fake.Posted)
}

func TestDispatchRemindIsOpenToEveryone(t *testing.T) {
	d, svc, _ := setupDispatcher(t)

	reply, err := run(t, d, member, "!remind 10m stretch")
	require.NoError(t, err)
	assert.Equal(t, "⏰ OK. I will remind you in 10m.", reply.Text)

	due, err := svc.DueReminders(context.Background(), t0.Add(10*time.Minute), 20)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, int64(5), due[0].UserID)
	assert.Equal(t, "stretch", due[0].Content)
}

func TestDispatchModerationFlow(t *testing.T) {
	d, _, fake := setupDispatcher(t)

	reply, err := run(t, d, moderator, "!mute <@42> 1h flooding")
	require.NoError(t, err)
	assert.Equal(t, "🤐 <@42> timed out for 1h.", reply.Text)
	require.Len(t, fake.Timeouts, 1)
	assert.Equal(t, time.Hour, fake.Timeouts[0].Duration)

	reply, err = run(t, d, moderator, "!warn <@42>")
	require.NoError(t, err)
	assert.Equal(t, "⚠️ <@42> warned. (No reason)", reply.Text)

	reply, err = run(t, d, moderator, "!infractions <@42>")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply.Text, "```#2 • warn • 2025-06-01 10:00:00 • No reason\n#1 • timeout • "), reply.Text)
	assert.Contains(t, reply.Text, "1h | flooding")

	reply, err = run(t, d, moderator, "!clearwarns <@42>")
	require.NoError(t, err)
	assert.Equal(t, "✅ Warnings cleared.", reply.Text)

	reply, err = run(t, d, moderator, "!infractions <@99>")
	require.NoError(t, err)
	assert.Equal(t, "No infractions.", reply.Text)
}

func TestDispatchMuteTooLong(t *testing.T) {
	d, _, fake := setupDispatcher(t)

	reply, err := run(t, d, moderator, "!mute <@42> 60d")
	assert.ErrorIs(t, err, moderation.ErrTimeoutTooLong)
	assert.True(t, strings.HasPrefix(reply.Text, "❌"))
	assert.Empty(t, fake.Timeouts)
}

func TestDispatchGiveaway(t *testing.T) {
	d, _, fake := setupDispatcher(t)

	reply, err := run(t, d, admin, "!giveaway 1h 50 Nitro")
	require.NoError(t, err)
	assert.Equal(t, "✅ Giveaway created.", reply.Text)
	require.Len(t, fake.Posted, 1)
	assert.Equal(t, 20, fake.Posted[0].Winners)
	assert.Equal(t, int64(10), fake.Posted[0].ChannelID)
}

func TestDispatchAutomod(t *testing.T) {
	d, svc, _ := setupDispatcher(t)
	ctx := context.Background()

	reply, err := run(t, d, admin, "!automod caps_threshold 85")
	require.NoError(t, err)
	assert.Equal(t, "✅ Automod setting caps_threshold set to 85.", reply.Text)

	reply, err = run(t, d, admin, "!automod language fr")
	require.NoError(t, err)
	assert.Equal(t, "✅ Automod setting language set to fr.", reply.Text)

	// later replies follow the new language
	reply, err = run(t, d, admin, "!automod caps_threshold 150")
	var verr *service.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.True(t, strings.HasPrefix(reply.Text, "❌ L'action a échoué"), reply.Text)

	cfg, err := svc.GetConfig(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 85, cfg.CapsThreshold)
	assert.Equal(t, "fr", cfg.Language)
}

func TestDispatchAutomodSpamBounds(t *testing.T) {
	d, svc, _ := setupDispatcher(t)
	before, err := svc.GetConfig(context.Background(), 1)
	require.NoError(t, err)

	for _, text := range []string{"!automod spam_interval 1e10", "!automod spam_interval 3601", "!automod spam_timeout 40321"} {
		_, err := run(t, d, admin, text)
		var verr *service.ValidationError
		assert.ErrorAs(t, err, &verr, text)
	}

	_, err = run(t, d, admin, "!automod spam_interval 3600")
	require.NoError(t, err)

	cfg, err := svc.GetConfig(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, float64(3600), cfg.SpamIntervalSec)
	assert.Equal(t, before.SpamTimeoutMin, cfg.SpamTimeoutMin)
	assert.Equal(t, time.Hour, cfg.SpamInterval())
}
