package automod

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"leviathan/internal/clock"
	"leviathan/internal/config"
	"leviathan/internal/models"
	"leviathan/internal/platform"
	"leviathan/internal/platform/platformtest"
	"leviathan/internal/service"
	"leviathan/internal/spamwindow"
	"leviathan/internal/storage"
)

const (
	guildID  = int64(1)
	modlogID = int64(900)
)

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	eng   *Engine
	svc   *service.Service
	fake  *platformtest.Fake
	clock *clock.Manual
}

func setup(t *testing.T, mutate func(*models.GuildConfig)) *fixture {
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

	_, err = svc.UpdateConfig(context.Background(), guildID, func(c *models.GuildConfig) error {
		ch := modlogID
		c.ModlogChannelID = &ch
		if mutate != nil {
			mutate(c)
		}
		return nil
	})
	require.NoError(t, err)

	fake := platformtest.New()
	eng := NewEngine(zap.NewNop(), svc, spamwindow.NewMemoryTracker(), fake, clk, 200*time.Millisecond)
	return &fixture{eng: eng, svc: svc, fake: fake, clock: clk}
}

func message(id int64, content string) platform.Message {
	return platform.Message{ID: id, ChannelID: 10, GuildID: guildID, AuthorID: 42, Content: content}
}

func TestCapsRatio(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"1234 !!", 0},
		{"ABC", 100},
		{"AbC", 67},
		{"abc", 0},
		{"HELLO world", 50},
		{"ÉCOLE", 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CapsRatio(tt.text), "%q", tt.text)
	}
}

func TestIsInvite(t *testing.T) {
	assert.True(t, IsInvite("join discord.gg/abc"))
	assert.True(t, IsInvite("https://discord.com/invite/xyz"))
	assert.True(t, IsInvite("https://DISCORDAPP.com/invite/xyz"))
	assert.True(t, IsInvite("t.me/+AbCdEf"))
	assert.True(t, IsInvite("t.me/joinchat/AbCdEf"))
	assert.False(t, IsInvite("discord is great"))
	assert.False(t, IsInvite("https://example.com"))
}

func TestInviteDeletedWithNotice(t *testing.T) {
	f := setup(t, nil)

	act, err := f.eng.Evaluate(context.Background(), message(1, "come to discord.gg/xyz"))
	require.NoError(t, err)
	assert.Equal(t, ActionDeleted, act)
	assert.Equal(t, []int64{1}, f.fake.Deleted)
	require.Len(t, f.fake.Notices, 1)
	assert.Equal(t, modlogID, f.fake.Notices[0].ChannelID)
	assert.Contains(t, f.fake.Notices[0].Text, "<@42>")
	assert.Contains(t, f.fake.Notices[0].Text, "<#10>")
}

func TestInviteTakesPrecedence(t *testing.T) {
	f := setup(t, func(c *models.GuildConfig) {
		c.AntiLink = true
		c.AntiCaps = true
	})

	act, err := f.eng.Evaluate(context.Background(), message(1, "JOIN HTTPS://DISCORD.GG/XYZ NOW"))
	require.NoError(t, err)
	assert.Equal(t, ActionDeleted, act)
	assert.Len(t, f.fake.Deleted, 1)
	require.Len(t, f.fake.Notices, 1)
	assert.Contains(t, f.fake.Notices[0].Text, "Anti-invite")
}

func TestLinkRule(t *testing.T) {
	f := setup(t, func(c *models.GuildConfig) { c.AntiLink = true })

	act, err := f.eng.Evaluate(context.Background(), message(1, "see https://example.com"))
	require.NoError(t, err)
	assert.Equal(t, ActionDeleted, act)

	act, err = f.eng.Evaluate(context.Background(), message(2, "see example.com"))
	require.NoError(t, err)
	assert.Equal(t, ActionNone, act)
}

func TestCapsRule(t *testing.T) {
	f := setup(t, func(c *models.GuildConfig) { c.AntiCaps = true })
	ctx := context.Background()

	act, err := f.eng.Evaluate(ctx, message(1, "THIS IS LOUD"))
	require.NoError(t, err)
	assert.Equal(t, ActionDeleted, act)
	require.Len(t, f.fake.Notices, 1)
	assert.Contains(t, f.fake.Notices[0].Text, "100%")

	// too short to judge
	act, err = f.eng.Evaluate(ctx, message(2, "LOUD!"))
	require.NoError(t, err)
	assert.Equal(t, ActionNone, act)

	// moderators may shout
	msg := message(3, "THIS IS LOUD")
	msg.AuthorCanManageMessages = true
	act, err = f.eng.Evaluate(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, act)
}

func TestSpamBurstTriggersOnce(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	var actions []Action
	for i := int64(1); i <= 5; i++ {
		act, err := f.eng.Evaluate(ctx, message(i, "hi"))
		require.NoError(t, err)
		actions = append(actions, act)
		f.clock.Advance(100 * time.Millisecond)
	}

	assert.Equal(t, []Action{ActionNone, ActionNone, ActionNone, ActionNone, ActionDeletedTimeout}, actions)
	require.Len(t, f.fake.Timeouts, 1)
	assert.Equal(t, 10*time.Minute, f.fake.Timeouts[0].Duration)
	assert.Equal(t, SpamReason, f.fake.Timeouts[0].Reason)
	assert.Equal(t, []int64{5}, f.fake.Deleted)

	infs, err := f.svc.ListInfractions(ctx, guildID, 42, 0)
	require.NoError(t, err)
	require.Len(t, infs, 1)
	assert.Equal(t, models.InfractionTimeout, infs[0].Kind)
	assert.Equal(t, SpamReason, infs[0].Reason)
	assert.Nil(t, infs[0].ModID)

	require.Len(t, f.fake.Notices, 1)
	assert.Contains(t, f.fake.Notices[0].Text, "10 min")
}

func TestSpamTimeoutClampedToPlatformLimit(t *testing.T) {
	f := setup(t, func(c *models.GuildConfig) { c.SpamTimeoutMin = 120 })
	f.fake.MaxTimeoutValue = time.Hour
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		_, err := f.eng.Evaluate(ctx, message(i, "hi"))
		require.NoError(t, err)
	}
	require.Len(t, f.fake.Timeouts, 1)
	assert.Equal(t, time.Hour, f.fake.Timeouts[0].Duration)
}

func TestSpamWindowExpires(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	for i := int64(1); i <= 8; i++ {
		act, err := f.eng.Evaluate(ctx, message(i, "hi"))
		require.NoError(t, err)
		assert.Equal(t, ActionNone, act)
		f.clock.Advance(time.Second)
	}
	assert.Zero(t, f.fake.TimeoutCount())
}

func TestSpamExemptsModerators(t *testing.T) {
	f := setup(t, nil)
	for i := int64(1); i <= 10; i++ {
		msg := message(i, "hi")
		msg.AuthorCanManageMessages = true
		act, err := f.eng.Evaluate(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, ActionNone, act)
	}
	assert.Zero(t, f.fake.TimeoutCount())
}

func TestSpamTimeoutFailure(t *testing.T) {
	f := setup(t, nil)
	f.fake.TimeoutErr = errors.New("missing permissions")
	ctx := context.Background()

	var last Action
	for i := int64(1); i <= 5; i++ {
		act, err := f.eng.Evaluate(ctx, message(i, "hi"))
		require.NoError(t, err)
		last = act
	}
	assert.Equal(t, ActionDeletedTimeout, last)

	infs, err := f.svc.ListInfractions(ctx, guildID, 42, 0)
	require.NoError(t, err)
	assert.Empty(t, infs)

	notices := f.fake.NoticeTexts()
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0], "missing permissions")
}

func TestDisabledAutomodIsNoop(t *testing.T) {
	f := setup(t, func(c *models.GuildConfig) {
		c.AutomodEnabled = false
		c.AntiLink = true
	})
	for i := int64(1); i <= 10; i++ {
		act, err := f.eng.Evaluate(context.Background(), message(i, "discord.gg/x https://x.y"))
		require.NoError(t, err)
		assert.Equal(t, ActionNone, act)
	}
	assert.Zero(t, f.fake.DeletedCount())
	assert.Empty(t, f.fake.Notices)
}

func TestNoModlogNoNotice(t *testing.T) {
	f := setup(t, nil)
	_, err := f.svc.UpdateConfig(context.Background(), guildID, func(c *models.GuildConfig) error {
		c.ModlogChannelID = nil
		return nil
	})
	require.NoError(t, err)

	act, err := f.eng.Evaluate(context.Background(), message(1, "discord.gg/x"))
	require.NoError(t, err)
	assert.Equal(t, ActionDeleted, act)
	assert.Empty(t, f.fake.Notices)
}

func TestSlowPlatformIsBounded(t *testing.T) {
	f := setup(t, nil)
	f.fake.Delay = time.Hour

	start := time.Now()
	act, err := f.eng.Evaluate(context.Background(), message(1, "discord.gg/x"))
	require.NoError(t, err)
	assert.Equal(t, ActionDeleted, act)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Zero(t, f.fake.DeletedCount())
}

type panickyStore struct{}

func (panickyStore) GetConfig(context.Context, int64) (models.GuildConfig, error) {
	panic("store exploded")
}

func (panickyStore) AppendInfraction(context.Context, *models.Infraction) error { return nil }

func TestPanicIsRecovered(t *testing.T) {
	eng := NewEngine(nil, panickyStore{}, spamwindow.NewMemoryTracker(), platformtest.New(), nil, 0)
	act, err := eng.Evaluate(context.Background(), message(1, "hi"))
	assert.Error(t, err)
	assert.Equal(t, ActionNone, act)
}
