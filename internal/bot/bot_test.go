package bot

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leviathan/internal/config"
	"leviathan/internal/models"
	"leviathan/internal/spamwindow"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Bot.Token = "discord-token"
	cfg.Database.Path = ":memory:"
	cfg.API.AdminKey = "secret"
	return cfg
}

func initialize(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := Initialize(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := app.db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return app
}

func TestInitializeDiscord(t *testing.T) {
	app := initialize(t, testConfig())

	assert.Equal(t, "discord", app.Adapter.Name())
	assert.NotNil(t, app.memory)
	require.NotNil(t, app.Server)

	rec := httptest.NewRecorder()
	app.Server.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/info", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/config/1", nil)
	req.Header.Set("X-Admin-Key", "secret")
	rec = httptest.NewRecorder()
	app.Server.server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInitializeWithoutAPI(t *testing.T) {
	cfg := testConfig()
	cfg.API.Enabled = false
	app := initialize(t, cfg)
	assert.Nil(t, app.Server)
}

func TestInitializeTelegramWebhookNeedsServer(t *testing.T) {
	cfg := testConfig()
	cfg.Bot.Platform = config.PlatformTelegram
	cfg.Bot.Token = "123456789:AAHfiqksKZ8WmR2zSjiQ7_v4TMAKdiHm9T0"
	cfg.Bot.Webhook.Endpoint = "https://bot.example.com/telegram"
	cfg.API.Enabled = false

	app := initialize(t, cfg)
	assert.Equal(t, "telegram", app.Adapter.Name())
	assert.NotNil(t, app.Server)
}

func TestInitializeRedisTracker(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Automod.SpamBackend = config.SpamBackendRedis
	cfg.Redis.URL = "redis://" + mr.Addr()

	app := initialize(t, cfg)
	rt, ok := app.tracker.(*spamwindow.RedisTracker)
	require.True(t, ok)
	assert.Nil(t, app.memory)
	require.NoError(t, rt.Close())
}

func TestInitializeErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Bot.Token = ""
	_, err := Initialize(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Bot.Platform = "matrix"
	_, err = Initialize(context.Background(), cfg)
	assert.Error(t, err)
}

func TestSweepMaxAge(t *testing.T) {
	assert.Equal(t, models.MaxSpamInterval, sweepMaxAge(time.Minute))
	assert.Equal(t, 2*time.Hour, sweepMaxAge(2*time.Hour))
}

func TestSweepKeepsLongSpamWindows(t *testing.T) {
	tr := spamwindow.NewMemoryTracker()
	ctx := context.Background()
	key := spamwindow.Key{CommunityID: 1, AuthorID: 2}
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	interval := 120 * time.Second

	hit, err := tr.RecordAndCheck(ctx, key, start, interval, 3)
	require.NoError(t, err)
	assert.False(t, hit)

	assert.Zero(t, tr.Sweep(start.Add(70*time.Second), sweepMaxAge(time.Minute)))

	hit, err = tr.RecordAndCheck(ctx, key, start.Add(100*time.Second), interval, 3)
	require.NoError(t, err)
	assert.False(t, hit)
	hit, err = tr.RecordAndCheck(ctx, key, start.Add(110*time.Second), interval, 3)
	require.NoError(t, err)
	assert.True(t, hit, "third message inside the window")
}

func TestRunReturnsServerError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig()
	cfg.API.Listen = ln.Addr().String()
	app := initialize(t, cfg)
	app.connect = func(ctx context.Context) error { return nil }

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = app.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http server")
	assert.NoError(t, ctx.Err(), "returned before the deadline")
}
