// Package api serves the admin HTTP API.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"leviathan/internal/command"
	"leviathan/internal/duration"
	"leviathan/internal/giveaway"
	"leviathan/internal/handler"
	"leviathan/internal/logger"
	"leviathan/internal/models"
	"leviathan/internal/moderation"
	"leviathan/internal/platform"
	"leviathan/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// KeyHeader carries the shared admin key.
const KeyHeader = "X-Admin-Key"

// Store is the service surface the API reads and writes.
type Store interface {
	GetConfig(ctx context.Context, guildID int64) (models.GuildConfig, error)
	UpdateConfig(ctx context.Context, guildID int64, mutate func(*models.GuildConfig) error) (models.GuildConfig, error)
	ListInfractions(ctx context.Context, guildID, userID int64, limit int) ([]models.Infraction, error)
	Stats(ctx context.Context) (service.Stats, error)
}

// StatusSource reports message pipeline counters.
type StatusSource interface {
	Stats() handler.ProcessingStats
}

type Server struct {
	Logger    *zap.Logger
	Key       string
	Store     Store
	Moderator *moderation.Moderator
	Platform  platform.Adapter
	Status    StatusSource
	// LogLines returns the recent log buffer, oldest first.
	LogLines func() []string
}

func New(log *zap.Logger, key string, store Store, mod *moderation.Moderator, adapter platform.Adapter, status StatusSource) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		Logger:    log,
		Key:       key,
		Store:     store,
		Moderator: mod,
		Platform:  adapter,
		Status:    status,
		LogLines:  logger.RecentLines,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer, s.instrument)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireKey)

		r.Get("/info", s.info)
		r.Get("/logs", s.logs)
		r.Get("/config/{guildID}", s.getConfig)
		r.Patch("/config/{guildID}", s.patchConfig)
		r.Get("/infractions/{guildID}/{userID}", s.listInfractions)
		r.Post("/moderation/{guildID}", s.moderate)
		r.Post("/giveaways", s.createGiveaway)
	})

	return r
}

func (s *Server) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(KeyHeader)
		if got == "" || s.Key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.Key)) != 1 {
			writeError(w, http.StatusForbidden, "invalid admin key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type infoResponse struct {
	BotConnected  bool                    `json:"bot_connected"`
	Platform      string                  `json:"platform"`
	Guilds        int                     `json:"guilds"`
	Uptime        string                  `json:"uptime"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Storage       service.Stats           `json:"storage"`
	Processing    handler.ProcessingStats `json:"processing"`
}

func (s *Server) info(w http.ResponseWriter, r *http.Request) {
	st, err := s.Store.Stats(r.Context())
	if err != nil {
		s.Logger.Error("failed to collect storage stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}
	proc := s.Status.Stats()
	writeJSON(w, http.StatusOK, infoResponse{
		BotConnected:  s.Platform.Connected(),
		Platform:      s.Platform.Name(),
		Guilds:        s.Platform.Communities(),
		Uptime:        strconv.FormatInt(proc.UptimeSeconds, 10) + "s",
		UptimeSeconds: proc.UptimeSeconds,
		Storage:       st,
		Processing:    proc,
	})
}

func (s *Server) logs(w http.ResponseWriter, r *http.Request) {
	lines := s.LogLines()
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, lines)
}

// configView renders ids as strings so JavaScript clients keep precision.
type configView struct {
	GuildID         string  `json:"guild_id"`
	ModlogChannelID *string `json:"modlog_channel_id"`
	Language        string  `json:"language"`
	AutomodEnabled  bool    `json:"automod_enabled"`
	AntiInvite      bool    `json:"anti_invite"`
	AntiLink        bool    `json:"anti_link"`
	AntiCaps        bool    `json:"anti_caps"`
	CapsThreshold   int     `json:"caps_threshold"`
	SpamIntervalSec float64 `json:"spam_interval_sec"`
	SpamBurst       int     `json:"spam_burst"`
	SpamTimeoutMin  int     `json:"spam_timeout_min"`
}

func newConfigView(c models.GuildConfig) configView {
	v := configView{
		GuildID:         strconv.FormatInt(c.GuildID, 10),
		Language:        c.Language,
		AutomodEnabled:  c.AutomodEnabled,
		AntiInvite:      c.AntiInvite,
		AntiLink:        c.AntiLink,
		AntiCaps:        c.AntiCaps,
		CapsThreshold:   c.CapsThreshold,
		SpamIntervalSec: c.SpamIntervalSec,
		SpamBurst:       c.SpamBurst,
		SpamTimeoutMin:  c.SpamTimeoutMin,
	}
	if c.ModlogChannelID != nil {
		id := strconv.FormatInt(*c.ModlogChannelID, 10)
		v.ModlogChannelID = &id
	}
	return v
}

// configPatch lists the fields a PATCH may change. Absent fields are kept.
type configPatch struct {
	AutomodEnabled  *bool    `json:"automod_enabled"`
	AntiInvite      *bool    `json:"anti_invite"`
	AntiLink        *bool    `json:"anti_link"`
	AntiCaps        *bool    `json:"anti_caps"`
	CapsThreshold   *int     `json:"caps_threshold"`
	SpamIntervalSec *float64 `json:"spam_interval_sec"`
	SpamBurst       *int     `json:"spam_burst"`
	SpamTimeoutMin  *int     `json:"spam_timeout_min"`
	// ModlogChannelID is an id string; an empty string clears it.
	ModlogChannelID *string `json:"modlog_channel_id"`
	Language        *string `json:"language"`
}

func (p configPatch) apply(c *models.GuildConfig) error {
	if p.AutomodEnabled != nil {
		c.AutomodEnabled = *p.AutomodEnabled
	}
	if p.AntiInvite != nil {
		c.AntiInvite = *p.AntiInvite
	}
	if p.AntiLink != nil {
		c.AntiLink = *p.AntiLink
	}
	if p.AntiCaps != nil {
		c.AntiCaps = *p.AntiCaps
	}
	if p.CapsThreshold != nil {
		c.CapsThreshold = *p.CapsThreshold
	}
	if p.SpamIntervalSec != nil {
		c.SpamIntervalSec = *p.SpamIntervalSec
	}
	if p.SpamBurst != nil {
		c.SpamBurst = *p.SpamBurst
	}
	if p.SpamTimeoutMin != nil {
		c.SpamTimeoutMin = *p.SpamTimeoutMin
	}
	if p.ModlogChannelID != nil {
		raw := strings.TrimSpace(*p.ModlogChannelID)
		if raw == "" {
			c.ModlogChannelID = nil
		} else {
			id, ok := command.ParseChannelMention(raw)
			if !ok {
				return &service.ValidationError{Field: "modlog_channel_id", Reason: "must be a channel id"}
			}
			c.ModlogChannelID = &id
		}
	}
	if p.Language != nil {
		c.Language = strings.ToLower(strings.TrimSpace(*p.Language))
	}
	return nil
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	guildID, ok := idParam(w, r, "guildID")
	if !ok {
		return
	}
	cfg, err := s.Store.GetConfig(r.Context(), guildID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newConfigView(cfg))
}

func (s *Server) patchConfig(w http.ResponseWriter, r *http.Request) {
	guildID, ok := idParam(w, r, "guildID")
	if !ok {
		return
	}
	var patch configPatch
	if !readJSON(w, r, &patch) {
		return
	}
	cfg, err := s.Store.UpdateConfig(r.Context(), guildID, patch.apply)
	if err != nil {
		s.fail(w, err)
		return
	}
	logger.Infof("Panel: config saved guild=%d", guildID)
	writeJSON(w, http.StatusOK, newConfigView(cfg))
}

type infractionView struct {
	ID        uint      `json:"id"`
	UserID    string    `json:"user_id"`
	ModID     *string   `json:"mod_id"`
	Kind      string    `json:"kind"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) listInfractions(w http.ResponseWriter, r *http.Request) {
	guildID, ok := idParam(w, r, "guildID")
	if !ok {
		return
	}
	userID, ok := idParam(w, r, "userID")
	if !ok {
		return
	}
	limit := service.DefaultInfractionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	infs, err := s.Store.ListInfractions(r.Context(), guildID, userID, limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]infractionView, 0, len(infs))
	for _, inf := range infs {
		v := infractionView{
			ID:        inf.ID,
			UserID:    strconv.FormatInt(inf.UserID, 10),
			Kind:      string(inf.Kind),
			Reason:    inf.Reason,
			CreatedAt: inf.CreatedAt.UTC(),
		}
		if inf.ModID != nil {
			mod := strconv.FormatInt(*inf.ModID, 10)
			v.ModID = &mod
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

type moderationRequest struct {
	Action   string `json:"action"`
	Target   string `json:"target"`
	Reason   string `json:"reason"`
	Duration string `json:"duration"`
}

// DefaultPanelTimeout applies when a timeout request names no duration.
const DefaultPanelTimeout = "1h"

func (s *Server) moderate(w http.ResponseWriter, r *http.Request) {
	guildID, ok := idParam(w, r, "guildID")
	if !ok {
		return
	}
	var req moderationRequest
	if !readJSON(w, r, &req) {
		return
	}
	target, ok := command.ParseMention(strings.TrimSpace(req.Target))
	if !ok {
		writeError(w, http.StatusBadRequest, "target must be a user id")
		return
	}
	reason := strings.TrimSpace(req.Reason)
	actor := moderation.PanelActor()
	ctx := r.Context()

	var err error
	switch req.Action {
	case "timeout":
		raw := strings.TrimSpace(req.Duration)
		if raw == "" {
			raw = DefaultPanelTimeout
		}
		var d time.Duration
		if d, err = duration.ParseDuration(raw); err == nil {
			err = s.Moderator.Mute(ctx, guildID, target, actor, d, raw, reason)
		}
	case "untimeout":
		err = s.Moderator.Unmute(ctx, guildID, target, actor, reason)
	case "warn":
		err = s.Moderator.Warn(ctx, guildID, target, actor, reason)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	logger.Infof("Panel: %s guild=%d target=%d", req.Action, guildID, target)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type giveawayRequest struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	Duration  string `json:"duration"`
	Winners   int    `json:"winners"`
	Prize     string `json:"prize"`
}

type giveawayResponse struct {
	ID        uint      `json:"id"`
	MessageID string    `json:"message_id"`
	Winners   int       `json:"winners"`
	EndAt     time.Time `json:"end_at"`
}

func (s *Server) createGiveaway(w http.ResponseWriter, r *http.Request) {
	var req giveawayRequest
	if !readJSON(w, r, &req) {
		return
	}
	guildID, err := strconv.ParseInt(strings.TrimSpace(req.GuildID), 10, 64)
	if err != nil || guildID == 0 {
		writeError(w, http.StatusBadRequest, "invalid guild_id")
		return
	}
	channelID, ok := command.ParseChannelMention(strings.TrimSpace(req.ChannelID))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid channel_id")
		return
	}
	if strings.TrimSpace(req.Prize) == "" {
		writeError(w, http.StatusBadRequest, "prize is required")
		return
	}
	d, err := duration.ParseDuration(req.Duration)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid duration (e.g. 10m, 2h, 1d)")
		return
	}

	exists, err := s.Platform.ChannelExists(r.Context(), guildID, channelID)
	if err != nil {
		s.fail(w, err)
		return
	}
	if !exists {
		writeError(w, http.StatusBadRequest, "channel not found")
		return
	}

	g, err := s.Moderator.StartGiveaway(r.Context(), moderation.GiveawayRequest{
		GuildID:   guildID,
		ChannelID: channelID,
		Duration:  d,
		Winners:   giveaway.ClampWinnerCount(req.Winners),
		Prize:     req.Prize,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, giveawayResponse{
		ID:        g.ID,
		MessageID: strconv.FormatInt(g.MessageID, 10),
		Winners:   g.Winners,
		EndAt:     g.EndAt.UTC(),
	})
}

// fail maps domain errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, duration.ErrInvalidDuration), errors.Is(err, moderation.ErrTimeoutTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.Logger.Error("admin request failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
