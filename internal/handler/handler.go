// Package handler runs every inbound message through automod and the command
// dispatcher with bounded concurrency.
package handler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"leviathan/internal/automod"
	"leviathan/internal/command"
	"leviathan/internal/config"
	"leviathan/internal/crash"
	"leviathan/internal/platform"
)

// Evaluator is the automod side of the pipeline.
type Evaluator interface {
	Evaluate(ctx context.Context, msg platform.Message) (automod.Action, error)
}

// Dispatcher executes parsed commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, inv command.Invocation, cmd command.Command) (command.Reply, error)
}

// Handler implements platform.MessageHandler.
type Handler struct {
	Logger   *zap.Logger
	Prefix   string
	Automod  Evaluator
	Commands Dispatcher
	Platform platform.Adapter

	timeout time.Duration
	sem     chan struct{}
	wg      sync.WaitGroup
	active  atomic.Int64
	stats   counters
}

var _ platform.MessageHandler = (*Handler)(nil)

func New(cfg config.BotConfig, logger *zap.Logger, eval Evaluator, disp Dispatcher, adapter platform.Adapter) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.MaxConcurrentMessages
	if limit <= 0 {
		limit = 100
	}
	timeout := cfg.MessageTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Handler{
		Logger:   logger,
		Prefix:   cfg.Prefix,
		Automod:  eval,
		Commands: disp,
		Platform: adapter,
		timeout:  timeout,
		sem:      make(chan struct{}, limit),
	}
}

// HandleMessage queues msg for processing and returns once a slot is taken.
// It blocks while the handler is saturated and gives up when ctx is done.
func (h *Handler) HandleMessage(ctx context.Context, msg platform.Message) {
	if msg.AuthorIsBot || msg.GuildID == 0 {
		messagesTotal.WithLabelValues("skipped").Inc()
		return
	}

	select {
	case h.sem <- struct{}{}:
	case <-ctx.Done():
		h.stats.dropped.Add(1)
		messagesTotal.WithLabelValues("dropped").Inc()
		h.Logger.Warn("dropping message, handler saturated", zap.Int64("message", msg.ID))
		return
	}

	h.wg.Add(1)
	h.active.Add(1)
	activeHandlers.Inc()
	go func() {
		defer func() {
			<-h.sem
			h.active.Add(-1)
			activeHandlers.Dec()
			h.wg.Done()
		}()
		h.process(context.WithoutCancel(ctx), msg)
	}()
}

// Wait blocks until every queued message has been processed.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) process(parent context.Context, msg platform.Message) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, h.timeout)
	defer cancel()

	var err error
	defer func() {
		if err != nil {
			h.stats.errors.Add(1)
			messageErrors.Inc()
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			h.stats.timeouts.Add(1)
			h.Logger.Warn("message processing timed out", zap.Int64("message", msg.ID), zap.Duration("elapsed", time.Since(start)))
		}
		processingDuration.Observe(time.Since(start).Seconds())
	}()
	defer crash.RecoverToError("handler", &err)

	h.stats.messages.Add(1)

	act, evalErr := h.Automod.Evaluate(ctx, msg)
	if evalErr != nil {
		h.Logger.Error("automod evaluation failed", zap.Int64("guild", msg.GuildID), zap.Int64("message", msg.ID), zap.Error(evalErr))
		err = evalErr
	}
	if act != automod.ActionNone {
		h.stats.actions.Add(1)
		messagesTotal.WithLabelValues("automod").Inc()
		return
	}

	cmd, parseErr := command.Parse(h.Prefix, msg.Content)
	if errors.Is(parseErr, command.ErrNotCommand) || errors.Is(parseErr, command.ErrUnknownCommand) {
		messagesTotal.WithLabelValues("plain").Inc()
		return
	}

	h.stats.commands.Add(1)
	messagesTotal.WithLabelValues("command").Inc()

	var usage *command.UsageError
	if errors.As(parseErr, &usage) {
		h.reply(ctx, msg.ChannelID, usage.Error())
		return
	}

	inv := command.Invocation{
		GuildID:        msg.GuildID,
		ChannelID:      msg.ChannelID,
		AuthorID:       msg.AuthorID,
		CanModerate:    msg.AuthorCanModerate,
		CanManageGuild: msg.AuthorCanManageGuild,
	}
	reply, dispatchErr := h.Commands.Dispatch(ctx, inv, cmd)
	if dispatchErr != nil && !errors.Is(dispatchErr, command.ErrPermissionDenied) {
		h.Logger.Info("command failed", zap.String("command", cmd.Name()), zap.Int64("guild", msg.GuildID), zap.Error(dispatchErr))
	}
	h.reply(ctx, msg.ChannelID, reply.Text)
}

func (h *Handler) reply(ctx context.Context, channelID int64, text string) {
	if text == "" {
		return
	}
	if err := h.Platform.SendNotice(ctx, channelID, text); err != nil {
		h.Logger.Warn("failed to send reply", zap.Int64("channel", channelID), zap.Error(err))
	}
}
