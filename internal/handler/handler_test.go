package handler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leviathan/internal/automod"
	"leviathan/internal/command"
	"leviathan/internal/config"
	"leviathan/internal/platform"
	"leviathan/internal/platform/platformtest"
)

type stubEvaluator struct {
	mu     sync.Mutex
	seen   []int64
	action automod.Action
	err    error
	block  chan struct{}
	panics bool
}

func (s *stubEvaluator) Evaluate(ctx context.Context, msg platform.Message) (automod.Action, error) {
	if s.block != nil {
		<-s.block
	}
	if s.panics {
		panic("rule exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, msg.ID)
	return s.action, s.err
}

func (s *stubEvaluator) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

type stubDispatcher struct {
	mu    sync.Mutex
	calls []command.Command
	invs  []command.Invocation
	reply command.Reply
	err   error
}

func (s *stubDispatcher) Dispatch(ctx context.Context, inv command.Invocation, cmd command.Command) (command.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, cmd)
	s.invs = append(s.invs, inv)
	return s.reply, s.err
}

func newHandler(eval *stubEvaluator, disp *stubDispatcher, limit int) (*Handler, *platformtest.Fake) {
	cfg := config.Defaults().Bot
	cfg.MaxConcurrentMessages = limit
	fake := platformtest.New()
	return New(cfg, nil, eval, disp, fake), fake
}

func msg(id int64, content string) platform.Message {
	return platform.Message{ID: id, ChannelID: 10, GuildID: 1, AuthorID: 42, Content: content}
}

func TestSkipsBotAndGuildless(t *testing.T) {
	eval := &stubEvaluator{}
	h, _ := newHandler(eval, &stubDispatcher{}, 4)
	ctx := context.Background()

	bot := msg(1, "hi")
	bot.AuthorIsBot = true
	h.HandleMessage(ctx, bot)

	dm := msg(2, "hi")
	dm.GuildID = 0
	h.HandleMessage(ctx, dm)

	h.Wait()
	assert.Zero(t, eval.count())
	assert.Zero(t, h.Stats().Messages)
}

func TestPlainMessageGoesToAutomodOnly(t *testing.T) {
	eval := &stubEvaluator{}
	disp := &stubDispatcher{}
	h, fake := newHandler(eval, disp, 4)

	h.HandleMessage(context.Background(), msg(1, "hello there"))
	h.HandleMessage(context.Background(), msg(2, "!dance"))
	h.Wait()

	assert.Equal(t, 2, eval.count())
	assert.Empty(t, disp.calls)
	assert.Empty(t, fake.Notices)
}

func TestCommandRunsAfterAutomod(t *testing.T) {
	eval := &stubEvaluator{}
	disp := &stubDispatcher{reply: command.Reply{Text: "done"}}
	h, fake := newHandler(eval, disp, 4)

	m := msg(1, "!warn <@7> rude")
	m.AuthorCanModerate = true
	h.HandleMessage(context.Background(), m)
	h.Wait()

	assert.Equal(t, 1, eval.count())
	require.Len(t, disp.calls, 1)
	assert.Equal(t, command.WarnCommand{TargetID: 7, Reason: "rude"}, disp.calls[0])
	assert.Equal(t, command.Invocation{GuildID: 1, ChannelID: 10, AuthorID: 42, CanModerate: true}, disp.invs[0])
	require.Len(t, fake.Notices, 1)
	assert.Equal(t, fake.Notices[0], platformtest.Sent{ChannelID: 10, Text: "done"})
	assert.Equal(t, int64(1), h.Stats().Commands)
}

func TestAutomodActionSkipsCommand(t *testing.T) {
	eval := &stubEvaluator{action: automod.ActionDeleted}
	disp := &stubDispatcher{}
	h, _ := newHandler(eval, disp, 4)

	h.HandleMessage(context.Background(), msg(1, "!giveaway 1h 1 discord.gg/free"))
	h.Wait()

	assert.Empty(t, disp.calls)
	assert.Equal(t, int64(1), h.Stats().AutomodActions)
}

func TestUsageErrorIsReplied(t *testing.T) {
	disp := &stubDispatcher{}
	h, fake := newHandler(&stubEvaluator{}, disp, 4)

	h.HandleMessage(context.Background(), msg(1, "!remind later"))
	h.Wait()

	assert.Empty(t, disp.calls)
	require.Len(t, fake.Notices, 1)
	assert.Contains(t, fake.Notices[0].Text, "Usage: !remind")
}

func TestErrorsAndPanicsAreCounted(t *testing.T) {
	h, _ := newHandler(&stubEvaluator{err: errors.New("db down")}, &stubDispatcher{}, 4)
	h.HandleMessage(context.Background(), msg(1, "hi"))
	h.Wait()
	assert.Equal(t, int64(1), h.Stats().Errors)

	h, _ = newHandler(&stubEvaluator{panics: true}, &stubDispatcher{}, 4)
	h.HandleMessage(context.Background(), msg(1, "hi"))
	h.Wait()
	assert.Equal(t, int64(1), h.Stats().Errors)
}

func TestConcurrencyIsBounded(t *testing.T) {
	block := make(chan struct{})
	eval := &stubEvaluator{block: block}
	h, _ := newHandler(eval, &stubDispatcher{}, 2)

	h.HandleMessage(context.Background(), msg(1, "a"))
	h.HandleMessage(context.Background(), msg(2, "b"))

	var queued atomic.Bool
	go func() {
		h.HandleMessage(context.Background(), msg(3, "c"))
		queued.Store(true)
	}()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, queued.Load(), "third message must wait for a slot")
	assert.Equal(t, int64(2), h.Stats().ActiveHandlers)

	close(block)
	assert.Eventually(t, queued.Load, time.Second, 5*time.Millisecond)
	h.Wait()
	assert.Equal(t, 3, eval.count())
}

func TestSaturatedHandlerDropsOnCancel(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	h, _ := newHandler(&stubEvaluator{block: block}, &stubDispatcher{}, 1)

	h.HandleMessage(context.Background(), msg(1, "a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	h.HandleMessage(ctx, msg(2, "b"))
	assert.Equal(t, int64(1), h.Stats().Dropped)
}

func TestDetailedStatus(t *testing.T) {
	eval := &stubEvaluator{}
	h, _ := newHandler(eval, &stubDispatcher{reply: command.Reply{Text: "ok"}}, 4)

	h.HandleMessage(context.Background(), msg(1, "hello"))
	h.HandleMessage(context.Background(), msg(2, "!infractions <@7>"))
	h.Wait()

	status := h.DetailedStatus()
	assert.Contains(t, status, "Messages Processed: 2")
	assert.Contains(t, status, "Commands: 1")
	assert.Contains(t, status, "Active Handlers: 0/4")
}
