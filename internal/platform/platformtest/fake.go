// Package platformtest provides an in-memory platform.Adapter for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"leviathan/internal/models"
	"leviathan/internal/platform"
)

type Timeout struct {
	GuildID  int64
	UserID   int64
	Duration time.Duration
	Reason   string
}

type Sent struct {
	ChannelID int64
	Text      string
}

// Fake records every call. Set the *Err fields to make calls fail, and Delay to
// make them block until the context expires.
type Fake struct {
	mu sync.Mutex

	Deleted        []int64
	Notices        []Sent
	Announcements  []Sent
	Directs        []Sent
	Timeouts       []Timeout
	RemovedTimeout []Timeout
	Posted         []*models.Giveaway

	Participants    map[uint][]int64
	MissingChannels map[int64]bool

	DeleteErr       error
	NoticeErr       error
	TimeoutErr      error
	DirectErr       error
	AnnounceErr     error
	ParticipantsErr error
	PostErr         error
	PanicOnFetch    bool

	Delay time.Duration
	// MaxTimeoutValue overrides the default 28 day limit when set.
	MaxTimeoutValue time.Duration

	nextMessageID int64
}

var _ platform.Adapter = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Participants:    map[uint][]int64{},
		MissingChannels: map[int64]bool{},
		nextMessageID:   1000,
	}
}

func (f *Fake) wait(ctx context.Context) error {
	if f.Delay == 0 {
		return nil
	}
	select {
	case <-time.After(f.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.Deleted = append(f.Deleted, messageID)
	return nil
}

func (f *Fake) SendNotice(ctx context.Context, channelID int64, text string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NoticeErr != nil {
		return f.NoticeErr
	}
	f.Notices = append(f.Notices, Sent{ChannelID: channelID, Text: text})
	return nil
}

func (f *Fake) ApplyTimeout(ctx context.Context, guildID, userID int64, d time.Duration, reason string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TimeoutErr != nil {
		return f.TimeoutErr
	}
	f.Timeouts = append(f.Timeouts, Timeout{GuildID: guildID, UserID: userID, Duration: d, Reason: reason})
	return nil
}

func (f *Fake) RemoveTimeout(ctx context.Context, guildID, userID int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TimeoutErr != nil {
		return f.TimeoutErr
	}
	f.RemovedTimeout = append(f.RemovedTimeout, Timeout{GuildID: guildID, UserID: userID, Reason: reason})
	return nil
}

func (f *Fake) SendDirect(ctx context.Context, userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DirectErr != nil {
		return f.DirectErr
	}
	f.Directs = append(f.Directs, Sent{ChannelID: userID, Text: text})
	return nil
}

func (f *Fake) PostGiveaway(ctx context.Context, g *models.Giveaway, lang string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PostErr != nil {
		return 0, f.PostErr
	}
	f.nextMessageID++
	cp := *g
	f.Posted = append(f.Posted, &cp)
	return f.nextMessageID, nil
}

func (f *Fake) ChannelExists(ctx context.Context, guildID, channelID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.MissingChannels[channelID], nil
}

func (f *Fake) FetchParticipants(ctx context.Context, g *models.Giveaway) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PanicOnFetch {
		panic("participants exploded")
	}
	if f.ParticipantsErr != nil {
		return nil, f.ParticipantsErr
	}
	return append([]int64(nil), f.Participants[g.ID]...), nil
}

func (f *Fake) Announce(ctx context.Context, channelID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AnnounceErr != nil {
		return f.AnnounceErr
	}
	f.Announcements = append(f.Announcements, Sent{ChannelID: channelID, Text: text})
	return nil
}

func (f *Fake) Mention(userID int64) string { return fmt.Sprintf("<@%d>", userID) }

func (f *Fake) ChannelMention(channelID int64) string { return fmt.Sprintf("<#%d>", channelID) }

func (f *Fake) MaxTimeout() time.Duration {
	if f.MaxTimeoutValue > 0 {
		return f.MaxTimeoutValue
	}
	return 28 * 24 * time.Hour
}

func (f *Fake) Connected() bool { return true }

func (f *Fake) Communities() int { return 1 }

// Snapshot helpers take the lock so tests can read while handlers run.

func (f *Fake) TimeoutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Timeouts)
}

func (f *Fake) DeletedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Deleted)
}

func (f *Fake) NoticeTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Notices))
	for i, n := range f.Notices {
		out[i] = n.Text
	}
	return out
}

func (f *Fake) DirectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Directs)
}
