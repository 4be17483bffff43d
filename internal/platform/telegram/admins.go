package telegram

import (
	"context"
	"time"

	"github.com/mymmrac/telego"
	"github.com/puzpuzpuz/xsync/v3"
)

// rights are the privileges the core checks, derived from admin flags.
type rights struct {
	manageMessages bool
	moderate       bool
	manageGuild    bool
}

func rightsOf(member telego.ChatMember) rights {
	switch m := member.(type) {
	case *telego.ChatMemberOwner:
		return rights{manageMessages: true, moderate: true, manageGuild: true}
	case *telego.ChatMemberAdministrator:
		return rights{
			manageMessages: m.CanDeleteMessages,
			moderate:       m.CanRestrictMembers,
			manageGuild:    m.CanChangeInfo,
		}
	}
	return rights{}
}

type adminEntry struct {
	rights  map[int64]rights
	expires time.Time
}

type adminLoader func(ctx context.Context, chatID int64) (map[int64]rights, error)

// adminCache keeps each chat's administrator list for ttl.
type adminCache struct {
	ttl     time.Duration
	now     func() time.Time
	load    adminLoader
	entries *xsync.MapOf[int64, adminEntry]
}

func newAdminCache(ttl time.Duration, load adminLoader) *adminCache {
	return &adminCache{
		ttl:     ttl,
		now:     time.Now,
		load:    load,
		entries: xsync.NewMapOf[int64, adminEntry](),
	}
}

// lookup returns the user's rights in chatID. A failed load keeps serving the
// stale list if there is one.
func (c *adminCache) lookup(ctx context.Context, chatID, userID int64) (rights, error) {
	now := c.now()
	entry, ok := c.entries.Load(chatID)
	if ok && now.Before(entry.expires) {
		return entry.rights[userID], nil
	}

	loaded, err := c.load(ctx, chatID)
	if err != nil {
		if ok {
			return entry.rights[userID], err
		}
		return rights{}, err
	}
	c.entries.Store(chatID, adminEntry{rights: loaded, expires: now.Add(c.ttl)})
	return loaded[userID], nil
}
