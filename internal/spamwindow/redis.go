package spamwindow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var redisWindowPrefix = "spam/"

// RedisTracker keeps each window as a sorted set scored by microsecond
// timestamps, so several bot processes can share one view of a burst.
type RedisTracker struct {
	Client *redis.Client
}

func NewRedisTracker(redisURL string) (*RedisTracker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
		return nil, err
	}
	return &RedisTracker{Client: rdb}, nil
}

func (r *RedisTracker) RecordAndCheck(ctx context.Context, key Key, now time.Time, interval time.Duration, burst int) (bool, error) {
	k := redisWindowPrefix + key.String()
	cutoff := now.Add(-interval).UnixMicro()

	var card *redis.IntCmd
	// prune, append, count and refresh the TTL in one MULTI
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, k, "-inf", "("+strconv.FormatInt(cutoff, 10))
		pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMicro()), Member: uuid.NewString()})
		card = pipe.ZCard(ctx, k)
		pipe.PExpire(ctx, k, interval+time.Second)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to record spam window %s: %w", k, err)
	}

	return card.Val() >= int64(burst), nil
}

func (r *RedisTracker) Close() error {
	return r.Client.Close()
}
