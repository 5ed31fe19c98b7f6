package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// RedisLimiter is a fixed-window counter shared by every instance that
// talks to the same Redis.
type RedisLimiter struct {
	client rueidis.Client
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client rueidis.Client, keyPrefix string, perMinute int) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: keyPrefix,
		limit:  int64(perMinute),
		window: time.Minute,
		now:    time.Now,
	}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowSec := int64(r.window / time.Second)
	k := fmt.Sprintf("%s:%s:%d", r.prefix, key, r.now().Unix()/windowSec)

	resps := r.client.DoMulti(ctx,
		r.client.B().Incr().Key(k).Build(),
		r.client.B().Expire().Key(k).Seconds(windowSec).Build(),
	)

	count, err := resps[0].AsInt64()
	if err != nil {
		return false, err
	}
	if err := resps[1].Error(); err != nil {
		return false, err
	}

	return count <= r.limit, nil
}
