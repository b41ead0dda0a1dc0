// Package rate implements a fixed-window counter over Redis. The engine
// uses it to bound password-reset code issuance per address and, when
// configured, signin attempts per client IP.
package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLimited is returned when the window's budget is exhausted.
var ErrLimited = errors.New("rate limited")

// ErrRedisUnavailable wraps transport and server failures from Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Limiter counts hits per key in fixed windows. A zero Max disables
// limiting entirely.
type Limiter struct {
	client redis.UniversalClient
	prefix string
	max    int
	window time.Duration
}

// New creates a Limiter allowing max hits per window under the given key
// prefix.
func New(client redis.UniversalClient, prefix string, max int, window time.Duration) *Limiter {
	if prefix == "" {
		prefix = "agrl"
	}
	return &Limiter{client: client, prefix: prefix, max: max, window: window}
}

func (l *Limiter) key(id string) string {
	return l.prefix + ":" + strings.ToLower(id)
}

// Hit records one hit for id and returns ErrLimited when the post-increment
// count exceeds the budget. The window TTL starts on the first hit only.
func (l *Limiter) Hit(ctx context.Context, id string) error {
	if l == nil || l.max <= 0 {
		return nil
	}

	key := l.key(id)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	if count > int64(l.max) {
		return ErrLimited
	}
	return nil
}

// Remaining returns the hits left in the current window. Missing keys
// report the full budget.
func (l *Limiter) Remaining(ctx context.Context, id string) (int, error) {
	if l == nil || l.max <= 0 {
		return 0, nil
	}

	count, err := l.client.Get(ctx, l.key(id)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return l.max, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	remaining := l.max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears the window for id.
func (l *Limiter) Reset(ctx context.Context, id string) error {
	if l == nil || l.max <= 0 {
		return nil
	}
	if err := l.client.Del(ctx, l.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
