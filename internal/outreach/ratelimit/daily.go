// Package ratelimit enforces the daily outreach send cap.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "outreach:sent:"

// Counter keys expire well after the day ends so a restart never resets
// an exhausted budget, but stale days do not accumulate.
const counterTTL = 48 * time.Hour

// DailyLimiter counts sends per calendar day in Redis, shared across all
// workers. Reserve is an atomic increment-and-check: on overflow the slot is
// released again, so concurrent workers can never overshoot the cap.
type DailyLimiter struct {
	client *redis.Client
	limit  int
	loc    *time.Location
}

// NewDailyLimiter creates a limiter. Days roll over at midnight in loc.
func NewDailyLimiter(client *redis.Client, limit int, loc *time.Location) *DailyLimiter {
	return &DailyLimiter{client: client, limit: limit, loc: loc}
}

// Reserve claims one send slot for now's calendar day. It returns false when
// the day's budget is exhausted.
func (l *DailyLimiter) Reserve(ctx context.Context, now time.Time) (bool, error) {
	key := l.key(now)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("reserve send slot: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, counterTTL).Err(); err != nil {
			return false, fmt.Errorf("expire send counter: %w", err)
		}
	}
	if count > int64(l.limit) {
		if err := l.client.Decr(ctx, key).Err(); err != nil {
			return false, fmt.Errorf("release overflowed send slot: %w", err)
		}
		return false, nil
	}
	return true, nil
}

// Release returns a previously reserved slot, used when a claimed send is
// aborted before reaching the mail server.
func (l *DailyLimiter) Release(ctx context.Context, now time.Time) error {
	if err := l.client.Decr(ctx, l.key(now)).Err(); err != nil {
		return fmt.Errorf("release send slot: %w", err)
	}
	return nil
}

// Used reports how many slots are taken for now's calendar day.
func (l *DailyLimiter) Used(ctx context.Context, now time.Time) (int, error) {
	count, err := l.client.Get(ctx, l.key(now)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("read send counter: %w", err)
	}
	return count, nil
}

// Limit returns the configured daily cap.
func (l *DailyLimiter) Limit() int { return l.limit }

func (l *DailyLimiter) key(now time.Time) string {
	return keyPrefix + now.In(l.loc).Format("2006-01-02")
}
