package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limit int) (*DailyLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewDailyLimiter(client, limit, time.UTC), mr
}

func TestReserveStopsAtLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3)
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ok, err := limiter.Reserve(ctx, now)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("reservation %d denied under the limit", i+1)
		}
	}

	ok, err := limiter.Reserve(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("reservation beyond the limit was granted")
	}

	used, err := limiter.Used(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if used != 3 {
		t.Errorf("used = %d, want 3 after denied overflow", used)
	}
}

func TestReserveUnderConcurrency(t *testing.T) {
	const limit = 50
	limiter, _ := newTestLimiter(t, limit)
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 120; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := limiter.Reserve(ctx, now)
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	if granted.Load() != limit {
		t.Errorf("granted %d reservations, want exactly %d", granted.Load(), limit)
	}
}

func TestReleaseReturnsSlot(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1)
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	if ok, _ := limiter.Reserve(ctx, now); !ok {
		t.Fatal("first reservation denied")
	}
	if ok, _ := limiter.Reserve(ctx, now); ok {
		t.Fatal("second reservation should be denied")
	}
	if err := limiter.Release(ctx, now); err != nil {
		t.Fatal(err)
	}
	if ok, _ := limiter.Reserve(ctx, now); !ok {
		t.Error("released slot not reusable")
	}
}

func TestBudgetRollsOverPerDay(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1)
	ctx := context.Background()
	today := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)

	if ok, _ := limiter.Reserve(ctx, today); !ok {
		t.Fatal("first reservation denied")
	}
	if ok, _ := limiter.Reserve(ctx, today); ok {
		t.Fatal("today's budget should be exhausted")
	}
	if ok, _ := limiter.Reserve(ctx, tomorrow); !ok {
		t.Error("tomorrow's budget should be fresh")
	}
}

func TestCounterExpires(t *testing.T) {
	limiter, mr := newTestLimiter(t, 5)
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	if ok, _ := limiter.Reserve(ctx, now); !ok {
		t.Fatal("reservation denied")
	}

	mr.FastForward(counterTTL + time.Hour)

	used, err := limiter.Used(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if used != 0 {
		t.Errorf("counter survived its TTL: used = %d", used)
	}
}
