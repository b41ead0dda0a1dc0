package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, max int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "rltest", max, window), mr
}

func TestHitWithinBudget(t *testing.T) {
	l, _ := newTestLimiter(t, 3, 15*time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Hit(ctx, "a@x.com"); err != nil {
			t.Fatalf("hit %d: %v", i+1, err)
		}
	}
	if err := l.Hit(ctx, "a@x.com"); !errors.Is(err, ErrLimited) {
		t.Fatalf("got %v, want ErrLimited on hit 4", err)
	}
}

func TestHitKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, 1, 15*time.Minute)
	ctx := context.Background()

	if err := l.Hit(ctx, "a@x.com"); err != nil {
		t.Fatalf("Hit: %v", err)
	}
	if err := l.Hit(ctx, "b@x.com"); err != nil {
		t.Fatalf("other key limited: %v", err)
	}
}

func TestHitCaseInsensitiveKeys(t *testing.T) {
	l, _ := newTestLimiter(t, 1, 15*time.Minute)
	ctx := context.Background()

	if err := l.Hit(ctx, "A@X.com"); err != nil {
		t.Fatalf("Hit: %v", err)
	}
	if err := l.Hit(ctx, "a@x.com"); !errors.Is(err, ErrLimited) {
		t.Fatalf("got %v, want ErrLimited for same address in other case", err)
	}
}

func TestWindowExpiry(t *testing.T) {
	l, mr := newTestLimiter(t, 1, 15*time.Minute)
	ctx := context.Background()

	if err := l.Hit(ctx, "a@x.com"); err != nil {
		t.Fatalf("Hit: %v", err)
	}
	if err := l.Hit(ctx, "a@x.com"); !errors.Is(err, ErrLimited) {
		t.Fatalf("got %v, want ErrLimited", err)
	}

	mr.FastForward(16 * time.Minute)

	if err := l.Hit(ctx, "a@x.com"); err != nil {
		t.Fatalf("hit after window elapsed: %v", err)
	}
}

func TestRemaining(t *testing.T) {
	l, _ := newTestLimiter(t, 3, 15*time.Minute)
	ctx := context.Background()

	remaining, err := l.Remaining(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 3 {
		t.Fatalf("fresh key remaining = %d, want 3", remaining)
	}

	_ = l.Hit(ctx, "a@x.com")
	_ = l.Hit(ctx, "a@x.com")

	remaining, err = l.Remaining(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("remaining = %d, want 1", remaining)
	}
}

func TestReset(t *testing.T) {
	l, _ := newTestLimiter(t, 1, 15*time.Minute)
	ctx := context.Background()

	_ = l.Hit(ctx, "a@x.com")
	if err := l.Reset(ctx, "a@x.com"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := l.Hit(ctx, "a@x.com"); err != nil {
		t.Fatalf("hit after reset: %v", err)
	}
}

func TestDisabledLimiter(t *testing.T) {
	l, _ := newTestLimiter(t, 0, time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := l.Hit(ctx, "a@x.com"); err != nil {
			t.Fatalf("disabled limiter returned %v", err)
		}
	}
}
