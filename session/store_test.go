package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, "agtest")
}

func testSession(id, accountID string) Session {
	now := time.Now()
	return Session{
		ID:        id,
		AccountID: accountID,
		Email:     "a@x.com",
		Role:      0,
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
}

func TestSaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := testSession("sid-1", "acct-1")
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "sid-1", time.Now())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AccountID != "acct-1" || got.Email != "a@x.com" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Get(context.Background(), "nope", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestGetAfterLogicalExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := testSession("sid-1", "acct-1")
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Redis TTL has not fired yet, but the record's own expiry has passed.
	later := sess.ExpiresAt.Add(time.Second)
	if _, err := store.Get(ctx, "sid-1", later); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	// And the stale record is gone for real.
	if _, err := store.Get(ctx, "sid-1", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale record survived: %v", err)
	}
}

func TestSaveRejectsExpired(t *testing.T) {
	store := newTestStore(t)

	sess := testSession("sid-1", "acct-1")
	sess.ExpiresAt = time.Now().Add(-time.Minute)
	if err := store.Save(context.Background(), sess); err == nil {
		t.Fatal("expired session accepted")
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := testSession("sid-1", "acct-1")
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(ctx, "sid-1", "acct-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "sid-1", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound after delete", err)
	}

	// Deleting again is a no-op.
	if err := store.Delete(ctx, "sid-1", "acct-1"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestDeleteAllForAccount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"sid-1", "sid-2", "sid-3"} {
		if err := store.Save(ctx, testSession(id, "acct-1")); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}
	if err := store.Save(ctx, testSession("sid-other", "acct-2")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.DeleteAllForAccount(ctx, "acct-1"); err != nil {
		t.Fatalf("DeleteAllForAccount: %v", err)
	}

	for _, id := range []string{"sid-1", "sid-2", "sid-3"} {
		if _, err := store.Get(ctx, id, time.Now()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("session %s survived logout-all: %v", id, err)
		}
	}
	if _, err := store.Get(ctx, "sid-other", time.Now()); err != nil {
		t.Fatalf("unrelated account's session removed: %v", err)
	}

	ids, err := store.ActiveSessionIDs(ctx, "acct-1")
	if err != nil {
		t.Fatalf("ActiveSessionIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("index not cleared: %v", ids)
	}
}

func TestActiveSessionIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, testSession("sid-1", "acct-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, testSession("sid-2", "acct-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ids, err := store.ActiveSessionIDs(ctx, "acct-1")
	if err != nil {
		t.Fatalf("ActiveSessionIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d ids, want 2", len(ids))
	}
}
