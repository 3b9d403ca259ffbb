package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client, 30*time.Minute)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	if _, ok, err := store.Load(ctx, "sess-1"); err != nil || ok {
		t.Fatalf("expected no record, got ok=%v err=%v", ok, err)
	}

	if err := store.SaveActivity(ctx, "sess-1", at); err != nil {
		t.Fatalf("save activity: %v", err)
	}
	rec, ok, err := store.Load(ctx, "sess-1")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if !rec.LastActivity.Equal(at) {
		t.Errorf("last activity = %v, want %v", rec.LastActivity, at)
	}
	if rec.WarningShown {
		t.Error("fresh record should not have the warning flag")
	}
}

func TestRedisStoreWarningFlagLifecycle(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	if err := store.SaveActivity(ctx, "sess-1", at); err != nil {
		t.Fatalf("save activity: %v", err)
	}
	if err := store.MarkWarned(ctx, "sess-1"); err != nil {
		t.Fatalf("mark warned: %v", err)
	}
	rec, _, err := store.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !rec.WarningShown {
		t.Fatal("warning flag should be set")
	}

	// New activity clears the flag in the same write.
	if err := store.SaveActivity(ctx, "sess-1", at.Add(time.Minute)); err != nil {
		t.Fatalf("save activity: %v", err)
	}
	rec, _, err = store.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.WarningShown {
		t.Fatal("activity should clear the warning flag")
	}
}

func TestRedisStoreClearRemovesAllFields(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	if err := store.SaveActivity(ctx, "sess-1", time.Now().UTC()); err != nil {
		t.Fatalf("save activity: %v", err)
	}
	if err := store.MarkWarned(ctx, "sess-1"); err != nil {
		t.Fatalf("mark warned: %v", err)
	}
	if err := store.Clear(ctx, "sess-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := store.Load(ctx, "sess-1"); ok {
		t.Fatal("record should be gone after clear")
	}
}
