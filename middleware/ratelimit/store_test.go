package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/tech-arch1tect/resetkit/testutils"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	clock := testutils.NewClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	store := newMemoryStore(clock.Now)

	count, _, err := store.Get(ctx, "ip")
	if err != nil || count != 0 {
		t.Fatalf("expected empty window, got %d, %v", count, err)
	}

	for i := 1; i <= 3; i++ {
		count, reset, err := store.Increment(ctx, "ip", time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != i {
			t.Errorf("expected count %d, got %d", i, count)
		}
		if !reset.Equal(clock.Now().Add(time.Minute)) {
			t.Errorf("window should start at the first hit, got reset %v", reset)
		}
	}

	clock.Advance(time.Minute)

	count, _, _ = store.Get(ctx, "ip")
	if count != 0 {
		t.Errorf("expected window to have closed, got %d", count)
	}

	count, _, _ = store.Increment(ctx, "ip", time.Minute)
	if count != 1 {
		t.Errorf("expected a fresh window, got %d", count)
	}

	if err := store.Reset(ctx, "ip"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	count, _, _ = store.Get(ctx, "ip")
	if count != 0 {
		t.Errorf("expected reset key to be empty, got %d", count)
	}
}

func TestMemoryStore_Decrement(t *testing.T) {
	ctx := context.Background()
	clock := testutils.NewClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	store := newMemoryStore(clock.Now)

	if err := store.Decrement(ctx, "ip"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count, _, _ := store.Get(ctx, "ip"); count != 0 {
		t.Errorf("decrement must not start a window, got %d", count)
	}

	store.Increment(ctx, "ip", time.Minute)
	store.Increment(ctx, "ip", time.Minute)
	store.Decrement(ctx, "ip")
	if count, _, _ := store.Get(ctx, "ip"); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	store.Decrement(ctx, "ip")
	store.Decrement(ctx, "ip")
	if count, _, _ := store.Get(ctx, "ip"); count != 0 {
		t.Errorf("expected count to stop at 0, got %d", count)
	}
}

func TestMemoryStore_RemoveExpired(t *testing.T) {
	ctx := context.Background()
	clock := testutils.NewClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	store := newMemoryStore(clock.Now)

	store.Increment(ctx, "short", time.Second)
	store.Increment(ctx, "long", time.Hour)
	clock.Advance(time.Minute)

	store.removeExpired()

	if _, ok := store.data["short"]; ok {
		t.Error("expected expired entry to be removed")
	}
	if _, ok := store.data["long"]; !ok {
		t.Error("expected live entry to be kept")
	}
}

func TestMemoryStore_Close(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second close should be a no-op: %v", err)
	}
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client, mr := testutils.SetupTestRedis(t)
	store := NewRedisStore(client, "test:")

	count, reset, err := store.Get(ctx, "ip")
	if err != nil || count != 0 || !reset.IsZero() {
		t.Fatalf("expected empty window, got %d, %v, %v", count, reset, err)
	}

	for i := 1; i <= 3; i++ {
		count, _, err := store.Increment(ctx, "ip", time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != i {
			t.Errorf("expected count %d, got %d", i, count)
		}
	}

	if ttl := mr.TTL("test:ip"); ttl != time.Minute {
		t.Errorf("expected the first hit to set a one minute window, got %v", ttl)
	}

	count, reset, err = store.Get(ctx, "ip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}
	if reset.Before(time.Now()) {
		t.Errorf("expected reset time in the future, got %v", reset)
	}

	mr.FastForward(time.Minute)

	count, _, _ = store.Get(ctx, "ip")
	if count != 0 {
		t.Errorf("expected window to have closed, got %d", count)
	}

	store.Increment(ctx, "ip", time.Minute)
	if err := store.Reset(ctx, "ip"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mr.Exists("test:ip") {
		t.Error("expected key to be deleted")
	}
}

func TestRedisStore_Decrement(t *testing.T) {
	ctx := context.Background()
	client, mr := testutils.SetupTestRedis(t)
	store := NewRedisStore(client, "test:")

	if err := store.Decrement(ctx, "ip"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mr.Exists("test:ip") {
		t.Error("decrement must not create a key")
	}

	store.Increment(ctx, "ip", time.Minute)
	store.Increment(ctx, "ip", time.Minute)
	if err := store.Decrement(ctx, "ip"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count, _, _ := store.Get(ctx, "ip"); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}
	if ttl := mr.TTL("test:ip"); ttl != time.Minute {
		t.Errorf("decrement must keep the window, got ttl %v", ttl)
	}

	store.Decrement(ctx, "ip")
	store.Decrement(ctx, "ip")
	if count, _, _ := store.Get(ctx, "ip"); count != 0 {
		t.Errorf("expected count to stop at 0, got %d", count)
	}
}

func TestRedisStore_Unavailable(t *testing.T) {
	client, mr := testutils.SetupTestRedis(t)
	store := NewRedisStore(client, "test:")
	mr.Close()

	if _, _, err := store.Increment(context.Background(), "ip", time.Minute); err == nil {
		t.Error("expected an error from a closed server")
	}
	if _, _, err := store.Get(context.Background(), "ip"); err == nil {
		t.Error("expected an error from a closed server")
	}
}
