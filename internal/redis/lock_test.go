package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestSlotKey(t *testing.T) {
	got := SlotKey(7, "2025-11-10", "09:00:00")
	if got != "lock:slot:7:2025-11-10:09:00:00" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestWithSlotLock_UnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	locker := NewRedisSlotLocker(client, time.Second, time.Second)

	called := false
	err := locker.WithSlotLock(context.Background(), SlotKey(1, "2025-11-10", "09:00:00"), func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrLockUnavailable) {
		t.Fatalf("expected ErrLockUnavailable, got %v", err)
	}
	if errors.Is(err, ErrLockNotAcquired) {
		t.Fatalf("transport failure must not look like a held lock")
	}
	if called {
		t.Fatal("fn must not run when the lock was never taken")
	}
}
