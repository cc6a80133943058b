package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb, 0)
	t.Cleanup(func() { store.Close() })

	return store, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	if err := store.Set(ctx, "pitwall:schedule", []byte(`{"season":"2025"}`), time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := store.Get(ctx, "pitwall:schedule")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"season":"2025"}` {
		t.Errorf("get = %s", got)
	}

	if _, err := store.Get(ctx, "pitwall:absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("absent key: got %v, want ErrNotFound", err)
	}
}

func TestRedisStoreLogicalExpiry(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	current := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	if err := store.Set(ctx, "pitwall:next-race", []byte(`"monza"`), 10*time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	current = current.Add(11 * time.Minute)

	if _, err := store.Get(ctx, "pitwall:next-race"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired get: got %v, want ErrNotFound", err)
	}
	if _, err := store.GetStale(ctx, "pitwall:next-race"); !errors.Is(err, ErrNotFound) {
		t.Errorf("validating read should have deleted the entry, got %v", err)
	}
}

func TestRedisStoreRetainsStaleEntries(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	if err := store.Set(ctx, "pitwall:standings", []byte(`["VER"]`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	// Past the logical TTL but inside the retention window the envelope
	// must still be readable for the stale-fallback path.
	mr.FastForward(time.Hour)

	entry, err := store.GetStale(ctx, "pitwall:standings")
	if err != nil {
		t.Fatalf("stale read inside retention: %v", err)
	}
	if string(entry.Data) != `["VER"]` {
		t.Errorf("stale data = %s", entry.Data)
	}

	// Past retention Redis drops the key entirely.
	mr.FastForward(DefaultRetention)

	if _, err := store.GetStale(ctx, "pitwall:standings"); !errors.Is(err, ErrNotFound) {
		t.Errorf("entry survived retention window: %v", err)
	}
}

func TestRedisStoreClearScansNamespace(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	for _, key := range []string{"paddock:q_1", "paddock:q_2", "paddock:q_3", "pitwall:schedule"} {
		if err := store.Set(ctx, key, []byte(`1`), time.Hour); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}

	removed, err := store.Clear(ctx, Keyspace("paddock"))
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if removed != 3 {
		t.Errorf("clear removed %d, want 3", removed)
	}

	if _, err := store.Get(ctx, "pitwall:schedule"); err != nil {
		t.Errorf("other namespace touched: %v", err)
	}

	stats, err := store.Stats(ctx, Keyspace("paddock"))
	if err != nil || stats.Count != 0 {
		t.Errorf("stats after clear = (%+v, %v)", stats, err)
	}
}
