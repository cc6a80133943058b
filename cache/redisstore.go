package cache

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRetention is how long an entry outlives its own TTL in backends
// with physical expiry, so the stale-fallback path still has something to
// read after the logical TTL has passed.
const DefaultRetention = 7 * 24 * time.Hour

// RedisStore persists envelopes in Redis. The logical TTL lives inside
// the envelope; the Redis expiry is TTL plus the retention window.
type RedisStore struct {
	rdb       *redis.Client
	retention time.Duration
	now       func() time.Time
}

// NewRedisStore wraps an existing Redis client. A zero retention uses
// DefaultRetention.
func NewRedisStore(rdb *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisStore{rdb: rdb, retention: retention, now: time.Now}
}

// DialRedisStore connects to addr and verifies the connection.
func DialRedisStore(ctx context.Context, addr string, retention time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return NewRedisStore(rdb, retention), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.GetStale(ctx, key)
	if err != nil {
		return nil, err
	}

	if !entry.Valid(s.now()) {
		_ = s.rdb.Del(ctx, key).Err()
		return nil, ErrNotFound
	}

	return entry.Data, nil
}

func (s *RedisStore) GetStale(ctx context.Context, key string) (Entry, error) {
	blob, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}

	var entry Entry
	if err := json.Unmarshal(blob, &entry); err != nil {
		return Entry{}, ErrNotFound
	}

	return entry, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	entry := Entry{Data: data, StoredAt: s.now(), TTL: ttl}

	blob, err := json.Marshal(entry)
	if err != nil {
		return &WriteError{Key: key, Err: err}
	}

	if err := s.rdb.Set(ctx, key, blob, ttl+s.retention).Err(); err != nil {
		return &WriteError{Key: key, Err: err}
	}

	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func (s *RedisStore) Clear(ctx context.Context, ns Keyspace) (int, error) {
	keys, err := s.scan(ctx, ns)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return 0, err
	}

	return len(keys), nil
}

func (s *RedisStore) Stats(ctx context.Context, ns Keyspace) (Stats, error) {
	keys, err := s.scan(ctx, ns)
	if err != nil {
		return Stats{}, err
	}

	sort.Strings(keys)
	return Stats{Count: len(keys), Keys: keys}, nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

// scan pages through SCAN until the cursor wraps.
func (s *RedisStore) scan(ctx context.Context, ns Keyspace) ([]string, error) {
	var (
		keys   = []string{}
		cursor uint64
	)
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, ns.Prefix()+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
