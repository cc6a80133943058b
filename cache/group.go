package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Cache pairs a Store with in-flight request coalescing. Orchestrators
// share one Cache per store so concurrent fetches for the same key
// collapse into a single upstream call.
type Cache struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time
	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for hit/miss and fallback events.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New wraps a Store for cache-aside use.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store: store,
		log:   zerolog.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the underlying store.
func (c *Cache) Store() Store { return c.store }

// Clear drops every entry under the namespace.
func (c *Cache) Clear(ctx context.Context, ns Keyspace) (int, error) {
	return c.store.Clear(ctx, ns)
}

// Stats reports the persisted contents of the namespace.
func (c *Cache) Stats(ctx context.Context, ns Keyspace) (Stats, error) {
	return c.store.Stats(ctx, ns)
}

// Do is the cache-aside read for one operation: serve the cached value
// while it is fresh, otherwise fetch (coalescing concurrent callers onto
// one upstream call), store the result under ttl, and return it. When the
// fetch fails and any previous value exists, that value is served instead
// with stale=true; the error propagates only when there is no fallback at
// all.
func Do[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, bool, error) {
	var zero T

	prev, prevErr := c.store.GetStale(ctx, key)
	if prevErr == nil && prev.Valid(c.now()) {
		var v T
		if err := json.Unmarshal(prev.Data, &v); err == nil {
			c.log.Debug().Str("key", key).Msg("cache hit")
			return v, false, nil
		}
		// Undecodable entry: treat as a miss and refetch.
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Detached from the caller: once a fetch is in flight it runs to
		// completion and its result is cached even if every caller has
		// gone away.
		fctx := context.WithoutCancel(ctx)

		v, err := fetch(fctx)
		if err != nil {
			return nil, err
		}

		data, merr := json.Marshal(v)
		if merr != nil {
			c.log.Warn().Err(merr).Str("key", key).Msg("cache write skipped")
			return v, nil
		}
		if werr := c.store.Set(fctx, key, data, ttl); werr != nil {
			c.log.Warn().Err(werr).Str("key", key).Msg("cache write failed")
		}

		return v, nil
	})
	if err == nil {
		return result.(T), false, nil
	}

	if prevErr == nil {
		var v T
		if uerr := json.Unmarshal(prev.Data, &v); uerr == nil {
			c.log.Warn().Err(err).Str("key", key).
				Dur("age", prev.Age(c.now())).
				Msg("fetch failed, serving stale value")
			return v, true, nil
		}
	}

	return zero, false, err
}

// Peek decodes whatever is stored under key regardless of freshness.
// Used where the last known value is useful but never worth a fetch.
func Peek[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var v T

	entry, err := c.store.GetStale(ctx, key)
	if err != nil {
		return v, false
	}
	if err := json.Unmarshal(entry.Data, &v); err != nil {
		return v, false
	}

	return v, true
}
