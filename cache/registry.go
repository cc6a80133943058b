package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Options carries backend-specific settings for Open. Backends read only
// the fields they understand.
type Options struct {
	// Dir is the storage directory for the file and badger backends.
	Dir string

	// Addr is the Redis address for the redis backend.
	Addr string

	// Retention is how long expired entries stay readable for stale
	// fallback in backends with physical expiry. Zero means
	// DefaultRetention.
	Retention time.Duration
}

// OpenFunc constructs a Store from Options.
type OpenFunc func(ctx context.Context, opts Options) (Store, error)

var (
	backendsMu sync.Mutex
	backends   = make(map[string]OpenFunc)
)

// Register makes a store backend available to Open under the given name.
// Backends register themselves from init.
func Register(name string, open OpenFunc) {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	if _, dup := backends[name]; dup {
		panic("cache: Register called twice for backend " + name)
	}
	backends[name] = open
}

// Open constructs the named store backend.
func Open(ctx context.Context, name string, opts Options) (Store, error) {
	backendsMu.Lock()
	open, ok := backends[name]
	backendsMu.Unlock()

	if !ok {
		return nil, fmt.Errorf("cache: unknown backend %q (have %v)", name, Backends())
	}
	return open(ctx, opts)
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("file", func(_ context.Context, opts Options) (Store, error) {
		return NewFileStore(opts.Dir)
	})
	Register("memory", func(_ context.Context, _ Options) (Store, error) {
		return NewMemoryStore(), nil
	})
	Register("redis", func(ctx context.Context, opts Options) (Store, error) {
		return DialRedisStore(ctx, opts.Addr, opts.Retention)
	})
	Register("badger", func(_ context.Context, opts Options) (Store, error) {
		return NewBadgerStore(opts.Dir, opts.Retention)
	})
}
