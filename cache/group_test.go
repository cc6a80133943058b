package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoCachesFetch(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryStore())

	var calls int32
	fetch := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "monza", nil
	}

	v, stale, err := Do(ctx, c, "pitwall:next-race", time.Hour, fetch)
	if err != nil || stale || v != "monza" {
		t.Fatalf("first call = (%q, %v, %v)", v, stale, err)
	}

	v, stale, err = Do(ctx, c, "pitwall:next-race", time.Hour, fetch)
	if err != nil || stale || v != "monza" {
		t.Fatalf("second call = (%q, %v, %v)", v, stale, err)
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("fetch ran %d times, want 1", got)
	}
}

func TestDoForceRefreshFetchesAgain(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryStore())

	var calls int32
	fetch := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "monza", nil
	}

	if _, _, err := Do(ctx, c, "pitwall:next-race", time.Hour, fetch); err != nil {
		t.Fatalf("seed: %v", err)
	}

	removed, err := c.Clear(ctx, Keyspace("pitwall"))
	if err != nil || removed != 1 {
		t.Fatalf("clear = (%d, %v)", removed, err)
	}

	if _, _, err := Do(ctx, c, "pitwall:next-race", time.Hour, fetch); err != nil {
		t.Fatalf("refetch: %v", err)
	}

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("fetch ran %d times, want 2", got)
	}
}

func TestDoCoalescesConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryStore())

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})

	fetch := func(context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return "podium", nil
	}

	const n = 25
	type result struct {
		v   string
		err error
	}
	results := make(chan result, n)
	for i := 0; i < n; i++ {
		go func() {
			v, _, err := Do(ctx, c, "pitwall:results", time.Hour, fetch)
			results <- result{v, err}
		}()
	}

	<-started
	// Give the remaining callers time to pile onto the in-flight call.
	time.Sleep(200 * time.Millisecond)
	close(release)

	for i := 0; i < n; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("caller error: %v", r.err)
		}
		if r.v != "podium" {
			t.Fatalf("caller value = %q", r.v)
		}
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("%d concurrent callers caused %d fetches, want 1", n, got)
	}
}

func TestDoSharesFailureAcrossCallers(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryStore())

	fetchErr := errors.New("upstream down")

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})

	fetch := func(context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return "", fetchErr
	}

	const n = 10
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, _, err := Do(ctx, c, "pitwall:results", time.Hour, fetch)
			errs <- err
		}()
	}

	<-started
	time.Sleep(200 * time.Millisecond)
	close(release)

	for i := 0; i < n; i++ {
		if err := <-errs; !errors.Is(err, fetchErr) {
			t.Fatalf("caller error = %v, want %v", err, fetchErr)
		}
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("%d concurrent callers caused %d fetches, want 1", n, got)
	}
}

func TestDoServesStaleOnFetchFailure(t *testing.T) {
	ctx := context.Background()

	current := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	ms := NewMemoryStore()
	ms.now = clock
	c := New(ms, WithNow(clock))

	seeded := func(context.Context) ([]string, error) {
		return []string{"VER", "NOR", "LEC"}, nil
	}
	if _, _, err := Do(ctx, c, "pitwall:results", time.Minute, seeded); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Entry is now long expired and the upstream is down.
	current = current.Add(time.Hour)

	failing := func(context.Context) ([]string, error) {
		return nil, errors.New("upstream down")
	}

	v, stale, err := Do(ctx, c, "pitwall:results", time.Minute, failing)
	if err != nil {
		t.Fatalf("expected stale fallback, got error: %v", err)
	}
	if !stale {
		t.Error("stale flag not set on fallback value")
	}
	if len(v) != 3 || v[0] != "VER" {
		t.Errorf("fallback value = %v", v)
	}
}

func TestDoPropagatesErrorWithoutFallback(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryStore())

	fetchErr := errors.New("upstream down")
	failing := func(context.Context) (string, error) { return "", fetchErr }

	v, stale, err := Do(ctx, c, "pitwall:schedule", time.Hour, failing)
	if !errors.Is(err, fetchErr) {
		t.Fatalf("err = %v, want %v", err, fetchErr)
	}
	if stale || v != "" {
		t.Errorf("got (%q, %v) alongside error", v, stale)
	}
}

func TestDoRunsFetchToCompletionAfterCancel(t *testing.T) {
	c := New(NewMemoryStore())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v, stale, err := Do(ctx, c, "pitwall:schedule", time.Hour, func(fctx context.Context) (string, error) {
		// The fetch context must not inherit the caller's cancellation.
		if fctx.Err() != nil {
			return "", fctx.Err()
		}
		return "season 2025", nil
	})
	if err != nil || stale || v != "season 2025" {
		t.Fatalf("Do after cancel = (%q, %v, %v)", v, stale, err)
	}

	if _, ok := Peek[string](context.Background(), c, "pitwall:schedule"); !ok {
		t.Error("result of detached fetch was not cached")
	}
}

func TestPeek(t *testing.T) {
	ctx := context.Background()

	current := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	ms := NewMemoryStore()
	ms.now = clock
	c := New(ms, WithNow(clock))

	if _, ok := Peek[[]string](ctx, c, "pitwall:standings"); ok {
		t.Fatal("peek on empty cache reported a value")
	}

	seed := func(context.Context) ([]string, error) { return []string{"VER"}, nil }
	if _, _, err := Do(ctx, c, "pitwall:standings", time.Minute, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Peek ignores freshness entirely.
	current = current.Add(time.Hour)

	v, ok := Peek[[]string](ctx, c, "pitwall:standings")
	if !ok || len(v) != 1 || v[0] != "VER" {
		t.Errorf("peek = (%v, %v)", v, ok)
	}
}
