package countdown

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultInterval is the tick period for running timers.
const DefaultInterval = time.Second

// timer is the shared state for one countdown id. The target registered
// by the first subscriber stands for the timer's whole life; later
// subscribers join it regardless of the target they pass.
type timer struct {
	target time.Time
	subs   map[uuid.UUID]func(CountdownTime)
	stop   chan struct{}
}

// Engine runs one ticking timer per countdown id and fans each tick out
// to that id's subscribers.
type Engine struct {
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
	log      zerolog.Logger

	mu     sync.Mutex
	timers map[string]*timer
}

// Option configures an Engine.
type Option func(*Engine)

// WithInterval overrides the tick period.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

// WithGrace overrides how long a passed target counts as live.
func WithGrace(d time.Duration) Option {
	return func(e *Engine) { e.grace = d }
}

// WithNow injects the clock.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine returns an engine with no running timers.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		interval: DefaultInterval,
		grace:    DefaultGrace,
		now:      time.Now,
		log:      zerolog.Nop(),
		timers:   make(map[string]*timer),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Subscribe registers fn under the id and invokes it once immediately
// with the current value. The first subscriber for an id starts its
// ticker; a target already past delivers the final value and starts
// nothing. The returned func removes exactly this subscription and is
// safe to call more than once; removing the last subscription stops the
// id's ticker.
func (e *Engine) Subscribe(id string, target time.Time, fn func(CountdownTime)) func() {
	e.mu.Lock()

	t, exists := e.timers[id]
	if exists {
		target = t.target
	}
	v := compute(target, e.now(), e.grace)

	if v.IsPast && !exists {
		e.mu.Unlock()
		fn(v)
		return func() {}
	}

	if !exists {
		t = &timer{
			target: target,
			subs:   make(map[uuid.UUID]func(CountdownTime)),
			stop:   make(chan struct{}),
		}
		e.timers[id] = t
		go e.run(id, t)
		e.log.Debug().Str("id", id).Time("target", target).Msg("countdown started")
	}

	token := uuid.New()
	t.subs[token] = fn
	e.mu.Unlock()

	fn(v)

	var once sync.Once
	return func() {
		once.Do(func() { e.unsubscribe(id, t, token) })
	}
}

// Active reports whether a timer is running for the id.
func (e *Engine) Active(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.timers[id]
	return ok
}

// ActiveIDs returns the ids with running timers, sorted.
func (e *Engine) ActiveIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.timers))
	for id := range e.timers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stop tears down every running timer. Subscribers get no final
// delivery; their unsubscribe funcs become no-ops.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, t := range e.timers {
		close(t.stop)
		delete(e.timers, id)
	}
}

func (e *Engine) run(id string, t *timer) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			v := compute(t.target, e.now(), e.grace)
			for _, fn := range e.snapshot(t) {
				fn(v)
			}
			if v.IsPast {
				e.teardown(id, t)
				return
			}
		}
	}
}

// snapshot copies the current subscriber set so ticks deliver outside
// the lock.
func (e *Engine) snapshot(t *timer) []func(CountdownTime) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fns := make([]func(CountdownTime), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	return fns
}

func (e *Engine) unsubscribe(id string, t *timer, token uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.timers[id] != t {
		return
	}
	delete(t.subs, token)
	if len(t.subs) == 0 {
		close(t.stop)
		delete(e.timers, id)
		e.log.Debug().Str("id", id).Msg("countdown stopped, no subscribers")
	}
}

// teardown removes the id after its final past delivery. The run loop
// exits on its own; whoever already removed the entry wins.
func (e *Engine) teardown(id string, t *timer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.timers[id] == t {
		delete(e.timers, id)
		e.log.Debug().Str("id", id).Msg("countdown reached past")
	}
}
