// Package pitwall orchestrates the F1 data domain: cache-aside reads of
// schedule, next race, latest results and standings, the combined
// pit-wall aggregate, and the force-refresh path.
package pitwall

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pitsnap/paddock/cache"
	"github.com/pitsnap/paddock/f1api"
)

// Namespace holds every key this service writes.
const Namespace = cache.Keyspace("pitwall")

// Per-operation TTLs. Schedule and next race move slowly; results and
// standings change every race weekend and during sessions.
const (
	ScheduleTTL  = 30 * time.Minute
	NextRaceTTL  = time.Hour
	ResultsTTL   = 15 * time.Minute
	StandingsTTL = 15 * time.Minute

	// aggregateTTL bounds the combined pit-wall entry used as the
	// last-resort fallback when every individual fetch fails.
	aggregateTTL = 15 * time.Minute
)

const aggregateKey = "all"

// PitWallData is the combined payload for the pit-wall screen. A leg
// that could not be fetched and had no fallback is nil.
type PitWallData struct {
	Schedule      *f1api.Schedule    `json:"schedule,omitempty"`
	NextRace      *f1api.NextRace    `json:"next_race,omitempty"`
	LatestResults *f1api.RaceResults `json:"latest_results,omitempty"`
	Standings     *f1api.Standings   `json:"standings,omitempty"`
	FetchedAt     time.Time          `json:"timestamp"`
}

// Complete reports whether every leg is present.
func (d PitWallData) Complete() bool {
	return d.Schedule != nil && d.NextRace != nil && d.LatestResults != nil && d.Standings != nil
}

// Service is the F1 data orchestrator. Construct one per process and
// share it; all state lives in the cache.
type Service struct {
	cache *cache.Cache
	f1    *f1api.Client
	log   zerolog.Logger
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates the orchestrator on top of a shared cache and the F1
// backend client.
func New(c *cache.Cache, f1 *f1api.Client, opts ...Option) *Service {
	s := &Service{
		cache: c,
		f1:    f1,
		log:   zerolog.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule returns the season calendar. The stale flag is true when the
// value came from an expired cache entry after a failed fetch.
func (s *Service) Schedule(ctx context.Context) (f1api.Schedule, bool, error) {
	return cache.Do(ctx, s.cache, Namespace.Key("schedule"), ScheduleTTL, s.f1.Schedule)
}

// NextRace returns the next upcoming race.
func (s *Service) NextRace(ctx context.Context) (f1api.NextRace, bool, error) {
	return cache.Do(ctx, s.cache, Namespace.Key("next-race"), NextRaceTTL, s.f1.NextRace)
}

// LatestResults returns the most recent race classification.
func (s *Service) LatestResults(ctx context.Context) (f1api.RaceResults, bool, error) {
	return cache.Do(ctx, s.cache, Namespace.Key("latest-results"), ResultsTTL, s.f1.LatestResults)
}

// Standings returns the championship standings.
func (s *Service) Standings(ctx context.Context) (f1api.Standings, bool, error) {
	return cache.Do(ctx, s.cache, Namespace.Key("standings"), StandingsTTL, s.f1.Standings)
}

// PitWall assembles all four legs in parallel. Legs that fail without a
// fallback are left nil; when every leg fails the previously stored
// aggregate is served as the last resort, and only if that is absent too
// does PitWall return an error.
func (s *Service) PitWall(ctx context.Context) (PitWallData, bool, error) {
	var (
		sched   *f1api.Schedule
		next    *f1api.NextRace
		results *f1api.RaceResults
		stand   *f1api.Standings

		staleSched, staleNext, staleResults, staleStand bool
	)

	var g errgroup.Group
	g.Go(func() error {
		v, stale, err := s.Schedule(ctx)
		if err != nil {
			return err
		}
		sched, staleSched = &v, stale
		return nil
	})
	g.Go(func() error {
		v, stale, err := s.NextRace(ctx)
		if err != nil {
			return err
		}
		next, staleNext = &v, stale
		return nil
	})
	g.Go(func() error {
		v, stale, err := s.LatestResults(ctx)
		if err != nil {
			return err
		}
		results, staleResults = &v, stale
		return nil
	})
	g.Go(func() error {
		v, stale, err := s.Standings(ctx)
		if err != nil {
			return err
		}
		stand, staleStand = &v, stale
		return nil
	})

	firstErr := g.Wait()

	data := PitWallData{
		Schedule:      sched,
		NextRace:      next,
		LatestResults: results,
		Standings:     stand,
		FetchedAt:     s.now().UTC(),
	}
	stale := staleSched || staleNext || staleResults || staleStand

	if data.Schedule == nil && data.NextRace == nil && data.LatestResults == nil && data.Standings == nil {
		if prev, ok := cache.Peek[PitWallData](ctx, s.cache, Namespace.Key(aggregateKey)); ok {
			s.log.Warn().Err(firstErr).Msg("all pit wall legs failed, serving stored aggregate")
			return prev, true, nil
		}
		return PitWallData{}, false, fmt.Errorf("pit wall data unavailable: %w", firstErr)
	}

	if firstErr != nil {
		s.log.Warn().Err(firstErr).Msg("pit wall assembled with missing legs")
	}

	// Refresh the last-resort aggregate only when the assembly is whole
	// and fresh, so a degraded snapshot never overwrites a good one.
	if data.Complete() && !stale {
		if blob, err := json.Marshal(data); err == nil {
			if err := s.cache.Store().Set(ctx, Namespace.Key(aggregateKey), blob, aggregateTTL); err != nil {
				s.log.Warn().Err(err).Msg("aggregate cache write failed")
			}
		}
	}

	return data, stale, nil
}

// ForceRefresh drops every cached entry in the namespace so the next
// read of each operation hits the network. Returns how many entries were
// removed; clearing an already-empty namespace is a no-op.
func (s *Service) ForceRefresh(ctx context.Context) (int, error) {
	removed, err := s.cache.Clear(ctx, Namespace)
	if err != nil {
		return 0, err
	}

	s.log.Info().Int("removed", removed).Msg("pit wall cache cleared")
	return removed, nil
}

// LastKnownStandings returns whatever standings are stored, however old,
// without ever fetching. Used to attach context to assistant questions.
func (s *Service) LastKnownStandings(ctx context.Context) (f1api.Standings, bool) {
	return cache.Peek[f1api.Standings](ctx, s.cache, Namespace.Key("standings"))
}

// Stats reports the persisted contents of the namespace.
func (s *Service) Stats(ctx context.Context) (cache.Stats, error) {
	return s.cache.Stats(ctx, Namespace)
}
