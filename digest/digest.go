// Package digest builds the once-a-day fan digest from cached race
// data and the language model, with a deterministic template standing
// in whenever the model misbehaves.
package digest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/pitsnap/paddock/cache"
	"github.com/pitsnap/paddock/internal/llm"
	"github.com/pitsnap/paddock/internal/prompt"
	"github.com/pitsnap/paddock/pitwall"
)

// Namespace is the cache keyspace for digests.
const Namespace = cache.Keyspace("digest")

// TTL keeps a digest for its whole day.
const TTL = 24 * time.Hour

// Digest is the rendered daily briefing.
type Digest struct {
	Headline   string   `json:"headline"`
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights"`
}

// Completer produces an assistant reply for a system and user prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// PitWallSource supplies the race data the digest is written from.
type PitWallSource interface {
	PitWall(ctx context.Context) (pitwall.PitWallData, bool, error)
}

// Service builds and caches daily digests.
type Service struct {
	cache   *cache.Cache
	pitwall PitWallSource
	model   Completer
	prompts *prompt.Generator
	now     func() time.Time
	log     zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPrompts overrides the prompt generator.
func WithPrompts(g *prompt.Generator) Option {
	return func(s *Service) { s.prompts = g }
}

// WithNow injects the clock.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// New wires a digest service.
func New(c *cache.Cache, pw PitWallSource, model Completer, opts ...Option) *Service {
	s := &Service{
		cache:   c,
		pitwall: pw,
		model:   model,
		prompts: prompt.NewGenerator(""),
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Key returns the cache key for a date's digest.
func Key(date time.Time) string {
	return Namespace.Key(date.Format("2006-01-02"))
}

// Today builds or returns the digest for the current date.
func (s *Service) Today(ctx context.Context) (Digest, bool, error) {
	return s.Build(ctx, s.now())
}

// Build returns the digest for the given date, generating and caching
// it on first request. It fails only when no race data is available at
// all; a misbehaving model degrades to the template digest.
func (s *Service) Build(ctx context.Context, date time.Time) (Digest, bool, error) {
	return cache.Do(ctx, s.cache, Key(date), TTL, func(fctx context.Context) (Digest, error) {
		return s.build(fctx)
	})
}

func (s *Service) build(ctx context.Context) (Digest, error) {
	data, stale, err := s.pitwall.PitWall(ctx)
	if err != nil {
		return Digest{}, err
	}
	if stale {
		s.log.Warn().Msg("building digest from stale race data")
	}

	reply, err := s.model.Complete(ctx, s.prompts.Digest(), renderFacts(data))
	if err != nil {
		s.log.Warn().Err(err).Msg("model unavailable, using template digest")
		return fromTemplate(data), nil
	}

	var d Digest
	if err := json.Unmarshal([]byte(llm.StripFences(reply)), &d); err != nil || d.Headline == "" {
		s.log.Warn().Err(err).Str("reply", reply).Msg("unusable digest reply, using template digest")
		return fromTemplate(data), nil
	}

	return d, nil
}
