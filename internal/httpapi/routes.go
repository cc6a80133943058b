// Package httpapi exposes the cached race data over a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/pitsnap/paddock/cache"
	"github.com/pitsnap/paddock/countdown"
	"github.com/pitsnap/paddock/digest"
	"github.com/pitsnap/paddock/f1api"
	"github.com/pitsnap/paddock/internal/jobs"
	"github.com/pitsnap/paddock/paddock"
	"github.com/pitsnap/paddock/pitwall"
	"github.com/pitsnap/paddock/youtube"
)

// CountdownNamespace caches the resolved race target so the countdown
// endpoints do not wake the race data layer on every request.
const CountdownNamespace = cache.Keyspace("countdown")

const targetTTL = time.Hour

// RaceData is the slice of the pit wall service the gateway serves.
type RaceData interface {
	Schedule(ctx context.Context) (f1api.Schedule, bool, error)
	NextRace(ctx context.Context) (f1api.NextRace, bool, error)
	LatestResults(ctx context.Context) (f1api.RaceResults, bool, error)
	Standings(ctx context.Context) (f1api.Standings, bool, error)
	PitWall(ctx context.Context) (pitwall.PitWallData, bool, error)
	ForceRefresh(ctx context.Context) (int, error)
}

// Assistant answers paddock questions. Nil disables POST /ask.
type Assistant interface {
	Ask(ctx context.Context, question string, history []paddock.Turn) (paddock.Answer, error)
}

// DigestSource builds the daily briefing. Nil disables GET /digest.
type DigestSource interface {
	Today(ctx context.Context) (digest.Digest, bool, error)
}

// VideoSource finds race highlight videos. Nil disables GET /videos.
type VideoSource interface {
	Find(ctx context.Context, topic string) ([]youtube.Video, bool, error)
}

type Server struct {
	Router *chi.Mux

	Races     RaceData
	Assistant Assistant
	Digest    DigestSource
	Videos    VideoSource
	Engine    *countdown.Engine
	Cache     *cache.Cache
	RedisAddr string // empty means no worker queue
	AdminKey  string
	Now       func() time.Time
}

type ServerOptions struct {
	Races     RaceData
	Assistant Assistant
	Digest    DigestSource
	Videos    VideoSource
	Engine    *countdown.Engine
	Cache     *cache.Cache
	RedisAddr string
	AdminKey  string
	Logger    zerolog.Logger
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(hlog.AccessHandler(func(req *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(req).Info().
			Str("method", req.Method).
			Stringer("url", req.URL).
			Int("status", status).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)

	s := &Server{
		Router:    r,
		Races:     opts.Races,
		Assistant: opts.Assistant,
		Digest:    opts.Digest,
		Videos:    opts.Videos,
		Engine:    opts.Engine,
		Cache:     opts.Cache,
		RedisAddr: opts.RedisAddr,
		AdminKey:  opts.AdminKey,
		Now:       time.Now,
	}

	r.Get("/healthz", s.handleHealthz)

	r.Get("/f1/schedule", s.handleSchedule)
	r.Get("/f1/next-race", s.handleNextRace)
	r.Get("/f1/latest-results", s.handleLatestResults)
	r.Get("/f1/standings", s.handleStandings)
	r.Get("/f1/pit-wall", s.handlePitWall)
	r.Get("/f1/countdown", s.handleCountdown)
	r.Get("/f1/countdown/stream", s.handleCountdownStream)

	r.Post("/ask", s.handleAsk)
	r.Get("/digest", s.handleDigest)
	r.Get("/videos", s.handleVideos)
	r.Get("/cache/stats", s.handleCacheStats)

	r.Group(func(pr chi.Router) {
		pr.Use(RequireKey(opts.AdminKey))
		pr.Post("/f1/refresh", s.handleRefresh)
	})

	return s
}

func respond(w http.ResponseWriter, status int, v any) {
	blob, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(blob)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"error": msg})
}

// respondData marks fallback answers so clients can tell a fresh result
// from one served after a fetch failure.
func respondData(w http.ResponseWriter, stale bool, v any) {
	if stale {
		w.Header().Set("X-Stale", "true")
	}
	respond(w, http.StatusOK, v)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	sched, stale, err := s.Races.Schedule(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("schedule unavailable")
		respondError(w, http.StatusInternalServerError, "schedule unavailable")
		return
	}
	respondData(w, stale, sched)
}

func (s *Server) handleNextRace(w http.ResponseWriter, r *http.Request) {
	next, stale, err := s.Races.NextRace(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("next race unavailable")
		respondError(w, http.StatusInternalServerError, "next race unavailable")
		return
	}
	respondData(w, stale, next)
}

func (s *Server) handleLatestResults(w http.ResponseWriter, r *http.Request) {
	results, stale, err := s.Races.LatestResults(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("results unavailable")
		respondError(w, http.StatusInternalServerError, "results unavailable")
		return
	}
	respondData(w, stale, results)
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	standings, stale, err := s.Races.Standings(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("standings unavailable")
		respondError(w, http.StatusInternalServerError, "standings unavailable")
		return
	}
	respondData(w, stale, standings)
}

func (s *Server) handlePitWall(w http.ResponseWriter, r *http.Request) {
	data, stale, err := s.Races.PitWall(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("pit wall unavailable")
		respondError(w, http.StatusInternalServerError, "pit wall unavailable")
		return
	}
	respondData(w, stale, data)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	removed, err := s.Races.ForceRefresh(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("force refresh failed")
		respondError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	s.enqueueWarm(r)
	respond(w, http.StatusAccepted, map[string]int{"cleared": removed})
}

// enqueueWarm hands the re-fetch to the worker so the HTTP caller is not
// stuck behind five upstream calls.
func (s *Server) enqueueWarm(r *http.Request) {
	if s.RedisAddr == "" {
		return
	}
	task, err := jobs.NewRefreshPitWallTask("manual refresh")
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("build refresh task")
		return
	}
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: s.RedisAddr})
	defer func() {
		if err := client.Close(); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("close queue client")
		}
	}()
	info, err := client.Enqueue(task)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("enqueue refresh task")
		return
	}
	hlog.FromRequest(r).Info().Str("task_id", info.ID).Msg("queued pit wall warm-up")
}

type askRequest struct {
	Question string         `json:"question"`
	History  []paddock.Turn `json:"chat_history"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.Assistant == nil {
		respondError(w, http.StatusServiceUnavailable, "assistant not configured")
		return
	}
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	answer, err := s.Assistant.Ask(r.Context(), req.Question, req.History)
	if err != nil {
		if errors.Is(err, paddock.ErrEmptyQuestion) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		hlog.FromRequest(r).Error().Err(err).Msg("ask failed")
		respondError(w, http.StatusInternalServerError, "assistant failed")
		return
	}
	respondData(w, answer.Stale, answer)
}

type countdownTarget struct {
	Round int       `json:"round"`
	Name  string    `json:"name"`
	Date  time.Time `json:"date"`
}

func (s *Server) raceTarget(ctx context.Context) (countdownTarget, bool, error) {
	return cache.Do(ctx, s.Cache, CountdownNamespace.Key("next-race"), targetTTL,
		func(fctx context.Context) (countdownTarget, error) {
			next, _, err := s.Races.NextRace(fctx)
			if err != nil {
				return countdownTarget{}, err
			}
			return countdownTarget{Round: next.Round, Name: next.Name, Date: next.Date}, nil
		})
}

type countdownSnapshot struct {
	Race      string                  `json:"race"`
	Round     int                     `json:"round"`
	Date      time.Time               `json:"date"`
	Countdown countdown.CountdownTime `json:"countdown"`
}

func (s *Server) handleCountdown(w http.ResponseWriter, r *http.Request) {
	target, stale, err := s.raceTarget(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("countdown target unavailable")
		respondError(w, http.StatusInternalServerError, "no upcoming race")
		return
	}
	respondData(w, stale, countdownSnapshot{
		Race:      target.Name,
		Round:     target.Round,
		Date:      target.Date,
		Countdown: countdown.Compute(target.Date, s.Now()),
	})
}

func (s *Server) handleCountdownStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	target, _, err := s.raceTarget(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("countdown target unavailable")
		respondError(w, http.StatusInternalServerError, "no upcoming race")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The subscriber callback must never block the engine, so ticks the
	// client cannot keep up with are dropped.
	events := make(chan countdown.CountdownTime, 8)
	unsubscribe := s.Engine.Subscribe(fmt.Sprintf("race-%d", target.Round), target.Date,
		func(v countdown.CountdownTime) {
			select {
			case events <- v:
			default:
			}
		})
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case v := <-events:
			blob, err := json.Marshal(v)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", blob); err != nil {
				return
			}
			flusher.Flush()
			if v.IsPast {
				return
			}
		}
	}
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	if s.Digest == nil {
		respondError(w, http.StatusServiceUnavailable, "digest not configured")
		return
	}
	d, stale, err := s.Digest.Today(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("digest unavailable")
		respondError(w, http.StatusInternalServerError, "digest unavailable")
		return
	}
	respondData(w, stale, d)
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	if s.Videos == nil {
		respondError(w, http.StatusServiceUnavailable, "video search not configured")
		return
	}
	topic := r.URL.Query().Get("topic")
	videos, stale, err := s.Videos.Find(r.Context(), topic)
	if err != nil {
		if errors.Is(err, youtube.ErrEmptyTopic) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		hlog.FromRequest(r).Error().Err(err).Msg("video search failed")
		respondError(w, http.StatusInternalServerError, "video search failed")
		return
	}
	respondData(w, stale, map[string]any{"topic": topic, "videos": videos})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	ns := r.URL.Query().Get("ns")
	if ns == "" {
		respondError(w, http.StatusBadRequest, "ns query parameter required")
		return
	}
	stats, err := s.Cache.Stats(r.Context(), cache.Keyspace(ns))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("cache stats failed")
		respondError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	respond(w, http.StatusOK, map[string]any{"namespace": ns, "count": stats.Count, "keys": stats.Keys})
}
