package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/pitsnap/paddock/cache"
	"github.com/pitsnap/paddock/digest"
	"github.com/pitsnap/paddock/f1api"
	"github.com/pitsnap/paddock/fetch"
	"github.com/pitsnap/paddock/internal/config"
	"github.com/pitsnap/paddock/internal/jobs"
	"github.com/pitsnap/paddock/internal/llm"
	"github.com/pitsnap/paddock/internal/prompt"
	"github.com/pitsnap/paddock/pitwall"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	ctx := context.Background()

	store, err := cache.Open(ctx, cfg.CacheBackend, cache.Options{
		Dir:  cfg.CacheDir,
		Addr: cfg.RedisAddr,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.CacheBackend).Msg("open cache store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("close cache store")
		}
	}()

	c := cache.New(store, cache.WithLogger(logger))

	f1, err := f1api.New(cfg.F1APIURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("f1 api client")
	}
	races := pitwall.New(c, f1, pitwall.WithLogger(logger))

	var daily *digest.Service
	if cfg.HasOpenAI() {
		model := llm.New(cfg.OpenAIKey, llm.WithModel(cfg.OpenAIModel), llm.WithLogger(logger))
		daily = digest.New(c, races, model,
			digest.WithPrompts(prompt.NewGenerator(cfg.PromptDir)),
			digest.WithLogger(logger),
		)
	}

	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency:    8,
		StrictPriority: false,
		Queues: map[string]int{
			"refresh": 10,
			"default": 5,
		},
	})
	mux := asynq.NewServeMux()

	mux.HandleFunc(jobs.TaskRefreshPitWall, func(ctx context.Context, t *asynq.Task) error {
		var p jobs.RefreshPitWallPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			logger.Error().Err(err).Msg("bad refresh payload")
			return fmt.Errorf("unmarshal refresh payload: %w", err)
		}
		start := time.Now()
		data, stale, err := races.PitWall(ctx)
		if err != nil {
			// MaxRetry is zero, the next scheduled run is the retry.
			logger.Error().Err(err).Str("reason", p.Reason).Msg("pit wall refresh failed")
			return err
		}
		logger.Info().
			Str("reason", p.Reason).
			Bool("complete", data.Complete()).
			Bool("stale", stale).
			Dur("duration", time.Since(start)).
			Msg("pit wall warmed")
		return nil
	})

	mux.HandleFunc(jobs.TaskBuildDigest, func(ctx context.Context, t *asynq.Task) error {
		if daily == nil {
			return fmt.Errorf("digest requires an openai key: %w", asynq.SkipRetry)
		}
		var p jobs.BuildDigestPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("unmarshal digest payload: %v: %w", err, asynq.SkipRetry)
		}

		day := time.Now()
		if p.Date != "" {
			parsed, err := time.Parse("2006-01-02", p.Date)
			if err != nil {
				return fmt.Errorf("bad digest date %q: %w", p.Date, asynq.SkipRetry)
			}
			day = parsed
		}

		d, stale, err := daily.Build(ctx, day)
		if err != nil {
			if permanent(err) {
				logger.Error().Err(err).Msg("digest build failed permanently")
				return fmt.Errorf("build digest: %v: %w", err, asynq.SkipRetry)
			}
			logger.Warn().Err(err).Msg("digest build failed, will retry")
			return err
		}
		logger.Info().
			Str("date", day.Format("2006-01-02")).
			Str("headline", d.Headline).
			Bool("stale", stale).
			Msg("digest built")
		return nil
	})

	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, nil)

	refreshTask, err := jobs.NewRefreshPitWallTask("scheduled")
	if err != nil {
		logger.Fatal().Err(err).Msg("build refresh task")
	}
	if _, err := scheduler.Register(cfg.RefreshCron, refreshTask); err != nil {
		logger.Fatal().Err(err).Str("cron", cfg.RefreshCron).Msg("register refresh schedule")
	}

	digestTask, err := jobs.NewBuildDigestTask("")
	if err != nil {
		logger.Fatal().Err(err).Msg("build digest task")
	}
	if _, err := scheduler.Register(cfg.DigestCron, digestTask); err != nil {
		logger.Fatal().Err(err).Str("cron", cfg.DigestCron).Msg("register digest schedule")
	}

	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Fatal().Err(err).Msg("scheduler stopped")
		}
	}()

	logger.Info().Str("redis", cfg.RedisAddr).Msg("worker running")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
}

// permanent reports whether an error will not heal on its own, so
// retrying the task would only burn quota.
func permanent(err error) bool {
	var remote *fetch.RemoteError
	if errors.As(err, &remote) {
		return remote.StatusCode == http.StatusUnauthorized || remote.StatusCode == http.StatusForbidden
	}
	return false
}
