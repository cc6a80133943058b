package main

import (
	"context"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/pitsnap/paddock/cache"
	"github.com/pitsnap/paddock/countdown"
	"github.com/pitsnap/paddock/digest"
	"github.com/pitsnap/paddock/f1api"
	"github.com/pitsnap/paddock/internal/config"
	"github.com/pitsnap/paddock/internal/httpapi"
	"github.com/pitsnap/paddock/internal/llm"
	"github.com/pitsnap/paddock/internal/prompt"
	"github.com/pitsnap/paddock/paddock"
	"github.com/pitsnap/paddock/pitwall"
	"github.com/pitsnap/paddock/youtube"
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

	engine := countdown.NewEngine(countdown.WithLogger(logger))
	defer engine.Stop()

	prompts := prompt.NewGenerator(cfg.PromptDir)

	var assistant httpapi.Assistant
	if cfg.HasAssistant() {
		pc, err := paddock.NewClient(cfg.AssistantURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("assistant client")
		}
		assistant = paddock.New(c, pc,
			paddock.WithStandings(races),
			paddock.WithContextWindow(cfg.ContextWindow),
			paddock.WithLogger(logger),
		)
	}

	var model *llm.Client
	if cfg.HasOpenAI() {
		model = llm.New(cfg.OpenAIKey, llm.WithModel(cfg.OpenAIModel), llm.WithLogger(logger))
	}

	var daily httpapi.DigestSource
	if model != nil {
		daily = digest.New(c, races, model, digest.WithPrompts(prompts), digest.WithLogger(logger))
	}

	var finder httpapi.VideoSource
	if cfg.HasYouTube() {
		yc, err := youtube.NewClient(cfg.YouTubeKey, youtube.DefaultBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("youtube client")
		}
		opts := []youtube.Option{youtube.WithPrompts(prompts), youtube.WithLogger(logger)}
		if model != nil {
			opts = append(opts, youtube.WithModel(model))
		}
		finder = youtube.NewFinder(c, yc, opts...)
	}

	s := httpapi.New(httpapi.ServerOptions{
		Races:     races,
		Assistant: assistant,
		Digest:    daily,
		Videos:    finder,
		Engine:    engine,
		Cache:     c,
		RedisAddr: cfg.RedisAddr,
		AdminKey:  cfg.AdminKey,
		Logger:    logger,
	})

	logger.Info().
		Str("addr", cfg.ListenAddr).
		Str("cache", cfg.CacheBackend).
		Bool("assistant", assistant != nil).
		Bool("digest", daily != nil).
		Bool("videos", finder != nil).
		Msg("starting pitsnap api")

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: s.Router}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
