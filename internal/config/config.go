// Package config loads application configuration from environment
// variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the api and worker binaries read from the
// environment.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	F1APIURL     string `env:"F1_API_URL"`
	AssistantURL string `env:"ASSISTANT_URL"`

	OpenAIKey   string `env:"OPENAI_API_KEY"`
	OpenAIModel string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	YouTubeKey  string `env:"YOUTUBE_API_KEY"`

	CacheBackend string `env:"CACHE_BACKEND" envDefault:"file"`
	CacheDir     string `env:"CACHE_DIR"`
	RedisAddr    string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	AdminKey      string `env:"ADMIN_KEY"`
	ContextWindow int    `env:"PADDOCK_CONTEXT_WINDOW" envDefault:"2"`
	PromptDir     string `env:"PROMPT_DIR"`

	RefreshCron string `env:"REFRESH_CRON" envDefault:"*/15 * * * *"`
	DigestCron  string `env:"DIGEST_CRON" envDefault:"0 7 * * *"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HasAssistant returns true if an assistant backend is configured.
func (c *Config) HasAssistant() bool {
	return c.AssistantURL != ""
}

// HasOpenAI returns true if model access is configured.
func (c *Config) HasOpenAI() bool {
	return c.OpenAIKey != ""
}

// HasYouTube returns true if video lookup is configured.
func (c *Config) HasYouTube() bool {
	return c.YouTubeKey != ""
}

// Validate ensures the configuration can serve the core data at all.
func (c *Config) Validate() error {
	if c.F1APIURL == "" {
		return fmt.Errorf("F1_API_URL must be set")
	}
	if c.ContextWindow < 0 {
		return fmt.Errorf("PADDOCK_CONTEXT_WINDOW must be >= 0, got %d", c.ContextWindow)
	}
	return nil
}
