// Package config loads service configuration from the environment.
//
// Configuration follows 12-factor conventions: everything comes from env vars
// with sensible defaults, and a local .env file is honored for development.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`

	// HTTP API
	HTTPPort          int    `env:"HTTP_PORT" envDefault:"8080"`
	HealthPort        int    `env:"HEALTH_PORT" envDefault:"9090"`
	SupabaseJWTSecret string `env:"SUPABASE_JWT_SECRET"`

	// LLM provider
	LLMAPIKey       string        `env:"LLM_API_KEY"`
	LLMModel        string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMMaxTokens    int           `env:"LLM_MAX_TOKENS" envDefault:"2000"`
	LLMTemperature  float32       `env:"LLM_TEMPERATURE" envDefault:"0.3"`
	LLMTimeout      time.Duration `env:"LLM_TIMEOUT" envDefault:"90s"`
	LLMRateLimitRPS int           `env:"LLM_RATE_LIMIT_RPS" envDefault:"1"`

	// Input merging and URL extraction
	WebFetchTimeout    time.Duration `env:"WEB_FETCH_TIMEOUT" envDefault:"10s"`
	WebFetchRPS        float64       `env:"WEB_FETCH_RPS" envDefault:"2"`
	MergeMaxChars      int           `env:"MERGE_MAX_CHARS" envDefault:"80000"`
	URLExtractMaxChars int           `env:"URL_EXTRACT_MAX_CHARS" envDefault:"40000"`

	// Signal dedup
	DedupWindowDays int `env:"DEDUP_WINDOW_DAYS" envDefault:"14"`

	// Triage listing
	TriagePageLimit int `env:"TRIAGE_PAGE_LIMIT" envDefault:"50"`

	// Group analysis worker
	GroupPollInterval time.Duration `env:"GROUP_POLL_INTERVAL" envDefault:"4s"`

	// Feed ingest
	FeedIngestEnabled bool          `env:"FEED_INGEST_ENABLED" envDefault:"false"`
	FeedPollInterval  time.Duration `env:"FEED_POLL_INTERVAL" envDefault:"10m"`
	FeedFetchTimeout  time.Duration `env:"FEED_FETCH_TIMEOUT" envDefault:"30s"`

	// Database pool
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"30s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
