// Package app provides the application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// different operational modes:
//
//   - API mode: HTTP API for analysis submission, triage, review, and signals
//   - Worker mode: Background analysis of queued capture groups
//   - Ingest mode: RSS/Atom feed polling into captures
//
// Each mode can be run independently or combined based on deployment needs.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/truthlab/content-radar/internal/core/extract"
	"github.com/truthlab/content-radar/internal/core/groups"
	"github.com/truthlab/content-radar/internal/core/signals"
	"github.com/truthlab/content-radar/internal/core/truth"
	"github.com/truthlab/content-radar/internal/ingest"
	"github.com/truthlab/content-radar/internal/platform/config"
	"github.com/truthlab/content-radar/internal/platform/observability"
	"github.com/truthlab/content-radar/internal/server"
	"github.com/truthlab/content-radar/internal/storage"
)

const llmAPIKeyMock = "mock"

// App holds the application dependencies and provides methods to run
// different modes.
type App struct {
	cfg      *config.Config
	database *storage.DB
	logger   *zerolog.Logger
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, database *storage.DB, logger *zerolog.Logger) *App {
	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
	}
}

// StartHealthServer starts the health check and metrics server.
func (a *App) StartHealthServer(ctx context.Context) error {
	return observability.NewServer(a.database, a.cfg.HealthPort, a.logger).Start(ctx)
}

// RunAPI serves the HTTP API until the context is canceled.
func (a *App) RunAPI(ctx context.Context) error {
	sigs := a.signalService()
	pipeline := truth.NewService(a.database, a.analyzer(), a.merger(), sigs, a.logger)

	srv := server.New(server.Config{
		Port:            a.cfg.HTTPPort,
		JWTSecret:       a.cfg.SupabaseJWTSecret,
		TriagePageLimit: a.cfg.TriagePageLimit,
	}, server.Stores{
		Checks:   a.database,
		Groups:   a.database,
		Projects: a.database,
		Captures: a.database,
		Feeds:    a.database,
	}, pipeline, sigs, a.logger)

	return srv.Start(ctx)
}

// RunWorker runs the group analysis worker. When feed ingest is enabled the
// feed poller runs alongside it in the same process.
func (a *App) RunWorker(ctx context.Context) error {
	if a.cfg.FeedIngestEnabled {
		go func() {
			if err := a.feedPoller().Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Msg("feed poller stopped")
			}
		}()
	}

	w := groups.NewWorker(a.database, a.analyzer(), a.merger(), a.signalService(), a.cfg.GroupPollInterval, a.logger)

	return w.Run(ctx)
}

// RunIngest runs only the feed poller.
func (a *App) RunIngest(ctx context.Context) error {
	return a.feedPoller().Run(ctx)
}

// analyzer picks the LLM client, or the offline heuristic when no API key is
// configured.
func (a *App) analyzer() truth.Analyzer {
	if a.cfg.LLMAPIKey == "" || a.cfg.LLMAPIKey == llmAPIKeyMock {
		a.logger.Warn().Msg("no LLM API key configured, using heuristic analyzer")

		return truth.NewHeuristicAnalyzer()
	}

	return truth.NewOpenAIAnalyzer(truth.AnalyzerConfig{
		APIKey:       a.cfg.LLMAPIKey,
		Model:        a.cfg.LLMModel,
		MaxTokens:    a.cfg.LLMMaxTokens,
		Temperature:  a.cfg.LLMTemperature,
		Timeout:      a.cfg.LLMTimeout,
		RateLimitRPS: a.cfg.LLMRateLimitRPS,
	}, a.logger)
}

func (a *App) merger() *truth.Merger {
	fetcher := extract.NewWebFetcher(a.cfg.WebFetchRPS, a.cfg.WebFetchTimeout)
	extractor := extract.NewExtractor(fetcher)

	return truth.NewMerger(extractor, extract.NoopOCR{}, truth.MergerConfig{
		MaxChars:       a.cfg.MergeMaxChars,
		MaxCharsPerURL: a.cfg.URLExtractMaxChars,
		PerURLTimeout:  a.cfg.WebFetchTimeout,
	}, a.logger)
}

func (a *App) signalService() *signals.Service {
	window := time.Duration(a.cfg.DedupWindowDays) * 24 * time.Hour

	return signals.NewService(a.database, window, a.logger)
}

func (a *App) feedPoller() *ingest.Poller {
	return ingest.NewPoller(a.database, a.cfg.FeedPollInterval, a.cfg.FeedFetchTimeout, a.logger)
}
