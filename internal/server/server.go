// Package server exposes the HTTP API: analysis submission, triage listing,
// review actions, signals, and capture groups.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/truthlab/content-radar/internal/core/signals"
	"github.com/truthlab/content-radar/internal/storage"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// CheckStore is the storage surface the handlers read checks through.
type CheckStore interface {
	InsertTruthCheck(ctx context.Context, in storage.NewTruthCheck) (string, error)
	GetTruthCheck(ctx context.Context, id string) (*storage.TruthCheck, error)
	ListTriage(ctx context.Context, f storage.TriageFilter) ([]storage.TruthCheck, error)
	ListEvidence(ctx context.Context, truthCheckID string) ([]storage.Evidence, error)
}

// GroupStore is the storage surface for group management.
type GroupStore interface {
	CreateGroup(ctx context.Context, projectID, userID, name string) (string, error)
	GetGroup(ctx context.Context, id string) (*storage.CaptureGroup, error)
	AddGroupItems(ctx context.Context, groupID string, captureIDs []string) error
	ListGroupCaptures(ctx context.Context, groupID string) ([]storage.GroupCapture, error)
	EnqueueAnalysisJob(ctx context.Context, targetType, targetID string) (string, error)
}

// ProjectStore is the storage surface for project management.
type ProjectStore interface {
	CreateProject(ctx context.Context, ownerID, name string) (string, error)
	ListProjects(ctx context.Context, ownerID string) ([]storage.Project, error)
}

// CaptureStore is the storage surface for raw captures.
type CaptureStore interface {
	InsertCapture(ctx context.Context, c storage.Capture) (string, error)
	GetCapture(ctx context.Context, id string) (*storage.Capture, error)
	ListCaptures(ctx context.Context, projectID string, limit, offset int) ([]storage.Capture, error)
}

// FeedStore is the storage surface for feed registration.
type FeedStore interface {
	AddFeed(ctx context.Context, projectID, url, title string) (string, error)
	ListFeeds(ctx context.Context) ([]storage.Feed, error)
}

// Pipeline runs a queued check to its terminal state.
type Pipeline interface {
	Run(ctx context.Context, checkID string) (*storage.TruthCheck, error)
}

// Config carries the server's runtime knobs.
type Config struct {
	Port            int
	JWTSecret       string
	TriagePageLimit int
}

// Stores bundles the storage surfaces the handlers use.
type Stores struct {
	Checks   CheckStore
	Groups   GroupStore
	Projects ProjectStore
	Captures CaptureStore
	Feeds    FeedStore
}

// Server wires the HTTP API to the core services.
type Server struct {
	cfg      Config
	checks   CheckStore
	groups   GroupStore
	projects ProjectStore
	captures CaptureStore
	feeds    FeedStore
	pipeline Pipeline
	signals  *signals.Service
	logger   *zerolog.Logger
}

func New(cfg Config, stores Stores, pipeline Pipeline, sigs *signals.Service, logger *zerolog.Logger) *Server {
	if cfg.TriagePageLimit <= 0 {
		cfg.TriagePageLimit = 50
	}

	return &Server{
		cfg:      cfg,
		checks:   stores.Checks,
		groups:   stores.Groups,
		projects: stores.Projects,
		captures: stores.Captures,
		feeds:    stores.Feeds,
		pipeline: pipeline,
		signals:  sigs,
		logger:   logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))

	api := r.Group("/api")
	api.Use(requireAuth(s.cfg.JWTSecret))
	api.Use(projectScope())

	truthGroup := api.Group("/truth")
	{
		truthGroup.POST("/analyze-text", s.handleAnalyzeText)
		truthGroup.POST("/analyze-bundle", s.handleAnalyzeBundle)
		truthGroup.GET("/check/:id", s.handleGetCheck)
		truthGroup.GET("/triage", s.handleListTriage)
		truthGroup.POST("/:checkId/review", s.handleReviewCheck)
	}

	signalGroup := api.Group("/signals")
	{
		signalGroup.POST("", s.handleCreateSignal)
		signalGroup.GET("", s.handleListSignals)
		signalGroup.POST("/:id/confirm", s.handleConfirmSignal)
		signalGroup.POST("/:id/needs-edit", s.handleNeedsEditSignal)
	}

	groupGroup := api.Group("/groups")
	{
		groupGroup.POST("", s.handleCreateGroup)
		groupGroup.GET("/:id", s.handleGetGroup)
		groupGroup.POST("/:id/items", s.handleAddGroupItems)
		groupGroup.POST("/:id/analyze", s.handleAnalyzeGroup)
	}

	projectGroup := api.Group("/projects")
	{
		projectGroup.POST("", s.handleCreateProject)
		projectGroup.GET("", s.handleListProjects)
	}

	captureGroup := api.Group("/captures")
	{
		captureGroup.POST("", s.handleCreateCapture)
		captureGroup.GET("", s.handleListCaptures)
		captureGroup.GET("/:id", s.handleGetCapture)
	}

	feedGroup := api.Group("/feeds")
	{
		feedGroup.POST("", s.handleAddFeed)
		feedGroup.GET("", s.handleListFeeds)
	}

	return r
}

// Start serves the API until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)

		defer cancel()

		//nolint:errcheck,contextcheck // shutdown in signal handler is best-effort, non-inherited context intentional
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Int("port", s.cfg.Port).Msg("API server starting")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

func requestLogger(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}
