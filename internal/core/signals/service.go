// Package signals promotes completed analyses into deduplicated signals and
// runs the human review workflow over signals and checks.
package signals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/truthlab/content-radar/internal/core/contenthash"
	"github.com/truthlab/content-radar/internal/core/truth"
	"github.com/truthlab/content-radar/internal/platform/observability"
	"github.com/truthlab/content-radar/internal/storage"
)

var (
	// ErrInvalidReviewStatus is returned for review actions outside the
	// allowed enum.
	ErrInvalidReviewStatus = errors.New("invalid review status")

	// ErrNotFound is returned when the reviewed entity does not exist.
	ErrNotFound = errors.New("not found")
)

// Store is the storage surface the service needs.
type Store interface {
	PromoteSignal(ctx context.Context, sig storage.Signal, window time.Duration) (*storage.PromoteOutcome, error)
	GetSignal(ctx context.Context, id string) (*storage.Signal, error)
	ListSignals(ctx context.Context, f storage.SignalFilter) ([]storage.Signal, error)
	UpdateSignalStatus(ctx context.Context, id, status string) error
	InsertSignalFeedback(ctx context.Context, fb storage.SignalFeedback) (string, error)
	GetTruthCheck(ctx context.Context, id string) (*storage.TruthCheck, error)
	UpdateCheckReview(ctx context.Context, id, reviewStatus, triageLabel string) error
}

// Service owns signal promotion and review transitions.
type Service struct {
	store  Store
	window time.Duration
	logger *zerolog.Logger
}

func NewService(store Store, dedupWindow time.Duration, logger *zerolog.Logger) *Service {
	if dedupWindow <= 0 {
		dedupWindow = 14 * 24 * time.Hour
	}

	return &Service{
		store:  store,
		window: dedupWindow,
		logger: logger,
	}
}

// PromoteAnalysis lifts a completed check's result into the signal store.
// Implements the pipeline's Promoter.
func (s *Service) PromoteAnalysis(ctx context.Context, check *storage.TruthCheck, result *truth.Result) error {
	return s.PromoteAnalysisWithCaptures(ctx, check, result, nil)
}

// PromoteAnalysisWithCaptures is PromoteAnalysis plus the capture IDs that
// fed the analysis, used by the group worker.
func (s *Service) PromoteAnalysisWithCaptures(ctx context.Context, check *storage.TruthCheck, result *truth.Result, captureIDs []string) error {
	if check.ProjectID == "" {
		// Without a project there is no dedup scope; nothing to promote into.
		s.logger.Debug().Str("check_id", check.ID).Msg("skipping promotion for project-less check")

		return nil
	}

	title := result.Headline
	if title == "" {
		title = check.Title
	}

	confidence := result.Confidence

	sig := storage.Signal{
		ProjectID:           check.ProjectID,
		CreatedBy:           check.UserID,
		SourceCaptureIDs:    captureIDs,
		TruthCheckID:        check.ID,
		Title:               title,
		Summary:             result.Summary,
		TruthFact:           result.Chain.Fact,
		TruthObservation:    result.Chain.Observation,
		TruthInsight:        result.Chain.Insight,
		TruthHumanTruth:     result.Chain.HumanTruth,
		TruthCulturalMoment: result.Chain.CulturalMoment,
		StrategicMoves:      result.StrategicMoves,
		Cohorts:             result.Cohorts,
		Receipts:            result.ReceiptsJSON(),
		Confidence:          &confidence,
		WhySurfaced:         result.WhyThisSurfaced,
		Origin:              storage.SignalOriginAnalysis,
		ContentHash:         HashSignal(check.ProjectID, title, result),
	}

	outcome, err := s.store.PromoteSignal(ctx, sig, s.window)
	if err != nil {
		return fmt.Errorf("promote signal: %w", err)
	}

	if outcome.Merged {
		observability.SignalPromotionsTotal.WithLabelValues("merged").Inc()
	} else {
		observability.SignalPromotionsTotal.WithLabelValues("created").Inc()
	}

	s.logger.Info().
		Str("signal_id", outcome.SignalID).
		Bool("merged", outcome.Merged).
		Str("check_id", check.ID).
		Msg("analysis promoted")

	return nil
}

// HashSignal computes the dedup fingerprint: project scope, title, summary,
// and the five chain sections, in that order.
func HashSignal(projectID, title string, result *truth.Result) string {
	return contenthash.Hash(
		projectID,
		title,
		result.Summary,
		result.Chain.Fact,
		result.Chain.Observation,
		result.Chain.Insight,
		result.Chain.HumanTruth,
		result.Chain.CulturalMoment,
	)
}

// CreateManual inserts a user-authored signal through the same dedup path
// as promoted analyses.
func (s *Service) CreateManual(ctx context.Context, sig storage.Signal) (*storage.PromoteOutcome, error) {
	sig.Origin = storage.SignalOriginManual
	if sig.ContentHash == "" {
		sig.ContentHash = contenthash.Hash(
			sig.ProjectID, sig.Title, sig.Summary,
			sig.TruthFact, sig.TruthObservation, sig.TruthInsight,
			sig.TruthHumanTruth, sig.TruthCulturalMoment,
		)
	}

	outcome, err := s.store.PromoteSignal(ctx, sig, s.window)
	if err != nil {
		return nil, fmt.Errorf("create signal: %w", err)
	}

	return outcome, nil
}

// ReviewCheck applies a human verdict to a completed check. Reviews are
// idempotent: repeating a verdict rewrites the same state and appends
// another feedback record. needs_edit is re-reviewable, so a later
// confirmed verdict is also allowed.
func (s *Service) ReviewCheck(ctx context.Context, checkID, userID, status, note string) (*storage.TruthCheck, error) {
	reviewStatus, label, err := reviewTransition(status)
	if err != nil {
		return nil, err
	}

	check, err := s.store.GetTruthCheck(ctx, checkID)
	if err != nil {
		return nil, fmt.Errorf("load check: %w", err)
	}

	if check == nil {
		return nil, ErrNotFound
	}

	if err := s.store.UpdateCheckReview(ctx, checkID, reviewStatus, label); err != nil {
		return nil, fmt.Errorf("apply review: %w", err)
	}

	_, err = s.store.InsertSignalFeedback(ctx, storage.SignalFeedback{
		TruthCheckID: checkID,
		UserID:       userID,
		Action:       status,
		Notes:        note,
	})
	if err != nil {
		return nil, fmt.Errorf("record feedback: %w", err)
	}

	observability.ReviewActionsTotal.WithLabelValues(status).Inc()

	return s.store.GetTruthCheck(ctx, checkID)
}

// ReviewSignal applies a human verdict to a promoted signal.
func (s *Service) ReviewSignal(ctx context.Context, signalID, userID, status, note string) (*storage.Signal, error) {
	if status != storage.SignalStatusConfirmed && status != storage.SignalStatusNeedsEdit {
		return nil, ErrInvalidReviewStatus
	}

	sig, err := s.store.GetSignal(ctx, signalID)
	if err != nil {
		return nil, fmt.Errorf("load signal: %w", err)
	}

	if sig == nil {
		return nil, ErrNotFound
	}

	if err := s.store.UpdateSignalStatus(ctx, signalID, status); err != nil {
		return nil, fmt.Errorf("apply signal review: %w", err)
	}

	_, err = s.store.InsertSignalFeedback(ctx, storage.SignalFeedback{
		SignalID: signalID,
		UserID:   userID,
		Action:   status,
		Notes:    note,
	})
	if err != nil {
		return nil, fmt.Errorf("record feedback: %w", err)
	}

	observability.ReviewActionsTotal.WithLabelValues(status).Inc()

	return s.store.GetSignal(ctx, signalID)
}

// List returns signals matching the filter.
func (s *Service) List(ctx context.Context, f storage.SignalFilter) ([]storage.Signal, error) {
	return s.store.ListSignals(ctx, f)
}

// reviewTransition maps a review verdict onto the stored review_status and
// triage_label pair. confirmed resolves the check; needs_edit keeps it in
// the triage list as in_review.
func reviewTransition(status string) (reviewStatus, triageLabel string, err error) {
	switch status {
	case storage.ReviewStatusConfirmed:
		return storage.ReviewStatusConfirmed, truth.LabelResolved, nil
	case storage.ReviewStatusNeedsEdit:
		return storage.ReviewStatusNeedsEdit, truth.LabelInReview, nil
	default:
		return "", "", ErrInvalidReviewStatus
	}
}
