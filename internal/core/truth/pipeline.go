package truth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"github.com/truthlab/content-radar/internal/platform/observability"
	"github.com/truthlab/content-radar/internal/storage"
)

// ErrCheckNotFound is returned when the pipeline is asked to run a check
// that does not exist.
var ErrCheckNotFound = errors.New("truth check not found")

// Store is the storage surface the pipeline needs.
type Store interface {
	GetTruthCheck(ctx context.Context, id string) (*storage.TruthCheck, error)
	MarkTruthCheckRunning(ctx context.Context, id string) error
	CompleteTruthCheck(ctx context.Context, id string, done storage.CheckCompletion) error
	InsertEvidence(ctx context.Context, ev storage.Evidence) (string, error)
}

// Promoter lifts a completed analysis into the signal store. Promotion is
// best-effort: a promotion failure never fails the check.
type Promoter interface {
	PromoteAnalysis(ctx context.Context, check *storage.TruthCheck, result *Result) error
}

// Service runs truth checks end to end: merge input, analyze, score,
// persist, promote.
type Service struct {
	store    Store
	analyzer Analyzer
	merger   *Merger
	promoter Promoter
	logger   *zerolog.Logger
}

func NewService(store Store, analyzer Analyzer, merger *Merger, promoter Promoter, logger *zerolog.Logger) *Service {
	return &Service{
		store:    store,
		analyzer: analyzer,
		merger:   merger,
		promoter: promoter,
		logger:   logger,
	}
}

// Run executes the pipeline for an already-inserted check and returns the
// stored row in its terminal state.
//
// Failure modes are deliberately asymmetric: empty input is the caller's
// error and surfaces as ErrNoAnalyzableInput, while unparseable model output
// is recorded on the check (status error, degraded payload) and returned
// without an error so the caller can still read what happened.
func (s *Service) Run(ctx context.Context, checkID string) (*storage.TruthCheck, error) {
	check, err := s.store.GetTruthCheck(ctx, checkID)
	if err != nil {
		return nil, fmt.Errorf("load check: %w", err)
	}

	if check == nil {
		return nil, ErrCheckNotFound
	}

	if err := s.store.MarkTruthCheckRunning(ctx, check.ID); err != nil {
		return nil, fmt.Errorf("mark running: %w", err)
	}

	merged, err := s.merger.Merge(ctx, check.InputText, check.InputURLs, check.InputImages)
	if err != nil {
		if errors.Is(err, ErrNoAnalyzableInput) {
			s.failCheck(ctx, check.ID, err.Error())

			return nil, err
		}

		s.failCheck(ctx, check.ID, err.Error())

		return nil, fmt.Errorf("merge input: %w", err)
	}

	content, err := s.analyzer.Analyze(ctx, check.Title, merged, check.InputURLs)
	if err != nil {
		s.failCheck(ctx, check.ID, err.Error())

		return nil, fmt.Errorf("analyze: %w", err)
	}

	result, raw := Parse(content)
	if result == nil {
		return s.completeDegraded(ctx, check.ID, raw)
	}

	return s.completeParsed(ctx, check, result)
}

// completeDegraded stores unparseable model output as an errored check so
// the raw response stays inspectable.
func (s *Service) completeDegraded(ctx context.Context, checkID, raw string) (*storage.TruthCheck, error) {
	observability.TruthChecksTotal.WithLabelValues(storage.CheckStatusError).Inc()
	s.logger.Warn().Str("check_id", checkID).Msg("model returned non-JSON output")

	err := s.store.CompleteTruthCheck(ctx, checkID, storage.CheckCompletion{
		Result:        DegradedPayload(raw),
		TriageLabel:   LabelNone,
		TriageReasons: []string{},
		Status:        storage.CheckStatusError,
		Error:         "LLM returned non-JSON",
	})
	if err != nil {
		return nil, fmt.Errorf("store degraded check: %w", err)
	}

	return s.store.GetTruthCheck(ctx, checkID)
}

func (s *Service) completeParsed(ctx context.Context, check *storage.TruthCheck, result *Result) (*storage.TruthCheck, error) {
	triage := Score(result)

	confidence := result.Confidence
	modelConfidence := triage.ModelConfidence

	err := s.store.CompleteTruthCheck(ctx, check.ID, storage.CheckCompletion{
		Result:          result.Payload(),
		Confidence:      &confidence,
		ModelConfidence: &modelConfidence,
		TriageLabel:     triage.Label,
		TriageReasons:   triage.Reasons,
		Status:          storage.CheckStatusComplete,
	})
	if err != nil {
		return nil, fmt.Errorf("store completed check: %w", err)
	}

	observability.TruthChecksTotal.WithLabelValues(storage.CheckStatusComplete).Inc()
	observability.TriageLabelsTotal.WithLabelValues(triage.Label).Inc()

	s.storeReceipts(ctx, check.ID, result.Receipts)

	if s.promoter != nil {
		if err := s.promoter.PromoteAnalysis(ctx, check, result); err != nil {
			s.logger.Warn().Err(err).Str("check_id", check.ID).Msg("signal promotion failed")
		}
	}

	return s.store.GetTruthCheck(ctx, check.ID)
}

// storeReceipts lands each receipt as an evidence row. Best-effort: the
// receipts also live inside the result JSON, so a write failure here only
// degrades the evidence listing.
func (s *Service) storeReceipts(ctx context.Context, checkID string, receipts []Receipt) {
	for _, r := range receipts {
		_, err := s.store.InsertEvidence(ctx, storage.Evidence{
			TruthCheckID:   checkID,
			Quote:          r.Quote,
			URL:            r.URL,
			Source:         r.Source,
			EventTimestamp: parseReceiptTimestamp(r.Timestamp),
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("check_id", checkID).Msg("failed to store evidence row")

			return
		}
	}
}

// parseReceiptTimestamp accepts whatever date format the model emitted.
func parseReceiptTimestamp(raw string) *time.Time {
	if raw == "" {
		return nil
	}

	ts, err := dateparse.ParseAny(raw)
	if err != nil {
		return nil
	}

	return &ts
}

func (s *Service) failCheck(ctx context.Context, checkID, errMsg string) {
	observability.TruthChecksTotal.WithLabelValues(storage.CheckStatusError).Inc()

	err := s.store.CompleteTruthCheck(ctx, checkID, storage.CheckCompletion{
		Result:        []byte("{}"),
		TriageLabel:   LabelNone,
		TriageReasons: []string{},
		Status:        storage.CheckStatusError,
		Error:         errMsg,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("check_id", checkID).Msg("failed to store errored check")
	}
}
