// Package groups runs the background analysis worker for capture groups:
// it claims queued jobs, analyzes the group's captures as one unit, and
// records the outcome on the job, the check, and the evidence log.
package groups

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/truthlab/content-radar/internal/core/truth"
	"github.com/truthlab/content-radar/internal/platform/observability"
	"github.com/truthlab/content-radar/internal/platform/worker"
	"github.com/truthlab/content-radar/internal/storage"
)

const (
	previewChars       = 4000
	queueDepthInterval = 30 * time.Second
)

// Store is the storage surface the worker needs.
type Store interface {
	ClaimNextAnalysisJob(ctx context.Context, targetType string) (*storage.AnalysisJob, error)
	CompleteAnalysisJob(ctx context.Context, jobID string) error
	FailAnalysisJob(ctx context.Context, jobID, errMsg string) error
	CountPendingAnalysisJobs(ctx context.Context, targetType string) (int, error)

	GetGroup(ctx context.Context, id string) (*storage.CaptureGroup, error)
	ListGroupCaptures(ctx context.Context, groupID string) ([]storage.GroupCapture, error)
	UpdateGroupStatus(ctx context.Context, id, status string) error

	InsertTruthCheck(ctx context.Context, in storage.NewTruthCheck) (string, error)
	MarkTruthCheckRunning(ctx context.Context, id string) error
	CompleteTruthCheck(ctx context.Context, id string, done storage.CheckCompletion) error
	GetTruthCheck(ctx context.Context, id string) (*storage.TruthCheck, error)
	CompleteGroupChecks(ctx context.Context, groupID string, done storage.CheckCompletion) error

	InsertEvidence(ctx context.Context, ev storage.Evidence) (string, error)
}

// Promoter lifts group analyses into the signal store.
type Promoter interface {
	PromoteAnalysisWithCaptures(ctx context.Context, check *storage.TruthCheck, result *truth.Result, captureIDs []string) error
}

// Worker polls for queued group jobs and processes one per tick.
type Worker struct {
	store    Store
	analyzer truth.Analyzer
	merger   *truth.Merger
	promoter Promoter
	interval time.Duration
	logger   *zerolog.Logger
}

func NewWorker(store Store, analyzer truth.Analyzer, merger *truth.Merger, promoter Promoter, interval time.Duration, logger *zerolog.Logger) *Worker {
	if interval <= 0 {
		interval = 4 * time.Second
	}

	return &Worker{
		store:    store,
		analyzer: analyzer,
		merger:   merger,
		promoter: promoter,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks processing jobs until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	return worker.Loop(ctx, worker.Config{
		Name:         "group-analysis",
		PollInterval: w.interval,
		Process:      w.processTick,
		PeriodicTasks: []worker.PeriodicTask{{
			Name:     "queue-depth",
			Interval: queueDepthInterval,
			Run:      w.reportQueueDepth,
		}},
		Logger: w.logger,
	})
}

// reportQueueDepth exports the pending job count as a gauge.
func (w *Worker) reportQueueDepth(ctx context.Context) {
	pending, err := w.store.CountPendingAnalysisJobs(ctx, storage.JobTargetGroup)
	if err != nil {
		w.logger.Warn().Err(err).Msg("failed to count pending jobs")

		return
	}

	observability.AnalysisJobsPending.Set(float64(pending))
}

// processTick claims and processes at most one job. Job-level failures are
// recorded on the job and never propagate, so the loop keeps polling.
func (w *Worker) processTick(ctx context.Context) error {
	defer worker.RecoverPanic(w.logger, "group analysis tick")

	job, err := w.store.ClaimNextAnalysisJob(ctx, storage.JobTargetGroup)
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}

	if job == nil {
		return nil
	}

	start := time.Now()

	if err := w.processJob(ctx, job); err != nil {
		observability.GroupJobsTotal.WithLabelValues(storage.JobStatusError).Inc()
		w.logger.Error().Err(err).Str("job_id", job.ID).Str("group_id", job.TargetID).Msg("group job failed")

		w.failJob(ctx, job, err)

		return nil
	}

	observability.GroupJobsTotal.WithLabelValues(storage.JobStatusComplete).Inc()
	observability.GroupJobDuration.Observe(time.Since(start).Seconds())

	return nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.AnalysisJob) error {
	group, err := w.store.GetGroup(ctx, job.TargetID)
	if err != nil {
		return fmt.Errorf("load group: %w", err)
	}

	if group == nil {
		return fmt.Errorf("group %s not found", job.TargetID)
	}

	if err := w.store.UpdateGroupStatus(ctx, group.ID, storage.GroupStatusAnalyzing); err != nil {
		return fmt.Errorf("mark group analyzing: %w", err)
	}

	captures, err := w.store.ListGroupCaptures(ctx, group.ID)
	if err != nil {
		return fmt.Errorf("load group captures: %w", err)
	}

	inputs := make([]truth.CaptureInput, 0, len(captures))
	captureIDs := make([]string, 0, len(captures))
	sources := make([]string, 0, len(captures))

	for _, c := range captures {
		inputs = append(inputs, truth.CaptureInput{
			Title:   c.Title,
			URL:     c.URL,
			Text:    c.Text,
			OCRText: c.OCRText,
		})
		captureIDs = append(captureIDs, c.CaptureID)

		if c.URL != "" {
			sources = append(sources, c.URL)
		}
	}

	merged, err := w.merger.MergeCaptures(inputs)
	if err != nil {
		return fmt.Errorf("merge group captures: %w", err)
	}

	checkID, err := w.store.InsertTruthCheck(ctx, storage.NewTruthCheck{
		UserID:    group.UserID,
		ProjectID: group.ProjectID,
		GroupID:   group.ID,
		Title:     group.Name,
		InputText: merged,
	})
	if err != nil {
		return fmt.Errorf("insert group check: %w", err)
	}

	if err := w.store.MarkTruthCheckRunning(ctx, checkID); err != nil {
		return fmt.Errorf("mark group check running: %w", err)
	}

	if err := w.writeEvidenceSnapshot(ctx, checkID, group.ID, captureIDs, merged); err != nil {
		return err
	}

	content, err := w.analyzer.Analyze(ctx, group.Name, merged, sources)
	if err != nil {
		return fmt.Errorf("analyze group: %w", err)
	}

	result, raw := truth.Parse(content)
	if result == nil {
		if err := w.store.CompleteTruthCheck(ctx, checkID, storage.CheckCompletion{
			Result:        truth.DegradedPayload(raw),
			TriageLabel:   truth.LabelNone,
			TriageReasons: []string{},
			Status:        storage.CheckStatusError,
			Error:         "LLM returned non-JSON",
		}); err != nil {
			return fmt.Errorf("store degraded group check: %w", err)
		}

		return errors.New("LLM returned non-JSON")
	}

	triage := truth.Score(result)
	confidence := result.Confidence
	modelConfidence := triage.ModelConfidence

	if err := w.store.CompleteTruthCheck(ctx, checkID, storage.CheckCompletion{
		Result:          result.Payload(),
		Confidence:      &confidence,
		ModelConfidence: &modelConfidence,
		TriageLabel:     triage.Label,
		TriageReasons:   triage.Reasons,
		Status:          storage.CheckStatusComplete,
	}); err != nil {
		return fmt.Errorf("store group check: %w", err)
	}

	observability.TriageLabelsTotal.WithLabelValues(triage.Label).Inc()

	// Any older pending checks linked to this group resolve with this run.
	if err := w.store.CompleteGroupChecks(ctx, group.ID, storage.CheckCompletion{
		Result:        result.Payload(),
		TriageLabel:   truth.LabelNone,
		TriageReasons: []string{},
		Status:        storage.CheckStatusComplete,
	}); err != nil {
		return fmt.Errorf("complete linked checks: %w", err)
	}

	if w.promoter != nil {
		check, err := w.store.GetTruthCheck(ctx, checkID)
		if err == nil && check != nil {
			if err := w.promoter.PromoteAnalysisWithCaptures(ctx, check, result, captureIDs); err != nil {
				w.logger.Warn().Err(err).Str("check_id", checkID).Msg("group signal promotion failed")
			}
		}
	}

	if err := w.store.UpdateGroupStatus(ctx, group.ID, storage.GroupStatusComplete); err != nil {
		return fmt.Errorf("update group status: %w", err)
	}

	if err := w.store.CompleteAnalysisJob(ctx, job.ID); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}

	w.logger.Info().
		Str("job_id", job.ID).
		Str("group_id", group.ID).
		Str("check_id", checkID).
		Int("captures", len(captureIDs)).
		Msg("group analyzed")

	return nil
}

// writeEvidenceSnapshot records which captures fed the analysis and a text
// preview, for audit.
func (w *Worker) writeEvidenceSnapshot(ctx context.Context, checkID, groupID string, captureIDs []string, merged string) error {
	preview := merged
	if len([]rune(preview)) > previewChars {
		preview = string([]rune(preview)[:previewChars])
	}

	payload, err := json.Marshal(map[string]any{
		"captureIds":          captureIDs,
		"concatenatedPreview": preview,
	})
	if err != nil {
		return fmt.Errorf("marshal evidence snapshot: %w", err)
	}

	if _, err := w.store.InsertEvidence(ctx, storage.Evidence{
		TruthCheckID: checkID,
		GroupID:      groupID,
		Source:       "group_snapshot",
		Payload:      payload,
	}); err != nil {
		return fmt.Errorf("insert evidence snapshot: %w", err)
	}

	return nil
}

// failJob records the failure verbatim on the job and any linked in-flight
// checks.
func (w *Worker) failJob(ctx context.Context, job *storage.AnalysisJob, jobErr error) {
	if err := w.store.FailAnalysisJob(ctx, job.ID, jobErr.Error()); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to record job error")
	}

	if err := w.store.CompleteGroupChecks(ctx, job.TargetID, storage.CheckCompletion{
		Result:        []byte("{}"),
		TriageLabel:   truth.LabelNone,
		TriageReasons: []string{},
		Status:        storage.CheckStatusError,
		Error:         jobErr.Error(),
	}); err != nil {
		w.logger.Error().Err(err).Str("group_id", job.TargetID).Msg("failed to error linked checks")
	}

	if err := w.store.UpdateGroupStatus(ctx, job.TargetID, storage.GroupStatusError); err != nil {
		w.logger.Error().Err(err).Str("group_id", job.TargetID).Msg("failed to error group status")
	}
}
