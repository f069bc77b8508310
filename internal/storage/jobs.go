package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	JobStatusPending  = "pending"
	JobStatusRunning  = "running"
	JobStatusComplete = "complete"
	JobStatusError    = "error"

	JobTargetGroup = "group"
)

// AnalysisJob is a queued unit of background analysis work.
type AnalysisJob struct {
	ID         string
	TargetType string
	TargetID   string
	Status     string
	Attempts   int
	Error      string
}

// EnqueueAnalysisJob queues work for a target. The partial unique index on
// in-flight jobs makes this idempotent while a job for the target is still
// pending or running.
func (db *DB) EnqueueAnalysisJob(ctx context.Context, targetType, targetID string) (string, error) {
	var id uuid.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO analysis_jobs (target_type, target_id)
		VALUES ($1, $2)
		ON CONFLICT (target_type, target_id) WHERE status IN ('pending', 'running') DO NOTHING
		RETURNING id
	`, targetType, toUUID(targetID)).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}

		return "", fmt.Errorf("enqueue analysis job: %w", err)
	}

	return id.String(), nil
}

// ClaimNextAnalysisJob atomically claims the oldest pending job of the given
// target type, marking it running and bumping its attempt count. Returns
// (nil, nil) when no work is pending.
func (db *DB) ClaimNextAnalysisJob(ctx context.Context, targetType string) (*AnalysisJob, error) {
	var (
		job      AnalysisJob
		jobID    uuid.UUID
		targetID uuid.UUID
	)

	err := db.Pool.QueryRow(ctx, `
		WITH picked AS (
			SELECT id
			FROM analysis_jobs
			WHERE target_type = $1
			  AND status = $2
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE analysis_jobs aj
		SET status = $3,
			attempts = aj.attempts + 1,
			updated_at = now()
		FROM picked
		WHERE aj.id = picked.id
		RETURNING aj.id, aj.target_type, aj.target_id, aj.status, aj.attempts
	`, targetType, JobStatusPending, JobStatusRunning).Scan(
		&jobID,
		&job.TargetType,
		&targetID,
		&job.Status,
		&job.Attempts,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil // nil,nil indicates no pending job available
		}

		return nil, fmt.Errorf("claim next analysis job: %w", err)
	}

	job.ID = jobID.String()
	job.TargetID = targetID.String()

	return &job, nil
}

func (db *DB) CompleteAnalysisJob(ctx context.Context, jobID string) error {
	return db.finishAnalysisJob(ctx, jobID, JobStatusComplete, "")
}

func (db *DB) FailAnalysisJob(ctx context.Context, jobID, errMsg string) error {
	return db.finishAnalysisJob(ctx, jobID, JobStatusError, errMsg)
}

func (db *DB) finishAnalysisJob(ctx context.Context, jobID, status, errMsg string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = $2,
			error = $3,
			updated_at = now()
		WHERE id = $1
	`, toUUID(jobID), status, toText(errMsg))
	if err != nil {
		return fmt.Errorf("finish analysis job: %w", err)
	}

	return nil
}

// CountPendingAnalysisJobs reports queue depth for observability.
func (db *DB) CountPendingAnalysisJobs(ctx context.Context, targetType string) (int, error) {
	var count int

	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM analysis_jobs
		WHERE target_type = $1
		  AND status = $2
	`, targetType, JobStatusPending).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending analysis jobs: %w", err)
	}

	return count, nil
}
