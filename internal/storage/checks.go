package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	CheckStatusPending  = "pending"
	CheckStatusRunning  = "running"
	CheckStatusComplete = "complete"
	CheckStatusError    = "error"

	ReviewStatusUnreviewed = "unreviewed"
	ReviewStatusConfirmed  = "confirmed"
	ReviewStatusNeedsEdit  = "needs_edit"
)

// TruthCheck is a single analysis run over merged input content.
type TruthCheck struct {
	ID              string
	UserID          string
	ProjectID       string
	GroupID         string
	Title           string
	InputText       string
	InputURLs       []string
	InputImages     []string
	Result          []byte
	Confidence      *float64
	ModelConfidence *float64
	Status          string
	ReviewStatus    string
	TriageLabel     string
	TriageReasons   []string
	Error           string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// NewTruthCheck holds the fields required to enqueue a check.
type NewTruthCheck struct {
	UserID      string
	ProjectID   string
	GroupID     string
	Title       string
	InputText   string
	InputURLs   []string
	InputImages []string
}

func (db *DB) InsertTruthCheck(ctx context.Context, in NewTruthCheck) (string, error) {
	var id uuid.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO truth_checks (user_id, project_id, group_id, title, input_text, input_urls, input_images)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, in.UserID, toUUID(in.ProjectID), toUUID(in.GroupID), SanitizeUTF8(in.Title),
		SanitizeUTF8(in.InputText), in.InputURLs, in.InputImages).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert truth check: %w", err)
	}

	return id.String(), nil
}

func (db *DB) MarkTruthCheckRunning(ctx context.Context, id string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE truth_checks
		SET status = $2, started_at = now()
		WHERE id = $1
	`, toUUID(id), CheckStatusRunning)
	if err != nil {
		return fmt.Errorf("mark truth check running: %w", err)
	}

	return nil
}

// CheckCompletion carries everything a finished analysis writes back.
type CheckCompletion struct {
	Result          []byte
	Confidence      *float64
	ModelConfidence *float64
	TriageLabel     string
	TriageReasons   []string
	Status          string
	Error           string
}

func (db *DB) CompleteTruthCheck(ctx context.Context, id string, done CheckCompletion) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE truth_checks
		SET result = $2,
			confidence = $3,
			model_confidence = $4,
			triage_label = $5,
			triage_reasons = $6,
			status = $7,
			error = $8,
			completed_at = now()
		WHERE id = $1
	`, toUUID(id), done.Result, toFloat8Ptr(done.Confidence), toFloat8Ptr(done.ModelConfidence),
		done.TriageLabel, done.TriageReasons, done.Status, toText(done.Error))
	if err != nil {
		return fmt.Errorf("complete truth check: %w", err)
	}

	return nil
}

func (db *DB) GetTruthCheck(ctx context.Context, id string) (*TruthCheck, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT id, user_id, project_id, group_id, title, input_text, input_urls, input_images,
			result, confidence, model_confidence, status, review_status, triage_label,
			triage_reasons, error, created_at, started_at, completed_at
		FROM truth_checks
		WHERE id = $1
	`, toUUID(id))

	check, err := scanTruthCheck(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil // nil,nil indicates truth check not found
		}

		return nil, fmt.Errorf("get truth check: %w", err)
	}

	return check, nil
}

// TriageFilter narrows the triage listing.
type TriageFilter struct {
	ProjectID    string
	Label        string
	ReviewStatus string
	// Cursor is the (created_at, id) position of the last row from the
	// previous page; zero values mean first page.
	CursorCreatedAt time.Time
	CursorID        string
	Limit           int
}

// ListTriage returns completed checks needing attention, ordered
// newest-first with keyset pagination on (created_at, id). With no explicit
// label filter, only checks labeled needs_review or in_review are listed.
func (db *DB) ListTriage(ctx context.Context, f TriageFilter) ([]TruthCheck, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, project_id, group_id, title, input_text, input_urls, input_images,
			result, confidence, model_confidence, status, review_status, triage_label,
			triage_reasons, error, created_at, started_at, completed_at
		FROM truth_checks
		WHERE status = $1
		  AND ($2::uuid IS NULL OR project_id = $2)
		  AND (($3::text <> '' AND triage_label = $3)
			OR ($3::text = '' AND triage_label IN ('needs_review', 'in_review')))
		  AND ($4::text = '' OR review_status = $4)
		  AND ($5::timestamptz IS NULL OR (created_at, id) < ($5, $6::uuid))
		ORDER BY created_at DESC, id DESC
		LIMIT $7
	`, CheckStatusComplete, nullableUUID(f.ProjectID), f.Label, f.ReviewStatus,
		toTimestamptz(f.CursorCreatedAt), nullableUUID(f.CursorID), f.Limit)
	if err != nil {
		return nil, fmt.Errorf("list triage: %w", err)
	}
	defer rows.Close()

	checks := []TruthCheck{}

	for rows.Next() {
		check, err := scanTruthCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("scan triage row: %w", err)
		}

		checks = append(checks, *check)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate triage rows: %w", rows.Err())
	}

	return checks, nil
}

// UpdateCheckReview writes the outcome of a human review action. Review
// transitions are the only writers of review_status and post-completion
// triage_label.
func (db *DB) UpdateCheckReview(ctx context.Context, id, reviewStatus, triageLabel string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE truth_checks
		SET review_status = $2,
			triage_label = $3
		WHERE id = $1
	`, toUUID(id), reviewStatus, triageLabel)
	if err != nil {
		return fmt.Errorf("update check review: %w", err)
	}

	return nil
}

// CompleteGroupChecks writes a terminal status to all checks linked to a group.
func (db *DB) CompleteGroupChecks(ctx context.Context, groupID string, done CheckCompletion) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE truth_checks
		SET result = $2,
			confidence = $3,
			model_confidence = $4,
			triage_label = $5,
			triage_reasons = $6,
			status = $7,
			error = $8,
			completed_at = now()
		WHERE group_id = $1
		  AND status IN ($9, $10)
	`, toUUID(groupID), done.Result, toFloat8Ptr(done.Confidence), toFloat8Ptr(done.ModelConfidence),
		done.TriageLabel, done.TriageReasons, done.Status, toText(done.Error),
		CheckStatusPending, CheckStatusRunning)
	if err != nil {
		return fmt.Errorf("complete group checks: %w", err)
	}

	return nil
}

type truthCheckScanner interface {
	Scan(dest ...any) error
}

func scanTruthCheck(row truthCheckScanner) (*TruthCheck, error) {
	var (
		check       TruthCheck
		id          uuid.UUID
		projectID   pgtype.UUID
		groupID     pgtype.UUID
		title       pgtype.Text
		confidence  pgtype.Float8
		modelConf   pgtype.Float8
		errMsg      pgtype.Text
		startedAt   pgtype.Timestamptz
		completedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&id, &check.UserID, &projectID, &groupID, &title, &check.InputText,
		&check.InputURLs, &check.InputImages, &check.Result, &confidence, &modelConf,
		&check.Status, &check.ReviewStatus, &check.TriageLabel, &check.TriageReasons,
		&errMsg, &check.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	check.ID = id.String()
	check.ProjectID = fromUUID(projectID)
	check.GroupID = fromUUID(groupID)
	check.Title = fromText(title)
	check.Confidence = fromFloat8Ptr(confidence)
	check.ModelConfidence = fromFloat8Ptr(modelConf)
	check.Error = fromText(errMsg)
	check.StartedAt = fromTimestamptzPtr(startedAt)
	check.CompletedAt = fromTimestamptzPtr(completedAt)

	return &check, nil
}

func nullableUUID(id string) pgtype.UUID {
	if id == "" {
		return pgtype.UUID{Valid: false}
	}

	return toUUID(id)
}
