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
	SignalStatusUnreviewed = "unreviewed"
	SignalStatusConfirmed  = "confirmed"
	SignalStatusRejected   = "rejected"
	SignalStatusNeedsEdit  = "needs_edit"

	SignalOriginAnalysis = "analysis"
	SignalOriginManual   = "manual"
)

// Signal is a promoted, deduplicated insight surfaced to reviewers.
type Signal struct {
	ID                  string
	ProjectID           string
	CreatedBy           string
	SourceCaptureIDs    []string
	TruthCheckID        string
	Title               string
	Summary             string
	TruthFact           string
	TruthObservation    string
	TruthInsight        string
	TruthHumanTruth     string
	TruthCulturalMoment string
	StrategicMoves      []string
	Cohorts             []string
	Receipts            []byte
	Confidence          *float64
	WhySurfaced         string
	Origin              string
	SourceTag           string
	Status              string
	ContentHash         string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PromoteOutcome reports whether a promotion created a new signal or merged
// into an existing one.
type PromoteOutcome struct {
	SignalID string
	Merged   bool
}

// PromoteSignal inserts a new signal, or merges into an existing signal of
// the same project and content hash updated within the dedup window. The
// match-then-write runs in one transaction with the candidate row locked,
// so concurrent promotions of the same content serialize into one merge
// chain instead of creating duplicates.
func (db *DB) PromoteSignal(ctx context.Context, sig Signal, window time.Duration) (*PromoteOutcome, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin promote signal: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // best-effort rollback
	}()

	var existingID uuid.UUID

	err = tx.QueryRow(ctx, `
		SELECT id
		FROM signals
		WHERE project_id = $1
		  AND content_hash = $2
		  AND content_hash <> ''
		  AND updated_at >= now() - $3::interval
		ORDER BY updated_at DESC
		LIMIT 1
		FOR UPDATE
	`, toUUID(sig.ProjectID), sig.ContentHash, window).Scan(&existingID)

	switch {
	case err == nil:
		if err := mergeSignal(ctx, tx, existingID, sig); err != nil {
			return nil, err
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit promote signal: %w", err)
		}

		return &PromoteOutcome{SignalID: existingID.String(), Merged: true}, nil

	case errors.Is(err, pgx.ErrNoRows):
		id, err := insertSignal(ctx, tx, sig)
		if err != nil {
			return nil, err
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit promote signal: %w", err)
		}

		return &PromoteOutcome{SignalID: id, Merged: false}, nil

	default:
		return nil, fmt.Errorf("find duplicate signal: %w", err)
	}
}

// mergeSignalQuery folds a duplicate promotion into the surviving row:
// capture ids are set-unioned, receipts appended, and scalar fields take the
// newer promotion's values, keeping the old ones only when the new promotion
// carries none.
const mergeSignalQuery = `
	UPDATE signals
	SET source_capture_ids = (
			SELECT ARRAY(
				SELECT DISTINCT unnest(source_capture_ids || $2::text[])
			)
		),
		receipts = receipts || $3::jsonb,
		confidence = COALESCE($4, confidence),
		why_surfaced = COALESCE(NULLIF($5::text, ''), why_surfaced),
		truth_check_id = COALESCE($6, truth_check_id),
		updated_at = now()
	WHERE id = $1
`

func mergeSignal(ctx context.Context, tx pgx.Tx, id uuid.UUID, sig Signal) error {
	_, err := tx.Exec(ctx, mergeSignalQuery, id, sig.SourceCaptureIDs, receiptsOrEmpty(sig.Receipts),
		toFloat8Ptr(sig.Confidence), sig.WhySurfaced, nullableUUID(sig.TruthCheckID))
	if err != nil {
		return fmt.Errorf("merge signal: %w", err)
	}

	return nil
}

func insertSignal(ctx context.Context, tx pgx.Tx, sig Signal) (string, error) {
	var id uuid.UUID

	err := tx.QueryRow(ctx, `
		INSERT INTO signals (
			project_id, created_by, source_capture_ids, truth_check_id, title, summary,
			truth_fact, truth_observation, truth_insight, truth_human_truth, truth_cultural_moment,
			strategic_moves, cohorts, receipts, confidence, why_surfaced, origin, source_tag,
			status, content_hash
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id
	`, toUUID(sig.ProjectID), sig.CreatedBy, stringsOrEmpty(sig.SourceCaptureIDs),
		nullableUUID(sig.TruthCheckID), SanitizeUTF8(sig.Title), SanitizeUTF8(sig.Summary),
		toText(sig.TruthFact), toText(sig.TruthObservation), toText(sig.TruthInsight),
		toText(sig.TruthHumanTruth), toText(sig.TruthCulturalMoment),
		stringsOrEmpty(sig.StrategicMoves), stringsOrEmpty(sig.Cohorts), receiptsOrEmpty(sig.Receipts),
		toFloat8Ptr(sig.Confidence), toText(sig.WhySurfaced), signalOrigin(sig.Origin),
		toText(sig.SourceTag), SignalStatusUnreviewed, sig.ContentHash).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert signal: %w", err)
	}

	return id.String(), nil
}

func (db *DB) GetSignal(ctx context.Context, id string) (*Signal, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT id, project_id, created_by, source_capture_ids, truth_check_id, title, summary,
			truth_fact, truth_observation, truth_insight, truth_human_truth, truth_cultural_moment,
			strategic_moves, cohorts, receipts, confidence, why_surfaced, origin, source_tag,
			status, content_hash, created_at, updated_at
		FROM signals
		WHERE id = $1
	`, toUUID(id))

	sig, err := scanSignal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil // nil,nil indicates signal not found
		}

		return nil, fmt.Errorf("get signal: %w", err)
	}

	return sig, nil
}

// SignalFilter narrows the signal listing.
type SignalFilter struct {
	ProjectID string
	CreatedBy string
	Status    string
	Limit     int
	Offset    int
}

func (db *DB) ListSignals(ctx context.Context, f SignalFilter) ([]Signal, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, project_id, created_by, source_capture_ids, truth_check_id, title, summary,
			truth_fact, truth_observation, truth_insight, truth_human_truth, truth_cultural_moment,
			strategic_moves, cohorts, receipts, confidence, why_surfaced, origin, source_tag,
			status, content_hash, created_at, updated_at
		FROM signals
		WHERE ($1::uuid IS NULL OR project_id = $1)
		  AND ($2::text = '' OR created_by = $2)
		  AND ($3::text = '' OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`, nullableUUID(f.ProjectID), f.CreatedBy, f.Status, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	signals := []Signal{}

	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}

		signals = append(signals, *sig)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate signals: %w", rows.Err())
	}

	return signals, nil
}

func (db *DB) UpdateSignalStatus(ctx context.Context, id, status string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE signals
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, toUUID(id), status)
	if err != nil {
		return fmt.Errorf("update signal status: %w", err)
	}

	return nil
}

// SignalFeedback records a human review action against a signal or a check.
type SignalFeedback struct {
	ID           string
	SignalID     string
	TruthCheckID string
	UserID       string
	Action       string
	Notes        string
	CreatedAt    time.Time
}

func (db *DB) InsertSignalFeedback(ctx context.Context, fb SignalFeedback) (string, error) {
	var id uuid.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO signal_feedback (signal_id, truth_check_id, user_id, action, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, nullableUUID(fb.SignalID), nullableUUID(fb.TruthCheckID), fb.UserID,
		fb.Action, toText(fb.Notes)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert signal feedback: %w", err)
	}

	return id.String(), nil
}

func (db *DB) ListSignalFeedback(ctx context.Context, signalID string) ([]SignalFeedback, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, signal_id, truth_check_id, user_id, action, notes, created_at
		FROM signal_feedback
		WHERE signal_id = $1
		ORDER BY created_at
	`, toUUID(signalID))
	if err != nil {
		return nil, fmt.Errorf("list signal feedback: %w", err)
	}
	defer rows.Close()

	items := []SignalFeedback{}

	for rows.Next() {
		var (
			fb      SignalFeedback
			id      uuid.UUID
			sigID   pgtype.UUID
			checkID pgtype.UUID
			notes   pgtype.Text
		)

		if err := rows.Scan(&id, &sigID, &checkID, &fb.UserID, &fb.Action, &notes, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan signal feedback: %w", err)
		}

		fb.ID = id.String()
		fb.SignalID = fromUUID(sigID)
		fb.TruthCheckID = fromUUID(checkID)
		fb.Notes = fromText(notes)
		items = append(items, fb)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate signal feedback: %w", rows.Err())
	}

	return items, nil
}

type signalScanner interface {
	Scan(dest ...any) error
}

func scanSignal(row signalScanner) (*Signal, error) {
	var (
		sig         Signal
		id          uuid.UUID
		projectID   pgtype.UUID
		checkID     pgtype.UUID
		fact        pgtype.Text
		observation pgtype.Text
		insight     pgtype.Text
		humanTruth  pgtype.Text
		cultural    pgtype.Text
		confidence  pgtype.Float8
		whySurfaced pgtype.Text
		sourceTag   pgtype.Text
		contentHash pgtype.Text
	)

	err := row.Scan(
		&id, &projectID, &sig.CreatedBy, &sig.SourceCaptureIDs, &checkID, &sig.Title, &sig.Summary,
		&fact, &observation, &insight, &humanTruth, &cultural,
		&sig.StrategicMoves, &sig.Cohorts, &sig.Receipts, &confidence, &whySurfaced,
		&sig.Origin, &sourceTag, &sig.Status, &contentHash, &sig.CreatedAt, &sig.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sig.ID = id.String()
	sig.ProjectID = fromUUID(projectID)
	sig.TruthCheckID = fromUUID(checkID)
	sig.TruthFact = fromText(fact)
	sig.TruthObservation = fromText(observation)
	sig.TruthInsight = fromText(insight)
	sig.TruthHumanTruth = fromText(humanTruth)
	sig.TruthCulturalMoment = fromText(cultural)
	sig.Confidence = fromFloat8Ptr(confidence)
	sig.WhySurfaced = fromText(whySurfaced)
	sig.SourceTag = fromText(sourceTag)
	sig.ContentHash = fromText(contentHash)

	return &sig, nil
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}

func receiptsOrEmpty(b []byte) []byte {
	if len(b) == 0 {
		return []byte("[]")
	}

	return b
}

func signalOrigin(origin string) string {
	if origin == "" {
		return SignalOriginAnalysis
	}

	return origin
}
