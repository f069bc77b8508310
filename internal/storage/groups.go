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
	GroupStatusDraft     = "draft"
	GroupStatusAnalyzing = "analyzing"
	GroupStatusComplete  = "complete"
	GroupStatusError     = "error"
)

// CaptureGroup is a user-curated set of captures analyzed together.
type CaptureGroup struct {
	ID        string
	ProjectID string
	UserID    string
	Name      string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GroupCapture is a capture row joined with its position inside a group.
type GroupCapture struct {
	CaptureID string
	Position  int
	Title     string
	URL       string
	Text      string
	OCRText   string
	SourceTag string
}

func (db *DB) CreateGroup(ctx context.Context, projectID, userID, name string) (string, error) {
	var id uuid.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO capture_groups (project_id, user_id, name)
		VALUES ($1, $2, $3)
		RETURNING id
	`, nullableUUID(projectID), userID, SanitizeUTF8(name)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create group: %w", err)
	}

	return id.String(), nil
}

func (db *DB) GetGroup(ctx context.Context, id string) (*CaptureGroup, error) {
	var (
		group     CaptureGroup
		groupID   uuid.UUID
		projectID pgtype.UUID
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT id, project_id, user_id, name, status, created_at, updated_at
		FROM capture_groups
		WHERE id = $1
	`, toUUID(id)).Scan(&groupID, &projectID, &group.UserID, &group.Name,
		&group.Status, &group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil // nil,nil indicates group not found
		}

		return nil, fmt.Errorf("get group: %w", err)
	}

	group.ID = groupID.String()
	group.ProjectID = fromUUID(projectID)

	return &group, nil
}

// AddGroupItems appends captures to a group. Positions continue from the
// current maximum, and re-adding an existing capture is a no-op.
func (db *DB) AddGroupItems(ctx context.Context, groupID string, captureIDs []string) error {
	if len(captureIDs) == 0 {
		return nil
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin add group items: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // best-effort rollback
	}()

	var next int

	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(position) + 1, 0)
		FROM capture_group_items
		WHERE group_id = $1
	`, toUUID(groupID)).Scan(&next)
	if err != nil {
		return fmt.Errorf("next group position: %w", err)
	}

	for i, captureID := range captureIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO capture_group_items (group_id, capture_id, position)
			VALUES ($1, $2, $3)
			ON CONFLICT (group_id, capture_id) DO NOTHING
		`, toUUID(groupID), toUUID(captureID), toInt4(next+i))
		if err != nil {
			return fmt.Errorf("add group item: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE capture_groups
		SET updated_at = now()
		WHERE id = $1
	`, toUUID(groupID))
	if err != nil {
		return fmt.Errorf("touch group: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit add group items: %w", err)
	}

	return nil
}

// ListGroupCaptures returns the group's captures in position order.
func (db *DB) ListGroupCaptures(ctx context.Context, groupID string) ([]GroupCapture, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT i.capture_id, i.position, c.title, c.url, c.text, c.ocr_text, c.source_tag
		FROM capture_group_items i
		JOIN captures c ON c.id = i.capture_id
		WHERE i.group_id = $1
		ORDER BY i.position, i.added_at
	`, toUUID(groupID))
	if err != nil {
		return nil, fmt.Errorf("list group captures: %w", err)
	}
	defer rows.Close()

	captures := []GroupCapture{}

	for rows.Next() {
		var (
			gc        GroupCapture
			captureID uuid.UUID
			position  pgtype.Int4
			title     pgtype.Text
			url       pgtype.Text
			text      pgtype.Text
			ocrText   pgtype.Text
			sourceTag pgtype.Text
		)

		if err := rows.Scan(&captureID, &position, &title, &url, &text, &ocrText, &sourceTag); err != nil {
			return nil, fmt.Errorf("scan group capture: %w", err)
		}

		gc.CaptureID = captureID.String()
		gc.Position = int(position.Int32)
		gc.Title = fromText(title)
		gc.URL = fromText(url)
		gc.Text = fromText(text)
		gc.OCRText = fromText(ocrText)
		gc.SourceTag = fromText(sourceTag)
		captures = append(captures, gc)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate group captures: %w", rows.Err())
	}

	return captures, nil
}

func (db *DB) UpdateGroupStatus(ctx context.Context, id, status string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE capture_groups
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, toUUID(id), status)
	if err != nil {
		return fmt.Errorf("update group status: %w", err)
	}

	return nil
}
