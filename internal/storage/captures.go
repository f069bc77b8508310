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

// Capture is a raw piece of collected content: a page, a screenshot, a note.
type Capture struct {
	ID        string
	ProjectID string
	UserID    string
	Title     string
	URL       string
	Text      string
	OCRText   string
	SourceTag string
	CreatedAt time.Time
}

func (db *DB) InsertCapture(ctx context.Context, c Capture) (string, error) {
	var id uuid.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO captures (project_id, user_id, title, url, text, ocr_text, source_tag)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, nullableUUID(c.ProjectID), toText(c.UserID), toText(SanitizeUTF8(c.Title)), toText(c.URL),
		toText(SanitizeUTF8(c.Text)), toText(SanitizeUTF8(c.OCRText)), toText(c.SourceTag)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert capture: %w", err)
	}

	return id.String(), nil
}

func (db *DB) GetCapture(ctx context.Context, id string) (*Capture, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT id, project_id, user_id, title, url, text, ocr_text, source_tag, created_at
		FROM captures
		WHERE id = $1
	`, toUUID(id))

	capture, err := scanCapture(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil // nil,nil indicates capture not found
		}

		return nil, fmt.Errorf("get capture: %w", err)
	}

	return capture, nil
}

// CaptureExistsByURL reports whether a capture with the URL already exists,
// used to skip re-ingesting feed entries.
func (db *DB) CaptureExistsByURL(ctx context.Context, url string) (bool, error) {
	var exists bool

	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM captures
			WHERE url = $1
		)
	`, url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("capture exists by url: %w", err)
	}

	return exists, nil
}

func (db *DB) ListCaptures(ctx context.Context, projectID string, limit, offset int) ([]Capture, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, project_id, user_id, title, url, text, ocr_text, source_tag, created_at
		FROM captures
		WHERE ($1::uuid IS NULL OR project_id = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, nullableUUID(projectID), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}
	defer rows.Close()

	captures := []Capture{}

	for rows.Next() {
		capture, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("scan capture: %w", err)
		}

		captures = append(captures, *capture)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate captures: %w", rows.Err())
	}

	return captures, nil
}

type captureScanner interface {
	Scan(dest ...any) error
}

func scanCapture(row captureScanner) (*Capture, error) {
	var (
		capture   Capture
		id        uuid.UUID
		projectID pgtype.UUID
		userID    pgtype.Text
		title     pgtype.Text
		url       pgtype.Text
		text      pgtype.Text
		ocrText   pgtype.Text
		sourceTag pgtype.Text
	)

	err := row.Scan(&id, &projectID, &userID, &title, &url, &text, &ocrText, &sourceTag, &capture.CreatedAt)
	if err != nil {
		return nil, err
	}

	capture.ID = id.String()
	capture.ProjectID = fromUUID(projectID)
	capture.UserID = fromText(userID)
	capture.Title = fromText(title)
	capture.URL = fromText(url)
	capture.Text = fromText(text)
	capture.OCRText = fromText(ocrText)
	capture.SourceTag = fromText(sourceTag)

	return &capture, nil
}
