package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Evidence is a supporting quote or snapshot attached to a truth check.
type Evidence struct {
	ID             string
	TruthCheckID   string
	GroupID        string
	Quote          string
	URL            string
	Source         string
	EventTimestamp *time.Time
	Payload        []byte
	CreatedAt      time.Time
}

func (db *DB) InsertEvidence(ctx context.Context, ev Evidence) (string, error) {
	var id uuid.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO truth_evidence (truth_check_id, group_id, quote, url, source, event_timestamp, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, nullableUUID(ev.TruthCheckID), nullableUUID(ev.GroupID), toText(SanitizeUTF8(ev.Quote)),
		toText(ev.URL), toText(ev.Source), toTimestamptzPtr(ev.EventTimestamp), ev.Payload).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert evidence: %w", err)
	}

	return id.String(), nil
}

func (db *DB) ListEvidence(ctx context.Context, truthCheckID string) ([]Evidence, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, truth_check_id, group_id, quote, url, source, event_timestamp, payload, created_at
		FROM truth_evidence
		WHERE truth_check_id = $1
		ORDER BY created_at
	`, toUUID(truthCheckID))
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	items := []Evidence{}

	for rows.Next() {
		var (
			ev      Evidence
			id      uuid.UUID
			checkID pgtype.UUID
			groupID pgtype.UUID
			quote   pgtype.Text
			url     pgtype.Text
			source  pgtype.Text
			eventTS pgtype.Timestamptz
		)

		if err := rows.Scan(&id, &checkID, &groupID, &quote, &url, &source, &eventTS, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}

		ev.ID = id.String()
		ev.TruthCheckID = fromUUID(checkID)
		ev.GroupID = fromUUID(groupID)
		ev.Quote = fromText(quote)
		ev.URL = fromText(url)
		ev.Source = fromText(source)
		ev.EventTimestamp = fromTimestamptzPtr(eventTS)
		items = append(items, ev)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate evidence: %w", rows.Err())
	}

	return items, nil
}
