package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Feed is an RSS/Atom source polled by the ingest worker.
type Feed struct {
	ID            string
	ProjectID     string
	URL           string
	Title         string
	LastFetchedAt *time.Time
	CreatedAt     time.Time
}

func (db *DB) AddFeed(ctx context.Context, projectID, url, title string) (string, error) {
	var id uuid.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO feeds (project_id, url, title)
		VALUES ($1, $2, $3)
		ON CONFLICT (url) DO UPDATE SET title = EXCLUDED.title
		RETURNING id
	`, nullableUUID(projectID), url, toText(title)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("add feed: %w", err)
	}

	return id.String(), nil
}

func (db *DB) ListFeeds(ctx context.Context) ([]Feed, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, project_id, url, title, last_fetched_at, created_at
		FROM feeds
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	defer rows.Close()

	feeds := []Feed{}

	for rows.Next() {
		var (
			feed      Feed
			id        uuid.UUID
			projectID pgtype.UUID
			title     pgtype.Text
			fetchedAt pgtype.Timestamptz
		)

		if err := rows.Scan(&id, &projectID, &feed.URL, &title, &fetchedAt, &feed.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feed: %w", err)
		}

		feed.ID = id.String()
		feed.ProjectID = fromUUID(projectID)
		feed.Title = fromText(title)
		feed.LastFetchedAt = fromTimestamptzPtr(fetchedAt)
		feeds = append(feeds, feed)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate feeds: %w", rows.Err())
	}

	return feeds, nil
}

func (db *DB) TouchFeedFetched(ctx context.Context, id string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE feeds
		SET last_fetched_at = now()
		WHERE id = $1
	`, toUUID(id))
	if err != nil {
		return fmt.Errorf("touch feed fetched: %w", err)
	}

	return nil
}
