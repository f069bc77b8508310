package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Project scopes captures and signals for a team or workspace.
type Project struct {
	ID        string
	OwnerID   string
	Name      string
	CreatedAt time.Time
}

func (db *DB) CreateProject(ctx context.Context, ownerID, name string) (string, error) {
	var id uuid.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO projects (owner_id, name)
		VALUES ($1, $2)
		RETURNING id
	`, ownerID, SanitizeUTF8(name)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create project: %w", err)
	}

	return id.String(), nil
}

func (db *DB) GetProject(ctx context.Context, id string) (*Project, error) {
	var (
		project   Project
		projectID uuid.UUID
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT id, owner_id, name, created_at
		FROM projects
		WHERE id = $1
	`, toUUID(id)).Scan(&projectID, &project.OwnerID, &project.Name, &project.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil // nil,nil indicates project not found
		}

		return nil, fmt.Errorf("get project: %w", err)
	}

	project.ID = projectID.String()

	return &project, nil
}

func (db *DB) ListProjects(ctx context.Context, ownerID string) ([]Project, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, owner_id, name, created_at
		FROM projects
		WHERE owner_id = $1
		ORDER BY created_at
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}

	for rows.Next() {
		var (
			project Project
			id      uuid.UUID
		)

		if err := rows.Scan(&id, &project.OwnerID, &project.Name, &project.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}

		project.ID = id.String()
		projects = append(projects, project)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate projects: %w", rows.Err())
	}

	return projects, nil
}
