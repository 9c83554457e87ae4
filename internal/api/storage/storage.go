package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vid2md/vid2md/internal/api/model"
	"github.com/vid2md/vid2md/shared/postgresql"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrContentNotFound = errors.New("content not found")
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

func (s *Storage) CreateProject(ctx context.Context, project *model.Project) error {
	query := `
		INSERT INTO projects (
			id, title, invite_code, video_path,
			status, progress, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		project.ID,
		project.Title,
		project.InviteCode,
		project.VideoPath,
		project.Status,
		project.Progress,
		project.CreatedAt,
		project.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

func (s *Storage) GetProjectByID(ctx context.Context, projectID string) (*model.Project, error) {
	var project model.Project
	query := `
		SELECT
			id, title, invite_code, video_path,
			duration, status, progress, error_msg,
			created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, &project, query, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}

type ProjectFilter struct {
	InviteCode string
	Status     string
	PageSize   int
	Cursor     *ProjectCursor
}

type ProjectCursor struct {
	CreatedAt time.Time
	ProjectID string
}

func (s *Storage) ListProjects(ctx context.Context, filter ProjectFilter) ([]model.Project, error) {
	query := `
        SELECT
            id, title, invite_code, video_path,
            duration, status, progress, error_msg,
            created_at, updated_at
        FROM projects
        WHERE 1=1
    `
	args := []interface{}{}
	argIdx := 1

	// Filters
	if filter.InviteCode != "" {
		query += fmt.Sprintf(" AND invite_code = $%d", argIdx)
		args = append(args, filter.InviteCode)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ProjectID)
		argIdx += 2
	}

	// Order by created_at DESC, id DESC for consistent pagination
	query += " ORDER BY created_at DESC, id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var projects []model.Project
	err := s.db.SelectContext(ctx, &projects, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	return projects, nil
}

func (s *Storage) GetContentByProjectID(ctx context.Context, projectID string) (*model.Content, error) {
	var content model.Content
	query := `
		SELECT
			id, project_id, ai_raw_data, markdown_content,
			created_at, updated_at
		FROM contents
		WHERE project_id = $1
	`

	err := s.db.GetContext(ctx, &content, query, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to get content: %w", err)
	}

	return &content, nil
}

// CreateContentPlaceholder inserts an empty content row for a project
// so the document surface exists before processing finishes. Existing
// rows are left untouched.
func (s *Storage) CreateContentPlaceholder(ctx context.Context, contentID, projectID string) error {
	query := `
		INSERT INTO contents (id, project_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (project_id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query, contentID, projectID)
	if err != nil {
		return fmt.Errorf("failed to create content placeholder: %w", err)
	}

	return nil
}

// UpdateContentMarkdown overwrites the editable document text. The raw
// step data is left as produced by the pipeline.
func (s *Storage) UpdateContentMarkdown(ctx context.Context, projectID, markdownContent string) error {
	query := `
		UPDATE contents
		SET markdown_content = $2, updated_at = NOW()
		WHERE project_id = $1
	`

	result, err := s.db.ExecContext(ctx, query, projectID, markdownContent)
	if err != nil {
		return fmt.Errorf("failed to update content: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check content update: %w", err)
	}
	if rows == 0 {
		return ErrContentNotFound
	}

	return nil
}
