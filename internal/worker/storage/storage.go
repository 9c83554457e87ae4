package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/vid2md/vid2md/internal/worker/domain"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ClaimProject moves a project from pending to processing. The
// conditional UPDATE is the per-project mutual-exclusion token: only
// one run can win the transition, so a second trigger for the same
// project fails with ErrProjectNotClaimable instead of interleaving.
func (s *Storage) ClaimProject(ctx context.Context, projectID string) (*domain.Project, error) {
	query := `
		UPDATE projects
		SET status = $1,
		    progress = $2,
		    updated_at = NOW()
		WHERE id = $3
		  AND status = $4
		RETURNING id, title, COALESCE(invite_code, ''), video_path, COALESCE(duration, 0)
	`

	var project domain.Project
	err := s.db.QueryRowContext(ctx, query,
		domain.StatusProcessing, domain.ProgressClaimed, projectID, domain.StatusPending,
	).Scan(
		&project.ID,
		&project.Title,
		&project.InviteCode,
		&project.VideoPath,
		&project.Duration,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim project - not pending or not found",
				slog.String("project_id", projectID),
			)
			return nil, domain.ErrProjectNotClaimable
		}
		return nil, fmt.Errorf("failed to claim project: %w", err)
	}

	project.Status = domain.StatusProcessing
	project.Progress = domain.ProgressClaimed

	s.logger.Info("Project claimed",
		slog.String("project_id", project.ID),
		slog.String("title", project.Title),
	)

	return &project, nil
}

// SetDuration stores the probed duration on the project record.
func (s *Storage) SetDuration(ctx context.Context, projectID string, seconds int) error {
	query := `UPDATE projects SET duration = $1, updated_at = NOW() WHERE id = $2`

	if _, err := s.db.ExecContext(ctx, query, seconds, projectID); err != nil {
		return fmt.Errorf("failed to set duration: %w", err)
	}
	return nil
}

// UpdateTitle replaces the project title, e.g. with an AI headline.
func (s *Storage) UpdateTitle(ctx context.Context, projectID, title string) error {
	query := `UPDATE projects SET title = $1, updated_at = NOW() WHERE id = $2`

	if _, err := s.db.ExecContext(ctx, query, title, projectID); err != nil {
		return fmt.Errorf("failed to update title: %w", err)
	}
	return nil
}

// UpdateProgress advances the progress percentage of a processing
// project. Progress never moves backwards within a run.
func (s *Storage) UpdateProgress(ctx context.Context, projectID string, progress int) error {
	query := `
		UPDATE projects
		SET progress = GREATEST(progress, $1),
		    updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	if _, err := s.db.ExecContext(ctx, query, progress, projectID, domain.StatusProcessing); err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

// SaveContent upserts the assembled document for a project.
func (s *Storage) SaveContent(ctx context.Context, projectID string, rawData []byte, markdownContent string) error {
	query := `
		INSERT INTO contents (project_id, ai_raw_data, markdown_content, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (project_id) DO UPDATE
		SET ai_raw_data = EXCLUDED.ai_raw_data,
		    markdown_content = EXCLUDED.markdown_content,
		    updated_at = NOW()
	`

	// lib/pq would send []byte as bytea, which the jsonb column rejects
	if _, err := s.db.ExecContext(ctx, query, projectID, string(rawData), markdownContent); err != nil {
		return fmt.Errorf("failed to save content: %w", err)
	}

	s.logger.Info("Content saved",
		slog.String("project_id", projectID),
		slog.Int("markdown_bytes", len(markdownContent)),
	)
	return nil
}

// MarkCompleted finishes a successful run: progress forced to 100 and
// any previous error cleared.
func (s *Storage) MarkCompleted(ctx context.Context, projectID string) error {
	query := `
		UPDATE projects
		SET status = $1,
		    progress = $2,
		    error_msg = NULL,
		    updated_at = NOW()
		WHERE id = $3
	`

	if _, err := s.db.ExecContext(ctx, query, domain.StatusCompleted, domain.ProgressCompleted, projectID); err != nil {
		return fmt.Errorf("failed to mark project completed: %w", err)
	}

	s.logger.Info("Project completed",
		slog.String("project_id", projectID),
	)
	return nil
}

// MarkFailed records a terminal failure. Progress keeps its last known
// value so operators can see how far the run got.
func (s *Storage) MarkFailed(ctx context.Context, projectID, errorMsg string) error {
	query := `
		UPDATE projects
		SET status = $1,
		    error_msg = $2,
		    updated_at = NOW()
		WHERE id = $3
	`

	if _, err := s.db.ExecContext(ctx, query, domain.StatusFailed, errorMsg, projectID); err != nil {
		return fmt.Errorf("failed to mark project failed: %w", err)
	}

	s.logger.Info("Project failed",
		slog.String("project_id", projectID),
		slog.String("error", errorMsg),
	)
	return nil
}
