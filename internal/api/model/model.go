package model

import (
	"database/sql"
	"time"
)

type Project struct {
	ID         string         `db:"id"`
	Title      string         `db:"title"`
	InviteCode sql.NullString `db:"invite_code"`
	VideoPath  string         `db:"video_path"`
	Duration   sql.NullInt64  `db:"duration"`
	Status     string         `db:"status"`
	Progress   int            `db:"progress"`
	ErrorMsg   sql.NullString `db:"error_msg"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

type Content struct {
	ID              string         `db:"id"`
	ProjectID       string         `db:"project_id"`
	RawData         sql.NullString `db:"ai_raw_data"`
	MarkdownContent sql.NullString `db:"markdown_content"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}
