package dto

type CreateProjectResponse struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	CreatedAt string `json:"created_at"`
}

type ListProjectsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListProjectsResponse struct {
	Projects   []ProjectDTO `json:"projects"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

type ProjectDTO struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Duration  int64  `json:"duration,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ContentResponse struct {
	ProjectID       string `json:"project_id"`
	Status          string `json:"status"`
	Progress        int    `json:"progress"`
	MarkdownContent string `json:"markdown_content"`
	RawData         string `json:"raw_data,omitempty"`
	UpdatedAt       string `json:"updated_at"`
}

type UpdateContentRequest struct {
	MarkdownContent string `json:"markdown_content" binding:"required"`
}
