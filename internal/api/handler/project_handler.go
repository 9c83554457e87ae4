package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vid2md/vid2md/internal/api/dto"
	"github.com/vid2md/vid2md/internal/api/model"
	"github.com/vid2md/vid2md/internal/api/storage"
	"github.com/vid2md/vid2md/internal/invite"
	"github.com/vid2md/vid2md/internal/worker/domain"
)

var allowedVideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
}

// inviteCode extracts the client's invite code from the X-Invite-Code
// header, falling back to the invite_code query parameter.
func inviteCode(c *gin.Context) string {
	if code := strings.TrimSpace(c.GetHeader("X-Invite-Code")); code != "" {
		return code
	}
	return strings.TrimSpace(c.Query("invite_code"))
}

// CreateProject handles POST /api/v1/projects
// Accepts a video upload and queues it for conversion
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	h.logger.Info("CreateProject called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	code, err := h.gate.Consume(c.Request.Context(), inviteCode(c))
	if err != nil {
		h.rejectInvite(c, err)
		return
	}

	file, err := c.FormFile("video")
	if err != nil {
		h.logger.Error("Missing video file in upload", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "video file is required",
		})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedVideoExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unsupported video format",
		})
		return
	}

	if maxBytes := h.cfg.Server.MaxUploadMB * 1024 * 1024; file.Size > maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "video file too large",
		})
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(file.Filename), ext)
	}
	title = domain.TruncateTitle(title)

	projectID := uuid.New().String()
	videosDir := filepath.Join(h.cfg.Media.StaticDir, h.cfg.Media.VideosDirName)
	if err := os.MkdirAll(videosDir, 0o755); err != nil {
		h.logger.Error("Failed to create videos directory", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to store video",
		})
		return
	}

	videoPath := filepath.Join(videosDir, projectID+ext)
	if err := c.SaveUploadedFile(file, videoPath); err != nil {
		h.logger.Error("Failed to save uploaded video", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to store video",
		})
		return
	}

	project := model.Project{
		ID:         projectID,
		Title:      title,
		InviteCode: sql.NullString{String: code, Valid: code != ""},
		VideoPath:  videoPath,
		Status:     domain.StatusPending,
		Progress:   0,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	if err := h.storage.CreateProject(c.Request.Context(), &project); err != nil {
		h.logger.Error("Failed to create project", slog.String("error", err.Error()))
		h.removeVideo(videoPath)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create project",
		})
		return
	}

	if err := h.storage.CreateContentPlaceholder(c.Request.Context(), uuid.New().String(), projectID); err != nil {
		h.logger.Error("Failed to create content placeholder",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
	}

	message, err := json.Marshal(domain.ProjectMessage{
		ProjectID: projectID,
		VideoPath: videoPath,
	})
	if err != nil {
		h.logger.Error("Failed to encode dispatch message", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to queue project",
		})
		return
	}

	if err := h.rabbitClient.Publish(c.Request.Context(), message, "application/json"); err != nil {
		h.logger.Error("Failed to publish dispatch message",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to queue project",
		})
		return
	}

	h.logger.Info("Project queued",
		slog.String("project_id", projectID),
		slog.String("title", title),
		slog.Int64("size_bytes", file.Size),
	)

	c.JSON(http.StatusOK, dto.CreateProjectResponse{
		ProjectID: project.ID,
		Title:     project.Title,
		Status:    project.Status,
		Progress:  project.Progress,
		CreatedAt: project.CreatedAt.Format(time.RFC3339),
	})
}

// GetProject handles GET /api/v1/projects/:project_id
// Returns project status and progress for polling
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, ok := h.loadAuthorizedProject(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, projectDTO(project))
}

// ListProjects handles GET /api/v1/projects
// Lists the caller's projects with cursor pagination
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	var req dto.ListProjectsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeProjectCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.ProjectFilter{
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	// when gating is on, a caller only ever sees their own code's projects
	if h.gate.Required() {
		code, err := h.gate.Authorize(c.Request.Context(), inviteCode(c))
		if err != nil {
			h.rejectInvite(c, err)
			return
		}
		filter.InviteCode = code
	}

	projects, err := h.storage.ListProjects(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list projects", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list projects",
		})
		return
	}

	hasMore := len(projects) > req.PageSize
	if hasMore {
		projects = projects[:req.PageSize]
	}

	projectResponse := make([]dto.ProjectDTO, len(projects))
	for i, project := range projects {
		projectResponse[i] = projectDTO(&project)
	}

	var nextCursor string
	if hasMore {
		lastProject := projects[len(projects)-1]
		cursorObj := storage.ProjectCursor{
			CreatedAt: lastProject.CreatedAt,
			ProjectID: lastProject.ID,
		}
		nextCursor, err = EncodeProjectCursor(&cursorObj)
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListProjectsResponse{
		Projects:   projectResponse,
		NextCursor: nextCursor,
	})
}

// loadAuthorizedProject validates the project_id path parameter, loads
// the project, and enforces invite-code isolation. It writes the error
// response itself when access is denied.
func (h *ProjectHandler) loadAuthorizedProject(c *gin.Context) (*model.Project, bool) {
	projectID := c.Param("project_id")

	if _, err := uuid.Parse(projectID); err != nil {
		h.logger.Error("Invalid project_id format",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "project_id must be a valid UUID",
		})
		return nil, false
	}

	project, err := h.storage.GetProjectByID(c.Request.Context(), projectID)
	if err != nil {
		if errors.Is(err, storage.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "project not found",
			})
			return nil, false
		}
		h.logger.Error("Failed to get project", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get project",
		})
		return nil, false
	}

	if h.gate.Required() {
		code, err := h.gate.Authorize(c.Request.Context(), inviteCode(c))
		if err != nil {
			h.rejectInvite(c, err)
			return nil, false
		}
		if project.InviteCode.String != code {
			// hide other codes' projects entirely
			c.JSON(http.StatusNotFound, gin.H{
				"error": "project not found",
			})
			return nil, false
		}
	}

	return project, true
}

// rejectInvite maps invite gate failures onto HTTP responses.
func (h *ProjectHandler) rejectInvite(c *gin.Context, err error) {
	switch {
	case errors.Is(err, invite.ErrCodeInvalid):
		c.JSON(http.StatusForbidden, gin.H{
			"error": "invalid invite code",
		})
	case errors.Is(err, invite.ErrQuotaExhausted):
		c.JSON(http.StatusForbidden, gin.H{
			"error": "invite code quota exhausted",
		})
	default:
		h.logger.Error("Invite check failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to verify invite code",
		})
	}
}

func (h *ProjectHandler) removeVideo(videoPath string) {
	if err := os.Remove(videoPath); err != nil && !os.IsNotExist(err) {
		h.logger.Warn("Failed to remove video file",
			slog.String("path", videoPath),
			slog.String("error", err.Error()),
		)
	}
}

func projectDTO(project *model.Project) dto.ProjectDTO {
	return dto.ProjectDTO{
		ProjectID: project.ID,
		Title:     project.Title,
		Status:    project.Status,
		Progress:  project.Progress,
		Duration:  project.Duration.Int64,
		ErrorMsg:  project.ErrorMsg.String,
		CreatedAt: project.CreatedAt.Format(time.RFC3339),
		UpdatedAt: project.UpdatedAt.Format(time.RFC3339),
	}
}
