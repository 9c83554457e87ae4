package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vid2md/vid2md/internal/api/dto"
	"github.com/vid2md/vid2md/internal/api/storage"
	"github.com/vid2md/vid2md/internal/export"
	"github.com/vid2md/vid2md/internal/tutorial"
)

// GetContent handles GET /api/v1/projects/:project_id/content
// Returns the generated document alongside the project's current state
func (h *ProjectHandler) GetContent(c *gin.Context) {
	project, ok := h.loadAuthorizedProject(c)
	if !ok {
		return
	}

	content, err := h.storage.GetContentByProjectID(c.Request.Context(), project.ID)
	if err != nil {
		if !errors.Is(err, storage.ErrContentNotFound) {
			h.logger.Error("Failed to get content", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to get content",
			})
			return
		}

		// older projects may predate the placeholder row
		if err := h.storage.CreateContentPlaceholder(c.Request.Context(), uuid.New().String(), project.ID); err != nil {
			h.logger.Error("Failed to create content placeholder",
				slog.String("project_id", project.ID),
				slog.String("error", err.Error()),
			)
		}

		c.JSON(http.StatusOK, dto.ContentResponse{
			ProjectID: project.ID,
			Status:    project.Status,
			Progress:  project.Progress,
			UpdatedAt: project.UpdatedAt.Format(time.RFC3339),
		})
		return
	}

	c.JSON(http.StatusOK, dto.ContentResponse{
		ProjectID:       project.ID,
		Status:          project.Status,
		Progress:        project.Progress,
		MarkdownContent: content.MarkdownContent.String,
		RawData:         content.RawData.String,
		UpdatedAt:       content.UpdatedAt.Format(time.RFC3339),
	})
}

// UpdateContent handles PUT /api/v1/projects/:project_id/content
// Saves the user's edited document text
func (h *ProjectHandler) UpdateContent(c *gin.Context) {
	project, ok := h.loadAuthorizedProject(c)
	if !ok {
		return
	}

	var req dto.UpdateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if err := h.storage.UpdateContentMarkdown(c.Request.Context(), project.ID, req.MarkdownContent); err != nil {
		if errors.Is(err, storage.ErrContentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "content not found",
			})
			return
		}
		h.logger.Error("Failed to update content", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to update content",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project_id": project.ID,
		"status":     "updated",
	})
}

// ExportProject handles GET /api/v1/projects/:project_id/export
// Streams a zip archive of the document and its screenshots
func (h *ProjectHandler) ExportProject(c *gin.Context) {
	project, ok := h.loadAuthorizedProject(c)
	if !ok {
		return
	}

	content, err := h.storage.GetContentByProjectID(c.Request.Context(), project.ID)
	if err != nil {
		if errors.Is(err, storage.ErrContentNotFound) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "content not ready for export",
			})
			return
		}
		h.logger.Error("Failed to get content", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get content",
		})
		return
	}

	var imagePaths []string
	if content.RawData.Valid && content.RawData.String != "" {
		var script tutorial.Script
		if err := json.Unmarshal([]byte(content.RawData.String), &script); err != nil {
			h.logger.Error("Failed to decode step data",
				slog.String("project_id", project.ID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to build export",
			})
			return
		}
		imagePaths = script.ImagePaths()
	}

	archive, filename, err := h.packager.Build(
		project.Status,
		project.Title,
		content.MarkdownContent.String,
		imagePaths,
	)
	if err != nil {
		if errors.Is(err, export.ErrContentNotReady) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "content not ready for export",
			})
			return
		}
		h.logger.Error("Failed to build export archive",
			slog.String("project_id", project.ID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to build export",
		})
		return
	}

	h.logger.Info("Export archive built",
		slog.String("project_id", project.ID),
		slog.String("filename", filename),
		slog.Int("size_bytes", len(archive)),
	)

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/zip", archive)
}
