package handler

import (
	"log/slog"

	"github.com/vid2md/vid2md/internal/api/storage"
	"github.com/vid2md/vid2md/internal/config"
	"github.com/vid2md/vid2md/internal/export"
	"github.com/vid2md/vid2md/internal/invite"
	"github.com/vid2md/vid2md/shared/postgresql"
	"github.com/vid2md/vid2md/shared/rabbitmq"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	DBClient     *postgresql.Client
	RabbitClient *rabbitmq.Client
	Gate         *invite.Gate
	Config       *config.Config
}

// ProjectHandler handles project-related HTTP requests
type ProjectHandler struct {
	logger       *slog.Logger
	storage      *storage.Storage
	rabbitClient *rabbitmq.Client
	gate         *invite.Gate
	packager     export.Packager
	cfg          *config.Config
}

// NewProjectHandler creates a new ProjectHandler instance
func NewProjectHandler(deps *Dependencies) *ProjectHandler {
	return &ProjectHandler{
		logger:       deps.Logger,
		storage:      storage.NewStorage(deps.DBClient),
		rabbitClient: deps.RabbitClient,
		gate:         deps.Gate,
		packager:     export.Packager{StaticDir: deps.Config.Media.StaticDir},
		cfg:          deps.Config,
	}
}
