package api

import (
	"log/slog"

	"github.com/shaiso/Bindery/internal/mq"
	"github.com/shaiso/Bindery/internal/objectstore"
	"github.com/shaiso/Bindery/internal/repo"
	"github.com/shaiso/Bindery/internal/workflow"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	artifactRepo  *repo.ArtifactRepo
	executionRepo *repo.ExecutionRepo
	stepRepo      *repo.StepRepo
	store         *objectstore.Store
	workflows     *workflow.Service
	publisher     *mq.Publisher
	logger        *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	ArtifactRepo  *repo.ArtifactRepo
	ExecutionRepo *repo.ExecutionRepo
	StepRepo      *repo.StepRepo
	Store         *objectstore.Store
	Workflows     *workflow.Service
	Publisher     *mq.Publisher
	Logger        *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		artifactRepo:  cfg.ArtifactRepo,
		executionRepo: cfg.ExecutionRepo,
		stepRepo:      cfg.StepRepo,
		store:         cfg.Store,
		workflows:     cfg.Workflows,
		publisher:     cfg.Publisher,
		logger:        cfg.Logger,
	}
}
