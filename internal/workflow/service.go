package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/Bindery/internal/domain"
	"github.com/shaiso/Bindery/internal/mq"
	"github.com/shaiso/Bindery/internal/objectstore"
	"github.com/shaiso/Bindery/internal/pipeline"
	"github.com/shaiso/Bindery/internal/repo"
)

// Имена workflows. Закрытый набор: три одиночных шага пайплайна,
// коррекция изображения и запуск полного прогона через очередь.
const (
	WorkflowDetect = pipeline.StepDetect
	WorkflowOCR    = pipeline.StepOCR
	WorkflowGrade  = pipeline.StepGrade
	WorkflowCrop   = "crop"
	WorkflowFull   = "full"
)

// ValidWorkflows — допустимые имена в порядке объявления.
var ValidWorkflows = []string{WorkflowDetect, WorkflowOCR, WorkflowGrade, WorkflowCrop, WorkflowFull}

// Result — результат синхронного workflow.
type Result struct {
	// Workflow — имя выполненного workflow.
	Workflow string `json:"workflow"`

	// ArtifactID — артефакт, над которым выполнялся workflow.
	ArtifactID uuid.UUID `json:"artifact_id"`

	// Outputs — результаты шага (для одиночных шагов и crop).
	Outputs map[string]any `json:"outputs,omitempty"`

	// Accepted — true для "full": пайплайн поставлен в очередь.
	Accepted bool `json:"accepted,omitempty"`

	// StatusURL — где проверять статус (для "full").
	StatusURL string `json:"status_url,omitempty"`
}

// Service — синхронная точка входа для ручных workflows.
//
// Одиночные workflows (detect, ocr, grade) вызывают Execute шага
// напрямую: без записей в БД и без дополнительного таймаута поверх
// собственного таймаута шага. Доменные ошибки шага (NoSubjectError,
// MultipleSubjectsError) возвращаются вызывающему как типизированные
// исходы, а не системные сбои.
//
// "crop" — производная мутация артефакта: детекция, обрезка по рамке,
// перезапись объекта в хранилище и обновление метаданных.
// "full" — тонкий адаптер к асинхронному пути: публикует ту же команду,
// что и загрузка артефакта, и сразу возвращает подтверждение.
type Service struct {
	registry  *pipeline.Registry
	store     *objectstore.Store
	artifacts *repo.ArtifactRepo
	publisher *mq.Publisher
	logger    *slog.Logger
}

// Config — конфигурация Service.
type Config struct {
	Registry  *pipeline.Registry
	Store     *objectstore.Store
	Artifacts *repo.ArtifactRepo
	Publisher *mq.Publisher
	Logger    *slog.Logger
}

// New создаёт Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry:  cfg.Registry,
		store:     cfg.Store,
		artifacts: cfg.Artifacts,
		publisher: cfg.Publisher,
		logger:    logger,
	}
}

// Run выполняет именованный workflow для артефакта.
//
// Неизвестное имя отклоняется до обращения к БД и хранилищу.
// Инфраструктурные ошибки (артефакт не найден, хранилище недоступно)
// возвращаются как есть; доменные ошибки шагов проходят насквозь
// типизированными.
func (s *Service) Run(ctx context.Context, artifactID uuid.UUID, name string) (*Result, error) {
	if !isValidWorkflow(name) {
		return nil, &UnknownWorkflowError{Name: name, Valid: ValidWorkflows}
	}

	artifact, err := s.artifacts.GetByID(ctx, artifactID)
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}

	s.logger.Info("running workflow",
		"workflow", name,
		"artifact_id", artifactID,
	)

	switch name {
	case WorkflowFull:
		return s.runFull(ctx, artifact)
	case WorkflowCrop:
		return s.runCrop(ctx, artifact)
	default:
		return s.runStep(ctx, artifact, name)
	}
}

// runStep вызывает Execute одного шага напрямую.
func (s *Service) runStep(ctx context.Context, artifact *domain.Artifact, name string) (*Result, error) {
	step, err := s.registry.Get(name)
	if err != nil {
		return nil, err
	}

	image, contentType, err := s.loadImage(ctx, artifact)
	if err != nil {
		return nil, err
	}

	resp, err := step.Execute(ctx, pipeline.NewRequest(image, contentType, nil))
	if err != nil {
		return nil, err
	}

	return &Result{
		Workflow:   name,
		ArtifactID: artifact.ID,
		Outputs:    resp.Outputs,
	}, nil
}

// runFull публикует команду полного прогона и сразу возвращает
// подтверждение со ссылкой на статус.
func (s *Service) runFull(ctx context.Context, artifact *domain.Artifact) (*Result, error) {
	if s.publisher == nil {
		return nil, fmt.Errorf("publish process command: message broker unavailable")
	}
	if err := s.publisher.PublishArtifactProcess(ctx, artifact.ID); err != nil {
		return nil, fmt.Errorf("publish process command: %w", err)
	}

	return &Result{
		Workflow:   WorkflowFull,
		ArtifactID: artifact.ID,
		Accepted:   true,
		StatusURL:  fmt.Sprintf("/api/v1/artifacts/%s/execution", artifact.ID),
	}, nil
}

// loadImage читает байты артефакта из хранилища.
func (s *Service) loadImage(ctx context.Context, artifact *domain.Artifact) ([]byte, string, error) {
	image, contentType, err := s.store.Load(ctx, artifact.ObjectKey)
	if err != nil {
		return nil, "", fmt.Errorf("load image %s: %w", artifact.ObjectKey, err)
	}
	if contentType == "" {
		contentType = artifact.ContentType
	}
	return image, contentType, nil
}

// isValidWorkflow проверяет имя по закрытому набору.
func isValidWorkflow(name string) bool {
	for _, v := range ValidWorkflows {
		if v == name {
			return true
		}
	}
	return false
}
