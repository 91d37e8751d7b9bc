package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shaiso/Bindery/internal/domain"
	"github.com/shaiso/Bindery/internal/mq"
	"github.com/shaiso/Bindery/internal/objectstore"
	"github.com/shaiso/Bindery/internal/repo"
	"github.com/shaiso/Bindery/internal/telemetry"
)

// handleArtifactProcess обрабатывает команду из очереди artifacts.process.
func (w *Worker) handleArtifactProcess(ctx context.Context, delivery *mq.Delivery) error {
	// Парсим payload
	payload, err := mq.ParsePayload[mq.ArtifactProcessPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse artifact.process payload", "error", err)
		return mq.Permanent(err)
	}

	w.logger.Debug("received artifact.process command",
		"artifact_id", payload.ArtifactID,
		"attempt", delivery.Attempt,
	)

	// Обрабатываем артефакт
	if err := w.processArtifact(ctx, payload.ArtifactID); err != nil {
		// Артефакт не найден — ожидаемая ситуация (удалён между публикацией
		// и обработкой), подтверждаем без обработки
		if errors.Is(err, ErrArtifactNotFound) {
			w.logger.Debug("artifact not processed", "artifact_id", payload.ArtifactID, "reason", err)
			telemetry.WorkerAttempts.WithLabelValues("skipped").Inc()
			return nil
		}
		// Объекта нет в хранилище — повтор не поможет, в DLQ
		if errors.Is(err, ErrImageMissing) {
			w.logger.Error("artifact image missing", "artifact_id", payload.ArtifactID)
			telemetry.WorkerAttempts.WithLabelValues("missing_image").Inc()
			return mq.Permanent(err)
		}
		w.logger.Error("failed to process artifact", "artifact_id", payload.ArtifactID, "error", err)
		telemetry.WorkerAttempts.WithLabelValues("error").Inc()
		return err
	}

	telemetry.WorkerAttempts.WithLabelValues("ok").Inc()
	return nil
}

// processArtifact создаёт execution со всеми шагами и прогоняет пайплайн.
func (w *Worker) processArtifact(ctx context.Context, artifactID uuid.UUID) error {
	// 1. Загружаем артефакт из БД
	artifact, err := w.artifactRepo.GetByID(ctx, artifactID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrArtifactNotFound, artifactID)
		}
		return fmt.Errorf("get artifact: %w", err)
	}

	// 2. Создаём execution с PENDING-шагами по порядку реестра
	exec, _, err := w.executionRepo.CreateWithSteps(ctx, artifact.ID, w.registry.Names())
	if err != nil {
		return fmt.Errorf("create execution: %w", err)
	}

	return w.runExecution(ctx, exec)
}

// runExecution загружает изображение и доводит execution до терминального
// статуса. Общий путь для consumer и polling fallback.
func (w *Worker) runExecution(ctx context.Context, exec *domain.Execution) error {
	artifact, err := w.artifactRepo.GetByID(ctx, exec.ArtifactID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrArtifactNotFound, exec.ArtifactID)
		}
		return fmt.Errorf("get artifact: %w", err)
	}

	// Загружаем изображение из объектного хранилища
	image, contentType, err := w.store.Load(ctx, artifact.ObjectKey)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			// Фиксируем причину в execution, чтобы она была видна через API
			failMsg := fmt.Sprintf("image %s missing in object store", artifact.ObjectKey)
			if failErr := w.executionRepo.Fail(ctx, exec, failMsg); failErr != nil {
				w.logger.Error("failed to mark execution failed",
					"execution_id", exec.ID,
					"error", failErr,
				)
			}
			return fmt.Errorf("%w: %s", ErrImageMissing, artifact.ObjectKey)
		}
		return fmt.Errorf("load image: %w", err)
	}
	if contentType == "" {
		contentType = artifact.ContentType
	}

	w.logger.Info("pipeline run starting",
		"execution_id", exec.ID,
		"artifact_id", artifact.ID,
		"object_key", artifact.ObjectKey,
		"size_bytes", len(image),
	)

	// Прогоняем пайплайн
	result, _, err := w.executor.Run(ctx, exec, image, contentType)
	if err != nil {
		// Инфраструктурный сбой: execution мог остаться в промежуточном
		// статусе, сообщение вернётся на retry
		return fmt.Errorf("run pipeline: %w", err)
	}

	return w.publishUpdate(ctx, result)
}

// publishUpdate публикует событие pipeline.updated.
func (w *Worker) publishUpdate(ctx context.Context, exec *domain.Execution) error {
	if w.publisher == nil {
		w.logger.Warn("publisher not available, skipping pipeline.updated publish",
			"execution_id", exec.ID,
		)
		return nil
	}

	payload := mq.PipelineUpdatedPayload{
		ArtifactID:  exec.ArtifactID,
		ExecutionID: exec.ID,
		Status:      string(exec.Status),
		Error:       exec.Error,
		DurationMs:  exec.Duration().Milliseconds(),
	}

	if err := w.publisher.PublishPipelineUpdated(ctx, payload); err != nil {
		w.logger.Warn("failed to publish pipeline.updated",
			"execution_id", exec.ID,
			"error", err,
		)
		// Не возвращаем ошибку — execution уже в терминальном статусе в БД
	}

	return nil
}
