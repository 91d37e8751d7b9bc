package api

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shaiso/Bindery/internal/domain"
)

// maxUploadBytes — максимальный размер загружаемого изображения.
const maxUploadBytes = 32 << 20 // 32 MiB

// UploadArtifact принимает изображение, кладёт его в объектное хранилище
// и ставит пайплайн в очередь.
// POST /api/v1/artifacts (тело — байты изображения, Content-Type обязателен)
func (h *Handler) UploadArtifact(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		BadRequest(w, "Content-Type must be an image type")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		BadRequest(w, fmt.Sprintf("read body: %v", err))
		return
	}
	if len(data) == 0 {
		BadRequest(w, "empty body")
		return
	}

	sum := sha256.Sum256(data)
	artifact := domain.NewArtifact("", contentType, int64(len(data)), hex.EncodeToString(sum[:]))
	artifact.ObjectKey = fmt.Sprintf("artifacts/%s", artifact.ID)

	if err := h.store.Put(r.Context(), artifact.ObjectKey, data, contentType); err != nil {
		InternalError(w, h.logger, fmt.Errorf("store artifact: %w", err))
		return
	}

	if err := h.artifactRepo.Create(r.Context(), artifact); err != nil {
		InternalError(w, h.logger, fmt.Errorf("create artifact: %w", err))
		return
	}

	// Ставим пайплайн в очередь; без брокера артефакт создаётся,
	// обработку можно запустить позже через /process
	if h.publisher != nil {
		if err := h.publisher.PublishArtifactProcess(r.Context(), artifact.ID); err != nil {
			h.logger.Warn("failed to schedule pipeline for upload",
				"artifact_id", artifact.ID,
				"error", err,
			)
		}
	}

	h.logger.Info("artifact uploaded",
		"artifact_id", artifact.ID,
		"content_type", contentType,
		"size_bytes", len(data),
	)

	Created(w, ArtifactFromDomain(*artifact))
}

// GetArtifact возвращает метаданные артефакта.
// GET /api/v1/artifacts/{id}
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid artifact id")
		return
	}

	artifact, err := h.artifactRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "artifact not found") {
		return
	}

	Success(w, ArtifactFromDomain(*artifact))
}

// ProcessArtifact ставит полный прогон пайплайна в очередь.
// POST /api/v1/artifacts/{id}/process
func (h *Handler) ProcessArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid artifact id")
		return
	}

	// Проверяем, что артефакт существует, до публикации
	artifact, err := h.artifactRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "artifact not found") {
		return
	}

	if h.publisher == nil {
		InternalError(w, h.logger, fmt.Errorf("message broker not available"))
		return
	}

	if err := h.publisher.PublishArtifactProcess(r.Context(), artifact.ID); err != nil {
		InternalError(w, h.logger, fmt.Errorf("publish process command: %w", err))
		return
	}

	Accepted(w, ProcessResponse{
		ArtifactID: artifact.ID,
		StatusURL:  fmt.Sprintf("/api/v1/artifacts/%s/execution", artifact.ID),
	})
}

// GetArtifactExecution возвращает последний execution артефакта с шагами.
// Никогда не ошибается посреди прогона: отдаёт частичное состояние как есть.
// GET /api/v1/artifacts/{id}/execution
func (h *Handler) GetArtifactExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid artifact id")
		return
	}

	exec, err := h.executionRepo.GetLatestByArtifact(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "no execution for artifact") {
		return
	}

	steps, err := h.stepRepo.ListByExecution(r.Context(), exec.ID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Success(w, ExecutionWithSteps(*exec, steps))
}

// RunWorkflow синхронно выполняет именованный workflow.
// POST /api/v1/artifacts/{id}/workflows/{name}
func (h *Handler) RunWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid artifact id")
		return
	}
	name := r.PathValue("name")

	result, err := h.workflows.Run(r.Context(), id, name)
	if HandleWorkflowError(w, h.logger, err) {
		return
	}

	if result.Accepted {
		Accepted(w, result)
		return
	}
	Success(w, result)
}
