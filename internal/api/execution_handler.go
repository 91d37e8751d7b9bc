package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shaiso/Bindery/internal/domain"
	"github.com/shaiso/Bindery/internal/repo"
)

// ListExecutions возвращает список executions с фильтрацией.
// GET /api/v1/executions?artifact_id=...&status=...&limit=...&offset=...
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	filter := repo.ExecutionFilter{}

	// Парсим query параметры
	if artifactIDStr := r.URL.Query().Get("artifact_id"); artifactIDStr != "" {
		artifactID, err := uuid.Parse(artifactIDStr)
		if err != nil {
			BadRequest(w, "invalid artifact_id")
			return
		}
		filter.ArtifactID = &artifactID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.ExecutionStatus(status)
	}

	filter.Limit = queryInt(r, "limit", 50)
	filter.Offset = queryInt(r, "offset", 0)

	execs, err := h.executionRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ExecutionResponse, len(execs))
	for i, exec := range execs {
		result[i] = ExecutionFromDomain(exec)
	}

	List(w, result, len(result))
}

// GetExecution возвращает execution с шагами.
// GET /api/v1/executions/{id}
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	exec, err := h.executionRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}

	steps, err := h.stepRepo.ListByExecution(r.Context(), exec.ID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Success(w, ExecutionWithSteps(*exec, steps))
}

// GetStats возвращает агрегаты по executions.
// GET /api/v1/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.executionRepo.Stats(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Success(w, StatsFromDomain(*stats))
}

// queryInt парсит числовой query-параметр с дефолтным значением.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
