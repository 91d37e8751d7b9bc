package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Bindery/internal/domain"
)

// Artifact DTOs

// ArtifactResponse — ответ с артефактом.
type ArtifactResponse struct {
	ID             uuid.UUID `json:"id"`
	ObjectKey      string    `json:"object_key"`
	ContentType    string    `json:"content_type"`
	SizeBytes      int64     `json:"size_bytes"`
	Checksum       string    `json:"checksum"`
	PipelineStatus string    `json:"pipeline_status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ArtifactFromDomain конвертирует domain.Artifact в ArtifactResponse.
func ArtifactFromDomain(a domain.Artifact) ArtifactResponse {
	return ArtifactResponse{
		ID:             a.ID,
		ObjectKey:      a.ObjectKey,
		ContentType:    a.ContentType,
		SizeBytes:      a.SizeBytes,
		Checksum:       a.Checksum,
		PipelineStatus: string(a.PipelineStatus),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// Execution DTOs

// ExecutionResponse — ответ с execution.
type ExecutionResponse struct {
	ID          uuid.UUID      `json:"id"`
	ArtifactID  uuid.UUID      `json:"artifact_id"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	DurationMs  int64          `json:"duration_ms"`
	Steps       []StepResponse `json:"steps,omitempty"`
}

// ExecutionFromDomain конвертирует domain.Execution в ExecutionResponse.
func ExecutionFromDomain(e domain.Execution) ExecutionResponse {
	return ExecutionResponse{
		ID:          e.ID,
		ArtifactID:  e.ArtifactID,
		Status:      string(e.Status),
		Error:       e.Error,
		StartedAt:   e.StartedAt,
		CompletedAt: e.CompletedAt,
		CreatedAt:   e.CreatedAt,
		DurationMs:  e.Duration().Milliseconds(),
	}
}

// ExecutionWithSteps конвертирует execution вместе с шагами.
func ExecutionWithSteps(e domain.Execution, steps []domain.StepRecord) ExecutionResponse {
	resp := ExecutionFromDomain(e)
	resp.Steps = make([]StepResponse, len(steps))
	for i, step := range steps {
		resp.Steps[i] = StepFromDomain(step)
	}
	return resp
}

// StepResponse — ответ с записью шага.
type StepResponse struct {
	Name        string         `json:"name"`
	Ord         int            `json:"ord"`
	Status      string         `json:"status"`
	Output      map[string]any `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// StepFromDomain конвертирует domain.StepRecord в StepResponse.
func StepFromDomain(s domain.StepRecord) StepResponse {
	return StepResponse{
		Name:        s.Name,
		Ord:         s.Ord,
		Status:      string(s.Status),
		Output:      s.Output,
		Error:       s.Error,
		DurationMs:  s.DurationMs,
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
	}
}

// Process DTOs

// ProcessResponse — подтверждение постановки пайплайна в очередь.
type ProcessResponse struct {
	ArtifactID uuid.UUID `json:"artifact_id"`
	StatusURL  string    `json:"status_url"`
}

// Stats DTOs

// StatsResponse — агрегаты по executions.
type StatsResponse struct {
	Total         int     `json:"total"`
	Pending       int     `json:"pending"`
	Running       int     `json:"running"`
	Completed     int     `json:"completed"`
	Failed        int     `json:"failed"`
	SuccessRate   float64 `json:"success_rate"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// StatsFromDomain конвертирует domain.PipelineStats в StatsResponse.
func StatsFromDomain(s domain.PipelineStats) StatsResponse {
	return StatsResponse{
		Total:         s.Total,
		Pending:       s.Pending,
		Running:       s.Running,
		Completed:     s.Completed,
		Failed:        s.Failed,
		SuccessRate:   s.SuccessRate,
		AvgDurationMs: s.AvgDurationMs,
	}
}
