package domain

import (
	"time"

	"github.com/google/uuid"
)

// StepRecord — персистентный результат одного шага внутри execution.
//
// Все StepRecord для execution создаются вместе, в статусе PENDING,
// до начала выполнения. В нормальном сценарии Executor мутирует каждую
// запись ровно два раза: старт (RUNNING), затем терминальный статус.
//
// Пара (execution_id, name) уникальна; Ord назначается при создании
// по позиции шага в реестре и больше не меняется.
type StepRecord struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// ExecutionID — ссылка на родительский execution.
	ExecutionID uuid.UUID `json:"execution_id"`

	// Name — имя шага из закрытого множества (detect, ocr, grade).
	Name string `json:"name"`

	// Ord — порядковый номер шага (с 1), уникален в рамках execution.
	Ord int `json:"ord"`

	// Status — текущий статус шага.
	Status StepStatus `json:"status"`

	// Input — снимок входных данных шага (опционально).
	Input map[string]any `json:"input,omitempty"`

	// Output — структурированный результат шага.
	// Именно он попадает в накопленный контекст следующих шагов.
	Output map[string]any `json:"output,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// DurationMs — измеренная продолжительность выполнения в миллисекундах.
	DurationMs int64 `json:"duration_ms"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время завершения.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsFinished возвращает true, если шаг завершён.
func (s *StepRecord) IsFinished() bool {
	return s.Status.IsTerminal()
}

// MarkRunning переводит шаг в статус RUNNING.
func (s *StepRecord) MarkRunning() {
	now := time.Now()
	s.Status = StepStatusRunning
	s.StartedAt = &now
}

// MarkCompleted переводит шаг в статус COMPLETED с результатом.
func (s *StepRecord) MarkCompleted(output map[string]any, durationMs int64) {
	now := time.Now()
	s.Status = StepStatusCompleted
	s.CompletedAt = &now
	s.Output = output
	s.DurationMs = durationMs
}

// MarkFailed переводит шаг в статус FAILED с ошибкой.
func (s *StepRecord) MarkFailed(err string, durationMs int64) {
	now := time.Now()
	s.Status = StepStatusFailed
	s.CompletedAt = &now
	s.Error = err
	s.DurationMs = durationMs
}

// MarkSkipped переводит шаг в статус SKIPPED с причиной.
func (s *StepRecord) MarkSkipped(reason string) {
	now := time.Now()
	s.Status = StepStatusSkipped
	s.CompletedAt = &now
	s.Error = reason
}

// NewStepRecord создаёт запись шага в статусе PENDING.
func NewStepRecord(executionID uuid.UUID, name string, ord int) *StepRecord {
	return &StepRecord{
		ID:          uuid.New(),
		ExecutionID: executionID,
		Name:        name,
		Ord:         ord,
		Status:      StepStatusPending,
	}
}
