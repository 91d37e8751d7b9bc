package domain

import (
	"time"

	"github.com/google/uuid"
)

// Execution — один сквозной прогон пайплайна для одного артефакта.
//
// Execution создаётся когда:
// - Загружен новый артефакт (worker получает сообщение из очереди)
// - Пользователь запускает workflow "full" вручную
// - Sweeper повторно ставит в очередь упавший артефакт
//
// Execution создаётся атомарно вместе со всеми своими StepRecord
// (по одному на каждый зарегистрированный шаг, в объявленном порядке).
// Мутирует execution только Executor; API-слой лишь читает.
type Execution struct {
	// ID — уникальный идентификатор execution.
	ID uuid.UUID `json:"id"`

	// ArtifactID — ссылка на обрабатываемый артефакт.
	ArtifactID uuid.UUID `json:"artifact_id"`

	// Status — текущий статус выполнения.
	Status ExecutionStatus `json:"status"`

	// Error — текст ошибки упавшего шага, если статус FAILED.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время завершения (успешного или с ошибкой).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// CreatedAt — время создания execution.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если execution ещё не завершён.
func (e *Execution) Duration() time.Duration {
	if e.StartedAt == nil || e.CompletedAt == nil {
		return 0
	}
	return e.CompletedAt.Sub(*e.StartedAt)
}

// IsFinished возвращает true, если execution завершён (в любом статусе).
func (e *Execution) IsFinished() bool {
	return e.Status.IsTerminal()
}

// MarkRunning переводит execution в статус RUNNING.
func (e *Execution) MarkRunning() {
	now := time.Now()
	e.Status = ExecutionStatusRunning
	e.StartedAt = &now
}

// MarkCompleted переводит execution в статус COMPLETED.
func (e *Execution) MarkCompleted() {
	now := time.Now()
	e.Status = ExecutionStatusCompleted
	e.CompletedAt = &now
}

// MarkFailed переводит execution в статус FAILED с ошибкой.
func (e *Execution) MarkFailed(err string) {
	now := time.Now()
	e.Status = ExecutionStatusFailed
	e.CompletedAt = &now
	e.Error = err
}

// NewExecution создаёт execution в статусе PENDING.
//
// ID — UUIDv7: монотонный в пределах процесса, поэтому при равном
// created_at сортировка по id DESC отдаёт последний по порядку
// создания execution.
func NewExecution(artifactID uuid.UUID) *Execution {
	return &Execution{
		ID:         uuid.Must(uuid.NewV7()),
		ArtifactID: artifactID,
		Status:     ExecutionStatusPending,
		CreatedAt:  time.Now(),
	}
}
