package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Bindery/internal/domain"
)

// ExecutionRepo — репозиторий для работы с executions.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт новый ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

// CreateWithSteps атомарно создаёт execution (PENDING) и по одной записи
// StepRecord (PENDING) на каждое имя из stepNames, с Ord по позиции.
//
// Единственная многострочная транзакция в хранилище: либо execution
// появляется целиком со всеми шагами, либо не появляется вовсе.
// Несуществующий artifact_id обрывается FK-ограничением и пробрасывается
// наверх без retry.
func (r *ExecutionRepo) CreateWithSteps(ctx context.Context, artifactID uuid.UUID, stepNames []string) (*domain.Execution, []domain.StepRecord, error) {
	exec := domain.NewExecution(artifactID)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO executions (id, artifact_id, status, created_at)
		VALUES ($1, $2, $3, $4)
	`, exec.ID, exec.ArtifactID, exec.Status, exec.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("insert execution: %w", err)
	}

	steps := make([]domain.StepRecord, 0, len(stepNames))
	for i, name := range stepNames {
		step := domain.NewStepRecord(exec.ID, name, i+1)
		_, err = tx.Exec(ctx, `
			INSERT INTO execution_steps (id, execution_id, name, ord, status)
			VALUES ($1, $2, $3, $4, $5)
		`, step.ID, step.ExecutionID, step.Name, step.Ord, step.Status)
		if err != nil {
			return nil, nil, fmt.Errorf("insert step %s: %w", name, err)
		}
		steps = append(steps, *step)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}
	return exec, steps, nil
}

// GetByID возвращает execution по ID.
func (r *ExecutionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	query := `
		SELECT id, artifact_id, status, error, started_at, completed_at, created_at
		FROM executions
		WHERE id = $1
	`
	return scanExecution(r.pool.QueryRow(ctx, query, id))
}

// GetLatestByArtifact возвращает последний по времени создания execution
// для артефакта. При равных created_at побеждает больший id —
// детерминированный tie-break по порядку вставки.
func (r *ExecutionRepo) GetLatestByArtifact(ctx context.Context, artifactID uuid.UUID) (*domain.Execution, error) {
	query := `
		SELECT id, artifact_id, status, error, started_at, completed_at, created_at
		FROM executions
		WHERE artifact_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return scanExecution(r.pool.QueryRow(ctx, query, artifactID))
}

// List возвращает список executions с фильтрацией.
func (r *ExecutionRepo) List(ctx context.Context, filter ExecutionFilter) ([]domain.Execution, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, artifact_id, status, error, started_at, completed_at, created_at
		FROM executions
		WHERE ($1::uuid IS NULL OR artifact_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.ArtifactID),
		nullString(string(filter.Status)),
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var execs []domain.Execution
	for rows.Next() {
		exec, err := scanExecutionFromRows(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}
	return execs, rows.Err()
}

// Start переводит execution в RUNNING и сохраняет.
// Обновляет денормализованный pipeline_status артефакта.
func (r *ExecutionRepo) Start(ctx context.Context, exec *domain.Execution) error {
	if exec.Status.IsTerminal() {
		return fmt.Errorf("%w: execution %s is already %s", ErrInvalidState, exec.ID, exec.Status)
	}
	exec.MarkRunning()
	if err := r.update(ctx, exec); err != nil {
		return err
	}
	return r.setArtifactStatus(ctx, exec.ArtifactID, domain.PipelineStatusRunning)
}

// Complete переводит execution в COMPLETED и сохраняет.
// Обновляет денормализованный pipeline_status артефакта.
func (r *ExecutionRepo) Complete(ctx context.Context, exec *domain.Execution) error {
	if exec.Status.IsTerminal() {
		return fmt.Errorf("%w: execution %s is already %s", ErrInvalidState, exec.ID, exec.Status)
	}
	exec.MarkCompleted()
	if err := r.update(ctx, exec); err != nil {
		return err
	}
	return r.setArtifactStatus(ctx, exec.ArtifactID, domain.PipelineStatusCompleted)
}

// Fail переводит execution в FAILED с сообщением и сохраняет.
// Обновляет денормализованный pipeline_status артефакта.
func (r *ExecutionRepo) Fail(ctx context.Context, exec *domain.Execution, message string) error {
	if exec.Status.IsTerminal() {
		return fmt.Errorf("%w: execution %s is already %s", ErrInvalidState, exec.ID, exec.Status)
	}
	exec.MarkFailed(message)
	if err := r.update(ctx, exec); err != nil {
		return err
	}
	return r.setArtifactStatus(ctx, exec.ArtifactID, domain.PipelineStatusFailed)
}

// ListStaleRunning возвращает executions, висящие в RUNNING дольше
// maxAgeSec секунд — следы процесса, упавшего посреди прогона.
func (r *ExecutionRepo) ListStaleRunning(ctx context.Context, maxAgeSec int, limit int) ([]domain.Execution, error) {
	query := `
		SELECT id, artifact_id, status, error, started_at, completed_at, created_at
		FROM executions
		WHERE status = 'RUNNING'
		  AND started_at < now() - make_interval(secs => $1)
		ORDER BY started_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, maxAgeSec, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale executions: %w", err)
	}
	defer rows.Close()

	var execs []domain.Execution
	for rows.Next() {
		exec, err := scanExecutionFromRows(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}
	return execs, rows.Err()
}

// ListPendingOlderThan возвращает executions, оставшиеся в PENDING дольше
// minAgeSec секунд — созданные, но так и не подхваченные из очереди
// (потерянное сообщение, перезапуск брокера). Fallback для polling воркера.
func (r *ExecutionRepo) ListPendingOlderThan(ctx context.Context, minAgeSec int, limit int) ([]domain.Execution, error) {
	query := `
		SELECT id, artifact_id, status, error, started_at, completed_at, created_at
		FROM executions
		WHERE status = 'PENDING'
		  AND created_at < now() - make_interval(secs => $1)
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, minAgeSec, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending executions: %w", err)
	}
	defer rows.Close()

	var execs []domain.Execution
	for rows.Next() {
		exec, err := scanExecutionFromRows(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}
	return execs, rows.Err()
}

// Stats возвращает агрегаты по executions для дашборда.
func (r *ExecutionRepo) Stats(ctx context.Context) (*domain.PipelineStats, error) {
	var stats domain.PipelineStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'PENDING'),
			COUNT(*) FILTER (WHERE status = 'RUNNING'),
			COUNT(*) FILTER (WHERE status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE status = 'FAILED'),
			COALESCE(AVG(EXTRACT(EPOCH FROM (completed_at - started_at)) * 1000)
				FILTER (WHERE completed_at IS NOT NULL), 0)
		FROM executions
	`).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Running,
		&stats.Completed,
		&stats.Failed,
		&stats.AvgDurationMs,
	)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	if finished := stats.Completed + stats.Failed; finished > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(finished)
	}
	return &stats, nil
}

// update сохраняет мутабельные поля execution.
//
// Терминальная строка неизменяема и на уровне SQL: гонка двух
// писателей (sweeper признал прогон брошенным, воркер очнулся и
// дописывает результат) разрешается в пользу того, кто успел первым.
func (r *ExecutionRepo) update(ctx context.Context, exec *domain.Execution) error {
	query := `
		UPDATE executions
		SET status = $2, error = $3, started_at = $4, completed_at = $5
		WHERE id = $1 AND status NOT IN ('COMPLETED', 'FAILED')
	`
	result, err := r.pool.Exec(ctx, query,
		exec.ID,
		exec.Status,
		nullString(exec.Error),
		exec.StartedAt,
		exec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.explainMiss(ctx, exec.ID)
	}
	return nil
}

// explainMiss различает два случая пустого UPDATE: строки нет вовсе
// либо она уже в терминальном статусе.
func (r *ExecutionRepo) explainMiss(ctx context.Context, id uuid.UUID) error {
	var status domain.ExecutionStatus
	err := r.pool.QueryRow(ctx, `SELECT status FROM executions WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check execution status: %w", err)
	}
	return fmt.Errorf("%w: execution %s is already %s", ErrInvalidState, id, status)
}

// setArtifactStatus обновляет денормализованный статус артефакта.
func (r *ExecutionRepo) setArtifactStatus(ctx context.Context, artifactID uuid.UUID, status domain.PipelineStatus) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE artifacts SET pipeline_status = $2, updated_at = now() WHERE id = $1
	`, artifactID, status)
	if err != nil {
		return fmt.Errorf("update artifact pipeline_status: %w", err)
	}
	return nil
}

// --- Helpers ---

// ExecutionFilter — параметры фильтрации executions.
type ExecutionFilter struct {
	ArtifactID *uuid.UUID
	Status     domain.ExecutionStatus
	Limit      int
	Offset     int
}

// scanExecution сканирует одну строку в Execution.
func scanExecution(row pgx.Row) (*domain.Execution, error) {
	var exec domain.Execution
	var execError *string

	err := row.Scan(
		&exec.ID,
		&exec.ArtifactID,
		&exec.Status,
		&execError,
		&exec.StartedAt,
		&exec.CompletedAt,
		&exec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	if execError != nil {
		exec.Error = *execError
	}
	return &exec, nil
}

// scanExecutionFromRows сканирует строку из rows в Execution.
func scanExecutionFromRows(rows pgx.Rows) (*domain.Execution, error) {
	var exec domain.Execution
	var execError *string

	err := rows.Scan(
		&exec.ID,
		&exec.ArtifactID,
		&exec.Status,
		&execError,
		&exec.StartedAt,
		&exec.CompletedAt,
		&exec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	if execError != nil {
		exec.Error = *execError
	}
	return &exec, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
