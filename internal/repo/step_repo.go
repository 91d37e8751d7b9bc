package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Bindery/internal/domain"
)

// StepRepo — репозиторий для работы с записями шагов.
type StepRepo struct {
	pool *pgxpool.Pool
}

// NewStepRepo создаёт новый StepRepo.
func NewStepRepo(pool *pgxpool.Pool) *StepRepo {
	return &StepRepo{pool: pool}
}

// GetByExecutionAndName возвращает запись шага по (execution_id, name).
func (r *StepRepo) GetByExecutionAndName(ctx context.Context, executionID uuid.UUID, name string) (*domain.StepRecord, error) {
	query := `
		SELECT id, execution_id, name, ord, status, input, output, error,
		       duration_ms, started_at, completed_at
		FROM execution_steps
		WHERE execution_id = $1 AND name = $2
	`
	return scanStep(r.pool.QueryRow(ctx, query, executionID, name))
}

// ListByExecution возвращает все шаги execution в объявленном порядке.
func (r *StepRepo) ListByExecution(ctx context.Context, executionID uuid.UUID) ([]domain.StepRecord, error) {
	query := `
		SELECT id, execution_id, name, ord, status, input, output, error,
		       duration_ms, started_at, completed_at
		FROM execution_steps
		WHERE execution_id = $1
		ORDER BY ord ASC
	`
	rows, err := r.pool.Query(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []domain.StepRecord
	for rows.Next() {
		step, err := scanStepFromRows(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *step)
	}
	return steps, rows.Err()
}

// Start переводит шаг в RUNNING и сохраняет.
func (r *StepRepo) Start(ctx context.Context, step *domain.StepRecord) error {
	if err := r.checkMutable(step); err != nil {
		return err
	}
	step.MarkRunning()
	return r.update(ctx, step)
}

// Complete переводит шаг в COMPLETED с результатом и сохраняет.
func (r *StepRepo) Complete(ctx context.Context, step *domain.StepRecord, output map[string]any, durationMs int64) error {
	if err := r.checkMutable(step); err != nil {
		return err
	}
	step.MarkCompleted(output, durationMs)
	return r.update(ctx, step)
}

// Fail переводит шаг в FAILED с ошибкой и сохраняет.
func (r *StepRepo) Fail(ctx context.Context, step *domain.StepRecord, message string, durationMs int64) error {
	if err := r.checkMutable(step); err != nil {
		return err
	}
	step.MarkFailed(message, durationMs)
	return r.update(ctx, step)
}

// Skip переводит шаг в SKIPPED с причиной и сохраняет.
func (r *StepRepo) Skip(ctx context.Context, step *domain.StepRecord, reason string) error {
	if err := r.checkMutable(step); err != nil {
		return err
	}
	step.MarkSkipped(reason)
	return r.update(ctx, step)
}

// checkMutable отсекает мутацию терминального шага до обращения к базе.
func (r *StepRepo) checkMutable(step *domain.StepRecord) error {
	if step.Status.IsTerminal() {
		return fmt.Errorf("%w: step %s is already %s", ErrInvalidState, step.Name, step.Status)
	}
	return nil
}

// update сохраняет мутабельные поля записи шага.
// Все мутации — одиночные UPDATE по первичному ключу.
func (r *StepRepo) update(ctx context.Context, step *domain.StepRecord) error {
	inputJSON, err := json.Marshal(step.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	outputJSON, err := json.Marshal(step.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	query := `
		UPDATE execution_steps
		SET status = $2, input = $3, output = $4, error = $5,
		    duration_ms = $6, started_at = $7, completed_at = $8
		WHERE id = $1 AND status NOT IN ('COMPLETED', 'FAILED', 'SKIPPED')
	`
	result, err := r.pool.Exec(ctx, query,
		step.ID,
		step.Status,
		inputJSON,
		outputJSON,
		nullString(step.Error),
		step.DurationMs,
		step.StartedAt,
		step.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.explainMiss(ctx, step)
	}
	return nil
}

// explainMiss различает два случая пустого UPDATE: строки нет вовсе
// либо шаг уже в терминальном статусе.
func (r *StepRepo) explainMiss(ctx context.Context, step *domain.StepRecord) error {
	var status domain.StepStatus
	err := r.pool.QueryRow(ctx, `SELECT status FROM execution_steps WHERE id = $1`, step.ID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check step status: %w", err)
	}
	return fmt.Errorf("%w: step %s is already %s", ErrInvalidState, step.Name, status)
}

// --- Helpers ---

func scanStep(row pgx.Row) (*domain.StepRecord, error) {
	var step domain.StepRecord
	var inputJSON, outputJSON []byte
	var stepError *string

	err := row.Scan(
		&step.ID,
		&step.ExecutionID,
		&step.Name,
		&step.Ord,
		&step.Status,
		&inputJSON,
		&outputJSON,
		&stepError,
		&step.DurationMs,
		&step.StartedAt,
		&step.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan step: %w", err)
	}

	if err := unmarshalStepJSON(&step, inputJSON, outputJSON); err != nil {
		return nil, err
	}
	if stepError != nil {
		step.Error = *stepError
	}
	return &step, nil
}

func scanStepFromRows(rows pgx.Rows) (*domain.StepRecord, error) {
	var step domain.StepRecord
	var inputJSON, outputJSON []byte
	var stepError *string

	err := rows.Scan(
		&step.ID,
		&step.ExecutionID,
		&step.Name,
		&step.Ord,
		&step.Status,
		&inputJSON,
		&outputJSON,
		&stepError,
		&step.DurationMs,
		&step.StartedAt,
		&step.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan step: %w", err)
	}

	if err := unmarshalStepJSON(&step, inputJSON, outputJSON); err != nil {
		return nil, err
	}
	if stepError != nil {
		step.Error = *stepError
	}
	return &step, nil
}

func unmarshalStepJSON(step *domain.StepRecord, inputJSON, outputJSON []byte) error {
	if inputJSON != nil {
		if err := json.Unmarshal(inputJSON, &step.Input); err != nil {
			return fmt.Errorf("unmarshal input: %w", err)
		}
	}
	if outputJSON != nil {
		if err := json.Unmarshal(outputJSON, &step.Output); err != nil {
			return fmt.Errorf("unmarshal output: %w", err)
		}
	}
	return nil
}
