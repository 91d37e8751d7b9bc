package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Bindery/internal/domain"
	"github.com/shaiso/Bindery/internal/pipeline"
)

// ExecutionStore — мутации execution, которыми владеет Executor.
type ExecutionStore interface {
	Start(ctx context.Context, exec *domain.Execution) error
	Complete(ctx context.Context, exec *domain.Execution) error
	Fail(ctx context.Context, exec *domain.Execution, message string) error
}

// StepStore — мутации записей шагов, которыми владеет Executor.
type StepStore interface {
	GetByExecutionAndName(ctx context.Context, executionID uuid.UUID, name string) (*domain.StepRecord, error)
	Start(ctx context.Context, step *domain.StepRecord) error
	Complete(ctx context.Context, step *domain.StepRecord, output map[string]any, durationMs int64) error
	Fail(ctx context.Context, step *domain.StepRecord, message string, durationMs int64) error
}

// Executor доводит один execution от PENDING до терминального статуса.
//
// Алгоритм:
//  1. Execution переводится в RUNNING, публикуется pipeline-started.
//  2. Шаги выполняются строго в порядке реестра. Каждый шаг гонится
//     против своего таймаута в отдельной горутине; по истечении бюджета
//     горутина бросается, шаг считается упавшим по таймауту.
//  3. Результат каждого шага персистится до перехода к следующему;
//     outputs успешного шага попадают в накопленный контекст.
//  4. Первый упавший шаг останавливает цикл: последующие шаги остаются
//     PENDING, execution переводится в FAILED с сообщением этого шага.
//
// Шаги внутри одного прогона не ретраятся — повтор, если нужен,
// принадлежит слою, который заново вызывает Executor целиком.
type Executor struct {
	executions ExecutionStore
	steps      StepStore
	registry   *pipeline.Registry
	events     EventSink
	logger     *slog.Logger
}

// Config — конфигурация Executor.
type Config struct {
	// Stores
	Executions ExecutionStore
	Steps      StepStore

	// Registry — упорядоченный список шагов.
	Registry *pipeline.Registry

	// Events — приёмник событий observability (опционально; nil → NopSink).
	Events EventSink

	// Logger
	Logger *slog.Logger
}

// New создаёт Executor.
func New(cfg Config) *Executor {
	events := cfg.Events
	if events == nil {
		events = NopSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		executions: cfg.Executions,
		steps:      cfg.Steps,
		registry:   cfg.Registry,
		events:     events,
		logger:     logger,
	}
}

// Run выполняет один execution до терминального состояния.
//
// Возвращает терминальный execution и итоговый накопленный контекст —
// при частичной неудаче контекст содержит outputs успевших шагов.
// Ошибка возвращается только при инфраструктурном сбое (хранилище
// недоступно): упавший шаг — это терминальный FAILED, не error.
func (e *Executor) Run(ctx context.Context, exec *domain.Execution, image []byte, contentType string) (*domain.Execution, pipeline.Context, error) {
	runStart := time.Now()
	pctx := make(pipeline.Context)

	if err := e.executions.Start(ctx, exec); err != nil {
		return nil, nil, fmt.Errorf("start execution: %w", err)
	}
	e.events.PipelineStarted(exec.ID, exec.ArtifactID)
	e.logger.Info("pipeline started",
		"execution_id", exec.ID,
		"artifact_id", exec.ArtifactID,
		"steps", e.registry.Len(),
	)

	for _, step := range e.registry.Steps() {
		record, err := e.steps.GetByExecutionAndName(ctx, exec.ID, step.Name())
		if err != nil {
			return nil, nil, fmt.Errorf("get step %s: %w", step.Name(), err)
		}

		if err := e.steps.Start(ctx, record); err != nil {
			return nil, nil, fmt.Errorf("start step %s: %w", step.Name(), err)
		}
		e.events.StepStarted(exec.ID, step.Name())

		stepStart := time.Now()
		outcome := e.runStep(ctx, step, pipeline.NewRequest(image, contentType, pctx))
		durationMs := time.Since(stepStart).Milliseconds()

		if outcome.err != nil {
			if err := e.steps.Fail(ctx, record, outcome.err.Error(), durationMs); err != nil {
				return nil, nil, fmt.Errorf("persist step %s failure: %w", step.Name(), err)
			}
			e.events.StepFailed(exec.ID, step.Name(), outcome.err.Error(), outcome.kind, time.Since(stepStart))
			e.logger.Warn("step failed",
				"execution_id", exec.ID,
				"step", step.Name(),
				"kind", outcome.kind,
				"duration_ms", durationMs,
				"error", outcome.err,
			)

			message := fmt.Sprintf("step %s: %s", step.Name(), outcome.err.Error())
			if err := e.executions.Fail(ctx, exec, message); err != nil {
				return nil, nil, fmt.Errorf("fail execution: %w", err)
			}
			e.events.PipelineStopped(exec.ID, domain.ExecutionStatusFailed, time.Since(runStart))
			e.logger.Info("pipeline stopped",
				"execution_id", exec.ID,
				"status", exec.Status,
				"duration_ms", time.Since(runStart).Milliseconds(),
			)
			return exec, pctx, nil
		}

		outputs := outcome.resp.Outputs
		if err := e.steps.Complete(ctx, record, outputs, durationMs); err != nil {
			return nil, nil, fmt.Errorf("complete step %s: %w", step.Name(), err)
		}
		pctx.Merge(step.Name(), outputs)
		e.events.StepStopped(exec.ID, step.Name(), domain.StepStatusCompleted, time.Since(stepStart))
		e.logger.Info("step completed",
			"execution_id", exec.ID,
			"step", step.Name(),
			"duration_ms", durationMs,
		)
	}

	if err := e.executions.Complete(ctx, exec); err != nil {
		return nil, nil, fmt.Errorf("complete execution: %w", err)
	}
	e.events.PipelineStopped(exec.ID, domain.ExecutionStatusCompleted, time.Since(runStart))
	e.logger.Info("pipeline stopped",
		"execution_id", exec.ID,
		"status", exec.Status,
		"duration_ms", time.Since(runStart).Milliseconds(),
	)
	return exec, pctx, nil
}

// stepOutcome — исход одного шага.
type stepOutcome struct {
	resp *pipeline.Response
	err  error
	kind FailureKind
}

// runStep выполняет шаг в отдельной горутине, гонясь против таймаута.
//
// По истечении бюджета горутина бросается: её побочные эффекты не
// откатываются, шаги обязаны быть идемпотентными. Паника внутри шага
// перехватывается и становится обычной ошибкой выполнения.
func (e *Executor) runStep(ctx context.Context, step pipeline.Step, req *pipeline.Request) stepOutcome {
	stepCtx, cancel := context.WithTimeout(ctx, step.Timeout())
	defer cancel()

	done := make(chan stepOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- stepOutcome{
					err:  fmt.Errorf("step panic: %v", r),
					kind: FailurePanic,
				}
			}
		}()

		resp, err := step.Execute(stepCtx, req)
		if err != nil {
			done <- stepOutcome{err: err, kind: classifyStepError(err)}
			return
		}
		done <- stepOutcome{resp: resp}
	}()

	select {
	case outcome := <-done:
		return outcome
	case <-stepCtx.Done():
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			return stepOutcome{
				err:  fmt.Errorf("%w after %s", pipeline.ErrStepTimeout, step.Timeout()),
				kind: FailureTimeout,
			}
		}
		return stepOutcome{err: stepCtx.Err(), kind: FailureError}
	}
}

// classifyStepError определяет различимый вид отказа для observability.
func classifyStepError(err error) FailureKind {
	switch {
	case errors.Is(err, pipeline.ErrStepTimeout), errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case pipeline.IsDomainError(err):
		return FailureDomain
	default:
		return FailureError
	}
}
