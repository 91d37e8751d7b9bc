package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Bindery/internal/domain"
	"github.com/shaiso/Bindery/internal/pipeline"
)

// fakeExecutionStore — in-memory реализация ExecutionStore.
type fakeExecutionStore struct {
	startErr error
	started  int
	finished int
	failed   int
}

func (s *fakeExecutionStore) Start(_ context.Context, exec *domain.Execution) error {
	if s.startErr != nil {
		return s.startErr
	}
	exec.MarkRunning()
	s.started++
	return nil
}

func (s *fakeExecutionStore) Complete(_ context.Context, exec *domain.Execution) error {
	exec.MarkCompleted()
	s.finished++
	return nil
}

func (s *fakeExecutionStore) Fail(_ context.Context, exec *domain.Execution, message string) error {
	exec.MarkFailed(message)
	s.failed++
	return nil
}

// fakeStepStore — in-memory реализация StepStore поверх map по имени шага.
type fakeStepStore struct {
	records map[string]*domain.StepRecord
}

func newFakeStepStore(executionID uuid.UUID, names ...string) *fakeStepStore {
	records := make(map[string]*domain.StepRecord, len(names))
	for i, name := range names {
		records[name] = domain.NewStepRecord(executionID, name, i+1)
	}
	return &fakeStepStore{records: records}
}

func (s *fakeStepStore) GetByExecutionAndName(_ context.Context, _ uuid.UUID, name string) (*domain.StepRecord, error) {
	record, ok := s.records[name]
	if !ok {
		return nil, fmt.Errorf("step %s not found", name)
	}
	return record, nil
}

func (s *fakeStepStore) Start(_ context.Context, step *domain.StepRecord) error {
	step.MarkRunning()
	return nil
}

func (s *fakeStepStore) Complete(_ context.Context, step *domain.StepRecord, output map[string]any, durationMs int64) error {
	step.MarkCompleted(output, durationMs)
	return nil
}

func (s *fakeStepStore) Fail(_ context.Context, step *domain.StepRecord, message string, durationMs int64) error {
	step.MarkFailed(message, durationMs)
	return nil
}

// fakeStep — настраиваемый шаг пайплайна.
type fakeStep struct {
	name    string
	order   int
	timeout time.Duration
	execute func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error)
}

func (s *fakeStep) Name() string           { return s.name }
func (s *fakeStep) Order() int             { return s.order }
func (s *fakeStep) Timeout() time.Duration { return s.timeout }
func (s *fakeStep) Execute(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	return s.execute(ctx, req)
}

func okStep(name string, order int, outputs map[string]any) *fakeStep {
	return &fakeStep{
		name:    name,
		order:   order,
		timeout: time.Second,
		execute: func(_ context.Context, _ *pipeline.Request) (*pipeline.Response, error) {
			return &pipeline.Response{Outputs: outputs}, nil
		},
	}
}

func newTestExecutor(t *testing.T, execs *fakeExecutionStore, steps *fakeStepStore, registry *pipeline.Registry, events EventSink) *Executor {
	t.Helper()
	return New(Config{
		Executions: execs,
		Steps:      steps,
		Registry:   registry,
		Events:     events,
	})
}

func TestExecutor_AllStepsSucceed(t *testing.T) {
	exec := domain.NewExecution(uuid.New())
	execs := &fakeExecutionStore{}
	steps := newFakeStepStore(exec.ID, "detect", "ocr", "grade")

	registry, err := pipeline.NewRegistry(
		okStep("detect", 1, map[string]any{"box": map[string]any{"x": 1}}),
		okStep("ocr", 2, map[string]any{"text": "hello"}),
		okStep("grade", 3, map[string]any{"grade": "good"}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e := newTestExecutor(t, execs, steps, registry, nil)
	result, pctx, err := e.Run(context.Background(), exec, []byte("img"), "image/png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != domain.ExecutionStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", result.Status)
	}
	if result.StartedAt == nil || result.CompletedAt == nil {
		t.Error("started_at and completed_at must be set")
	}

	// Каждый шаг завершён, его output сохранён
	for _, name := range []string{"detect", "ocr", "grade"} {
		record := steps.records[name]
		if record.Status != domain.StepStatusCompleted {
			t.Errorf("step %s: expected COMPLETED, got %s", name, record.Status)
		}
		if record.Output == nil {
			t.Errorf("step %s: output not persisted", name)
		}
	}

	// Контекст содержит outputs всех шагов
	if text, ok := pctx.Value("ocr", "text"); !ok || text != "hello" {
		t.Errorf("context missing ocr output, got %v", text)
	}
	if _, ok := pctx.Value("grade", "grade"); !ok {
		t.Error("context missing grade output")
	}
}

func TestExecutor_StepFailureHaltsPipeline(t *testing.T) {
	exec := domain.NewExecution(uuid.New())
	execs := &fakeExecutionStore{}
	steps := newFakeStepStore(exec.ID, "detect", "ocr", "grade")

	failing := &fakeStep{
		name:    "ocr",
		order:   2,
		timeout: time.Second,
		execute: func(_ context.Context, _ *pipeline.Request) (*pipeline.Response, error) {
			return nil, errors.New("service unavailable")
		},
	}
	registry, err := pipeline.NewRegistry(
		okStep("detect", 1, map[string]any{"ok": true}),
		failing,
		okStep("grade", 3, nil),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e := newTestExecutor(t, execs, steps, registry, nil)
	result, pctx, err := e.Run(context.Background(), exec, []byte("img"), "image/png")
	if err != nil {
		t.Fatalf("step failure must not surface as error, got %v", err)
	}

	if result.Status != domain.ExecutionStatusFailed {
		t.Errorf("expected FAILED, got %s", result.Status)
	}
	if !strings.Contains(result.Error, "step ocr:") {
		t.Errorf("execution error must name the failed step, got %q", result.Error)
	}

	// Предыдущий шаг завершён, упавший FAILED, последующий остался PENDING
	if steps.records["detect"].Status != domain.StepStatusCompleted {
		t.Errorf("detect: expected COMPLETED, got %s", steps.records["detect"].Status)
	}
	if steps.records["ocr"].Status != domain.StepStatusFailed {
		t.Errorf("ocr: expected FAILED, got %s", steps.records["ocr"].Status)
	}
	if steps.records["grade"].Status != domain.StepStatusPending {
		t.Errorf("grade: expected PENDING, got %s", steps.records["grade"].Status)
	}

	// Частичный контекст содержит outputs успевших шагов
	if _, ok := pctx.Value("detect", "ok"); !ok {
		t.Error("context must keep outputs of completed steps")
	}
}

func TestExecutor_StepTimeout(t *testing.T) {
	exec := domain.NewExecution(uuid.New())
	execs := &fakeExecutionStore{}
	steps := newFakeStepStore(exec.ID, "detect")

	slow := &fakeStep{
		name:    "detect",
		order:   1,
		timeout: 30 * time.Millisecond,
		execute: func(ctx context.Context, _ *pipeline.Request) (*pipeline.Response, error) {
			select {
			case <-time.After(5 * time.Second):
				return &pipeline.Response{}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	registry, err := pipeline.NewRegistry(slow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sink := &recordingSink{}
	e := newTestExecutor(t, execs, steps, registry, sink)

	start := time.Now()
	result, _, err := e.Run(context.Background(), exec, nil, "image/png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout must fire near the step budget, took %s", elapsed)
	}

	if result.Status != domain.ExecutionStatusFailed {
		t.Errorf("expected FAILED, got %s", result.Status)
	}
	if !strings.Contains(result.Error, "timeout") {
		t.Errorf("error must mention timeout, got %q", result.Error)
	}
	if sink.failKind != FailureTimeout {
		t.Errorf("expected FailureTimeout, got %s", sink.failKind)
	}
}

func TestExecutor_ContextFlowsBetweenSteps(t *testing.T) {
	exec := domain.NewExecution(uuid.New())
	execs := &fakeExecutionStore{}
	steps := newFakeStepStore(exec.ID, "detect", "ocr")

	producer := okStep("detect", 1, map[string]any{"confidence": 0.9})
	var seen float64
	consumer := &fakeStep{
		name:    "ocr",
		order:   2,
		timeout: time.Second,
		execute: func(_ context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			seen, _ = req.Context.Float("detect", "confidence")
			return &pipeline.Response{}, nil
		},
	}
	registry, err := pipeline.NewRegistry(producer, consumer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e := newTestExecutor(t, execs, steps, registry, nil)
	if _, _, err := e.Run(context.Background(), exec, nil, "image/png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if seen != 0.9 {
		t.Errorf("second step must see first step's output, got %v", seen)
	}
}

func TestExecutor_PanicBecomesFailure(t *testing.T) {
	exec := domain.NewExecution(uuid.New())
	execs := &fakeExecutionStore{}
	steps := newFakeStepStore(exec.ID, "detect")

	panicking := &fakeStep{
		name:    "detect",
		order:   1,
		timeout: time.Second,
		execute: func(_ context.Context, _ *pipeline.Request) (*pipeline.Response, error) {
			panic("nil dereference in decoder")
		},
	}
	registry, err := pipeline.NewRegistry(panicking)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sink := &recordingSink{}
	e := newTestExecutor(t, execs, steps, registry, sink)
	result, _, err := e.Run(context.Background(), exec, nil, "image/png")
	if err != nil {
		t.Fatalf("panic must not surface as error, got %v", err)
	}

	if result.Status != domain.ExecutionStatusFailed {
		t.Errorf("expected FAILED, got %s", result.Status)
	}
	if !strings.Contains(result.Error, "step panic") {
		t.Errorf("error must mention panic, got %q", result.Error)
	}
	if sink.failKind != FailurePanic {
		t.Errorf("expected FailurePanic, got %s", sink.failKind)
	}
}

func TestExecutor_InfraFailureSurfacesAsError(t *testing.T) {
	exec := domain.NewExecution(uuid.New())
	execs := &fakeExecutionStore{startErr: errors.New("connection refused")}
	steps := newFakeStepStore(exec.ID, "detect")

	registry, err := pipeline.NewRegistry(okStep("detect", 1, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e := newTestExecutor(t, execs, steps, registry, nil)
	if _, _, err := e.Run(context.Background(), exec, nil, "image/png"); err == nil {
		t.Fatal("storage failure must surface as error")
	}
}

// recordingSink запоминает вид последнего отказа шага.
type recordingSink struct {
	NopSink
	failKind FailureKind
}

func (s *recordingSink) StepFailed(_ uuid.UUID, _ string, _ string, kind FailureKind, _ time.Duration) {
	s.failKind = kind
}
