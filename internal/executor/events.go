package executor

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Bindery/internal/domain"
	"github.com/shaiso/Bindery/internal/telemetry"
)

// FailureKind — различимый вид отказа шага.
type FailureKind string

const (
	// FailureTimeout — шаг превысил бюджет времени.
	FailureTimeout FailureKind = "timeout"

	// FailurePanic — паника внутри Execute.
	FailurePanic FailureKind = "panic"

	// FailureDomain — доменная ошибка валидации шага.
	FailureDomain FailureKind = "domain"

	// FailureError — прочие ошибки выполнения.
	FailureError FailureKind = "error"
)

// EventSink — приёмник структурированных событий пайплайна.
//
// Внедряется в Executor при конструировании — не глобальный синглтон,
// чтобы ядро тестировалось без настоящего телеметрического бэкенда.
// Метрики/дашборд потребляют события, ядро их только публикует.
type EventSink interface {
	PipelineStarted(executionID, artifactID uuid.UUID)
	PipelineStopped(executionID uuid.UUID, status domain.ExecutionStatus, duration time.Duration)
	StepStarted(executionID uuid.UUID, step string)
	StepStopped(executionID uuid.UUID, step string, status domain.StepStatus, duration time.Duration)
	StepFailed(executionID uuid.UUID, step string, reason string, kind FailureKind, duration time.Duration)
}

// NopSink — пустой приёмник для тестов.
type NopSink struct{}

func (NopSink) PipelineStarted(uuid.UUID, uuid.UUID)                             {}
func (NopSink) PipelineStopped(uuid.UUID, domain.ExecutionStatus, time.Duration) {}
func (NopSink) StepStarted(uuid.UUID, string)                                    {}
func (NopSink) StepStopped(uuid.UUID, string, domain.StepStatus, time.Duration)  {}
func (NopSink) StepFailed(uuid.UUID, string, string, FailureKind, time.Duration) {}

// LogSink публикует события в structured log.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) PipelineStarted(executionID, artifactID uuid.UUID) {
	s.Logger.Info("event pipeline-started", "execution_id", executionID, "artifact_id", artifactID)
}

func (s LogSink) PipelineStopped(executionID uuid.UUID, status domain.ExecutionStatus, duration time.Duration) {
	s.Logger.Info("event pipeline-stopped", "execution_id", executionID, "status", status, "duration_ms", duration.Milliseconds())
}

func (s LogSink) StepStarted(executionID uuid.UUID, step string) {
	s.Logger.Info("event step-started", "execution_id", executionID, "step", step)
}

func (s LogSink) StepStopped(executionID uuid.UUID, step string, status domain.StepStatus, duration time.Duration) {
	s.Logger.Info("event step-stopped", "execution_id", executionID, "step", step, "status", status, "duration_ms", duration.Milliseconds())
}

func (s LogSink) StepFailed(executionID uuid.UUID, step string, reason string, kind FailureKind, duration time.Duration) {
	s.Logger.Warn("event step-failed", "execution_id", executionID, "step", step, "kind", kind, "reason", reason, "duration_ms", duration.Milliseconds())
}

// PromSink публикует события в Prometheus-метрики.
type PromSink struct{}

func (PromSink) PipelineStarted(executionID, artifactID uuid.UUID) {
	telemetry.PipelinesStarted.Inc()
}

func (PromSink) PipelineStopped(executionID uuid.UUID, status domain.ExecutionStatus, duration time.Duration) {
	telemetry.PipelinesFinished.WithLabelValues(string(status)).Inc()
	telemetry.PipelineDuration.Observe(duration.Seconds())
}

func (PromSink) StepStarted(executionID uuid.UUID, step string) {
	telemetry.StepsStarted.WithLabelValues(step).Inc()
}

func (PromSink) StepStopped(executionID uuid.UUID, step string, status domain.StepStatus, duration time.Duration) {
	telemetry.StepDuration.WithLabelValues(step, string(status)).Observe(duration.Seconds())
}

func (PromSink) StepFailed(executionID uuid.UUID, step string, reason string, kind FailureKind, duration time.Duration) {
	telemetry.StepFailures.WithLabelValues(step, string(kind)).Inc()
	telemetry.StepDuration.WithLabelValues(step, string(domain.StepStatusFailed)).Observe(duration.Seconds())
}

// MultiSink рассылает события нескольким приёмникам.
type MultiSink []EventSink

func (m MultiSink) PipelineStarted(executionID, artifactID uuid.UUID) {
	for _, s := range m {
		s.PipelineStarted(executionID, artifactID)
	}
}

func (m MultiSink) PipelineStopped(executionID uuid.UUID, status domain.ExecutionStatus, duration time.Duration) {
	for _, s := range m {
		s.PipelineStopped(executionID, status, duration)
	}
}

func (m MultiSink) StepStarted(executionID uuid.UUID, step string) {
	for _, s := range m {
		s.StepStarted(executionID, step)
	}
}

func (m MultiSink) StepStopped(executionID uuid.UUID, step string, status domain.StepStatus, duration time.Duration) {
	for _, s := range m {
		s.StepStopped(executionID, step, status, duration)
	}
}

func (m MultiSink) StepFailed(executionID uuid.UUID, step string, reason string, kind FailureKind, duration time.Duration) {
	for _, s := range m {
		s.StepFailed(executionID, step, reason, kind, duration)
	}
}
