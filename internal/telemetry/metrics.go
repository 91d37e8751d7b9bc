package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики пайплайна. Заполняются executor.PromSink; каждый сервис
// экспортирует их на своём /metrics endpoint.
var (
	// PipelinesStarted — количество начатых прогонов.
	PipelinesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bindery_pipelines_started_total",
		Help: "Total pipeline executions started",
	})

	// PipelinesFinished — завершённые прогоны по терминальному статусу.
	PipelinesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bindery_pipelines_finished_total",
		Help: "Total pipeline executions finished by terminal status",
	}, []string{"status"})

	// PipelineDuration — продолжительность прогона целиком.
	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bindery_pipeline_duration_seconds",
		Help:    "End-to-end pipeline execution duration",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// StepsStarted — количество начатых шагов по имени.
	StepsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bindery_steps_started_total",
		Help: "Total pipeline steps started",
	}, []string{"step"})

	// StepDuration — продолжительность шага по имени и исходу.
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bindery_step_duration_seconds",
		Help:    "Pipeline step duration by step and terminal status",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"step", "status"})

	// StepFailures — отказы шагов по имени и виду отказа.
	StepFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bindery_step_failures_total",
		Help: "Total step failures by step and failure kind",
	}, []string{"step", "kind"})

	// WorkerAttempts — обработки сообщений воркером по исходу.
	WorkerAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bindery_worker_attempts_total",
		Help: "Total worker message handling attempts by outcome",
	}, []string{"outcome"})
)
