package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Bindery/internal/executor"
	"github.com/shaiso/Bindery/internal/mq"
	"github.com/shaiso/Bindery/internal/objectstore"
	"github.com/shaiso/Bindery/internal/pipeline"
	"github.com/shaiso/Bindery/internal/repo"
)

// Default configuration values.
const (
	defaultPollInterval = 30 * time.Second
	defaultBatchSize    = 20
	defaultPrefetch     = 10
	defaultPendingAge   = 60 // seconds
)

// Worker выполняет пайплайны обработки артефактов.
//
// Worker — stateless компонент системы, который:
//   - Получает команды artifact.process из очереди RabbitMQ (event-driven)
//   - Периодически проверяет зависшие PENDING executions в БД (polling fallback)
//   - Создаёт execution со всеми шагами и прогоняет пайплайн через Executor
//   - Публикует pipeline.updated по завершении прогона
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди. Семантика at-least-once: при
// падении посреди прогона сообщение вернётся, и пайплайн прогонится
// заново новым execution.
type Worker struct {
	// Repositories
	artifactRepo  *repo.ArtifactRepo
	executionRepo *repo.ExecutionRepo

	// Dependencies
	store    *objectstore.Store
	executor *executor.Executor
	registry *pipeline.Registry

	// MQ
	publisher *mq.Publisher
	conn      *mq.Connection
	consumer  *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int
	prefetch     int
	pendingAge   int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	// Repositories
	ArtifactRepo  *repo.ArtifactRepo
	ExecutionRepo *repo.ExecutionRepo

	// Store — хранилище изображений.
	Store *objectstore.Store

	// Executor — прогоняет шаги пайплайна.
	Executor *executor.Executor

	// Registry — набор шагов пайплайна.
	Registry *pipeline.Registry

	// MQ
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 30s)
	BatchSize    int           // количество executions за один poll (default: 20)
	PendingAge   int           // сколько секунд execution висит в PENDING до подхвата (default: 60)

	// Prefetch — количество одновременно обрабатываемых сообщений (default: 10).
	Prefetch int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	pendingAge := cfg.PendingAge
	if pendingAge <= 0 {
		pendingAge = defaultPendingAge
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		artifactRepo:  cfg.ArtifactRepo,
		executionRepo: cfg.ExecutionRepo,
		store:         cfg.Store,
		executor:      cfg.Executor,
		registry:      cfg.Registry,
		publisher:     cfg.Publisher,
		conn:          cfg.Conn,
		pollInterval:  pollInterval,
		batchSize:     batchSize,
		prefetch:      prefetch,
		pendingAge:    pendingAge,
		logger:        logger,
	}
}

// Start запускает Worker.
//
// Запускает:
//   - Consumer для artifacts.process
//   - Polling горутину для fallback
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
	)

	// Consumer поднимается только при живом брокере; без него worker
	// довозит PENDING executions одним лишь polling'ом
	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, w.publisher, w.logger, mq.ConsumerConfig{
			Queue:      mq.QueueArtifactsProcess,
			Exchange:   mq.ExchangeArtifacts,
			RoutingKey: mq.RoutingKeyProcess,
			Handler:    w.handleArtifactProcess,
			Prefetch:   w.prefetch,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("artifact consumer error", "error", err)
			}
		}()
	} else {
		w.logger.Warn("no message broker connection, polling only")
	}

	// Запускаем polling
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	// Ждём завершения горутин
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// pollLoop — цикл polling для fallback.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем executions, созданные пока были выключены)
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll подхватывает executions, оставшиеся в PENDING: сообщение из очереди
// потерялось или брокер был недоступен при публикации.
func (w *Worker) poll(ctx context.Context) {
	execs, err := w.executionRepo.ListPendingOlderThan(ctx, w.pendingAge, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list pending executions", "error", err)
		return
	}

	if len(execs) == 0 {
		return
	}

	w.logger.Debug("poll found pending executions", "count", len(execs))

	for i := range execs {
		exec := &execs[i]

		if err := w.runExecution(ctx, exec); err != nil {
			w.logger.Error("failed to run execution from poll",
				"execution_id", exec.ID,
				"artifact_id", exec.ArtifactID,
				"error", err,
			)
		}
	}
}
