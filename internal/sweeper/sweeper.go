package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/Bindery/internal/domain"
	"github.com/shaiso/Bindery/internal/mq"
	"github.com/shaiso/Bindery/internal/repo"
)

// Default configuration values.
const (
	defaultCronExpr  = "*/5 * * * *"
	defaultStaleSec  = 600
	defaultBatchSize = 50
	defaultMaxRuns   = 3
)

// abandonedMessage — сообщение для executions, брошенных упавшим процессом.
const abandonedMessage = "abandoned: worker crashed mid-run"

// Sweeper — фоновая уборка следов упавших прогонов.
//
// По cron-расписанию выполняет две задачи:
//
//  1. Executions, висящие в RUNNING дольше порога — следы воркера,
//     умершего посреди прогона. Переводятся в FAILED("abandoned"),
//     их невыполненные шаги помечаются SKIPPED.
//  2. Артефакты с pipeline_status=FAILED, чей последний execution упал
//     по восстановимой причине (таймаут, abandoned), заново ставятся
//     в очередь — с ограничением на число прогонов на артефакт.
//
// Детерминированные доменные отказы (нет объекта на фото, несколько
// объектов) не переигрываются: без изменения изображения результат не
// изменится.
type Sweeper struct {
	executionRepo *repo.ExecutionRepo
	stepRepo      *repo.StepRepo
	artifactRepo  *repo.ArtifactRepo
	publisher     *mq.Publisher

	cronExpr  string
	staleSec  int
	batchSize int
	maxRuns   int

	logger *slog.Logger
	runner *cron.Cron
}

// Config — конфигурация Sweeper.
type Config struct {
	ExecutionRepo *repo.ExecutionRepo
	StepRepo      *repo.StepRepo
	ArtifactRepo  *repo.ArtifactRepo
	Publisher     *mq.Publisher

	// CronExpr — расписание (default: каждые 5 минут).
	CronExpr string

	// StaleSec — сколько секунд execution висит в RUNNING до признания
	// брошенным (default: 600). Должен превышать сумму таймаутов шагов.
	StaleSec int

	// BatchSize — количество записей за один проход (default: 50).
	BatchSize int

	// MaxRuns — максимум прогонов на артефакт, включая первый (default: 3).
	MaxRuns int

	// Logger
	Logger *slog.Logger
}

// New создаёт Sweeper.
func New(cfg Config) *Sweeper {
	cronExpr := cfg.CronExpr
	if cronExpr == "" {
		cronExpr = defaultCronExpr
	}
	staleSec := cfg.StaleSec
	if staleSec <= 0 {
		staleSec = defaultStaleSec
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	maxRuns := cfg.MaxRuns
	if maxRuns <= 0 {
		maxRuns = defaultMaxRuns
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		executionRepo: cfg.ExecutionRepo,
		stepRepo:      cfg.StepRepo,
		artifactRepo:  cfg.ArtifactRepo,
		publisher:     cfg.Publisher,
		cronExpr:      cronExpr,
		staleSec:      staleSec,
		batchSize:     batchSize,
		maxRuns:       maxRuns,
		logger:        logger,
	}
}

// Start запускает cron-расписание.
func (s *Sweeper) Start(ctx context.Context) error {
	s.runner = cron.New()

	_, err := s.runner.AddFunc(s.cronExpr, func() {
		if err := s.Sweep(ctx); err != nil {
			s.logger.Error("sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep %q: %w", s.cronExpr, err)
	}

	s.runner.Start()
	s.logger.Info("sweeper started",
		"cron", s.cronExpr,
		"stale_sec", s.staleSec,
		"max_runs", s.maxRuns,
	)
	return nil
}

// Stop останавливает расписание и дожидается текущего прохода.
func (s *Sweeper) Stop() {
	if s.runner != nil {
		<-s.runner.Stop().Done()
	}
	s.logger.Info("sweeper stopped")
}

// Sweep выполняет один проход уборки.
// Ошибки одной записи не блокируют обработку остальных.
func (s *Sweeper) Sweep(ctx context.Context) error {
	abandoned, err := s.markAbandoned(ctx)
	if err != nil {
		return fmt.Errorf("mark abandoned: %w", err)
	}

	requeued, err := s.requeueFailed(ctx)
	if err != nil {
		return fmt.Errorf("requeue failed: %w", err)
	}

	if abandoned > 0 || requeued > 0 {
		s.logger.Info("sweep completed",
			"abandoned", abandoned,
			"requeued", requeued,
		)
	}
	return nil
}

// markAbandoned помечает брошенные RUNNING executions как FAILED,
// а их невыполненные шаги — SKIPPED.
func (s *Sweeper) markAbandoned(ctx context.Context) (int, error) {
	execs, err := s.executionRepo.ListStaleRunning(ctx, s.staleSec, s.batchSize)
	if err != nil {
		return 0, err
	}

	var marked int
	for i := range execs {
		exec := &execs[i]

		if err := s.abandonExecution(ctx, exec); err != nil {
			s.logger.Error("failed to abandon execution",
				"execution_id", exec.ID,
				"error", err,
			)
			continue
		}
		marked++

		s.logger.Warn("execution abandoned",
			"execution_id", exec.ID,
			"artifact_id", exec.ArtifactID,
			"started_at", exec.StartedAt,
		)
	}
	return marked, nil
}

// abandonExecution переводит execution в FAILED и закрывает его шаги.
func (s *Sweeper) abandonExecution(ctx context.Context, exec *domain.Execution) error {
	steps, err := s.stepRepo.ListByExecution(ctx, exec.ID)
	if err != nil {
		return fmt.Errorf("list steps: %w", err)
	}

	for i := range steps {
		step := &steps[i]
		if step.Status.IsTerminal() {
			continue
		}
		if err := s.stepRepo.Skip(ctx, step, abandonedMessage); err != nil {
			return fmt.Errorf("skip step %s: %w", step.Name, err)
		}
	}

	return s.executionRepo.Fail(ctx, exec, abandonedMessage)
}

// requeueFailed заново ставит в очередь артефакты с восстановимыми
// отказами, не превышая лимит прогонов.
//
// Без подключения к брокеру переотправка пропускается целиком:
// sweeper продолжает помечать брошенные executions.
func (s *Sweeper) requeueFailed(ctx context.Context) (int, error) {
	if s.publisher == nil {
		s.logger.Debug("no message broker connection, requeue skipped")
		return 0, nil
	}

	artifacts, err := s.artifactRepo.ListFailed(ctx, s.batchSize)
	if err != nil {
		return 0, err
	}

	var requeued int
	for i := range artifacts {
		artifact := &artifacts[i]

		latest, err := s.executionRepo.GetLatestByArtifact(ctx, artifact.ID)
		if err != nil {
			s.logger.Error("failed to load latest execution",
				"artifact_id", artifact.ID,
				"error", err,
			)
			continue
		}

		if !retryableFailure(latest.Error) {
			continue
		}

		runs, err := s.artifactRepo.CountExecutions(ctx, artifact.ID)
		if err != nil {
			s.logger.Error("failed to count executions",
				"artifact_id", artifact.ID,
				"error", err,
			)
			continue
		}
		if runs >= s.maxRuns {
			s.logger.Debug("artifact exhausted run budget",
				"artifact_id", artifact.ID,
				"runs", runs,
			)
			continue
		}

		if err := s.publisher.PublishArtifactProcess(ctx, artifact.ID); err != nil {
			s.logger.Error("failed to requeue artifact",
				"artifact_id", artifact.ID,
				"error", err,
			)
			continue
		}
		requeued++

		s.logger.Info("artifact requeued",
			"artifact_id", artifact.ID,
			"runs", runs,
			"last_error", latest.Error,
		)
	}
	return requeued, nil
}

// retryableFailure определяет, имеет ли смысл переигрывать прогон.
// Восстановимы только транзиентные отказы: таймауты и брошенные прогоны.
func retryableFailure(message string) bool {
	return strings.Contains(message, "timeout") || strings.Contains(message, "abandoned")
}
