// Bindery Sweeper — фоновый janitor пайплайнов.
//
// Sweeper по расписанию:
//   - Помечает брошенные executions (RUNNING дольше порога) как FAILED
//   - Переотправляет FAILED артефакты с транзиентными ошибками в очередь
//
// Запускается в единственном экземпляре.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Bindery/internal/config"
	"github.com/shaiso/Bindery/internal/mq"
	"github.com/shaiso/Bindery/internal/repo"
	"github.com/shaiso/Bindery/internal/sweeper"
	"github.com/shaiso/Bindery/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting bindery-sweeper")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.DB.URL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	artifactRepo := repo.NewArtifactRepo(pool)
	executionRepo := repo.NewExecutionRepo(pool)
	stepRepo := repo.NewStepRepo(pool)

	// RabbitMQ: sweeper без брокера помечает брошенные executions,
	// но не может переотправлять артефакты
	var publisher *mq.Publisher
	mqConn, err := mq.NewConnection(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, requeue disabled", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Создаём sweeper
	s := sweeper.New(sweeper.Config{
		ExecutionRepo: executionRepo,
		StepRepo:      stepRepo,
		ArtifactRepo:  artifactRepo,
		Publisher:     publisher,
		CronExpr:      cfg.Sweeper.CronExpr,
		StaleSec:      cfg.Sweeper.StaleSec,
		MaxRuns:       cfg.Sweeper.MaxRuns,
		Logger:        logger,
	})

	if err := s.Start(ctx); err != nil {
		logger.Error("failed to start sweeper", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.Sweeper.Port

	go func() {
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем sweeper
	s.Stop()
	logger.Info("bindery-sweeper stopped")
}
