// Bindery Worker — прогоняет пайплайны обработки артефактов.
//
// Worker:
//   - Получает команды artifact.process из RabbitMQ
//   - Загружает изображение из объектного хранилища
//   - Прогоняет шаги detect → ocr → grade до терминального статуса
//   - Публикует pipeline.updated по завершении
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Bindery/internal/config"
	"github.com/shaiso/Bindery/internal/executor"
	"github.com/shaiso/Bindery/internal/mq"
	"github.com/shaiso/Bindery/internal/objectstore"
	"github.com/shaiso/Bindery/internal/ocrclient"
	"github.com/shaiso/Bindery/internal/pipeline"
	"github.com/shaiso/Bindery/internal/repo"
	"github.com/shaiso/Bindery/internal/telemetry"
	"github.com/shaiso/Bindery/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting bindery-worker")

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

	// Объектное хранилище
	store, err := objectstore.New(objectstore.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		Region:    cfg.MinIO.Region,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		logger.Error("failed to create object store", "error", err)
		os.Exit(1)
	}

	// RabbitMQ: worker без брокера работает в polling-only режиме
	var publisher *mq.Publisher
	mqConn, err := mq.NewConnection(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Шаги пайплайна
	registry, err := pipeline.DefaultRegistry(pipeline.NewOCRStep(ocrclient.New(cfg.OCR.URL)))
	if err != nil {
		logger.Error("failed to build step registry", "error", err)
		os.Exit(1)
	}

	// Executor с логированием и метриками
	exec := executor.New(executor.Config{
		Executions: executionRepo,
		Steps:      stepRepo,
		Registry:   registry,
		Events: executor.MultiSink{
			executor.LogSink{Logger: logger},
			executor.PromSink{},
		},
		Logger: logger,
	})

	// Создаём worker
	w := worker.New(worker.Config{
		ArtifactRepo:  artifactRepo,
		ExecutionRepo: executionRepo,
		Store:         store,
		Executor:      exec,
		Registry:      registry,
		Publisher:     publisher,
		Conn:          mqConn,
		Prefetch:      cfg.Worker.Prefetch,
		Logger:        logger,
	})

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.Worker.Port

	go func() {
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем worker
	w.Stop()
	logger.Info("bindery-worker stopped")
}
