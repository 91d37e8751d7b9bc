// Bindery API — HTTP-интерфейс системы.
//
// API:
//   - Принимает загрузки артефактов и кладёт байты в объектное хранилище
//   - Ставит полные прогоны пайплайна в очередь
//   - Выполняет ручные workflows синхронно
//   - Отдаёт состояние executions и агрегаты
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Bindery/internal/api"
	"github.com/shaiso/Bindery/internal/config"
	"github.com/shaiso/Bindery/internal/mq"
	"github.com/shaiso/Bindery/internal/objectstore"
	"github.com/shaiso/Bindery/internal/ocrclient"
	"github.com/shaiso/Bindery/internal/pipeline"
	"github.com/shaiso/Bindery/internal/repo"
	"github.com/shaiso/Bindery/internal/telemetry"
	"github.com/shaiso/Bindery/internal/workflow"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting bindery-api")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx, cfg.DB.URL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

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
	if err := store.EnsureBucket(ctx, cfg.MinIO.Region); err != nil {
		logger.Warn("failed to ensure bucket", "error", err)
	}

	// RabbitMQ: без брокера API работает в degraded-режиме
	// (загрузка и workflows кроме "full" доступны)
	var publisher *mq.Publisher
	mqConn, err := mq.NewConnection(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, pipeline scheduling disabled", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Шаги пайплайна для ручных workflows
	registry, err := pipeline.DefaultRegistry(pipeline.NewOCRStep(ocrclient.New(cfg.OCR.URL)))
	if err != nil {
		logger.Error("failed to build step registry", "error", err)
		os.Exit(1)
	}

	workflows := workflow.New(workflow.Config{
		Registry:  registry,
		Store:     store,
		Artifacts: artifactRepo,
		Publisher: publisher,
		Logger:    logger,
	})

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		ArtifactRepo:  artifactRepo,
		ExecutionRepo: executionRepo,
		StepRepo:      stepRepo,
		Store:         store,
		Workflows:     workflows,
		Publisher:     publisher,
		Logger:        logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":" + cfg.API.Port

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
