// Command postprocess runs the post-processing service: an HTTP API that
// registers and queues process items, and a worker that runs queued items
// against a PHPFina feed directory.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/alexandrecuer/postprocess/internal/adapter/clickhouse"
	httpadapter "github.com/alexandrecuer/postprocess/internal/adapter/http"
	kafkaadapter "github.com/alexandrecuer/postprocess/internal/adapter/kafka"
	"github.com/alexandrecuer/postprocess/internal/adapter/mqtt"
	"github.com/alexandrecuer/postprocess/internal/adapter/phpfina"
	"github.com/alexandrecuer/postprocess/internal/adapter/postgres"
	"github.com/alexandrecuer/postprocess/internal/building"
	"github.com/alexandrecuer/postprocess/internal/config"
	"github.com/alexandrecuer/postprocess/internal/observability"
	"github.com/alexandrecuer/postprocess/internal/pipeline"
	"github.com/alexandrecuer/postprocess/internal/process"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feeds, err := phpfina.Open(cfg.FeedDir, logger)
	if err != nil {
		logger.Error("failed to open feed directory", "error", err, "dir", cfg.FeedDir)
		os.Exit(1)
	}

	var lists process.ListStore = process.NewMemoryListStore()
	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		store := postgres.NewProcessStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to create schema", "error", err)
			os.Exit(1)
		}
		lists = store
		logger.Info("process lists stored in postgres")
	} else {
		logger.Info("process lists kept in memory")
	}

	runnerOpts := []process.RunnerOption{
		process.WithBuildingOptions(building.WithMaxIterations(cfg.SolverMaxIterations)),
	}
	if cfg.SolverTrace {
		runnerOpts = append(runnerOpts, process.WithBuildingOptions(building.WithLogger(logger)))
	}
	if cfg.MQTTEnabled() {
		client, err := mqtt.Connect(mqtt.Config{Broker: cfg.MQTTBroker, ClientID: cfg.MQTTClientID, Topic: cfg.MQTTTopic}, logger)
		if err != nil {
			logger.Error("failed to connect to mqtt broker", "error", err)
			os.Exit(1)
		}
		defer client.Disconnect(250)
		runnerOpts = append(runnerOpts, process.WithPublisher(mqtt.NewLastValuePublisher(client, cfg.MQTTTopic, logger)))
		logger.Info("last value publication enabled", "broker", cfg.MQTTBroker, "topic", cfg.MQTTTopic)
	}

	writer := kafkaadapter.NewWriter(cfg, logger)
	loaders := pipeline.Fanout{writer}
	if cfg.ClickHouseEnabled() {
		conn, err := clickhouse.Open(ctx, clickhouse.Config{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDB,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			logger.Error("failed to connect to clickhouse", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		history := clickhouse.NewRunHistory(conn, logger)
		if err := history.InitSchema(ctx); err != nil {
			logger.Error("failed to create run history table", "error", err)
			os.Exit(1)
		}
		loaders = append(loaders, history)
		logger.Info("run history enabled", "addr", cfg.ClickHouseAddr)
	}

	registry := process.DefaultRegistry()
	runner := process.NewRunner(registry, feeds, logger, metrics, runnerOpts...)
	reader := kafkaadapter.NewReader(cfg, logger)
	enqueuer := kafkaadapter.NewEnqueuer(cfg)

	p := pipeline.New(reader, pipeline.NewExecutor(runner), loaders, logger, metrics, cfg.BatchSize)
	service := process.NewService(registry, feeds, lists, enqueuer, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, service, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the worker.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if err := enqueuer.Close(); err != nil {
		logger.Error("kafka enqueuer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
