package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/funniceguy/web-minigame-factory/internal/config"
	"github.com/funniceguy/web-minigame-factory/internal/handler"
	"github.com/funniceguy/web-minigame-factory/internal/kafka"
	"github.com/funniceguy/web-minigame-factory/internal/notify"
	"github.com/funniceguy/web-minigame-factory/internal/persist"
	"github.com/funniceguy/web-minigame-factory/internal/postgres"
	"github.com/funniceguy/web-minigame-factory/internal/store"
	"github.com/funniceguy/web-minigame-factory/internal/websocket"
	"github.com/funniceguy/web-minigame-factory/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Select persistence backend
	var persister persist.Persister
	switch cfg.Store.Backend {
	case config.BackendRedis:
		logger.Info("using redis state backend", "addr", cfg.Redis.Addr)
		persister, err = persist.NewRedisPersister(&cfg.Redis)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
	default:
		logger.Info("using file state backend", "path", cfg.Store.Path)
		persister, err = persist.NewFilePersister(cfg.Store.Path)
		if err != nil {
			logger.Error("failed to initialize file backend", "error", err)
			os.Exit(1)
		}
	}
	defer persister.Close()

	// Optional sync-event audit trail
	var storeOpts []store.Option
	var recorder *postgres.EventRecorder
	if cfg.Postgres.Enabled {
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		recorder, err = postgres.NewEventRecorder(&cfg.Postgres, logger)
		if err != nil {
			logger.Warn("failed to connect to PostgreSQL, continuing without audit trail", "error", err)
		} else {
			defer recorder.Close()
			if err := recorder.RunMigrations(ctx); err != nil {
				logger.Error("failed to run migrations", "error", err)
				os.Exit(1)
			}
			storeOpts = append(storeOpts, store.WithRecorder(recorder))
		}
	}

	// Initialize the ranking store
	broker := notify.NewBroker(logger)
	rankingStore := store.New(persister, broker, logger, storeOpts...)
	rankingStore.Load(ctx)
	info := rankingStore.Info()
	logger.Info("ranking store ready", "revision", info.Revision, "season", info.Season.ID)

	// Initialize WebSocket hub and bridge it onto the fan-out
	wsHub := websocket.NewHub(rankingStore.Info, logger)
	go wsHub.Run()
	unsubscribeHub := broker.Subscribe(wsHub.BroadcastUpdate)
	defer unsubscribeHub()
	logger.Info("WebSocket hub initialized")

	// Start the season watcher so rollover fires even with no traffic
	seasonWatcher := worker.NewSeasonWatcher(rankingStore, logger)
	if err := seasonWatcher.Start(ctx); err != nil {
		logger.Error("failed to start season watcher", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka consumer for high-load sync ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, rankingStore, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(rankingStore, broker, wsHub, logger)

	// Create HTTP server. No write timeout: the event stream endpoint
	// holds its response open indefinitely.
	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     httpHandler.Router(),
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop season watcher
	if err := seasonWatcher.Stop(); err != nil {
		logger.Error("failed to stop season watcher", "error", err)
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	// Flush any pending debounced write
	rankingStore.Shutdown(shutdownCtx)

	logger.Info("server stopped")
}
