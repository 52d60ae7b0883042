package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nepbay/voice-search/internal/api"
	"github.com/nepbay/voice-search/internal/cache"
	"github.com/nepbay/voice-search/internal/clickhouse"
	"github.com/nepbay/voice-search/internal/config"
	"github.com/nepbay/voice-search/internal/elasticsearch"
	"github.com/nepbay/voice-search/internal/firestore"
	"github.com/nepbay/voice-search/internal/indexing"
	"github.com/nepbay/voice-search/internal/interactions"
	"github.com/nepbay/voice-search/internal/kafka"
	"github.com/nepbay/voice-search/internal/models"
	"github.com/nepbay/voice-search/internal/observability"
	"github.com/nepbay/voice-search/internal/orchestrator"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting voice search service",
		zap.String("service", cfg.Observability.ServiceName),
	)

	tracerShutdown, err := observability.InitTracer(cfg.Observability.ServiceName)
	if err != nil {
		logger.Warn("tracing initialization failed, continuing without tracing", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Clients
	redisCache, err := cache.NewRedisCache(cfg.Redis, cfg.Personalization.HistorySize, logger)
	if err != nil {
		return fmt.Errorf("initializing redis: %w", err)
	}
	defer redisCache.Close()
	logger.Info("redis cache initialized")

	esClient, err := elasticsearch.NewClient(cfg.Elasticsearch, cfg.Search, logger)
	if err != nil {
		return fmt.Errorf("initializing elasticsearch: %w", err)
	}
	defer esClient.Close()
	logger.Info("elasticsearch client initialized")

	var chClient *clickhouse.Client
	chClient, err = clickhouse.NewClient(cfg.ClickHouse, logger)
	if err != nil {
		logger.Warn("clickhouse initialization failed, analytics will be unavailable", zap.Error(err))
		chClient = nil
	} else {
		defer chClient.Close()
		if err := chClient.EnsureTables(ctx); err != nil {
			logger.Warn("clickhouse table creation failed", zap.Error(err))
		}
		logger.Info("clickhouse client initialized")
	}

	var fsClient *firestore.Client
	if cfg.Firestore.ProjectID != "" {
		fsClient, err = firestore.NewClient(ctx, cfg.Firestore, logger)
		if err != nil {
			logger.Warn("firestore initialization failed, hydration will be unavailable", zap.Error(err))
			fsClient = nil
		} else {
			defer fsClient.Close()
			logger.Info("firestore client initialized")
		}
	}

	var analyticsWriter observability.AnalyticsWriter
	if chClient != nil {
		analyticsWriter = chClient
	}
	slowSearchDetector := observability.NewSlowSearchDetector(
		cfg.Search.SlowSearch.WarningThreshold,
		cfg.Search.SlowSearch.CriticalThreshold,
		logger,
		analyticsWriter,
	)

	orch := orchestrator.New(
		esClient, chClient, fsClient, redisCache,
		slowSearchDetector, cfg.Search, cfg.Elasticsearch, cfg.Personalization, logger,
	)

	// Catalog indexing pipeline
	catalogProcessor := indexing.NewCatalogProcessor(
		esClient, chClient, redisCache, cfg.Elasticsearch, logger,
	)
	defer catalogProcessor.Stop()

	catalogConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.TopicCatalog, catalogProcessor.HandleMessage, logger)
	if err := catalogConsumer.Start(ctx); err != nil {
		logger.Warn("catalog consumer start failed, indexing pipeline will be unavailable", zap.Error(err))
	} else {
		defer catalogConsumer.Stop()
		logger.Info("catalog consumer started")
	}

	// Interaction history pipeline
	interactionProcessor := interactions.NewProcessor(redisCache, chClient, logger)
	interactionConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.TopicInteractions, interactionProcessor.HandleMessage, logger)
	if err := interactionConsumer.Start(ctx); err != nil {
		logger.Warn("interaction consumer start failed, personalization history will go stale", zap.Error(err))
	} else {
		defer interactionConsumer.Stop()
		logger.Info("interaction consumer started")
	}

	producer := kafka.NewProducer(cfg.Kafka, logger)
	defer producer.Close()

	// Optional CDC path: tail the product collection and republish changes to
	// the catalog topic, where the indexing consumer picks them up.
	if fsClient != nil && cfg.Firestore.WatchChanges {
		listener := fsClient.NewChangeListener(func(ctx context.Context, event *models.CatalogEvent) error {
			return producer.PublishCatalogEvent(ctx, event)
		})
		go func() {
			if err := listener.Listen(ctx); err != nil && ctx.Err() == nil {
				logger.Error("firestore change listener stopped", zap.Error(err))
			}
		}()
		logger.Info("firestore change listener started",
			zap.String("collection", cfg.Firestore.ProductCollection),
		)
	}

	// HTTP server. The speech recognizer is deployment-specific; text
	// transcripts in the voice endpoint work without one.
	handler := api.NewHandler(orch, nil, producer, cfg.Speech, logger)

	healthHandler := api.NewHealthHandler(logger)
	healthHandler.Register("redis", redisCache)
	healthHandler.RegisterES(esClient)
	if chClient != nil {
		healthHandler.Register("clickhouse", chClient)
	}
	healthHandler.Register("kafka", catalogConsumer)

	router := api.NewRouter(handler, healthHandler, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	logger.Info("starting graceful shutdown", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	cancel()

	if tracerShutdown != nil {
		if err := tracerShutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
	return nil
}
