package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veilstats/veil-analytics/internal/broker"
	"github.com/veilstats/veil-analytics/internal/codec"
	"github.com/veilstats/veil-analytics/internal/config"
	"github.com/veilstats/veil-analytics/internal/event"
	"github.com/veilstats/veil-analytics/internal/metrics"
	"github.com/veilstats/veil-analytics/internal/origin"
	"github.com/veilstats/veil-analytics/internal/proof"
	"github.com/veilstats/veil-analytics/internal/server"
	"github.com/veilstats/veil-analytics/internal/tracker"
	"github.com/veilstats/veil-analytics/pkg/kafka"
	"github.com/veilstats/veil-analytics/pkg/logger"
	"github.com/veilstats/veil-analytics/pkg/postgres"
	"go.uber.org/zap"
)

func main() {

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Error loading config: %v", err))
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		panic(fmt.Sprintf("Error initializing logger: %v", err))
	}

	defer log.Sync()

	log = logger.WithComponent(log, "veil-server")
	log.Info("Starting Veil Analytics server",
		zap.String("environment", cfg.Environment),
		zap.String("http_port", cfg.HTTPPort),
		zap.Bool("kafka_enabled", cfg.Kafka.Enabled),
	)

	db, err := postgres.New(postgres.Config{
		DSN:             cfg.Postgres.PostgresDSN(),
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime}, log)

	if err != nil {
		log.Fatal("Error initializing postgres client", zap.Error(err))
	}

	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		log.Fatal("Error ensuring database schema", zap.Error(err))
	}

	cdc := codec.NewJSONCodec()

	originRepo := origin.NewRepository(db, log)
	originService := origin.NewService(originRepo, cfg.Analytics.DemoDomain, log)

	eventRepo := event.NewRepository(db, log)

	liveBroker := broker.New(log)
	defer liveBroker.Close()

	metricsService := metrics.NewService(eventRepo, cdc, metrics.Config{
		RecentWindowLimit: cfg.Analytics.RecentWindowLimit,
		VisitorRatio:      cfg.Analytics.VisitorRatio,
		TimeSeriesDays:    cfg.Analytics.TimeSeriesDays,
		TopPagesLimit:     cfg.Analytics.TopPagesLimit,
	}, log)
	aggregator := metrics.NewAggregator(metricsService, liveBroker, cfg.Analytics.RecomputeCoalesce, log)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()

	var notifier event.Notifier
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:          cfg.Kafka.Brokers,
			Topic:            cfg.Kafka.Topic,
			Retries:          cfg.Kafka.ProducerRetries,
			Timeout:          cfg.Kafka.ProducerTimeout,
			RequiredAcks:     cfg.Kafka.RequiredAcks,
			Compression:      cfg.Kafka.CompressionType,
			IdempotentWrites: cfg.Kafka.IdempotentWrites,
			MaxMessageBytes:  cfg.Kafka.MaxMessageBytes,
		}, log)
		if err != nil {
			log.Fatal("Error initializing kafka producer", zap.Error(err))
		}
		defer producer.Close()

		consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:        cfg.Kafka.Brokers,
			Topics:         []string{cfg.Kafka.Topic},
			GroupID:        cfg.Kafka.GroupID,
			AutoCommit:     true,
			CommitInterval: cfg.Kafka.CommitInterval,
			SessionTimeout: cfg.Kafka.SessionTimeout,
		}, aggregator.HandleNotification, log)
		if err != nil {
			log.Fatal("Error initializing kafka consumer", zap.Error(err))
		}
		defer consumer.Close()

		go func() {
			if err := consumer.Start(consumerCtx); err != nil {
				log.Error("Consumer stopped", zap.Error(err))
			}
		}()

		notifier = event.NewKafkaNotifier(producer)
	} else {
		log.Info("Kafka disabled, recomputing inline")
		notifier = metrics.NewInlineNotifier(aggregator)
	}

	eventService := event.NewService(eventRepo, originService, cdc, notifier, log)

	proofRepo := proof.NewRepository(db, log)
	proofService := proof.NewService(proofRepo, eventRepo, cdc, log)

	router := server.NewRouter(server.Deps{
		Origins:     origin.NewHandler(originService, log),
		Events:      event.NewHandler(eventService, log),
		Metrics:     metrics.NewHandler(metricsService, log),
		Stream:      broker.NewHandler(liveBroker, log),
		Proofs:      proof.NewHandler(proofService, log),
		Tracker:     tracker.NewHandler(),
		HealthCheck: db.HealthCheck,
		Logger:      log,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Error running HTTP server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")

	stopConsumer()
	liveBroker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn("HTTP server shutdown timed out", zap.Error(err))
	}

	log.Info("Server stopped")
}
