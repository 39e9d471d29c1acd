package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadmarket/internal/cache"
	"leadmarket/internal/config"
	"leadmarket/internal/db"
	"leadmarket/internal/handlers"
	"leadmarket/internal/notify"
	"leadmarket/internal/services"
	"leadmarket/internal/store"
	"leadmarket/internal/websocket"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	hub := websocket.NewHub(cfg.AllowedOrigins...)

	var openJobs services.OpenJobsCache
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer client.Close()
		openJobs = cache.NewOpenJobs(client, cfg.ProjectionTTL, logger)
		logger.Info("open jobs cache enabled", "addr", cfg.RedisAddr)
	}

	var queue notify.Enqueuer
	if cfg.NotifySink != config.SinkNone {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := notify.MigrateQueue(ctx, pool); err != nil {
			return err
		}

		var sink notify.Sink
		switch cfg.NotifySink {
		case config.SinkWebhook:
			sink = notify.NewWebhookSink(cfg.NotifyWebhookURL)
		case config.SinkKafka:
			producer, err := notify.NewKafkaProducer(cfg.KafkaBrokers)
			if err != nil {
				return err
			}
			kafkaSink := notify.NewKafkaSink(producer, cfg.KafkaTopic)
			defer kafkaSink.Close()
			sink = kafkaSink
		}

		riverClient, err := notify.NewQueue(pool, sink, cfg.RiverWorkers, logger)
		if err != nil {
			return err
		}
		if err := riverClient.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := riverClient.Stop(stopCtx); err != nil {
				logger.Warn("river stop", "error", err)
			}
		}()
		queue = riverClient
		logger.Info("notification delivery enabled", "sink", cfg.NotifySink)
	}
	dispatcher := notify.NewDispatcher(hub, queue, logger)

	contractors := store.NewContractorStore(database)
	ledger := store.NewLedgerStore(database)
	jobs := store.NewJobStore(database)
	purchases := store.NewPurchaseStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)

	credits := services.NewCreditService(txRunner, contractors, ledger, audit, dispatcher, logger)
	marketplace := services.NewMarketplaceService(txRunner, jobs, purchases, credits, audit, openJobs, dispatcher, logger)
	intake := services.NewIntakeService(txRunner, jobs, audit, openJobs, logger)

	handler := handlers.New(cfg, credits, marketplace, intake, contractors, audit, hub, logger)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("leadmarket API listening", "addr", server.Addr, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
