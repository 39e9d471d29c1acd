// Package cli implements leadctl, the operator tool for migrations, manual
// credit corrections, refunds and credential setup.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"leadmarket/internal/cache"
	"leadmarket/internal/config"
	"leadmarket/internal/db"
	"leadmarket/internal/models"
	"leadmarket/internal/notify"
	"leadmarket/internal/services"
	"leadmarket/internal/store"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var operator = models.Admin("leadctl")

func NewRootCommand(version string) *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "leadctl",
		Short:         "Operate the lead marketplace",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	logger := func(cmd *cobra.Command) *slog.Logger {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	}

	root.AddCommand(
		newMigrateCommand(logger),
		newRefundCommand(logger),
		newAdjustCommand(logger),
		newTopUpCommand(logger),
		newReconcileCommand(logger),
		newTokenCommand(),
		newHashKeyCommand(),
	)
	return root
}

// env holds the connections a database-backed command needs.
type env struct {
	cfg      config.Config
	database *sqlx.DB
	pool     *pgxpool.Pool
	redis    *redis.Client
	logger   *slog.Logger
}

func openEnv(ctx context.Context, logger *slog.Logger) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	e := &env{cfg: cfg, database: database, logger: logger}
	if cfg.NotifySink != config.SinkNone {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("connect pool: %w", err)
		}
		e.pool = pool
	}
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		e.redis = client
	}
	return e, nil
}

func (e *env) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	e.database.Close()
}

// services builds the credit and marketplace services. Notifications are
// enqueued for the server's workers when a sink is configured, and refunds
// invalidate the shared open jobs cache when Redis is configured.
func (e *env) services() (*services.CreditService, *services.MarketplaceService, error) {
	var notifier services.Notifier
	if e.pool != nil {
		queue, err := notify.NewInsertOnlyQueue(e.pool, e.logger)
		if err != nil {
			return nil, nil, err
		}
		notifier = notify.NewDispatcher(nil, queue, e.logger)
	}
	var openJobs services.OpenJobsCache
	if e.redis != nil {
		openJobs = cache.NewOpenJobs(e.redis, e.cfg.ProjectionTTL, e.logger)
	}
	txRunner := db.NewTxRunner(e.database)
	audit := store.NewAuditStore(e.database)
	credits := services.NewCreditService(txRunner, store.NewContractorStore(e.database), store.NewLedgerStore(e.database), audit, notifier, e.logger)
	marketplace := services.NewMarketplaceService(txRunner, store.NewJobStore(e.database), store.NewPurchaseStore(e.database), credits, audit, openJobs, notifier, e.logger)
	return credits, marketplace, nil
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
