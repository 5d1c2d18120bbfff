// cmd/historian is an asynchronous service that pops finished matches from
// the Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jason-s-yu/pvprelay/internal/cache"
	"github.com/jason-s-yu/pvprelay/internal/config"
	"github.com/jason-s-yu/pvprelay/internal/database"
	"github.com/jason-s-yu/pvprelay/internal/historian"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	var (
		batchSize int
		flushMs   int
		retryMs   int
	)

	cmd := &cobra.Command{
		Use:          "historian",
		Short:        "Persist finished PvP matches from Redis into Postgres",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, historian.Options{
				BatchSize:  batchSize,
				FlushDelay: time.Duration(flushMs) * time.Millisecond,
				RetryDelay: time.Duration(retryMs) * time.Millisecond,
			})
		},
	}

	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (LOG_LEVEL)")
	cmd.Flags().StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address (REDIS_ADDR)")
	cmd.Flags().StringVar(&cfg.QueueName, "queue", cfg.QueueName, "Redis list to drain (HISTORIAN_QUEUE_NAME)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 20, "results per database transaction")
	cmd.Flags().IntVar(&flushMs, "flush-ms", 500, "maximum wait before a partial batch is flushed")
	cmd.Flags().IntVar(&retryMs, "retry-ms", 2000, "wait before retrying a batch the database rejected")

	return cmd
}

func run(ctx context.Context, cfg config.Config, opts historian.Options) error {
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, database.ConnString())
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("Connected to database")

	store := database.NewMatchStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	historian.New(cache.NewQueue(rdb, cfg.QueueName), store, logger, opts).Run(ctx)
	return nil
}
