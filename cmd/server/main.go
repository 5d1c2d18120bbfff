// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jason-s-yu/pvprelay/internal/cache"
	"github.com/jason-s-yu/pvprelay/internal/config"
	"github.com/jason-s-yu/pvprelay/internal/gamemode"
	"github.com/jason-s-yu/pvprelay/internal/handlers"
	"github.com/jason-s-yu/pvprelay/internal/lobby"
	"github.com/jason-s-yu/pvprelay/internal/relay"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:          "pvprelay",
		Short:        "Two-player PvP relay server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Port, "port", cfg.Port, "listen port (PORT)")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (LOG_LEVEL)")
	cmd.Flags().StringVar(&cfg.ServerVersion, "server-version", cfg.ServerVersion, "client version to expect (SERVER_VERSION)")
	cmd.Flags().IntVar(&cfg.OutboxSize, "outbox-size", cfg.OutboxSize, "per-connection outbound buffer (OUTBOX_SIZE)")
	cmd.Flags().StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "publish match results to this Redis (REDIS_ADDR)")
	cmd.Flags().StringVar(&cfg.QueueName, "queue", cfg.QueueName, "Redis list for match results (HISTORIAN_QUEUE_NAME)")

	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	var recorder relay.Recorder
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()

		pub := cache.NewPublisher(cache.NewQueue(rdb, cfg.QueueName), logger, 256)
		pubCtx, stopPublisher := context.WithCancel(ctx)
		published := make(chan struct{})
		go func() {
			defer close(published)
			pub.Run(pubCtx)
		}()
		// flush the publisher before the client closes
		defer func() {
			stopPublisher()
			<-published
		}()
		recorder = pub
		logger.Infof("Publishing match results to %s/%s", cfg.RedisAddr, cfg.QueueName)
	} else {
		logger.Info("REDIS_ADDR not set, match results are not recorded")
	}

	registry := lobby.NewRegistry(gamemode.NewRegistry())
	rt := relay.NewRouter(registry, recorder, logger, cfg.ServerVersion)

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: handlers.NewServer(handlers.ServerConfig{
			Logger:     logger,
			Registry:   registry,
			Router:     rt,
			OutboxSize: cfg.OutboxSize,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server exited: %v", err)
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("shutdown error: %v", err)
			return err
		}
	}

	logger.Info("server stopped")
	return nil
}
