package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

func main() {
	var opts notify.WorkerOptions

	cmd := &cobra.Command{
		Use:   "notify-worker",
		Short: "Turn appointment events into doctor notifications and patient emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	cmd.Flags().Int64Var(&opts.BatchSize, "batch-size", 50, "messages read per XREADGROUP call")
	cmd.Flags().DurationVar(&opts.StaleAfter, "stale-after", time.Minute, "idle time before another consumer's pending message is reclaimed")
	cmd.Flags().DurationVar(&opts.RetryDelay, "retry-delay", 2*time.Second, "pause after a failed stream read")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts notify.WorkerOptions) error {
	cfg, err := config.Load(config.WithStorage(config.StoragePostgres))
	if err != nil {
		return fmt.Errorf("config load error: %w", err)
	}

	logger := logging.New(cfg.Env, "notify-worker")
	logger.Info().Str("env", cfg.Env).Str("stream", cfg.EventStream).Str("group", cfg.NotifyGroup).Msg("notify-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.DBMaxConns, cfg.DBMinConns)
	cancelPg()
	if err != nil {
		return fmt.Errorf("postgres connection error: %w", err)
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("redis connection error: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	consumer := redisclient.NewStreamConsumer(rdb, cfg.EventStream, cfg.NotifyGroup, consumerName(), cfg.NotifyBlock)
	dispatcher := notify.NewDispatcher(
		notify.NewPgRepository(pgPool),
		notify.NewLogMailer(cfg.MailFrom, logger),
		logger,
	)

	worker := notify.NewWorker(consumer, dispatcher, opts, logger)
	if err := worker.Run(rootCtx); err != nil {
		return fmt.Errorf("notify worker stopped: %w", err)
	}

	logger.Info().Msg("shutdown signal received, notify worker stopped")
	return nil
}

// consumerName is unique per process so restarted pods do not share a
// pending list with a dead predecessor.
func consumerName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "notify-worker"
	}
	return host + "-" + time.Now().UTC().Format("20060102150405")
}
