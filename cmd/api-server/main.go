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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "api-server",
		Short: "Clinic scheduling HTTP API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type serveOptions struct {
	inMemory     bool
	demoDoctors  int
	demoPatients int
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(opts)
		},
	}
	cmd.Flags().BoolVar(&opts.inMemory, "in-memory", false, "keep appointments in process memory instead of Postgres")
	cmd.Flags().IntVar(&opts.demoDoctors, "demo-doctors", 3, "doctors to create when running in memory")
	cmd.Flags().IntVar(&opts.demoPatients, "demo-patients", 20, "patients to create when running in memory")

	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.WithStorage(config.StoragePostgres))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.Migrate(ctx, pool)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
}

func runServer(opts serveOptions) error {
	var loadOpts []config.Option
	if opts.inMemory {
		loadOpts = append(loadOpts, config.WithStorage(config.StorageMemory))
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return fmt.Errorf("config load error: %w", err)
	}

	logger := logging.New(cfg.Env, "api-server")
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("storage", cfg.Storage).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)

	var (
		pgPool    *pgxpool.Pool
		repo      appointment.Repository
		notesRepo notify.Repository
	)
	if cfg.InMemory() {
		mem := appointment.NewMemoryRepository()
		if err := seedDemoClinic(rootCtx, mem, verifier, logger, opts.demoDoctors, opts.demoPatients); err != nil {
			return fmt.Errorf("seed demo clinic: %w", err)
		}
		repo = mem
		notesRepo = notify.NewMemoryRepository()
	} else {
		// Connect Postgres
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.DBMaxConns, cfg.DBMinConns)
		cancelPg()
		if err != nil {
			return fmt.Errorf("postgres connection error: %w", err)
		}
		defer pgPool.Close()
		logger.Info().Msg("connected to Postgres")

		repo = appointment.NewPgRepository(pgPool)
		notesRepo = notify.NewPgRepository(pgPool)
	}

	// Connect Redis. Without it bookings rely on the database constraint and
	// events are dispatched in-process instead of through the stream.
	var (
		rdb    *redis.Client
		locker appointment.SlotLocker
		events appointment.EventSink
	)
	redisCtx, cancelRedis := context.WithTimeout(rootCtx, 5*time.Second)
	rdb, err = redisclient.NewRedisClient(redisCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	cancelRedis()
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, running without slot locks, dispatching events inline")
		rdb = nil
		events = notify.NewInlineSink(notify.NewDispatcher(notesRepo, notify.NewLogMailer(cfg.MailFrom, logger), logger))
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, cfg.LockWait)
		events = redisclient.NewStreamPublisher(rdb, cfg.EventStream)
		logger.Info().Msg("connected to Redis")
	}

	svc := appointment.NewService(repo, locker, events, logger)
	notifications := notify.NewService(notesRepo)

	router := api.NewRouter(api.RouterConfig{
		Service:       svc,
		Notifications: notifications,
		Verifier:      verifier,
		PgPool:        pgPool,
		Redis:         rdb,
		InMemory:      cfg.InMemory(),
		Env:           cfg.Env,
		Version:       version,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-rootCtx.Done():
	}

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
