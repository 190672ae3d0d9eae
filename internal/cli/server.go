package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"counseling-intake/internal/app"
	"counseling-intake/internal/catalog"
	"counseling-intake/internal/classify"
	"counseling-intake/internal/config"
	"counseling-intake/internal/infra/memory"
	"counseling-intake/internal/infra/postgres"
	infraredis "counseling-intake/internal/infra/redis"
	"counseling-intake/internal/infra/sqlite"
	transport "counseling-intake/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the intake server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	records, closeRecords, err := openRecordStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRecords()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)
	cacheTTL := config.TTLDuration(cfg.Records.CacheTTL, 5*time.Minute)

	var sessions app.SessionRepository
	if redisClient != nil {
		records = infraredis.NewRecordCache(redisClient, records, cacheTTL)
		sessions = infraredis.NewSessionStore(redisClient, redisTTL)
	} else {
		records = memory.NewRecordCache(records, cacheTTL)
		sessions = memory.NewSessionStore()
	}

	if cfg.Admin.Password == "" {
		logger.Warn("admin password not configured; admin endpoints are disabled")
	}
	service := app.NewIntakeService(records, sessions, cat, classify.Default(), app.Options{
		AdminPassword: cfg.Admin.Password,
		Logger:        logger,
	})

	mux := transport.NewRouter(service, logger)
	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.Logging(logger)(mux),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: websocket connections are long-lived
	}

	go func() {
		logger.Info("starting intake service", "port", finalPort, "catalog_version", cat.Version())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openRecordStore picks Postgres, then SQLite, then process memory.
func openRecordStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (app.RecordStore, func(), error) {
	switch {
	case cfg.Postgres.URL != "":
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using postgres record store")
		return postgres.NewRecordStore(pool), pool.Close, nil
	case cfg.SQLite.Path != "":
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using sqlite record store", "path", cfg.SQLite.Path)
		return store, func() { _ = store.Close() }, nil
	default:
		logger.Warn("no database configured; records are kept in memory")
		return memory.NewRecordStore(), func() {}, nil
	}
}

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.Path != "" {
		return catalog.LoadFile(cfg.Catalog.Path)
	}
	return catalog.Default()
}
