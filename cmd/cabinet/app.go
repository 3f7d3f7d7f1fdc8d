package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cabinet/internal/blob"
	"cabinet/internal/config"
	nsSvc "cabinet/internal/domain/services/namespace"
	"cabinet/internal/identity"
	"cabinet/internal/notify"
	"cabinet/internal/repository/memory"
	"cabinet/internal/repository/postgres"
	pgNamespace "cabinet/internal/repository/postgres/namespace"
	"cabinet/internal/service/namespace"
	"cabinet/internal/service/policy"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

const flushTimeout = 5 * time.Second

// app holds the wired namespace services for one CLI invocation.
// The caller must defer Close.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	folders nsSvc.FolderService
	trees   nsSvc.TreeService
	files   nsSvc.FileService

	pool     *pgxpool.Pool
	notifier *notify.AsyncNotifier
	closers  []io.Closer
}

// loadConfig reads .env (if present) and the environment
func loadConfig() (*config.Config, *slog.Logger, io.Closer, error) {
	// Silently ignore a missing .env file
	_ = godotenv.Load()

	cfg := config.Load()
	logger, closer, err := config.NewLogger(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("setting up logger: %w", err)
	}
	slog.SetDefault(logger)
	return cfg, logger, closer, nil
}

// newApp wires repositories, blob store, notifier and services from the
// environment, then bootstraps the partitions.
func newApp(ctx context.Context) (*app, error) {
	cfg, logger, logCloser, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	deps := &namespace.Dependencies{Logger: logger}

	switch cfg.StoreBackend {
	case "memory":
		store := memory.NewStore(logger)
		deps.TxManager = memory.NewTransactionManager(store)
		deps.Folders = memory.NewFolderRepository(store)
		deps.Files = memory.NewFileRepository(store)
		deps.Versions = memory.NewVersionRepository(store)
		deps.Partitions, err = namespace.NewRegistry(memory.NewPartitionRepository(store), deps.Folders, logger)
	case "postgres":
		a.pool, err = openPool(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		repoConfig := &postgres.RepositoryConfig{
			Pool:   a.pool,
			Tables: postgres.NewTableNames(cfg.TablePrefix),
			Logger: logger,
		}
		deps.TxManager = postgres.NewTransactionManager(a.pool, logger)
		deps.Folders = pgNamespace.NewFolderRepository(repoConfig)
		deps.Files = pgNamespace.NewFileRepository(repoConfig)
		deps.Versions = pgNamespace.NewVersionRepository(repoConfig)
		deps.Partitions, err = namespace.NewRegistry(pgNamespace.NewPartitionRepository(repoConfig), deps.Folders, logger)
	default:
		err = fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	if err != nil {
		a.Close()
		return nil, err
	}

	blobs, blobCloser, err := blob.NewBlobStoreFromConfig(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("setting up blob store: %w", err)
	}
	a.closers = append(a.closers, blobCloser)
	deps.Blobs = blobs

	publisher, err := a.publisher()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.notifier = notify.NewAsyncNotifier(publisher, cfg.NotifyBuffer, logger)
	deps.Notifier = a.notifier

	deps.Policy, err = policy.NewEvaluator()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("loading role hierarchy: %w", err)
	}
	deps.Roles = identity.NewStaticRoleProvider(cfg.AdminUserIDs)

	if err := deps.Partitions.Bootstrap(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.folders = namespace.NewFolderService(deps)
	a.trees = namespace.NewTreeService(deps)
	a.files = namespace.NewFileService(deps)

	logger.Debug("cabinet initialized",
		"environment", cfg.Environment,
		"store_backend", cfg.StoreBackend,
		"blob_backend", cfg.BlobBackend,
		"notify_backend", cfg.NotifyBackend,
	)
	return a, nil
}

func (a *app) publisher() (notify.Publisher, error) {
	switch a.cfg.NotifyBackend {
	case "log":
		return notify.NewLogPublisher(a.logger), nil
	case "pg":
		if a.pool == nil {
			return nil, fmt.Errorf("NOTIFY_BACKEND=pg requires STORE_BACKEND=postgres")
		}
		return notify.NewPgPublisher(a.pool, a.cfg.NotifyChannel), nil
	default:
		return nil, fmt.Errorf("unknown NOTIFY_BACKEND %q", a.cfg.NotifyBackend)
	}
}

// Close flushes pending events and releases every resource in reverse order
func (a *app) Close() {
	if a.notifier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := a.notifier.Close(ctx); err != nil {
			a.logger.Warn("failed to flush events", "error", err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("failed to close resource", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for STORE_BACKEND=postgres")
	}
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}
