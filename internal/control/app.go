// Package control wires the application together: storage, node adapter,
// scanners, coordinator, schedules and the HTTP trigger surface.
package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
	"github.com/robfig/cron/v3"

	"github.com/verushub/stakewatch/internal/core/config"
	"github.com/verushub/stakewatch/internal/indexing/gaps"
	"github.com/verushub/stakewatch/internal/indexing/scan"
	"github.com/verushub/stakewatch/internal/infra/chain"
	"github.com/verushub/stakewatch/internal/infra/chain/verus"
	redisclient "github.com/verushub/stakewatch/internal/infra/redis"
	"github.com/verushub/stakewatch/internal/infra/rpc"
	"github.com/verushub/stakewatch/internal/infra/storage"
	"github.com/verushub/stakewatch/internal/infra/storage/memory"
	"github.com/verushub/stakewatch/internal/infra/storage/postgres"
)

// App is the assembled application.
type App struct {
	cfg         *config.AppConfig
	node        chain.Node
	store       storage.Store
	coordinator *scan.Coordinator
	detector    *gaps.Detector
	server      *Server
	cron        *cron.Cron
	db          *postgres.DB
	redisClient *redisclient.Client
	log         *slog.Logger
}

// NewApp creates the application with all dependencies initialized.
func NewApp(cfg *config.AppConfig) (*App, error) {
	log := slog.Default()

	// 1. Storage
	var store storage.Store
	var db *postgres.DB
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		store = postgres.NewStore(db)
		log.Info("using PostgreSQL storage")
	} else {
		store = memory.NewStore()
		log.Info("using memory storage")
	}

	// 2. Node adapter over the RPC client with failover providers.
	providers := make([]rpc.Provider, 0, len(cfg.Node.Providers))
	for _, p := range cfg.Node.Providers {
		providers = append(providers, rpc.NewHTTPProvider(p.Name, p.URL, p.Username, p.Password, p.Timeout))
	}
	client := rpc.NewClientWithRetry(rpc.RetryConfig{
		MaxAttempts:     cfg.Node.Retry.MaxAttempts,
		InitialDelay:    cfg.Node.Retry.InitialDelay,
		MaxDelay:        cfg.Node.Retry.MaxDelay,
		BackoffMultiple: cfg.Node.Retry.BackoffMultiple,
	}, providers...)
	node := verus.NewAdapter(client)

	// 3. Optional Redis lease locker for multi-instance deployments.
	var redisClient *redisclient.Client
	var leases scan.LeaseLocker
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("failed to connect to Redis, scan leases disabled", "error", err)
		} else {
			leases = redisClient
		}
	}

	// 4. Scanners and coordinator.
	detector := gaps.NewDetector(store.Checkpoints(), cfg.Scan.GenesisHeight)
	coordinator := scan.NewCoordinator(
		scan.Config{
			MaxAttempts:    cfg.Scan.MaxAttempts,
			InitialBackoff: cfg.Scan.InitialBackoff,
			LeaseTTL:       cfg.Scan.LeaseTTL,
		},
		node,
		scan.NewRangeScanner(node, store, cfg.Scan.BatchSize),
		scan.NewFastScanner(node, store, cfg.Scan.BatchSize, cfg.Scan.FastConcurrency),
		detector,
		leases,
		cfg.Scan.GenesisHeight,
	)

	app := &App{
		cfg:         cfg,
		node:        node,
		store:       store,
		coordinator: coordinator,
		detector:    detector,
		db:          db,
		redisClient: redisClient,
		log:         log,
	}
	app.server = NewServer(cfg.Server.Port, coordinator, detector, store, node)

	if err := app.schedule(); err != nil {
		return nil, err
	}
	return app, nil
}

// schedule registers the periodic jobs. An empty expression disables a job.
func (a *App) schedule() error {
	a.cron = cron.New()

	if expr := a.cfg.Scan.Schedules.TipFollow; expr != "" {
		if _, err := a.cron.AddFunc(expr, func() {
			if status := a.coordinator.TipFollow(context.Background()); status != scan.StatusAccepted {
				a.log.Debug("tip follow tick skipped", "status", status)
			}
		}); err != nil {
			return fmt.Errorf("invalid tip_follow schedule: %w", err)
		}
	}
	if expr := a.cfg.Scan.Schedules.Reconcile; expr != "" {
		if _, err := a.cron.AddFunc(expr, func() {
			if err := a.store.Summaries().ReconcileAll(context.Background()); err != nil {
				a.log.Error("summary reconcile failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("invalid reconcile schedule: %w", err)
		}
	}
	if expr := a.cfg.Scan.Schedules.Compact; expr != "" {
		if _, err := a.cron.AddFunc(expr, func() {
			if err := a.store.Checkpoints().Compact(context.Background()); err != nil {
				a.log.Error("checkpoint compaction failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("invalid compact schedule: %w", err)
		}
	}
	return nil
}

// Start brings the HTTP server and schedules up. Non-blocking.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.server.Start(); err != nil {
			a.log.Error("http server failed", "error", err)
		}
	}()

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	a.cron.Start()
	a.log.Info("stakewatch started", "port", a.cfg.Server.Port)
	return nil
}

// Stop shuts everything down: schedules first, then in-flight scans, then
// the HTTP server.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("stopping stakewatch")

	cronCtx := a.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}

	a.coordinator.Stop()

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("failed to close database", "error", err)
		}
	}
	return a.server.Stop(ctx)
}
