package bootstrap

import (
	"context"
	"log/slog"
	"strings"
	"time"

	distributionservice "quill/contexts/content-delivery/distribution-service"
	distributionmemory "quill/contexts/content-delivery/distribution-service/adapters/memory"
	distributionpostgres "quill/contexts/content-delivery/distribution-service/adapters/postgres"
	distributionworkers "quill/contexts/content-delivery/distribution-service/application/workers"
	searchpushservice "quill/contexts/content-delivery/search-push-service"
	"quill/contexts/content-delivery/search-push-service/adapters/baidu"
	searchpushpostgres "quill/contexts/content-delivery/search-push-service/adapters/postgres"
	"quill/internal/platform/config"
	"quill/internal/platform/db"
	"quill/internal/platform/httpserver"
	"quill/internal/platform/messaging"
	"quill/internal/platform/scheduler"
	"quill/internal/platform/tasks"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	runner   *tasks.Runner
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres  *db.Postgres
	scheduler *scheduler.Scheduler
	runner    *tasks.Runner
	commands  distributionCommands
	logger    *slog.Logger
}

type distributionCommands interface {
	CreateDefaultRules(ctx context.Context) error
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	runner := tasks.NewRunner(logger)

	var pg *db.Postgres
	var module distributionservice.Module
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		// Local runs without a database use the seedable in-memory store.
		module = distributionservice.NewInMemoryModule(distributionmemory.Seed{}, logger)
		module.Commands.Runner = runner
		module.Handler.Commands.Runner = runner
	} else {
		pg, err = db.Connect(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		repo := distributionpostgres.NewRepository(pg.DB, logger)
		module = distributionservice.NewModule(distributionservice.Dependencies{
			Rules:    repo,
			Records:  repo,
			Articles: repo,
			Sites:    repo,
			Clock:    distributionpostgres.SystemClock{},
			IDGen:    distributionpostgres.UUIDGenerator{},
			Runner:   runner,
			Outbox:   repo,
			Logger:   logger,
		})
	}

	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		runner:   runner,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	runner := tasks.NewRunner(logger)

	sched, err := scheduler.New(cfg.SchedulerTimezone, logger)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	var pg *db.Postgres
	var module distributionservice.Module
	var pushModule searchpushservice.Module
	pushClient := baidu.NewClient(cfg.BaiduSite, cfg.BaiduToken, logger)

	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		module = distributionservice.NewInMemoryModule(distributionmemory.Seed{}, logger)
		pushModule = searchpushservice.NewInMemoryModule(nil, pushClient, cfg.BaiduSite, logger)
	} else {
		pg, err = db.Connect(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		repo := distributionpostgres.NewRepository(pg.DB, logger)
		binding := scheduler.RuleBinding{Scheduler: sched}
		module = distributionservice.NewModule(distributionservice.Dependencies{
			Rules:          repo,
			Records:        repo,
			Articles:       repo,
			Sites:          repo,
			Clock:          distributionpostgres.SystemClock{},
			IDGen:          distributionpostgres.UUIDGenerator{},
			Runner:         runner,
			Scheduler:      &binding,
			Outbox:         repo,
			IntervalToCron: scheduler.IntervalToCron,
			Logger:         logger,
		})
		binding.Run = module.Commands.TriggerScheduledRule
		pushModule = searchpushservice.NewModule(searchpushservice.Dependencies{
			Articles:   searchpushpostgres.NewSource(pg.DB, logger),
			Client:     pushClient,
			SiteDomain: cfg.BaiduSite,
			Protocol:   cfg.SiteProtocol,
			Logger:     logger,
		})
	}

	relayOutbox := distributionworkers.OutboxRelay{
		Publisher: kafka,
		Topic:     "distribution.runs",
		BatchSize: 100,
		Logger:    logger,
	}
	if pg != nil {
		relayOutbox.Outbox = distributionpostgres.NewRepository(pg.DB, logger)
		relayOutbox.Clock = distributionpostgres.SystemClock{}
	} else {
		relayOutbox.Outbox = module.Store
		relayOutbox.Clock = module.Store
	}

	deps := scheduler.InitializeDeps{
		DistributionTick: module.TickJob(logger),
		RetrySweep:       module.RetryJob(cfg.DistributionMaxRetries, logger),
		Cleanup:          module.CleanupJob(cfg.DistributionRetentionDays, logger),
		Extra: map[string]scheduler.ExtraJob{
			"outbox-relay": {Expression: "* * * * *", Job: relayOutbox},
		},
	}
	if cfg.SearchPushEnabled() {
		deps.SearchPush = pushModule.PushJob(cfg.BaiduPushRecentHours, logger)
		deps.SearchPushCron = cfg.BaiduPushCron
	}
	if err := sched.Initialize(deps); err != nil {
		return nil, err
	}

	return &WorkerApp{
		postgres:  pg,
		scheduler: sched,
		runner:    runner,
		commands:  module.Commands,
		logger:    logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.runner != nil {
		a.runner.Shutdown()
	}
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	seedCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := w.commands.CreateDefaultRules(seedCtx); err != nil {
		w.logger.Warn("default rule seeding failed",
			"event", "bootstrap_default_rules_failed",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"error", err.Error(),
		)
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"jobs", strings.Join(w.scheduler.ActiveJobs(), ","),
	)

	<-ctx.Done()
	w.scheduler.Shutdown()
	w.runner.Shutdown()
	return nil
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
