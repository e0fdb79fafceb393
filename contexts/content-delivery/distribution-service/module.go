package distributionservice

import (
	"log/slog"

	httpadapter "quill/contexts/content-delivery/distribution-service/adapters/http"
	"quill/contexts/content-delivery/distribution-service/adapters/memory"
	"quill/contexts/content-delivery/distribution-service/application/commands"
	"quill/contexts/content-delivery/distribution-service/application/queries"
	"quill/contexts/content-delivery/distribution-service/application/workers"
	"quill/contexts/content-delivery/distribution-service/ports"
)

type Module struct {
	Handler  httpadapter.Handler
	Commands commands.UseCase
	Queries  queries.UseCase
	Store    *memory.Store
}

type Dependencies struct {
	Rules          ports.RuleRepository
	Records        ports.RecordRepository
	Articles       ports.ArticleDirectory
	Sites          ports.SiteDirectory
	Publisher      ports.SitePublisher
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	Runner         ports.TaskRunner
	Scheduler      ports.RuleScheduler
	Outbox         ports.OutboxWriter
	IntervalToCron func(seconds int) string
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	commandUseCase := commands.UseCase{
		Rules:          deps.Rules,
		Records:        deps.Records,
		Articles:       deps.Articles,
		Sites:          deps.Sites,
		Publisher:      deps.Publisher,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		Runner:         deps.Runner,
		Scheduler:      deps.Scheduler,
		Outbox:         deps.Outbox,
		IntervalToCron: deps.IntervalToCron,
		Logger:         deps.Logger,
	}
	queryUseCase := queries.UseCase{
		Rules:   deps.Rules,
		Records: deps.Records,
		Logger:  deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Commands: commandUseCase,
			Queries:  queryUseCase,
			Logger:   deps.Logger,
		},
		Commands: commandUseCase,
		Queries:  queryUseCase,
	}
}

func NewInMemoryModule(seed memory.Seed, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Rules:    store,
		Records:  store,
		Articles: store,
		Sites:    store,
		Clock:    store,
		IDGen:    store,
		Outbox:   store,
		Logger:   logger,
	})
	module.Store = store
	return module
}

// TickJob returns the minute-poll worker bound to this module's commands.
func (m Module) TickJob(logger *slog.Logger) workers.DistributionTickJob {
	return workers.DistributionTickJob{Commands: m.Commands, Logger: logger}
}

func (m Module) RetryJob(maxRetries int, logger *slog.Logger) workers.RetrySweepJob {
	return workers.RetrySweepJob{Commands: m.Commands, MaxRetries: maxRetries, Logger: logger}
}

func (m Module) CleanupJob(retentionDays int, logger *slog.Logger) workers.CleanupJob {
	return workers.CleanupJob{Commands: m.Commands, RetentionDays: retentionDays, Logger: logger}
}
