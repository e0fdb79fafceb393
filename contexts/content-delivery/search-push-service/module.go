package searchpushservice

import (
	"log/slog"

	"quill/contexts/content-delivery/search-push-service/adapters/memory"
	"quill/contexts/content-delivery/search-push-service/application/commands"
	"quill/contexts/content-delivery/search-push-service/application/workers"
	"quill/contexts/content-delivery/search-push-service/domain/entities"
	"quill/contexts/content-delivery/search-push-service/ports"
)

type Module struct {
	Commands commands.UseCase
	Source   *memory.Source
}

type Dependencies struct {
	Articles   ports.ArticleSource
	Client     ports.SearchPushClient
	Clock      ports.Clock
	SiteDomain string
	Protocol   string
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Commands: commands.UseCase{
			Articles:   deps.Articles,
			Client:     deps.Client,
			Clock:      deps.Clock,
			Logger:     deps.Logger,
			SiteDomain: deps.SiteDomain,
			Protocol:   deps.Protocol,
		},
	}
}

func NewInMemoryModule(
	seed []entities.PublishedArticle,
	client ports.SearchPushClient,
	siteDomain string,
	logger *slog.Logger,
) Module {
	source := memory.NewSource(seed)
	module := NewModule(Dependencies{
		Articles:   source,
		Client:     client,
		Clock:      source,
		SiteDomain: siteDomain,
		Logger:     logger,
	})
	module.Source = source
	return module
}

func (m Module) PushJob(recentHours int, logger *slog.Logger) workers.PushJob {
	return workers.PushJob{Commands: m.Commands, RecentHours: recentHours, Logger: logger}
}
