package workers

import (
	"context"
	"log/slog"

	application "quill/contexts/content-delivery/search-push-service/application"
	"quill/contexts/content-delivery/search-push-service/application/commands"
)

// PushJob collects the trailing window of article URLs and submits them.
type PushJob struct {
	Commands    commands.UseCase
	RecentHours int
	Logger      *slog.Logger
}

func (j PushJob) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	hours := j.RecentHours
	if hours <= 0 {
		hours = commands.DefaultRecentHours
	}

	urls, err := j.Commands.CollectRecentArticleURLs(ctx, hours)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		logger.Debug("search push cycle skipped, nothing recent",
			"event", "search_push_cycle_skipped",
			"module", "content-delivery/search-push-service",
			"layer", "worker",
			"window_hours", hours,
		)
		return nil
	}

	result, err := j.Commands.PushURLs(ctx, urls)
	if err != nil {
		return err
	}
	logger.Info("search push cycle finished",
		"event", "search_push_cycle_finished",
		"module", "content-delivery/search-push-service",
		"layer", "worker",
		"url_count", len(urls),
		"ok", result.OK,
		"status", result.Status,
	)
	return nil
}
