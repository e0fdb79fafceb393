package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "quill/contexts/content-delivery/search-push-service/application"
	"quill/contexts/content-delivery/search-push-service/domain/entities"
	"quill/contexts/content-delivery/search-push-service/ports"
)

const (
	DefaultRecentHours = 24
	// collectScanCap bounds the article scan per collection pass.
	collectScanCap = 2000
)

type UseCase struct {
	Articles ports.ArticleSource
	Client   ports.SearchPushClient
	Clock    ports.Clock
	Logger   *slog.Logger

	// SiteDomain is the single public domain whose URLs get pushed.
	SiteDomain string
	// Protocol defaults to https.
	Protocol string
}

// CollectRecentArticleURLs builds the deduplicated URL list for articles
// published inside the trailing window.
func (uc UseCase) CollectRecentArticleURLs(ctx context.Context, hours int) ([]string, error) {
	logger := application.ResolveLogger(uc.Logger)
	if hours <= 0 {
		hours = DefaultRecentHours
	}
	if hours < 1 {
		hours = 1
	}
	since := uc.now().Add(-time.Duration(hours) * time.Hour)

	articles, err := uc.Articles.ListRecentArticles(ctx, ports.RecentArticleFilter{
		PublishedSince: since,
		Limit:          collectScanCap,
	})
	if err != nil {
		logger.Error("recent article collection failed",
			"event", "search_push_collect_failed",
			"module", "content-delivery/search-push-service",
			"layer", "application",
			"window_hours", hours,
			"error", err.Error(),
		)
		return nil, err
	}

	domain := strings.ToLower(strings.TrimSpace(uc.SiteDomain))
	protocol := strings.TrimSpace(uc.Protocol)
	if protocol == "" {
		protocol = "https"
	}

	seen := make(map[string]struct{}, len(articles))
	urls := make([]string, 0, len(articles))
	for _, article := range articles {
		slug := strings.TrimSpace(article.Slug)
		if slug == "" {
			continue
		}
		if domain != "" && strings.ToLower(strings.TrimSpace(article.SiteDomain)) != domain {
			continue
		}
		target := domain
		if target == "" {
			target = strings.ToLower(strings.TrimSpace(article.SiteDomain))
		}
		if target == "" {
			continue
		}
		url := protocol + "://" + target + "/" + strings.TrimPrefix(slug, "/")
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		urls = append(urls, url)
	}

	logger.Debug("recent article urls collected",
		"event", "search_push_urls_collected",
		"module", "content-delivery/search-push-service",
		"layer", "application",
		"window_hours", hours,
		"scanned", len(articles),
		"collected", len(urls),
	)
	return urls, nil
}

// PushURLs submits the batch to the search engine. An empty batch is a no-op
// success and push-level rejections are reported in the result, not raised.
func (uc UseCase) PushURLs(ctx context.Context, urls []string) (entities.PushResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if len(urls) == 0 {
		return entities.PushResult{OK: true, Status: 200}, nil
	}

	result, err := uc.Client.Push(ctx, urls)
	if err != nil {
		logger.Error("search push request failed",
			"event", "search_push_request_failed",
			"module", "content-delivery/search-push-service",
			"layer", "application",
			"url_count", len(urls),
			"error", err.Error(),
		)
		return entities.PushResult{}, err
	}
	if !result.OK {
		logger.Warn("search push rejected",
			"event", "search_push_rejected",
			"module", "content-delivery/search-push-service",
			"layer", "application",
			"url_count", len(urls),
			"status", result.Status,
		)
		return result, nil
	}
	logger.Info("search push completed",
		"event", "search_push_completed",
		"module", "content-delivery/search-push-service",
		"layer", "application",
		"url_count", len(urls),
		"status", result.Status,
	)
	return result, nil
}

func (uc UseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
