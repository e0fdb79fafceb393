package ports

import (
	"context"
	"time"

	"quill/contexts/content-delivery/search-push-service/domain/entities"
)

// RecentArticleFilter selects recently published articles for URL collection.
type RecentArticleFilter struct {
	PublishedSince time.Time
	Limit          int
}

// ArticleSource reads published article metadata. The push service never
// writes article state.
type ArticleSource interface {
	ListRecentArticles(ctx context.Context, filter RecentArticleFilter) ([]entities.PublishedArticle, error)
}

// SearchPushClient submits a URL batch to the search engine endpoint.
type SearchPushClient interface {
	Push(ctx context.Context, urls []string) (entities.PushResult, error)
}

type Clock interface {
	Now() time.Time
}
