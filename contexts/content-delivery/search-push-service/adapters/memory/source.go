package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quill/contexts/content-delivery/search-push-service/domain/entities"
	"quill/contexts/content-delivery/search-push-service/ports"
)

// Source is an in-memory article source for tests and local boot.
type Source struct {
	mu       sync.RWMutex
	articles []entities.PublishedArticle

	// NowFunc overrides the clock for deterministic tests.
	NowFunc func() time.Time
}

func NewSource(articles []entities.PublishedArticle) *Source {
	return &Source{
		articles: append([]entities.PublishedArticle(nil), articles...),
	}
}

func (s *Source) Add(article entities.PublishedArticle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles = append(s.articles, article)
}

func (s *Source) ListRecentArticles(_ context.Context, filter ports.RecentArticleFilter) ([]entities.PublishedArticle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recent := make([]entities.PublishedArticle, 0, len(s.articles))
	for _, article := range s.articles {
		if article.PublishedAt.Before(filter.PublishedSince) {
			continue
		}
		recent = append(recent, article)
	}
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].PublishedAt.After(recent[j].PublishedAt)
	})
	if filter.Limit > 0 && len(recent) > filter.Limit {
		recent = recent[:filter.Limit]
	}
	return recent, nil
}

func (s *Source) Now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}

var _ ports.ArticleSource = (*Source)(nil)
var _ ports.Clock = (*Source)(nil)
