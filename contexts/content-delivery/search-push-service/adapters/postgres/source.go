package postgresadapter

import (
	"context"
	"log/slog"
	"time"

	"quill/contexts/content-delivery/search-push-service/domain/entities"
	"quill/contexts/content-delivery/search-push-service/ports"

	"gorm.io/gorm"
)

// Source reads published article metadata from the shared articles table.
type Source struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewSource(db *gorm.DB, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{db: db, logger: logger}
}

func (s *Source) ListRecentArticles(ctx context.Context, filter ports.RecentArticleFilter) ([]entities.PublishedArticle, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 2000
	}
	var rows []articleRowModel
	if err := s.db.WithContext(ctx).
		Where("status = ?", "published").
		Where("published_at >= ?", filter.PublishedSince.UTC()).
		Order("published_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		s.logger.Error("search push article scan failed",
			"event", "search_push_article_scan_failed",
			"module", "content-delivery/search-push-service",
			"layer", "adapter",
			"error", err.Error(),
		)
		return nil, err
	}
	articles := make([]entities.PublishedArticle, 0, len(rows))
	for _, row := range rows {
		published := time.Time{}
		if row.PublishedAt != nil {
			published = row.PublishedAt.UTC()
		}
		articles = append(articles, entities.PublishedArticle{
			ID:          row.ID,
			Slug:        row.Slug,
			SiteDomain:  row.SiteDomain,
			PublishedAt: published,
		})
	}
	return articles, nil
}

type articleRowModel struct {
	ID          string     `gorm:"column:id;primaryKey"`
	Slug        string     `gorm:"column:slug"`
	SiteDomain  string     `gorm:"column:site_domain"`
	PublishedAt *time.Time `gorm:"column:published_at"`
}

func (articleRowModel) TableName() string {
	return "articles"
}

var _ ports.ArticleSource = (*Source)(nil)
