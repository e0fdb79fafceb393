package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"quill/contexts/content-delivery/distribution-service/domain/entities"
	domainerrors "quill/contexts/content-delivery/distribution-service/domain/errors"
	"quill/contexts/content-delivery/distribution-service/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreateRule(ctx context.Context, rule entities.DistributionRule) error {
	if strings.TrimSpace(rule.ID) == "" || strings.TrimSpace(rule.Name) == "" {
		r.logWarn("distribution_repo_create_rule_invalid_input",
			"rule_id", strings.TrimSpace(rule.ID),
			"rule_name", strings.TrimSpace(rule.Name),
		)
		return domainerrors.ErrInvalidRuleInput
	}

	row, err := ruleModelFromEntity(rule)
	if err != nil {
		return r.logError("distribution_repo_create_rule_encode_failed", err,
			"rule_id", strings.TrimSpace(rule.ID),
		)
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			r.logWarn("distribution_repo_create_rule_unique_conflict",
				"rule_id", row.ID,
				"rule_name", row.Name,
			)
			return domainerrors.ErrRuleNameTaken
		}
		return r.logError("distribution_repo_create_rule_failed", err,
			"rule_id", row.ID,
		)
	}
	return nil
}

func (r *Repository) UpdateRule(ctx context.Context, rule entities.DistributionRule) error {
	updates, err := ruleUpdatesFromEntity(rule)
	if err != nil {
		return r.logError("distribution_repo_update_rule_encode_failed", err,
			"rule_id", strings.TrimSpace(rule.ID),
		)
	}
	result := r.db.WithContext(ctx).
		Model(&distributionRuleModel{}).
		Where("id = ?", strings.TrimSpace(rule.ID)).
		Updates(updates)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return domainerrors.ErrRuleNameTaken
		}
		return r.logError("distribution_repo_update_rule_failed", result.Error,
			"rule_id", strings.TrimSpace(rule.ID),
		)
	}
	if result.RowsAffected == 0 {
		r.logWarn("distribution_repo_update_rule_not_found",
			"rule_id", strings.TrimSpace(rule.ID),
		)
		return domainerrors.ErrRuleNotFound
	}
	return nil
}

func (r *Repository) DeleteRule(ctx context.Context, ruleID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(ruleID)).
		Delete(&distributionRuleModel{})
	if result.Error != nil {
		return r.logError("distribution_repo_delete_rule_failed", result.Error,
			"rule_id", strings.TrimSpace(ruleID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRuleNotFound
	}
	return nil
}

func (r *Repository) GetRule(ctx context.Context, ruleID string) (entities.DistributionRule, error) {
	var row distributionRuleModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(ruleID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.DistributionRule{}, domainerrors.ErrRuleNotFound
		}
		return entities.DistributionRule{}, r.logError("distribution_repo_get_rule_failed", err,
			"rule_id", strings.TrimSpace(ruleID),
		)
	}
	return r.decodeRule(row)
}

func (r *Repository) GetRuleByName(ctx context.Context, name string) (entities.DistributionRule, error) {
	var row distributionRuleModel
	err := r.db.WithContext(ctx).
		Where("name = ?", strings.TrimSpace(name)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.DistributionRule{}, domainerrors.ErrRuleNotFound
		}
		return entities.DistributionRule{}, r.logError("distribution_repo_get_rule_by_name_failed", err,
			"rule_name", strings.TrimSpace(name),
		)
	}
	return r.decodeRule(row)
}

func (r *Repository) ListRules(ctx context.Context) ([]entities.DistributionRule, error) {
	var rows []distributionRuleModel
	if err := r.db.WithContext(ctx).
		Order("priority ASC").
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("distribution_repo_list_rules_failed", err)
	}
	return r.decodeRules(rows)
}

func (r *Repository) ListActiveRules(ctx context.Context) ([]entities.DistributionRule, error) {
	var rows []distributionRuleModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority ASC").
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("distribution_repo_list_active_rules_failed", err)
	}
	return r.decodeRules(rows)
}

// MarkRuleRunning relies on a conditional UPDATE so concurrent schedulers
// cannot both claim the same rule.
func (r *Repository) MarkRuleRunning(ctx context.Context, ruleID string, startedAt time.Time) error {
	started := startedAt.UTC()
	result := r.db.WithContext(ctx).
		Model(&distributionRuleModel{}).
		Where("id = ?", strings.TrimSpace(ruleID)).
		Where("last_run_status <> ?", string(entities.RuleRunStatusRunning)).
		Updates(map[string]any{
			"last_run_status": string(entities.RuleRunStatusRunning),
			"last_run":        started,
			"updated_at":      started,
		})
	if result.Error != nil {
		return r.logError("distribution_repo_mark_rule_running_failed", result.Error,
			"rule_id", strings.TrimSpace(ruleID),
		)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&distributionRuleModel{}).
			Where("id = ?", strings.TrimSpace(ruleID)).
			Count(&count).Error; err != nil {
			return r.logError("distribution_repo_mark_rule_running_lookup_failed", err,
				"rule_id", strings.TrimSpace(ruleID),
			)
		}
		if count == 0 {
			return domainerrors.ErrRuleNotFound
		}
		return domainerrors.ErrRuleAlreadyRunning
	}
	return nil
}

func (r *Repository) CompleteRuleRun(ctx context.Context, rule entities.DistributionRule) error {
	statistics, err := json.Marshal(rule.Statistics)
	if err != nil {
		return r.logError("distribution_repo_complete_rule_run_encode_failed", err,
			"rule_id", strings.TrimSpace(rule.ID),
		)
	}
	result := r.db.WithContext(ctx).
		Model(&distributionRuleModel{}).
		Where("id = ?", strings.TrimSpace(rule.ID)).
		Updates(map[string]any{
			"last_run_status": string(rule.LastRunStatus),
			"last_run":        normalizeOptionalTime(rule.LastRun),
			"error_message":   strings.TrimSpace(rule.ErrorMessage),
			"statistics":      statistics,
			"updated_at":      rule.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("distribution_repo_complete_rule_run_failed", result.Error,
			"rule_id", strings.TrimSpace(rule.ID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRuleNotFound
	}
	return nil
}

func (r *Repository) CreateRecord(ctx context.Context, record entities.DistributionRecord) error {
	if strings.TrimSpace(record.ID) == "" ||
		strings.TrimSpace(record.ArticleID) == "" ||
		strings.TrimSpace(record.TargetSite) == "" {
		r.logWarn("distribution_repo_create_record_invalid_input",
			"record_id", strings.TrimSpace(record.ID),
			"article_id", strings.TrimSpace(record.ArticleID),
			"target_site", strings.TrimSpace(record.TargetSite),
		)
		return domainerrors.ErrInvalidRecordInput
	}
	row := recordModelFromEntity(record)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			r.logWarn("distribution_repo_create_record_unique_conflict",
				"record_id", row.ID,
				"article_id", row.ArticleID,
				"target_site", row.TargetSite,
			)
			return domainerrors.ErrRecordExists
		}
		return r.logError("distribution_repo_create_record_failed", err,
			"record_id", row.ID,
		)
	}
	return nil
}

func (r *Repository) UpdateRecord(ctx context.Context, record entities.DistributionRecord) error {
	row := recordModelFromEntity(record)
	result := r.db.WithContext(ctx).
		Model(&distributionRecordModel{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"status":           row.Status,
			"error_message":    row.ErrorMessage,
			"transformed_data": row.TransformedData,
			"distributed_at":   row.DistributedAt,
			"retry_count":      row.RetryCount,
			"last_retry_at":    row.LastRetryAt,
			"updated_at":       row.UpdatedAt,
		})
	if result.Error != nil {
		return r.logError("distribution_repo_update_record_failed", result.Error,
			"record_id", row.ID,
		)
	}
	if result.RowsAffected == 0 {
		r.logWarn("distribution_repo_update_record_not_found",
			"record_id", row.ID,
		)
		return domainerrors.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) GetRecord(ctx context.Context, recordID string) (entities.DistributionRecord, error) {
	var row distributionRecordModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(recordID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.DistributionRecord{}, domainerrors.ErrRecordNotFound
		}
		return entities.DistributionRecord{}, r.logError("distribution_repo_get_record_failed", err,
			"record_id", strings.TrimSpace(recordID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListRecordsByArticle(ctx context.Context, articleID string) ([]entities.DistributionRecord, error) {
	var rows []distributionRecordModel
	if err := r.db.WithContext(ctx).
		Where("article_id = ?", strings.TrimSpace(articleID)).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("distribution_repo_list_records_by_article_failed", err,
			"article_id", strings.TrimSpace(articleID),
		)
	}
	return recordsToEntities(rows), nil
}

func (r *Repository) ListRecordsBySite(ctx context.Context, targetSite string, limit int) ([]entities.DistributionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []distributionRecordModel
	if err := r.db.WithContext(ctx).
		Where("target_site = ?", strings.TrimSpace(targetSite)).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("distribution_repo_list_records_by_site_failed", err,
			"target_site", strings.TrimSpace(targetSite),
			"limit", limit,
		)
	}
	return recordsToEntities(rows), nil
}

func (r *Repository) ListFailedRecords(ctx context.Context, maxRetries int) ([]entities.DistributionRecord, error) {
	var rows []distributionRecordModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(entities.RecordStatusFailed)).
		Where("retry_count < ?", maxRetries).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("distribution_repo_list_failed_records_failed", err,
			"max_retries", maxRetries,
		)
	}
	return recordsToEntities(rows), nil
}

func (r *Repository) ListDistributedSites(ctx context.Context, articleID string, targetSites []string) ([]string, error) {
	if len(targetSites) == 0 {
		return nil, nil
	}
	var sites []string
	if err := r.db.WithContext(ctx).
		Model(&distributionRecordModel{}).
		Distinct("target_site").
		Where("article_id = ?", strings.TrimSpace(articleID)).
		Where("target_site IN ?", targetSites).
		Where("status IN ?", []string{
			string(entities.RecordStatusSuccess),
			string(entities.RecordStatusPending),
		}).
		Pluck("target_site", &sites).Error; err != nil {
		return nil, r.logError("distribution_repo_list_distributed_sites_failed", err,
			"article_id", strings.TrimSpace(articleID),
		)
	}
	// Preserve the rule's site ordering.
	coveredSet := make(map[string]struct{}, len(sites))
	for _, site := range sites {
		coveredSet[site] = struct{}{}
	}
	covered := make([]string, 0, len(sites))
	for _, site := range targetSites {
		if _, ok := coveredSet[site]; ok {
			covered = append(covered, site)
		}
	}
	return covered, nil
}

func (r *Repository) DeleteRecordsBefore(ctx context.Context, cutoff time.Time, statuses []entities.RecordStatus) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	terminal := make([]string, 0, len(statuses))
	for _, status := range statuses {
		terminal = append(terminal, string(status))
	}
	result := r.db.WithContext(ctx).
		Where("status IN ?", terminal).
		Where("created_at < ?", cutoff.UTC()).
		Delete(&distributionRecordModel{})
	if result.Error != nil {
		return 0, r.logError("distribution_repo_delete_records_before_failed", result.Error,
			"cutoff_utc", cutoff.UTC().Format(time.RFC3339),
		)
	}
	return int(result.RowsAffected), nil
}

func (r *Repository) CountRecords(ctx context.Context, filter ports.RecordFilter) (int64, error) {
	query := r.db.WithContext(ctx).Model(&distributionRecordModel{})
	if filter.TargetSite != "" {
		query = query.Where("target_site = ?", filter.TargetSite)
	}
	if filter.RuleID != "" {
		query = query.Where("rule_id = ?", filter.RuleID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, r.logError("distribution_repo_count_records_failed", err,
			"target_site", filter.TargetSite,
			"rule_id", filter.RuleID,
			"status", string(filter.Status),
		)
	}
	return count, nil
}

func (r *Repository) ListArticles(ctx context.Context, filter ports.ArticleFilter) ([]entities.Article, error) {
	query := r.db.WithContext(ctx).Model(&articleModel{})
	if len(filter.Categories) > 0 {
		query = query.Where("category IN ?", filter.Categories)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.SiteDomain != "" {
		query = query.Where("LOWER(site_domain) = LOWER(?)", strings.TrimSpace(filter.SiteDomain))
	}
	if filter.PublishedAfter != nil {
		query = query.Where("published_at >= ?", filter.PublishedAfter.UTC())
	}
	if filter.PublishedSince != nil {
		query = query.Where("published_at >= ?", filter.PublishedSince.UTC())
	}
	if len(filter.Tags) > 0 {
		query = query.Where("tags && ?", textArrayLiteral(filter.Tags))
	}
	query = query.Order("published_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []articleModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, r.logError("distribution_repo_list_articles_failed", err,
			"status", filter.Status,
			"site_domain", filter.SiteDomain,
		)
	}
	articles := make([]entities.Article, 0, len(rows))
	for _, row := range rows {
		articles = append(articles, row.toEntity())
	}
	return articles, nil
}

func (r *Repository) FindSiteByDomain(ctx context.Context, domain string) (entities.Site, error) {
	var row siteModel
	err := r.db.WithContext(ctx).
		Where("LOWER(domain) = LOWER(?)", strings.TrimSpace(domain)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Site{}, domainerrors.ErrTargetSiteNotFound
		}
		return entities.Site{}, r.logError("distribution_repo_find_site_failed", err,
			"domain", strings.TrimSpace(domain),
		)
	}
	return entities.Site{
		ID:     row.ID,
		Domain: row.Domain,
		Name:   row.Name,
	}, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("distribution_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := distributionOutboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return r.logError("distribution_repo_append_outbox_insert_failed", err,
			"outbox_id", row.OutboxID,
			"event_type", row.EventType,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []distributionOutboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("distribution_repo_list_pending_outbox_failed", err,
			"limit", limit,
		)
	}
	messages := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return messages, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&distributionOutboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("distribution_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		r.logWarn("distribution_repo_mark_outbox_published_not_found",
			"outbox_id", strings.TrimSpace(outboxID),
		)
		return domainerrors.ErrInvalidRecordInput
	}
	return nil
}

func (r *Repository) decodeRule(row distributionRuleModel) (entities.DistributionRule, error) {
	rule, err := row.toEntity()
	if err != nil {
		return entities.DistributionRule{}, r.logError("distribution_repo_decode_rule_failed", err,
			"rule_id", row.ID,
		)
	}
	return rule, nil
}

func (r *Repository) decodeRules(rows []distributionRuleModel) ([]entities.DistributionRule, error) {
	rules := make([]entities.DistributionRule, 0, len(rows))
	for _, row := range rows {
		rule, err := r.decodeRule(row)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+7)
	fields = append(fields,
		"event", event,
		"module", "content-delivery/distribution-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("distribution repository operation failed", fields...)
	return err
}

func (r *Repository) logWarn(event string, attrs ...any) {
	fields := make([]any, 0, len(attrs)+5)
	fields = append(fields,
		"event", event,
		"module", "content-delivery/distribution-service",
		"layer", "adapter",
	)
	fields = append(fields, attrs...)
	r.logger.Warn("distribution repository warning", fields...)
}

type distributionRuleModel struct {
	ID               string          `gorm:"column:id;primaryKey"`
	Name             string          `gorm:"column:name;uniqueIndex"`
	Description      string          `gorm:"column:description"`
	SourceCategories []string        `gorm:"column:source_categories;type:text[]"`
	TargetSites      []string        `gorm:"column:target_sites;type:text[]"`
	Conditions       json.RawMessage `gorm:"column:conditions;type:jsonb"`
	Transformations  json.RawMessage `gorm:"column:transformations;type:jsonb"`
	SyncInterval     int             `gorm:"column:sync_interval_seconds"`
	IsActive         bool            `gorm:"column:is_active"`
	Priority         int             `gorm:"column:priority"`
	LastRun          *time.Time      `gorm:"column:last_run"`
	LastRunStatus    string          `gorm:"column:last_run_status"`
	ErrorMessage     string          `gorm:"column:error_message"`
	Statistics       json.RawMessage `gorm:"column:statistics;type:jsonb"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at"`
}

func (distributionRuleModel) TableName() string {
	return "distribution_rules"
}

func ruleModelFromEntity(rule entities.DistributionRule) (distributionRuleModel, error) {
	conditions, err := marshalOptional(rule.Conditions)
	if err != nil {
		return distributionRuleModel{}, err
	}
	transformations, err := marshalOptional(rule.Transformations)
	if err != nil {
		return distributionRuleModel{}, err
	}
	statistics, err := json.Marshal(rule.Statistics)
	if err != nil {
		return distributionRuleModel{}, err
	}
	return distributionRuleModel{
		ID:               strings.TrimSpace(rule.ID),
		Name:             strings.TrimSpace(rule.Name),
		Description:      strings.TrimSpace(rule.Description),
		SourceCategories: append([]string(nil), rule.SourceCategories...),
		TargetSites:      append([]string(nil), rule.TargetSites...),
		Conditions:       conditions,
		Transformations:  transformations,
		SyncInterval:     rule.SyncInterval,
		IsActive:         rule.IsActive,
		Priority:         rule.Priority,
		LastRun:          normalizeOptionalTime(rule.LastRun),
		LastRunStatus:    string(rule.LastRunStatus),
		ErrorMessage:     strings.TrimSpace(rule.ErrorMessage),
		Statistics:       statistics,
		CreatedAt:        rule.CreatedAt.UTC(),
		UpdatedAt:        rule.UpdatedAt.UTC(),
	}, nil
}

func ruleUpdatesFromEntity(rule entities.DistributionRule) (map[string]any, error) {
	row, err := ruleModelFromEntity(rule)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"name":                  row.Name,
		"description":           row.Description,
		"source_categories":     row.SourceCategories,
		"target_sites":          row.TargetSites,
		"conditions":            row.Conditions,
		"transformations":       row.Transformations,
		"sync_interval_seconds": row.SyncInterval,
		"is_active":             row.IsActive,
		"priority":              row.Priority,
		"last_run":              row.LastRun,
		"last_run_status":       row.LastRunStatus,
		"error_message":         row.ErrorMessage,
		"statistics":            row.Statistics,
		"updated_at":            row.UpdatedAt,
	}, nil
}

func (m distributionRuleModel) toEntity() (entities.DistributionRule, error) {
	rule := entities.DistributionRule{
		ID:               m.ID,
		Name:             m.Name,
		Description:      m.Description,
		SourceCategories: append([]string(nil), m.SourceCategories...),
		TargetSites:      append([]string(nil), m.TargetSites...),
		SyncInterval:     m.SyncInterval,
		IsActive:         m.IsActive,
		Priority:         m.Priority,
		LastRun:          normalizeOptionalTime(m.LastRun),
		LastRunStatus:    entities.RuleRunStatus(m.LastRunStatus),
		ErrorMessage:     m.ErrorMessage,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
	if len(m.Conditions) > 0 && string(m.Conditions) != "null" {
		var conditions entities.RuleConditions
		if err := json.Unmarshal(m.Conditions, &conditions); err != nil {
			return entities.DistributionRule{}, err
		}
		rule.Conditions = &conditions
	}
	if len(m.Transformations) > 0 && string(m.Transformations) != "null" {
		var transformations entities.RuleTransformations
		if err := json.Unmarshal(m.Transformations, &transformations); err != nil {
			return entities.DistributionRule{}, err
		}
		rule.Transformations = &transformations
	}
	if len(m.Statistics) > 0 && string(m.Statistics) != "null" {
		if err := json.Unmarshal(m.Statistics, &rule.Statistics); err != nil {
			return entities.DistributionRule{}, err
		}
	}
	return rule, nil
}

type distributionRecordModel struct {
	ID              string     `gorm:"column:id;primaryKey"`
	ArticleID       string     `gorm:"column:article_id"`
	RuleID          string     `gorm:"column:rule_id"`
	TargetSite      string     `gorm:"column:target_site"`
	Status          string     `gorm:"column:status"`
	ErrorMessage    string     `gorm:"column:error_message"`
	TransformedData []byte     `gorm:"column:transformed_data;type:jsonb"`
	DistributedAt   *time.Time `gorm:"column:distributed_at"`
	RetryCount      int        `gorm:"column:retry_count"`
	LastRetryAt     *time.Time `gorm:"column:last_retry_at"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (distributionRecordModel) TableName() string {
	return "distribution_records"
}

func recordModelFromEntity(record entities.DistributionRecord) distributionRecordModel {
	return distributionRecordModel{
		ID:              strings.TrimSpace(record.ID),
		ArticleID:       strings.TrimSpace(record.ArticleID),
		RuleID:          strings.TrimSpace(record.RuleID),
		TargetSite:      strings.TrimSpace(record.TargetSite),
		Status:          string(record.Status),
		ErrorMessage:    strings.TrimSpace(record.ErrorMessage),
		TransformedData: append([]byte(nil), record.TransformedData...),
		DistributedAt:   normalizeOptionalTime(record.DistributedAt),
		RetryCount:      record.RetryCount,
		LastRetryAt:     normalizeOptionalTime(record.LastRetryAt),
		CreatedAt:       record.CreatedAt.UTC(),
		UpdatedAt:       record.UpdatedAt.UTC(),
	}
}

func (m distributionRecordModel) toEntity() entities.DistributionRecord {
	return entities.DistributionRecord{
		ID:              m.ID,
		ArticleID:       m.ArticleID,
		RuleID:          m.RuleID,
		TargetSite:      m.TargetSite,
		Status:          entities.RecordStatus(m.Status),
		ErrorMessage:    m.ErrorMessage,
		TransformedData: append([]byte(nil), m.TransformedData...),
		DistributedAt:   normalizeOptionalTime(m.DistributedAt),
		RetryCount:      m.RetryCount,
		LastRetryAt:     normalizeOptionalTime(m.LastRetryAt),
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
}

func recordsToEntities(rows []distributionRecordModel) []entities.DistributionRecord {
	records := make([]entities.DistributionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toEntity())
	}
	return records
}

type articleModel struct {
	ID          string     `gorm:"column:id;primaryKey"`
	Title       string     `gorm:"column:title"`
	Content     string     `gorm:"column:content"`
	Summary     string     `gorm:"column:summary"`
	Slug        string     `gorm:"column:slug"`
	Category    string     `gorm:"column:category"`
	Tags        []string   `gorm:"column:tags;type:text[]"`
	SiteDomain  string     `gorm:"column:site_domain"`
	Status      string     `gorm:"column:status"`
	PublishedAt *time.Time `gorm:"column:published_at"`
}

func (articleModel) TableName() string {
	return "articles"
}

func (m articleModel) toEntity() entities.Article {
	return entities.Article{
		ID:          m.ID,
		Title:       m.Title,
		Content:     m.Content,
		Summary:     m.Summary,
		Slug:        m.Slug,
		Category:    m.Category,
		Tags:        append([]string(nil), m.Tags...),
		SiteDomain:  m.SiteDomain,
		Status:      m.Status,
		PublishedAt: normalizeOptionalTime(m.PublishedAt),
	}
}

type siteModel struct {
	ID     string `gorm:"column:id;primaryKey"`
	Domain string `gorm:"column:domain"`
	Name   string `gorm:"column:name"`
}

func (siteModel) TableName() string {
	return "sites"
}

type distributionOutboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (distributionOutboxModel) TableName() string {
	return "distribution_outbox"
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	t := value.UTC()
	return &t
}

func marshalOptional(value any) (json.RawMessage, error) {
	switch v := value.(type) {
	case *entities.RuleConditions:
		if v == nil {
			return nil, nil
		}
	case *entities.RuleTransformations:
		if v == nil {
			return nil, nil
		}
	}
	return json.Marshal(value)
}

// textArrayLiteral renders a postgres array literal for the overlap operator.
func textArrayLiteral(values []string) string {
	escaped := make([]string, 0, len(values))
	for _, value := range values {
		escaped = append(escaped, `"`+strings.ReplaceAll(value, `"`, `\"`)+`"`)
	}
	return "{" + strings.Join(escaped, ",") + "}"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.RuleRepository = (*Repository)(nil)
var _ ports.RecordRepository = (*Repository)(nil)
var _ ports.ArticleDirectory = (*Repository)(nil)
var _ ports.SiteDirectory = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
