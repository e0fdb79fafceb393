package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "quill/contexts/content-delivery/distribution-service/application"
	"quill/contexts/content-delivery/distribution-service/application/commands"
	"quill/contexts/content-delivery/distribution-service/application/queries"
	"quill/contexts/content-delivery/distribution-service/domain/entities"
	httptransport "quill/contexts/content-delivery/distribution-service/transport/http"
)

type Handler struct {
	Commands commands.UseCase
	Queries  queries.UseCase
	Logger   *slog.Logger
}

func (h Handler) CreateRuleHandler(
	ctx context.Context,
	req httptransport.CreateRuleRequest,
) (httptransport.DistributionRuleDTO, error) {
	logger := application.ResolveLogger(h.Logger)
	rule, err := h.Commands.CreateRule(ctx, commands.CreateRuleCommand{
		Name:             req.Name,
		Description:      req.Description,
		SourceCategories: append([]string(nil), req.SourceCategories...),
		TargetSites:      append([]string(nil), req.TargetSites...),
		Conditions:       conditionsFromDTO(req.Conditions),
		Transformations:  transformationsFromDTO(req.Transformations),
		SyncInterval:     req.SyncInterval,
		IsActive:         boolOrDefault(req.IsActive, true),
		Priority:         req.Priority,
	})
	if err != nil {
		logger.Warn("distribution http create rule failed",
			"event", "distribution_http_create_rule_failed",
			"module", "content-delivery/distribution-service",
			"layer", "adapter",
			"rule_name", strings.TrimSpace(req.Name),
			"error", err.Error(),
		)
		return httptransport.DistributionRuleDTO{}, err
	}
	logger.Info("distribution http create rule completed",
		"event", "distribution_http_create_rule_completed",
		"module", "content-delivery/distribution-service",
		"layer", "adapter",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
	)
	return mapRule(rule), nil
}

func (h Handler) UpdateRuleHandler(
	ctx context.Context,
	ruleID string,
	req httptransport.UpdateRuleRequest,
) (httptransport.DistributionRuleDTO, error) {
	logger := application.ResolveLogger(h.Logger)
	rule, err := h.Commands.UpdateRule(ctx, commands.UpdateRuleCommand{
		RuleID:           ruleID,
		Name:             req.Name,
		Description:      req.Description,
		SourceCategories: append([]string(nil), req.SourceCategories...),
		TargetSites:      append([]string(nil), req.TargetSites...),
		Conditions:       conditionsFromDTO(req.Conditions),
		Transformations:  transformationsFromDTO(req.Transformations),
		SyncInterval:     req.SyncInterval,
		IsActive:         boolOrDefault(req.IsActive, true),
		Priority:         req.Priority,
	})
	if err != nil {
		logger.Warn("distribution http update rule failed",
			"event", "distribution_http_update_rule_failed",
			"module", "content-delivery/distribution-service",
			"layer", "adapter",
			"rule_id", strings.TrimSpace(ruleID),
			"error", err.Error(),
		)
		return httptransport.DistributionRuleDTO{}, err
	}
	return mapRule(rule), nil
}

func (h Handler) DeleteRuleHandler(ctx context.Context, ruleID string) error {
	logger := application.ResolveLogger(h.Logger)
	if err := h.Commands.DeleteRule(ctx, ruleID); err != nil {
		logger.Warn("distribution http delete rule failed",
			"event", "distribution_http_delete_rule_failed",
			"module", "content-delivery/distribution-service",
			"layer", "adapter",
			"rule_id", strings.TrimSpace(ruleID),
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func (h Handler) GetRuleHandler(ctx context.Context, ruleID string) (httptransport.DistributionRuleDTO, error) {
	rule, err := h.Queries.GetRule(ctx, ruleID)
	if err != nil {
		return httptransport.DistributionRuleDTO{}, err
	}
	return mapRule(rule), nil
}

func (h Handler) ListRulesHandler(ctx context.Context) ([]httptransport.DistributionRuleDTO, error) {
	rules, err := h.Queries.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	return mapRules(rules), nil
}

func (h Handler) ListActiveRulesHandler(ctx context.Context) ([]httptransport.DistributionRuleDTO, error) {
	rules, err := h.Queries.ListActiveRules(ctx)
	if err != nil {
		return nil, err
	}
	return mapRules(rules), nil
}

func (h Handler) RuleStatusHandler(ctx context.Context, ruleID string) (httptransport.RuleStatusResponse, error) {
	rule, err := h.Queries.GetRule(ctx, ruleID)
	if err != nil {
		return httptransport.RuleStatusResponse{}, err
	}
	response := httptransport.RuleStatusResponse{
		ID:            rule.ID,
		Name:          rule.Name,
		IsActive:      rule.IsActive,
		LastRunStatus: string(rule.LastRunStatus),
		ErrorMessage:  rule.ErrorMessage,
		Statistics:    mapStatistics(rule.Statistics),
	}
	if rule.LastRun != nil {
		response.LastRun = rule.LastRun.Format(time.RFC3339)
	}
	return response, nil
}

// RunRuleHandler triggers a distribution pass without waiting for it.
func (h Handler) RunRuleHandler(ctx context.Context, ruleID string) (httptransport.RunRuleResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	if _, err := h.Commands.RunRule(ctx, ruleID); err != nil {
		logger.Warn("distribution http run rule failed",
			"event", "distribution_http_run_rule_failed",
			"module", "content-delivery/distribution-service",
			"layer", "adapter",
			"rule_id", strings.TrimSpace(ruleID),
			"error", err.Error(),
		)
		return httptransport.RunRuleResponse{}, err
	}
	logger.Info("distribution http run rule accepted",
		"event", "distribution_http_run_rule_accepted",
		"module", "content-delivery/distribution-service",
		"layer", "adapter",
		"rule_id", strings.TrimSpace(ruleID),
	)
	return httptransport.RunRuleResponse{
		RuleID:  strings.TrimSpace(ruleID),
		Status:  "running",
		Message: "distribution started",
	}, nil
}

func (h Handler) GetRecordHandler(ctx context.Context, recordID string) (httptransport.DistributionRecordDTO, error) {
	record, err := h.Queries.GetRecord(ctx, recordID)
	if err != nil {
		return httptransport.DistributionRecordDTO{}, err
	}
	return mapRecord(record), nil
}

func (h Handler) RecordsByArticleHandler(ctx context.Context, articleID string) ([]httptransport.DistributionRecordDTO, error) {
	records, err := h.Queries.RecordsByArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	return mapRecords(records), nil
}

func (h Handler) RecordsBySiteHandler(ctx context.Context, targetSite string, limit int) ([]httptransport.DistributionRecordDTO, error) {
	records, err := h.Queries.RecordsBySite(ctx, targetSite, limit)
	if err != nil {
		return nil, err
	}
	return mapRecords(records), nil
}

func (h Handler) RetryRecordHandler(ctx context.Context, recordID string) (httptransport.RetryRecordResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	record, err := h.Commands.RetryRecord(ctx, recordID)
	if err != nil {
		logger.Warn("distribution http retry record failed",
			"event", "distribution_http_retry_record_failed",
			"module", "content-delivery/distribution-service",
			"layer", "adapter",
			"record_id", strings.TrimSpace(recordID),
			"error", err.Error(),
		)
		return httptransport.RetryRecordResponse{}, err
	}
	logger.Info("distribution http retry record accepted",
		"event", "distribution_http_retry_record_accepted",
		"module", "content-delivery/distribution-service",
		"layer", "adapter",
		"record_id", record.ID,
		"retry_count", record.RetryCount,
	)
	return httptransport.RetryRecordResponse{
		RecordID: record.ID,
		Status:   string(record.Status),
		Message:  "retry started",
	}, nil
}

func (h Handler) StatsHandler(ctx context.Context, targetSite string, ruleID string) (httptransport.StatsResponse, error) {
	stats, err := h.Queries.Stats(ctx, targetSite, ruleID)
	if err != nil {
		return httptransport.StatsResponse{}, err
	}
	return httptransport.StatsResponse{
		Total:       stats.Total,
		Successful:  stats.Successful,
		Failed:      stats.Failed,
		Pending:     stats.Pending,
		SuccessRate: stats.SuccessRate,
	}, nil
}

func mapRule(rule entities.DistributionRule) httptransport.DistributionRuleDTO {
	dto := httptransport.DistributionRuleDTO{
		ID:               rule.ID,
		Name:             rule.Name,
		Description:      rule.Description,
		SourceCategories: append([]string(nil), rule.SourceCategories...),
		TargetSites:      append([]string(nil), rule.TargetSites...),
		Conditions:       conditionsToDTO(rule.Conditions),
		Transformations:  transformationsToDTO(rule.Transformations),
		SyncInterval:     rule.SyncInterval,
		IsActive:         rule.IsActive,
		Priority:         rule.Priority,
		LastRunStatus:    string(rule.LastRunStatus),
		ErrorMessage:     rule.ErrorMessage,
		Statistics:       mapStatistics(rule.Statistics),
		CreatedAt:        rule.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        rule.UpdatedAt.Format(time.RFC3339),
	}
	if rule.LastRun != nil {
		dto.LastRun = rule.LastRun.Format(time.RFC3339)
	}
	return dto
}

func mapRules(rules []entities.DistributionRule) []httptransport.DistributionRuleDTO {
	dtos := make([]httptransport.DistributionRuleDTO, 0, len(rules))
	for _, rule := range rules {
		dtos = append(dtos, mapRule(rule))
	}
	return dtos
}

func mapStatistics(stats entities.RuleStatistics) httptransport.RuleStatisticsDTO {
	dto := httptransport.RuleStatisticsDTO{
		TotalRuns:                stats.TotalRuns,
		SuccessfulRuns:           stats.SuccessfulRuns,
		FailedRuns:               stats.FailedRuns,
		TotalArticlesDistributed: stats.TotalArticlesDistributed,
	}
	if stats.LastSuccessfulRun != nil {
		dto.LastSuccessfulRun = stats.LastSuccessfulRun.Format(time.RFC3339)
	}
	return dto
}

func mapRecord(record entities.DistributionRecord) httptransport.DistributionRecordDTO {
	dto := httptransport.DistributionRecordDTO{
		ID:           record.ID,
		ArticleID:    record.ArticleID,
		RuleID:       record.RuleID,
		TargetSite:   record.TargetSite,
		Status:       string(record.Status),
		ErrorMessage: record.ErrorMessage,
		RetryCount:   record.RetryCount,
		CreatedAt:    record.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    record.UpdatedAt.Format(time.RFC3339),
	}
	if record.DistributedAt != nil {
		dto.DistributedAt = record.DistributedAt.Format(time.RFC3339)
	}
	if record.LastRetryAt != nil {
		dto.LastRetryAt = record.LastRetryAt.Format(time.RFC3339)
	}
	return dto
}

func mapRecords(records []entities.DistributionRecord) []httptransport.DistributionRecordDTO {
	dtos := make([]httptransport.DistributionRecordDTO, 0, len(records))
	for _, record := range records {
		dtos = append(dtos, mapRecord(record))
	}
	return dtos
}

func conditionsFromDTO(dto *httptransport.RuleConditionsDTO) *entities.RuleConditions {
	if dto == nil {
		return nil
	}
	conditions := entities.RuleConditions{
		Tags:   append([]string(nil), dto.Tags...),
		Status: strings.TrimSpace(dto.Status),
	}
	if raw := strings.TrimSpace(dto.PublishedAfter); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			published := parsed.UTC()
			conditions.PublishedAfter = &published
		}
	}
	return &conditions
}

func conditionsToDTO(conditions *entities.RuleConditions) *httptransport.RuleConditionsDTO {
	if conditions == nil {
		return nil
	}
	dto := httptransport.RuleConditionsDTO{
		Tags:   append([]string(nil), conditions.Tags...),
		Status: conditions.Status,
	}
	if conditions.PublishedAfter != nil {
		dto.PublishedAfter = conditions.PublishedAfter.Format(time.RFC3339)
	}
	return &dto
}

func transformationsFromDTO(dto *httptransport.RuleTransformationsDTO) *entities.RuleTransformations {
	if dto == nil {
		return nil
	}
	return &entities.RuleTransformations{
		TitlePrefix:    dto.TitlePrefix,
		TitleSuffix:    dto.TitleSuffix,
		ContentPrefix:  dto.ContentPrefix,
		ContentSuffix:  dto.ContentSuffix,
		AddTags:        append([]string(nil), dto.AddTags...),
		SEOTitle:       dto.SEOTitle,
		SEODescription: dto.SEODescription,
	}
}

func transformationsToDTO(transformations *entities.RuleTransformations) *httptransport.RuleTransformationsDTO {
	if transformations == nil {
		return nil
	}
	return &httptransport.RuleTransformationsDTO{
		TitlePrefix:    transformations.TitlePrefix,
		TitleSuffix:    transformations.TitleSuffix,
		ContentPrefix:  transformations.ContentPrefix,
		ContentSuffix:  transformations.ContentSuffix,
		AddTags:        append([]string(nil), transformations.AddTags...),
		SEOTitle:       transformations.SEOTitle,
		SEODescription: transformations.SEODescription,
	}
}

func boolOrDefault(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
