package queries

import (
	"context"
	"log/slog"
	"strings"

	application "quill/contexts/content-delivery/distribution-service/application"
	"quill/contexts/content-delivery/distribution-service/domain/entities"
	"quill/contexts/content-delivery/distribution-service/ports"
)

type UseCase struct {
	Rules   ports.RuleRepository
	Records ports.RecordRepository
	Logger  *slog.Logger
}

// DistributionStats aggregates record counts, optionally narrowed to one
// target site and/or one rule.
type DistributionStats struct {
	Total       int64
	Successful  int64
	Failed      int64
	Pending     int64
	SuccessRate float64
}

func (uc UseCase) GetRule(ctx context.Context, ruleID string) (entities.DistributionRule, error) {
	logger := application.ResolveLogger(uc.Logger)
	rule, err := uc.Rules.GetRule(ctx, strings.TrimSpace(ruleID))
	if err != nil {
		logger.Warn("distribution rule query failed",
			"event", "distribution_query_rule_failed",
			"module", "content-delivery/distribution-service",
			"layer", "application",
			"rule_id", strings.TrimSpace(ruleID),
			"error", err.Error(),
		)
		return entities.DistributionRule{}, err
	}
	return rule, nil
}

func (uc UseCase) ListRules(ctx context.Context) ([]entities.DistributionRule, error) {
	return uc.Rules.ListRules(ctx)
}

func (uc UseCase) ListActiveRules(ctx context.Context) ([]entities.DistributionRule, error) {
	return uc.Rules.ListActiveRules(ctx)
}

func (uc UseCase) GetRecord(ctx context.Context, recordID string) (entities.DistributionRecord, error) {
	return uc.Records.GetRecord(ctx, strings.TrimSpace(recordID))
}

func (uc UseCase) RecordsByArticle(ctx context.Context, articleID string) ([]entities.DistributionRecord, error) {
	return uc.Records.ListRecordsByArticle(ctx, strings.TrimSpace(articleID))
}

func (uc UseCase) RecordsBySite(ctx context.Context, targetSite string, limit int) ([]entities.DistributionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return uc.Records.ListRecordsBySite(ctx, strings.TrimSpace(targetSite), limit)
}

func (uc UseCase) Stats(ctx context.Context, targetSite string, ruleID string) (DistributionStats, error) {
	logger := application.ResolveLogger(uc.Logger)
	base := ports.RecordFilter{
		TargetSite: strings.TrimSpace(targetSite),
		RuleID:     strings.TrimSpace(ruleID),
	}

	var stats DistributionStats
	var err error
	if stats.Total, err = uc.Records.CountRecords(ctx, base); err != nil {
		return DistributionStats{}, err
	}
	successFilter := base
	successFilter.Status = entities.RecordStatusSuccess
	if stats.Successful, err = uc.Records.CountRecords(ctx, successFilter); err != nil {
		return DistributionStats{}, err
	}
	failedFilter := base
	failedFilter.Status = entities.RecordStatusFailed
	if stats.Failed, err = uc.Records.CountRecords(ctx, failedFilter); err != nil {
		return DistributionStats{}, err
	}
	pendingFilter := base
	pendingFilter.Status = entities.RecordStatusPending
	if stats.Pending, err = uc.Records.CountRecords(ctx, pendingFilter); err != nil {
		return DistributionStats{}, err
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Successful) / float64(stats.Total) * 100
	}

	logger.Debug("distribution stats computed",
		"event", "distribution_query_stats_computed",
		"module", "content-delivery/distribution-service",
		"layer", "application",
		"target_site", base.TargetSite,
		"rule_id", base.RuleID,
		"total", stats.Total,
	)
	return stats, nil
}
