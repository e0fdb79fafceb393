package commands

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "quill/contexts/content-delivery/distribution-service/application"
	"quill/contexts/content-delivery/distribution-service/domain/entities"
	domainerrors "quill/contexts/content-delivery/distribution-service/domain/errors"
	"quill/contexts/content-delivery/distribution-service/ports"
)

const (
	DefaultMaxRetries       = 3
	DefaultCleanupRetention = 30 // days
)

type CreateRuleCommand struct {
	Name             string
	Description      string
	SourceCategories []string
	TargetSites      []string
	Conditions       *entities.RuleConditions
	Transformations  *entities.RuleTransformations
	SyncInterval     int
	IsActive         bool
	Priority         int
}

type UpdateRuleCommand struct {
	RuleID           string
	Name             string
	Description      string
	SourceCategories []string
	TargetSites      []string
	Conditions       *entities.RuleConditions
	Transformations  *entities.RuleTransformations
	SyncInterval     int
	IsActive         bool
	Priority         int
}

type UseCase struct {
	Rules     ports.RuleRepository
	Records   ports.RecordRepository
	Articles  ports.ArticleDirectory
	Sites     ports.SiteDirectory
	Publisher ports.SitePublisher
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Runner    ports.TaskRunner
	Scheduler ports.RuleScheduler
	Outbox    ports.OutboxWriter
	Logger    *slog.Logger

	// IntervalToCron maps a rule sync interval to a schedule expression for
	// per-rule jobs. Wired from the platform scheduler; nil disables
	// per-rule scheduling.
	IntervalToCron func(seconds int) string
}

// ExecuteDistribution runs one distribution pass for a rule: select source
// articles, transform, distribute to each uncovered target site, record
// outcomes and fold the result into the rule statistics.
func (uc UseCase) ExecuteDistribution(ctx context.Context, ruleID string) (entities.RunResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	rule, err := uc.Rules.GetRule(ctx, strings.TrimSpace(ruleID))
	if err != nil || !rule.IsActive {
		logger.Warn("distribution rule unavailable for execution",
			"event", "distribution_rule_unavailable",
			"module", "content-delivery/distribution-service",
			"layer", "application",
			"rule_id", strings.TrimSpace(ruleID),
		)
		return entities.RunResult{}, domainerrors.ErrRuleNotFoundOrInactive
	}

	articles, err := uc.selectSourceArticles(ctx, rule)
	if err != nil {
		// Selection failure aborts the whole run and marks the rule errored.
		uc.completeRun(ctx, rule, entities.RunResult{}, err)
		logger.Error("distribution article selection failed",
			"event", "distribution_article_selection_failed",
			"module", "content-delivery/distribution-service",
			"layer", "application",
			"rule_id", rule.ID,
			"rule_name", rule.Name,
			"error", err.Error(),
		)
		return entities.RunResult{}, err
	}

	logger.Info("distribution pass starting",
		"event", "distribution_pass_starting",
		"module", "content-delivery/distribution-service",
		"layer", "application",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
		"article_count", len(articles),
	)

	result := uc.distributeArticles(ctx, articles, rule)
	uc.completeRun(ctx, rule, result, nil)

	logger.Info("distribution pass completed",
		"event", "distribution_pass_completed",
		"module", "content-delivery/distribution-service",
		"layer", "application",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
		"distributed", result.Distributed,
		"failed", result.Failed,
		"total", result.Total,
	)
	return result, nil
}

// ScheduleDistributions is the minute-tick poll: every active rule whose
// sync interval has elapsed and that is not currently running is claimed via
// compare-and-set and executed as a detached task.
func (uc UseCase) ScheduleDistributions(ctx context.Context) error {
	logger := application.ResolveLogger(uc.Logger)
	rules, err := uc.Rules.ListActiveRules(ctx)
	if err != nil {
		logger.Error("distribution tick rule listing failed",
			"event", "distribution_tick_rule_listing_failed",
			"module", "content-delivery/distribution-service",
			"layer", "application",
			"error", err.Error(),
		)
		return err
	}

	now := uc.now()
	for _, rule := range rules {
		lastRun := time.Unix(0, 0).UTC()
		if rule.LastRun != nil {
			lastRun = rule.LastRun.UTC()
		}
		interval := time.Duration(rule.SyncInterval) * time.Second
		if now.Sub(lastRun) < interval || rule.LastRunStatus == entities.RuleRunStatusRunning {
			continue
		}
		if err := uc.Rules.MarkRuleRunning(ctx, rule.ID, now); err != nil {
			// Lost the CAS to a concurrent trigger; skip this tick.
			continue
		}
		ruleID := rule.ID
		ruleName := rule.Name
		uc.submit("rule-run-"+ruleID, func(taskCtx context.Context) {
			if _, err := uc.ExecuteDistribution(taskCtx, ruleID); err != nil {
				logger.Error("scheduled distribution failed",
					"event", "distribution_scheduled_run_failed",
					"module", "content-delivery/distribution-service",
					"layer", "application",
					"rule_id", ruleID,
					"rule_name", ruleName,
					"error", err.Error(),
				)
			}
		})
		logger.Info("distribution run scheduled",
			"event", "distribution_run_scheduled",
			"module", "content-delivery/distribution-service",
			"layer", "application",
			"rule_id", ruleID,
			"rule_name", ruleName,
		)
	}
	return nil
}

// RunRule is the manual trigger behind POST /content-distributions/{id}/run.
// It claims the rule synchronously and detaches the actual pass, so the
// caller gets an immediate acknowledgement.
func (uc UseCase) RunRule(ctx context.Context, ruleID string) (ports.TaskHandle, error) {
	logger := application.ResolveLogger(uc.Logger)
	rule, err := uc.Rules.GetRule(ctx, strings.TrimSpace(ruleID))
	if err != nil {
		return nil, err
	}
	if !rule.IsActive {
		return nil, domainerrors.ErrRuleNotFoundOrInactive
	}
	if err := uc.Rules.MarkRuleRunning(ctx, rule.ID, uc.now()); err != nil {
		logger.Warn("manual distribution run rejected",
			"event", "distribution_manual_run_rejected",
			"module", "content-delivery/distribution-service",
			"layer", "application",
			"rule_id", rule.ID,
			"error", err.Error(),
		)
		return nil, err
	}
	handle := uc.submit("manual-run-"+rule.ID, func(taskCtx context.Context) {
		if _, err := uc.ExecuteDistribution(taskCtx, rule.ID); err != nil {
			logger.Error("manual distribution run failed",
				"event", "distribution_manual_run_failed",
				"module", "content-delivery/distribution-service",
				"layer", "application",
				"rule_id", rule.ID,
				"error", err.Error(),
			)
		}
	})
	logger.Info("manual distribution run accepted",
		"event", "distribution_manual_run_accepted",
		"module", "content-delivery/distribution-service",
		"layer", "application",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
	)
	return handle, nil
}

// TriggerScheduledRule backs the per-rule cron jobs. Like the tick and the
// manual run it claims the rule first; losing the claim means another
// trigger owns this window, and the fire is dropped without error.
func (uc UseCase) TriggerScheduledRule(ctx context.Context, ruleID string) error {
	logger := application.ResolveLogger(uc.Logger)
	rule, err := uc.Rules.GetRule(ctx, strings.TrimSpace(ruleID))
	if err != nil {
		return err
	}
	if !rule.IsActive {
		return domainerrors.ErrRuleNotFoundOrInactive
	}
	if err := uc.Rules.MarkRuleRunning(ctx, rule.ID, uc.now()); err != nil {
		if errors.Is(err, domainerrors.ErrRuleAlreadyRunning) {
			logger.Debug("per-rule trigger skipped, rule already running",
				"event", "distribution_rule_trigger_skipped",
				"module", "content-delivery/distribution-service",
				"layer", "application",
				"rule_id", rule.ID,
				"rule_name", rule.Name,
			)
			return nil
		}
		return err
	}
	_, err = uc.ExecuteDistribution(ctx, rule.ID)
	return err
}

// RetryFailedRecords is the hourly sweep. Records at or past maxRetries are
// not selected; a re-attempt that fails with the budget spent parks the
// record as abandoned so exhausted records stay distinguishable.
func (uc UseCase) RetryFailedRecords(ctx context.Context, maxRetries int) (entities.RetryResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	failed, err := uc.Records.ListFailedRecords(ctx, maxRetries)
	if err != nil {
		logger.Error("retry sweep record listing failed",
			"event", "distribution_retry_listing_failed",
			"module", "content-delivery/distribution-service",
			"layer", "application",
			"error", err.Error(),
		)
		return entities.RetryResult{}, err
	}

	var result entities.RetryResult
	for _, record := range failed {
		result.Processed++
		now := uc.now()
		record.Status = entities.RecordStatusPending
		record.RetryCount++
		record.LastRetryAt = &now
		record.ErrorMessage = ""
		record.UpdatedAt = now
		if err := uc.Records.UpdateRecord(ctx, record); err != nil {
			logger.Error("retry sweep interim update failed",
				"event", "distribution_retry_interim_update_failed",
				"module", "content-delivery/distribution-service",
				"layer", "application",
				"record_id", record.ID,
				"error", err.Error(),
			)
			result.Failed++
			continue
		}

		if err := uc.reattempt(ctx, &record); err != nil {
			record.Status = entities.RecordStatusFailed
			if record.RetryCount >= maxRetries {
				record.Status = entities.RecordStatusAbandoned
			}
			record.ErrorMessage = err.Error()
			record.UpdatedAt = uc.now()
			if updateErr := uc.Records.UpdateRecord(ctx, record); updateErr != nil {
				logger.Error("retry sweep failure update failed",
					"event", "distribution_retry_failure_update_failed",
					"module", "content-delivery/distribution-service",
					"layer", "application",
					"record_id", record.ID,
					"error", updateErr.Error(),
				)
			}
			result.Failed++
			logger.Warn("distribution record retry failed",
				"event", "distribution_record_retry_failed",
				"module", "content-delivery/distribution-service",
				"layer", "application",
				"record_id", record.ID,
				"target_site", record.TargetSite,
				"retry_count", record.RetryCount,
				"status", record.Status,
				"error", err.Error(),
			)
			continue
		}

		distributedAt := uc.now()
		record.Status = entities.RecordStatusSuccess
		record.ErrorMessage = ""
		record.DistributedAt = &distributedAt
		record.UpdatedAt = distributedAt
		if err := uc.Records.UpdateRecord(ctx, record); err != nil {
			logger.Error("retry sweep success update failed",
				"event", "distribution_retry_success_update_failed",
				"module", "content-delivery/distribution-service",
				"layer", "application",
				"record_id", record.ID,
				"error", err.Error(),
			)
			result.Failed++
			continue
		}
		result.Successful++
	}

	if result.Processed > 0 {
		logger.Info("retry sweep completed",
			"event", "distribution_retry_sweep_completed",
			"module", "content-delivery/distribution-service",
			"layer", "application",
			"processed", result.Processed,
			"successful", result.Successful,
			"failed", result.Failed,
		)
	}
	return result, nil
}

// RetryRecord handles POST /distribution-records/{id}/retry. Successful
// records cannot be retried; anything else, abandoned included, can be
// resurrected manually.
func (uc UseCase) RetryRecord(ctx context.Context, recordID string) (entities.DistributionRecord, error) {
	logger := application.ResolveLogger(uc.Logger)
	record, err := uc.Records.GetRecord(ctx, strings.TrimSpace(recordID))
	if err != nil {
		return entities.DistributionRecord{}, err
	}
	if record.Status == entities.RecordStatusSuccess {
		return entities.DistributionRecord{}, domainerrors.ErrRecordAlreadyDistributed
	}

	now := uc.now()
	record.Status = entities.RecordStatusPending
	record.RetryCount++
	record.LastRetryAt = &now
	record.ErrorMessage = ""
	record.UpdatedAt = now
	if err := uc.Records.UpdateRecord(ctx, record); err != nil {
		return entities.DistributionRecord{}, err
	}

	recordCopy := record
	uc.submit("record-retry-"+record.ID, func(taskCtx context.Context) {
		retried := recordCopy
		if err := uc.reattempt(taskCtx, &retried); err != nil {
			retried.Status = entities.RecordStatusFailed
			retried.ErrorMessage = err.Error()
			retried.UpdatedAt = uc.now()
			if updateErr := uc.Records.UpdateRecord(taskCtx, retried); updateErr != nil {
				logger.Error("manual retry failure update failed",
					"event", "distribution_manual_retry_failure_update_failed",
					"module", "content-delivery/distribution-service",
					"layer", "application",
					"record_id", retried.ID,
					"error", updateErr.Error(),
				)
			}
			return
		}
		distributedAt := uc.now()
		retried.Status = entities.RecordStatusSuccess
		retried.ErrorMessage = ""
		retried.DistributedAt = &distributedAt
		retried.UpdatedAt = distributedAt
		if err := uc.Records.UpdateRecord(taskCtx, retried); err != nil {
			logger.Error("manual retry success update failed",
				"event", "distribution_manual_retry_success_update_failed",
				"module", "content-delivery/distribution-service",
				"layer", "application",
				"record_id", retried.ID,
				"error", err.Error(),
			)
		}
	})

	logger.Info("distribution record retry initiated",
		"event", "distribution_record_retry_initiated",
		"module", "content-delivery/distribution-service",
		"layer", "application",
		"record_id", record.ID,
		"target_site", record.TargetSite,
		"retry_count", record.RetryCount,
	)
	return record, nil
}

// CleanupOldRecords purges terminal records older than the retention window.
// Pending records are never swept; a stuck pending record needs manual
// intervention, not silent deletion.
func (uc UseCase) CleanupOldRecords(ctx context.Context, daysOld int) (int, error) {
	logger := application.ResolveLogger(uc.Logger)
	if daysOld <= 0 {
		daysOld = DefaultCleanupRetention
	}
	cutoff := uc.now().AddDate(0, 0, -daysOld)
	deleted, err := uc.Records.DeleteRecordsBefore(ctx, cutoff, []entities.RecordStatus{
		entities.RecordStatusSuccess,
		entities.RecordStatusFailed,
		entities.RecordStatusAbandoned,
	})
	if err != nil {
		logger.Error("record cleanup failed",
			"event", "distribution_record_cleanup_failed",
			"module", "content-delivery/distribution-service",
			"layer", "application",
			"days_old", daysOld,
			"error", err.Error(),
		)
		return 0, err
	}
	logger.Info("record cleanup completed",
		"event", "distribution_record_cleanup_completed",
		"module", "content-delivery/distribution-service",
		"layer", "application",
		"days_old", daysOld,
		"deleted", deleted,
	)
	return deleted, nil
}

func (uc UseCase) CreateRule(ctx context.Context, cmd CreateRuleCommand) (entities.DistributionRule, error) {
	logger := application.ResolveLogger(uc.Logger)
	name := strings.TrimSpace(cmd.Name)
	if name == "" || len(cmd.SourceCategories) == 0 || len(cmd.TargetSites) == 0 {
		return entities.DistributionRule{}, domainerrors.ErrInvalidRuleInput
	}
	if _, err := uc.Rules.GetRuleByName(ctx, name); err == nil {
		return entities.DistributionRule{}, domainerrors.ErrRuleNameTaken
	}

	ruleID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.DistributionRule{}, err
	}
	now := uc.now()
	rule := entities.DistributionRule{
		ID:               ruleID,
		Name:             name,
		Description:      strings.TrimSpace(cmd.Description),
		SourceCategories: append([]string(nil), cmd.SourceCategories...),
		TargetSites:      append([]string(nil), cmd.TargetSites...),
		Conditions:       cmd.Conditions,
		Transformations:  cmd.Transformations,
		SyncInterval:     cmd.SyncInterval,
		IsActive:         cmd.IsActive,
		Priority:         cmd.Priority,
		LastRunStatus:    entities.RuleRunStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := uc.Rules.CreateRule(ctx, rule); err != nil {
		return entities.DistributionRule{}, err
	}
	uc.registerRuleSchedule(rule)
	logger.Info("distribution rule created",
		"event", "distribution_rule_created",
		"module", "content-delivery/distribution-service",
		"layer", "application",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
		"sync_interval", rule.SyncInterval,
	)
	return rule, nil
}

func (uc UseCase) UpdateRule(ctx context.Context, cmd UpdateRuleCommand) (entities.DistributionRule, error) {
	logger := application.ResolveLogger(uc.Logger)
	rule, err := uc.Rules.GetRule(ctx, strings.TrimSpace(cmd.RuleID))
	if err != nil {
		return entities.DistributionRule{}, err
	}

	if name := strings.TrimSpace(cmd.Name); name != "" && name != rule.Name {
		if existing, err := uc.Rules.GetRuleByName(ctx, name); err == nil && existing.ID != rule.ID {
			return entities.DistributionRule{}, domainerrors.ErrRuleNameTaken
		}
		rule.Name = name
	}
	if cmd.Description != "" {
		rule.Description = strings.TrimSpace(cmd.Description)
	}
	if len(cmd.SourceCategories) > 0 {
		rule.SourceCategories = append([]string(nil), cmd.SourceCategories...)
	}
	if len(cmd.TargetSites) > 0 {
		rule.TargetSites = append([]string(nil), cmd.TargetSites...)
	}
	if cmd.Conditions != nil {
		rule.Conditions = cmd.Conditions
	}
	if cmd.Transformations != nil {
		rule.Transformations = cmd.Transformations
	}
	intervalChanged := cmd.SyncInterval > 0 && cmd.SyncInterval != rule.SyncInterval
	if cmd.SyncInterval > 0 {
		rule.SyncInterval = cmd.SyncInterval
	}
	rule.IsActive = cmd.IsActive
	if cmd.Priority != 0 {
		rule.Priority = cmd.Priority
	}
	rule.UpdatedAt = uc.now()

	if err := uc.Rules.UpdateRule(ctx, rule); err != nil {
		return entities.DistributionRule{}, err
	}
	if intervalChanged {
		uc.registerRuleSchedule(rule)
	}
	if !rule.IsActive && uc.Scheduler != nil {
		uc.Scheduler.UnscheduleRule(rule.ID)
	}
	logger.Info("distribution rule updated",
		"event", "distribution_rule_updated",
		"module", "content-delivery/distribution-service",
		"layer", "application",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
		"is_active", rule.IsActive,
	)
	return rule, nil
}

func (uc UseCase) DeleteRule(ctx context.Context, ruleID string) error {
	logger := application.ResolveLogger(uc.Logger)
	rule, err := uc.Rules.GetRule(ctx, strings.TrimSpace(ruleID))
	if err != nil {
		return err
	}
	if rule.LastRunStatus == entities.RuleRunStatusRunning {
		return domainerrors.ErrRuleRunning
	}
	if err := uc.Rules.DeleteRule(ctx, rule.ID); err != nil {
		return err
	}
	if uc.Scheduler != nil {
		uc.Scheduler.UnscheduleRule(rule.ID)
	}
	logger.Info("distribution rule deleted",
		"event", "distribution_rule_deleted",
		"module", "content-delivery/distribution-service",
		"layer", "application",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
	)
	return nil
}

// CreateDefaultRules seeds bootstrap rules once; a non-empty rule table is
// left untouched.
func (uc UseCase) CreateDefaultRules(ctx context.Context) error {
	logger := application.ResolveLogger(uc.Logger)
	existing, err := uc.Rules.ListRules(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Debug("default rules skipped",
			"event", "distribution_default_rules_skipped",
			"module", "content-delivery/distribution-service",
			"layer", "application",
			"existing_count", len(existing),
		)
		return nil
	}

	weekAgo := uc.now().AddDate(0, 0, -7)
	defaults := []CreateRuleCommand{
		{
			Name:             "tech-news-sync",
			Description:      "Distribute technology coverage to the main and news sites",
			SourceCategories: []string{"Tech", "Internet", "AI"},
			TargetSites:      []string{"main.example.com", "news.example.com"},
			SyncInterval:     3600,
			IsActive:         true,
			Priority:         1,
			Conditions: &entities.RuleConditions{
				PublishedAfter: &weekAgo,
				Status:         "published",
			},
			Transformations: &entities.RuleTransformations{
				TitlePrefix:    "[Tech] ",
				AddTags:        []string{"tech-news", "trending"},
				SEOTitle:       "{title} - Tech Digest",
				SEODescription: "Latest in tech: {title}",
			},
		},
		{
			Name:             "corporate-news-sync",
			Description:      "Distribute corporate and industry updates to the corporate site",
			SourceCategories: []string{"Corporate", "Industry", "Business"},
			TargetSites:      []string{"corporate.example.com"},
			SyncInterval:     7200,
			IsActive:         true,
			Priority:         2,
			Conditions: &entities.RuleConditions{
				Status: "published",
			},
			Transformations: &entities.RuleTransformations{
				ContentSuffix: "---\nSourced from the official corporate newsroom",
				AddTags:       []string{"corporate"},
				SEOTitle:      "{title} | Corporate",
			},
		},
	}
	for _, cmd := range defaults {
		if _, err := uc.CreateRule(ctx, cmd); err != nil {
			logger.Error("default rule creation failed",
				"event", "distribution_default_rule_creation_failed",
				"module", "content-delivery/distribution-service",
				"layer", "application",
				"rule_name", cmd.Name,
				"error", err.Error(),
			)
		}
	}
	return nil
}

func (uc UseCase) selectSourceArticles(ctx context.Context, rule entities.DistributionRule) ([]entities.Article, error) {
	filter := ports.ArticleFilter{
		Categories: append([]string(nil), rule.SourceCategories...),
	}
	if rule.Conditions != nil {
		filter.PublishedAfter = rule.Conditions.PublishedAfter
		filter.Tags = append([]string(nil), rule.Conditions.Tags...)
		filter.Status = rule.Conditions.Status
	}
	return uc.Articles.ListArticles(ctx, filter)
}

func (uc UseCase) distributeArticles(ctx context.Context, articles []entities.Article, rule entities.DistributionRule) entities.RunResult {
	logger := application.ResolveLogger(uc.Logger)
	result := entities.RunResult{Total: len(articles)}

	for _, article := range articles {
		covered, err := uc.Records.ListDistributedSites(ctx, article.ID, rule.TargetSites)
		if err != nil {
			result.Failed++
			logger.Error("distributed-site lookup failed",
				"event", "distribution_site_lookup_failed",
				"module", "content-delivery/distribution-service",
				"layer", "application",
				"rule_id", rule.ID,
				"article_id", article.ID,
				"error", err.Error(),
			)
			continue
		}
		if len(covered) == len(rule.TargetSites) {
			// Already distributed everywhere; the pass is idempotent.
			continue
		}
		coveredSet := make(map[string]struct{}, len(covered))
		for _, site := range covered {
			coveredSet[site] = struct{}{}
		}

		transformed := ApplyTransformations(article, rule.Transformations)

		articleFailed := false
		for _, targetSite := range rule.TargetSites {
			if _, done := coveredSet[targetSite]; done {
				continue
			}
			if err := uc.distributeToSite(ctx, transformed, targetSite, rule.ID); err != nil {
				articleFailed = true
				logger.Warn("article distribution to site failed",
					"event", "distribution_site_push_failed",
					"module", "content-delivery/distribution-service",
					"layer", "application",
					"rule_id", rule.ID,
					"article_id", article.ID,
					"target_site", targetSite,
					"error", err.Error(),
				)
				// Remaining sites for this article are attempted on the
				// next pass; failed records do not count as covered.
				break
			}
			result.Distributed++
		}
		if articleFailed {
			result.Failed++
		}
	}
	return result
}

// distributeToSite verifies the target site and records the outcome. The
// actual cross-site push happens only when a SitePublisher is wired; the
// bookkeeping-only default is the extension point for real delivery.
func (uc UseCase) distributeToSite(ctx context.Context, article entities.TransformedArticle, targetSite string, ruleID string) error {
	site, err := uc.Sites.FindSiteByDomain(ctx, targetSite)
	if err != nil {
		uc.writeRecord(ctx, article, targetSite, ruleID, entities.RecordStatusFailed, "target site "+targetSite+" not found")
		return domainerrors.ErrTargetSiteNotFound
	}
	if uc.Publisher != nil {
		if err := uc.Publisher.PublishToSite(ctx, article, site); err != nil {
			uc.writeRecord(ctx, article, targetSite, ruleID, entities.RecordStatusFailed, err.Error())
			return err
		}
	}
	return uc.writeRecord(ctx, article, targetSite, ruleID, entities.RecordStatusSuccess, "")
}

func (uc UseCase) writeRecord(ctx context.Context, article entities.TransformedArticle, targetSite string, ruleID string, status entities.RecordStatus, errorMessage string) error {
	logger := application.ResolveLogger(uc.Logger)
	recordID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	now := uc.now()
	record := entities.DistributionRecord{
		ID:           recordID,
		ArticleID:    article.ID,
		RuleID:       ruleID,
		TargetSite:   targetSite,
		Status:       status,
		ErrorMessage: errorMessage,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if snapshot, marshalErr := json.Marshal(transformedSnapshot(article)); marshalErr == nil {
		record.TransformedData = snapshot
	}
	if status == entities.RecordStatusSuccess {
		record.DistributedAt = &now
	}
	if err := uc.Records.CreateRecord(ctx, record); err != nil {
		logger.Error("distribution record creation failed",
			"event", "distribution_record_creation_failed",
			"module", "content-delivery/distribution-service",
			"layer", "application",
			"article_id", article.ID,
			"target_site", targetSite,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

// reattempt redoes the site push for an existing record without creating a
// new one.
func (uc UseCase) reattempt(ctx context.Context, record *entities.DistributionRecord) error {
	site, err := uc.Sites.FindSiteByDomain(ctx, record.TargetSite)
	if err != nil {
		return domainerrors.ErrTargetSiteNotFound
	}
	if uc.Publisher == nil {
		return nil
	}
	var article entities.TransformedArticle
	if len(record.TransformedData) > 0 {
		var snapshot articleSnapshot
		if err := json.Unmarshal(record.TransformedData, &snapshot); err == nil {
			article = snapshot.toTransformed(record.ArticleID)
		}
	}
	return uc.Publisher.PublishToSite(ctx, article, site)
}

func (uc UseCase) completeRun(ctx context.Context, rule entities.DistributionRule, result entities.RunResult, runErr error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.now()
	rule.Statistics.TotalRuns++
	rule.LastRun = &now
	rule.UpdatedAt = now
	if runErr != nil {
		rule.Statistics.FailedRuns++
		rule.LastRunStatus = entities.RuleRunStatusError
		rule.ErrorMessage = runErr.Error()
	} else {
		rule.Statistics.SuccessfulRuns++
		rule.Statistics.LastSuccessfulRun = &now
		rule.Statistics.TotalArticlesDistributed += result.Distributed
		rule.LastRunStatus = entities.RuleRunStatusSuccess
		rule.ErrorMessage = ""
	}
	if err := uc.Rules.CompleteRuleRun(ctx, rule); err != nil {
		logger.Error("rule run completion update failed",
			"event", "distribution_rule_completion_update_failed",
			"module", "content-delivery/distribution-service",
			"layer", "application",
			"rule_id", rule.ID,
			"error", err.Error(),
		)
		return
	}

	eventType := "distribution.run_completed"
	payload := map[string]any{
		"rule_id":     rule.ID,
		"rule_name":   rule.Name,
		"distributed": result.Distributed,
		"failed":      result.Failed,
		"total":       result.Total,
	}
	if runErr != nil {
		eventType = "distribution.run_failed"
		payload["reason"] = runErr.Error()
	}
	if err := uc.appendOutbox(ctx, eventType, rule.ID, payload); err != nil {
		logger.Error("rule run outbox append failed",
			"event", "distribution_rule_outbox_append_failed",
			"module", "content-delivery/distribution-service",
			"layer", "application",
			"rule_id", rule.ID,
			"error", err.Error(),
		)
	}
}

func (uc UseCase) registerRuleSchedule(rule entities.DistributionRule) {
	if uc.Scheduler == nil || uc.IntervalToCron == nil || !rule.IsActive {
		return
	}
	logger := application.ResolveLogger(uc.Logger)
	expression := uc.IntervalToCron(rule.SyncInterval)
	if err := uc.Scheduler.ScheduleCustomRule(rule.ID, expression); err != nil {
		logger.Warn("per-rule schedule registration failed",
			"event", "distribution_rule_schedule_registration_failed",
			"module", "content-delivery/distribution-service",
			"layer", "application",
			"rule_id", rule.ID,
			"expression", expression,
			"error", err.Error(),
		)
	}
}

func (uc UseCase) appendOutbox(ctx context.Context, eventType string, partitionKey string, data map[string]any) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       uc.now(),
		SourceService:    "distribution-service",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "rule_id",
		PartitionKey:     partitionKey,
		Data:             payload,
	})
}

func (uc UseCase) submit(name string, fn func(context.Context)) ports.TaskHandle {
	if uc.Runner != nil {
		return uc.Runner.Submit(name, fn)
	}
	// No runner wired: run inline so behavior stays deterministic.
	fn(context.Background())
	return closedHandle{}
}

func (uc UseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}

type closedHandle struct{}

func (closedHandle) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// ApplyTransformations applies rule edits in fixed order: title prefix,
// title suffix, content prefix, content suffix, added tags (deduplicated by
// name), then SEO templates with {title} bound to the original title.
func ApplyTransformations(article entities.Article, transformations *entities.RuleTransformations) entities.TransformedArticle {
	transformed := entities.TransformedArticle{Article: article}
	transformed.Tags = append([]string(nil), article.Tags...)
	if transformations == nil {
		return transformed
	}

	if transformations.TitlePrefix != "" {
		transformed.Title = transformations.TitlePrefix + transformed.Title
	}
	if transformations.TitleSuffix != "" {
		transformed.Title = transformed.Title + transformations.TitleSuffix
	}
	if transformations.ContentPrefix != "" {
		transformed.Content = transformations.ContentPrefix + "\n\n" + transformed.Content
	}
	if transformations.ContentSuffix != "" {
		transformed.Content = transformed.Content + "\n\n" + transformations.ContentSuffix
	}

	if len(transformations.AddTags) > 0 {
		existing := make(map[string]struct{}, len(transformed.Tags))
		for _, tag := range transformed.Tags {
			existing[tag] = struct{}{}
		}
		for _, tag := range transformations.AddTags {
			if _, seen := existing[tag]; seen {
				continue
			}
			existing[tag] = struct{}{}
			transformed.Tags = append(transformed.Tags, tag)
		}
	}

	// Only the first {title} placeholder is substituted.
	if transformations.SEOTitle != "" {
		transformed.SEOTitle = strings.Replace(transformations.SEOTitle, "{title}", article.Title, 1)
	}
	if transformations.SEODescription != "" {
		transformed.SEODescription = strings.Replace(transformations.SEODescription, "{title}", article.Title, 1)
	}
	return transformed
}

type articleSnapshot struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Summary        string   `json:"summary"`
	Slug           string   `json:"slug"`
	Category       string   `json:"category"`
	Tags           []string `json:"tags"`
	SEOTitle       string   `json:"seo_title,omitempty"`
	SEODescription string   `json:"seo_description,omitempty"`
}

func transformedSnapshot(article entities.TransformedArticle) articleSnapshot {
	return articleSnapshot{
		Title:          article.Title,
		Content:        article.Content,
		Summary:        article.Summary,
		Slug:           article.Slug,
		Category:       article.Category,
		Tags:           append([]string(nil), article.Tags...),
		SEOTitle:       article.SEOTitle,
		SEODescription: article.SEODescription,
	}
}

func (s articleSnapshot) toTransformed(articleID string) entities.TransformedArticle {
	return entities.TransformedArticle{
		Article: entities.Article{
			ID:       articleID,
			Title:    s.Title,
			Content:  s.Content,
			Summary:  s.Summary,
			Slug:     s.Slug,
			Category: s.Category,
			Tags:     append([]string(nil), s.Tags...),
		},
		SEOTitle:       s.SEOTitle,
		SEODescription: s.SEODescription,
	}
}
