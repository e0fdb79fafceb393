package commands_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	distributionservice "quill/contexts/content-delivery/distribution-service"
	"quill/contexts/content-delivery/distribution-service/adapters/memory"
	"quill/contexts/content-delivery/distribution-service/application/commands"
	"quill/contexts/content-delivery/distribution-service/domain/entities"
	domainerrors "quill/contexts/content-delivery/distribution-service/domain/errors"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedClock(store *memory.Store) {
	store.NowFunc = func() time.Time { return testNow }
}

func publishedAt(offset time.Duration) *time.Time {
	t := testNow.Add(offset)
	return &t
}

func seedTwoArticlesTwoSites() memory.Seed {
	return memory.Seed{
		Rules: []entities.DistributionRule{{
			ID:               "rule-1",
			Name:             "tech-sync",
			SourceCategories: []string{"Tech"},
			TargetSites:      []string{"a.example.com", "b.example.com"},
			Conditions:       &entities.RuleConditions{Status: "published"},
			SyncInterval:     3600,
			IsActive:         true,
			LastRunStatus:    entities.RuleRunStatusPending,
			CreatedAt:        testNow.Add(-24 * time.Hour),
			UpdatedAt:        testNow.Add(-24 * time.Hour),
		}},
		Articles: []entities.Article{
			{
				ID:          "article-1",
				Title:       "Go generics",
				Content:     "body one",
				Slug:        "go-generics",
				Category:    "Tech",
				Status:      "published",
				PublishedAt: publishedAt(-2 * time.Hour),
			},
			{
				ID:          "article-2",
				Title:       "New release",
				Content:     "body two",
				Slug:        "new-release",
				Category:    "Tech",
				Status:      "published",
				PublishedAt: publishedAt(-1 * time.Hour),
			},
		},
		Sites: []entities.Site{
			{ID: "site-a", Domain: "a.example.com", Name: "Site A"},
			{ID: "site-b", Domain: "b.example.com", Name: "Site B"},
		},
	}
}

func TestExecuteDistributionAllSitesSucceed(t *testing.T) {
	module := distributionservice.NewInMemoryModule(seedTwoArticlesTwoSites(), nil)
	fixedClock(module.Store)

	result, err := module.Commands.ExecuteDistribution(context.Background(), "rule-1")
	if err != nil {
		t.Fatalf("execute distribution failed: %v", err)
	}
	if result.Distributed != 4 || result.Failed != 0 || result.Total != 2 {
		t.Fatalf("unexpected run result: %+v", result)
	}

	rule, err := module.Queries.GetRule(context.Background(), "rule-1")
	if err != nil {
		t.Fatalf("get rule failed: %v", err)
	}
	if rule.LastRunStatus != entities.RuleRunStatusSuccess {
		t.Fatalf("expected success run status, got %s", rule.LastRunStatus)
	}
	if rule.Statistics.TotalRuns != 1 || rule.Statistics.SuccessfulRuns != 1 {
		t.Fatalf("unexpected statistics: %+v", rule.Statistics)
	}
	if rule.Statistics.TotalArticlesDistributed != 4 {
		t.Fatalf("expected 4 distributed articles in statistics, got %d", rule.Statistics.TotalArticlesDistributed)
	}

	records, err := module.Queries.RecordsByArticle(context.Background(), "article-1")
	if err != nil {
		t.Fatalf("records by article failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records for article-1, got %d", len(records))
	}
	for _, record := range records {
		if record.Status != entities.RecordStatusSuccess {
			t.Fatalf("expected success record, got %s", record.Status)
		}
		if record.DistributedAt == nil {
			t.Fatalf("expected distributedAt on success record")
		}
	}
}

func TestExecuteDistributionMissingTargetSite(t *testing.T) {
	seed := seedTwoArticlesTwoSites()
	seed.Sites = seed.Sites[:1] // b.example.com is not registered
	module := distributionservice.NewInMemoryModule(seed, nil)
	fixedClock(module.Store)

	result, err := module.Commands.ExecuteDistribution(context.Background(), "rule-1")
	if err != nil {
		t.Fatalf("execute distribution failed: %v", err)
	}
	if result.Distributed != 2 || result.Failed != 2 || result.Total != 2 {
		t.Fatalf("unexpected run result: %+v", result)
	}

	records, err := module.Queries.RecordsBySite(context.Background(), "b.example.com", 10)
	if err != nil {
		t.Fatalf("records by site failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 failed records for missing site, got %d", len(records))
	}
	for _, record := range records {
		if record.Status != entities.RecordStatusFailed {
			t.Fatalf("expected failed record, got %s", record.Status)
		}
		if record.ErrorMessage != "target site b.example.com not found" {
			t.Fatalf("unexpected error message: %q", record.ErrorMessage)
		}
	}
}

func TestExecuteDistributionIsIdempotent(t *testing.T) {
	module := distributionservice.NewInMemoryModule(seedTwoArticlesTwoSites(), nil)
	fixedClock(module.Store)

	if _, err := module.Commands.ExecuteDistribution(context.Background(), "rule-1"); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	second, err := module.Commands.ExecuteDistribution(context.Background(), "rule-1")
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if second.Distributed != 0 || second.Failed != 0 {
		t.Fatalf("second pass should distribute nothing, got %+v", second)
	}

	records, err := module.Queries.RecordsByArticle(context.Background(), "article-1")
	if err != nil {
		t.Fatalf("records by article failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected no duplicate records, got %d", len(records))
	}
}

func TestExecuteDistributionInactiveRule(t *testing.T) {
	seed := seedTwoArticlesTwoSites()
	seed.Rules[0].IsActive = false
	module := distributionservice.NewInMemoryModule(seed, nil)

	_, err := module.Commands.ExecuteDistribution(context.Background(), "rule-1")
	if !errors.Is(err, domainerrors.ErrRuleNotFoundOrInactive) {
		t.Fatalf("expected rule not found or inactive, got %v", err)
	}
}

func TestScheduleDistributionsSkipsFreshAndRunningRules(t *testing.T) {
	seed := seedTwoArticlesTwoSites()
	fresh := testNow.Add(-30 * time.Minute)
	seed.Rules[0].LastRun = &fresh // 3600s interval not yet elapsed
	seed.Rules = append(seed.Rules, entities.DistributionRule{
		ID:               "rule-2",
		Name:             "busy-sync",
		SourceCategories: []string{"Tech"},
		TargetSites:      []string{"a.example.com"},
		SyncInterval:     60,
		IsActive:         true,
		LastRunStatus:    entities.RuleRunStatusRunning,
		CreatedAt:        testNow.Add(-24 * time.Hour),
		UpdatedAt:        testNow.Add(-24 * time.Hour),
	})
	module := distributionservice.NewInMemoryModule(seed, nil)
	fixedClock(module.Store)

	runner := &memory.SyncRunner{}
	module.Commands.Runner = runner

	if err := module.Commands.ScheduleDistributions(context.Background()); err != nil {
		t.Fatalf("schedule distributions failed: %v", err)
	}
	if submitted := runner.Submitted(); len(submitted) != 0 {
		t.Fatalf("expected no submissions, got %v", submitted)
	}
}

func TestScheduleDistributionsRunsDueRule(t *testing.T) {
	module := distributionservice.NewInMemoryModule(seedTwoArticlesTwoSites(), nil)
	fixedClock(module.Store)

	runner := &memory.SyncRunner{}
	module.Commands.Runner = runner

	// LastRun nil means the rule has never run and is immediately due.
	if err := module.Commands.ScheduleDistributions(context.Background()); err != nil {
		t.Fatalf("schedule distributions failed: %v", err)
	}
	submitted := runner.Submitted()
	if len(submitted) != 1 || submitted[0] != "rule-run-rule-1" {
		t.Fatalf("unexpected submissions: %v", submitted)
	}

	rule, err := module.Queries.GetRule(context.Background(), "rule-1")
	if err != nil {
		t.Fatalf("get rule failed: %v", err)
	}
	if rule.LastRunStatus != entities.RuleRunStatusSuccess {
		t.Fatalf("expected completed run, got status %s", rule.LastRunStatus)
	}
}

func TestRunRuleRejectsAlreadyRunning(t *testing.T) {
	seed := seedTwoArticlesTwoSites()
	seed.Rules[0].LastRunStatus = entities.RuleRunStatusRunning
	module := distributionservice.NewInMemoryModule(seed, nil)
	fixedClock(module.Store)

	_, err := module.Commands.RunRule(context.Background(), "rule-1")
	if !errors.Is(err, domainerrors.ErrRuleAlreadyRunning) {
		t.Fatalf("expected already running error, got %v", err)
	}
}

func TestRetryFailedRecordsRespectsRetryBudget(t *testing.T) {
	seed := seedTwoArticlesTwoSites()
	seed.Records = []entities.DistributionRecord{
		{
			ID:         "record-retryable",
			ArticleID:  "article-1",
			RuleID:     "rule-1",
			TargetSite: "a.example.com",
			Status:     entities.RecordStatusFailed,
			RetryCount: 1,
			CreatedAt:  testNow.Add(-2 * time.Hour),
			UpdatedAt:  testNow.Add(-2 * time.Hour),
		},
		{
			ID:         "record-exhausted",
			ArticleID:  "article-2",
			RuleID:     "rule-1",
			TargetSite: "a.example.com",
			Status:     entities.RecordStatusFailed,
			RetryCount: 3,
			CreatedAt:  testNow.Add(-2 * time.Hour),
			UpdatedAt:  testNow.Add(-2 * time.Hour),
		},
	}
	module := distributionservice.NewInMemoryModule(seed, nil)
	fixedClock(module.Store)

	result, err := module.Commands.RetryFailedRecords(context.Background(), 3)
	if err != nil {
		t.Fatalf("retry sweep failed: %v", err)
	}
	if result.Processed != 1 || result.Successful != 1 || result.Failed != 0 {
		t.Fatalf("unexpected retry result: %+v", result)
	}

	retried, err := module.Queries.GetRecord(context.Background(), "record-retryable")
	if err != nil {
		t.Fatalf("get record failed: %v", err)
	}
	if retried.Status != entities.RecordStatusSuccess {
		t.Fatalf("expected success after retry, got %s", retried.Status)
	}
	if retried.RetryCount != 2 {
		t.Fatalf("expected retry count 2, got %d", retried.RetryCount)
	}
	if retried.LastRetryAt == nil || retried.DistributedAt == nil {
		t.Fatalf("expected retry and distribution timestamps")
	}

	exhausted, err := module.Queries.GetRecord(context.Background(), "record-exhausted")
	if err != nil {
		t.Fatalf("get record failed: %v", err)
	}
	if exhausted.Status != entities.RecordStatusFailed || exhausted.RetryCount != 3 {
		t.Fatalf("exhausted record must be untouched, got %+v", exhausted)
	}
}

func TestRetryFailedRecordsAbandonsOnExhaustedBudget(t *testing.T) {
	seed := seedTwoArticlesTwoSites()
	seed.Sites = nil // every reattempt fails
	seed.Records = []entities.DistributionRecord{{
		ID:         "record-last-chance",
		ArticleID:  "article-1",
		RuleID:     "rule-1",
		TargetSite: "a.example.com",
		Status:     entities.RecordStatusFailed,
		RetryCount: 2,
		CreatedAt:  testNow.Add(-2 * time.Hour),
		UpdatedAt:  testNow.Add(-2 * time.Hour),
	}}
	module := distributionservice.NewInMemoryModule(seed, nil)
	fixedClock(module.Store)

	result, err := module.Commands.RetryFailedRecords(context.Background(), 3)
	if err != nil {
		t.Fatalf("retry sweep failed: %v", err)
	}
	if result.Processed != 1 || result.Failed != 1 {
		t.Fatalf("unexpected retry result: %+v", result)
	}

	record, err := module.Queries.GetRecord(context.Background(), "record-last-chance")
	if err != nil {
		t.Fatalf("get record failed: %v", err)
	}
	if record.Status != entities.RecordStatusAbandoned {
		t.Fatalf("expected abandoned record, got %s", record.Status)
	}
	if record.RetryCount != 3 {
		t.Fatalf("expected retry count 3, got %d", record.RetryCount)
	}
}

func TestRetryRecordRejectsSuccessfulRecord(t *testing.T) {
	distributedAt := testNow.Add(-1 * time.Hour)
	seed := seedTwoArticlesTwoSites()
	seed.Records = []entities.DistributionRecord{{
		ID:            "record-done",
		ArticleID:     "article-1",
		RuleID:        "rule-1",
		TargetSite:    "a.example.com",
		Status:        entities.RecordStatusSuccess,
		DistributedAt: &distributedAt,
		CreatedAt:     testNow.Add(-1 * time.Hour),
		UpdatedAt:     testNow.Add(-1 * time.Hour),
	}}
	module := distributionservice.NewInMemoryModule(seed, nil)
	fixedClock(module.Store)

	_, err := module.Commands.RetryRecord(context.Background(), "record-done")
	if !errors.Is(err, domainerrors.ErrRecordAlreadyDistributed) {
		t.Fatalf("expected already distributed error, got %v", err)
	}
}

func TestRetryRecordResurrectsAbandonedRecord(t *testing.T) {
	seed := seedTwoArticlesTwoSites()
	seed.Records = []entities.DistributionRecord{{
		ID:         "record-parked",
		ArticleID:  "article-1",
		RuleID:     "rule-1",
		TargetSite: "a.example.com",
		Status:     entities.RecordStatusAbandoned,
		RetryCount: 3,
		CreatedAt:  testNow.Add(-3 * time.Hour),
		UpdatedAt:  testNow.Add(-2 * time.Hour),
	}}
	module := distributionservice.NewInMemoryModule(seed, nil)
	fixedClock(module.Store)

	record, err := module.Commands.RetryRecord(context.Background(), "record-parked")
	if err != nil {
		t.Fatalf("manual retry failed: %v", err)
	}
	if record.RetryCount != 4 {
		t.Fatalf("expected retry count 4, got %d", record.RetryCount)
	}

	// No runner wired, so the detached re-attempt ran inline.
	final, err := module.Queries.GetRecord(context.Background(), "record-parked")
	if err != nil {
		t.Fatalf("get record failed: %v", err)
	}
	if final.Status != entities.RecordStatusSuccess {
		t.Fatalf("expected success after manual retry, got %s", final.Status)
	}
}

func TestCleanupOldRecordsKeepsPendingAndRecent(t *testing.T) {
	seed := seedTwoArticlesTwoSites()
	seed.Records = []entities.DistributionRecord{
		{
			ID:         "record-old-success",
			ArticleID:  "article-1",
			TargetSite: "a.example.com",
			Status:     entities.RecordStatusSuccess,
			CreatedAt:  testNow.AddDate(0, 0, -45),
		},
		{
			ID:         "record-old-failed",
			ArticleID:  "article-1",
			TargetSite: "b.example.com",
			Status:     entities.RecordStatusFailed,
			CreatedAt:  testNow.AddDate(0, 0, -40),
		},
		{
			ID:         "record-old-pending",
			ArticleID:  "article-2",
			TargetSite: "a.example.com",
			Status:     entities.RecordStatusPending,
			CreatedAt:  testNow.AddDate(0, 0, -60),
		},
		{
			ID:         "record-recent-success",
			ArticleID:  "article-2",
			TargetSite: "b.example.com",
			Status:     entities.RecordStatusSuccess,
			CreatedAt:  testNow.AddDate(0, 0, -5),
		},
	}
	module := distributionservice.NewInMemoryModule(seed, nil)
	fixedClock(module.Store)

	deleted, err := module.Commands.CleanupOldRecords(context.Background(), 30)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted records, got %d", deleted)
	}
	if _, err := module.Queries.GetRecord(context.Background(), "record-old-pending"); err != nil {
		t.Fatalf("pending record must never be swept: %v", err)
	}
	if _, err := module.Queries.GetRecord(context.Background(), "record-recent-success"); err != nil {
		t.Fatalf("recent record must survive: %v", err)
	}
	if _, err := module.Queries.GetRecord(context.Background(), "record-old-success"); !errors.Is(err, domainerrors.ErrRecordNotFound) {
		t.Fatalf("expected old success record deleted, got %v", err)
	}
}

func TestCreateRuleValidation(t *testing.T) {
	module := distributionservice.NewInMemoryModule(memory.Seed{}, nil)
	fixedClock(module.Store)

	_, err := module.Commands.CreateRule(context.Background(), commands.CreateRuleCommand{
		Name:        "missing-targets",
		TargetSites: []string{"a.example.com"},
	})
	if !errors.Is(err, domainerrors.ErrInvalidRuleInput) {
		t.Fatalf("expected invalid rule input, got %v", err)
	}

	created, err := module.Commands.CreateRule(context.Background(), commands.CreateRuleCommand{
		Name:             "tech-sync",
		SourceCategories: []string{"Tech"},
		TargetSites:      []string{"a.example.com"},
		SyncInterval:     3600,
		IsActive:         true,
	})
	if err != nil {
		t.Fatalf("create rule failed: %v", err)
	}
	if created.LastRunStatus != entities.RuleRunStatusPending {
		t.Fatalf("new rule must start pending, got %s", created.LastRunStatus)
	}

	_, err = module.Commands.CreateRule(context.Background(), commands.CreateRuleCommand{
		Name:             "tech-sync",
		SourceCategories: []string{"Tech"},
		TargetSites:      []string{"b.example.com"},
	})
	if !errors.Is(err, domainerrors.ErrRuleNameTaken) {
		t.Fatalf("expected rule name taken, got %v", err)
	}
}

func TestDeleteRuleRejectedWhileRunning(t *testing.T) {
	seed := seedTwoArticlesTwoSites()
	seed.Rules[0].LastRunStatus = entities.RuleRunStatusRunning
	module := distributionservice.NewInMemoryModule(seed, nil)

	err := module.Commands.DeleteRule(context.Background(), "rule-1")
	if !errors.Is(err, domainerrors.ErrRuleRunning) {
		t.Fatalf("expected rule running error, got %v", err)
	}
}

func TestCreateDefaultRulesIsIdempotent(t *testing.T) {
	module := distributionservice.NewInMemoryModule(memory.Seed{}, nil)
	fixedClock(module.Store)

	if err := module.Commands.CreateDefaultRules(context.Background()); err != nil {
		t.Fatalf("default rule seeding failed: %v", err)
	}
	if err := module.Commands.CreateDefaultRules(context.Background()); err != nil {
		t.Fatalf("second seeding failed: %v", err)
	}

	rules, err := module.Queries.ListRules(context.Background())
	if err != nil {
		t.Fatalf("list rules failed: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 default rules, got %d", len(rules))
	}
}

func TestApplyTransformationsOrderAndTagDedup(t *testing.T) {
	article := entities.Article{
		ID:      "article-1",
		Title:   "Hello",
		Content: "body",
		Tags:    []string{"go", "trending"},
	}
	transformed := commands.ApplyTransformations(article, &entities.RuleTransformations{
		TitlePrefix:    "[X] ",
		TitleSuffix:    " (Y)",
		ContentPrefix:  "intro",
		ContentSuffix:  "outro",
		AddTags:        []string{"trending", "tech-news"},
		SEOTitle:       "{title} - Digest",
		SEODescription: "Read: {title}",
	})

	if transformed.Title != "[X] Hello (Y)" {
		t.Fatalf("unexpected title: %q", transformed.Title)
	}
	if transformed.Content != "intro\n\nbody\n\noutro" {
		t.Fatalf("unexpected content: %q", transformed.Content)
	}
	if len(transformed.Tags) != 3 {
		t.Fatalf("expected deduplicated tags, got %v", transformed.Tags)
	}
	// SEO templates bind {title} to the original, untransformed title.
	if transformed.SEOTitle != "Hello - Digest" {
		t.Fatalf("unexpected seo title: %q", transformed.SEOTitle)
	}
	if transformed.SEODescription != "Read: Hello" {
		t.Fatalf("unexpected seo description: %q", transformed.SEODescription)
	}
}

func TestApplyTransformationsNilIsNoop(t *testing.T) {
	article := entities.Article{Title: "Hello", Content: "body", Tags: []string{"go"}}
	transformed := commands.ApplyTransformations(article, nil)
	if transformed.Title != "Hello" || transformed.Content != "body" {
		t.Fatalf("nil transformations must not change the article: %+v", transformed)
	}
	if transformed.SEOTitle != "" || transformed.SEODescription != "" {
		t.Fatalf("nil transformations must not set SEO fields")
	}
}

type fakeRuleScheduler struct {
	scheduled   map[string]string
	unscheduled []string
}

func (f *fakeRuleScheduler) ScheduleCustomRule(ruleID string, expression string) error {
	if f.scheduled == nil {
		f.scheduled = make(map[string]string)
	}
	f.scheduled[ruleID] = expression
	return nil
}

func (f *fakeRuleScheduler) UnscheduleRule(ruleID string) {
	f.unscheduled = append(f.unscheduled, ruleID)
}

func TestRuleLifecycleKeepsScheduleInStep(t *testing.T) {
	module := distributionservice.NewInMemoryModule(memory.Seed{}, nil)
	fixedClock(module.Store)

	fake := &fakeRuleScheduler{}
	module.Commands.Scheduler = fake
	module.Commands.IntervalToCron = func(seconds int) string {
		return fmt.Sprintf("interval:%d", seconds)
	}

	created, err := module.Commands.CreateRule(context.Background(), commands.CreateRuleCommand{
		Name:             "tech-sync",
		SourceCategories: []string{"Tech"},
		TargetSites:      []string{"a.example.com"},
		SyncInterval:     3600,
		IsActive:         true,
	})
	if err != nil {
		t.Fatalf("create rule failed: %v", err)
	}
	if got := fake.scheduled[created.ID]; got != "interval:3600" {
		t.Fatalf("expected schedule registration on create, got %q", got)
	}

	if _, err := module.Commands.UpdateRule(context.Background(), commands.UpdateRuleCommand{
		RuleID:       created.ID,
		SyncInterval: 7200,
		IsActive:     true,
	}); err != nil {
		t.Fatalf("update rule failed: %v", err)
	}
	if got := fake.scheduled[created.ID]; got != "interval:7200" {
		t.Fatalf("expected re-registration on interval change, got %q", got)
	}
	if len(fake.unscheduled) != 0 {
		t.Fatalf("active rule must stay scheduled, got unschedules %v", fake.unscheduled)
	}

	if _, err := module.Commands.UpdateRule(context.Background(), commands.UpdateRuleCommand{
		RuleID:   created.ID,
		IsActive: false,
	}); err != nil {
		t.Fatalf("deactivate rule failed: %v", err)
	}
	if len(fake.unscheduled) != 1 || fake.unscheduled[0] != created.ID {
		t.Fatalf("deactivation must unschedule, got %v", fake.unscheduled)
	}

	if err := module.Commands.DeleteRule(context.Background(), created.ID); err != nil {
		t.Fatalf("delete rule failed: %v", err)
	}
	if len(fake.unscheduled) != 2 || fake.unscheduled[1] != created.ID {
		t.Fatalf("delete must unschedule, got %v", fake.unscheduled)
	}
}

func TestCreateInactiveRuleIsNotScheduled(t *testing.T) {
	module := distributionservice.NewInMemoryModule(memory.Seed{}, nil)
	fixedClock(module.Store)

	fake := &fakeRuleScheduler{}
	module.Commands.Scheduler = fake
	module.Commands.IntervalToCron = func(seconds int) string {
		return fmt.Sprintf("interval:%d", seconds)
	}

	created, err := module.Commands.CreateRule(context.Background(), commands.CreateRuleCommand{
		Name:             "dormant-sync",
		SourceCategories: []string{"Tech"},
		TargetSites:      []string{"a.example.com"},
		SyncInterval:     3600,
	})
	if err != nil {
		t.Fatalf("create rule failed: %v", err)
	}
	if _, ok := fake.scheduled[created.ID]; ok {
		t.Fatalf("inactive rule must not be scheduled")
	}
}

func TestTriggerScheduledRuleClaimsBeforeRunning(t *testing.T) {
	module := distributionservice.NewInMemoryModule(seedTwoArticlesTwoSites(), nil)
	fixedClock(module.Store)

	if err := module.Commands.TriggerScheduledRule(context.Background(), "rule-1"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}

	rule, err := module.Queries.GetRule(context.Background(), "rule-1")
	if err != nil {
		t.Fatalf("get rule failed: %v", err)
	}
	if rule.Statistics.TotalRuns != 1 {
		t.Fatalf("expected one completed run, got %+v", rule.Statistics)
	}
	if rule.LastRun == nil {
		t.Fatalf("claim must stamp lastRun")
	}
}

func TestTriggerScheduledRuleDropsFireWhileRunning(t *testing.T) {
	seed := seedTwoArticlesTwoSites()
	seed.Rules[0].LastRunStatus = entities.RuleRunStatusRunning
	module := distributionservice.NewInMemoryModule(seed, nil)
	fixedClock(module.Store)

	if err := module.Commands.TriggerScheduledRule(context.Background(), "rule-1"); err != nil {
		t.Fatalf("lost claim must not raise: %v", err)
	}

	records, err := module.Queries.RecordsByArticle(context.Background(), "article-1")
	if err != nil {
		t.Fatalf("records by article failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("no pass may run while the rule is claimed, got %d records", len(records))
	}
	rule, err := module.Queries.GetRule(context.Background(), "rule-1")
	if err != nil {
		t.Fatalf("get rule failed: %v", err)
	}
	if rule.Statistics.TotalRuns != 0 {
		t.Fatalf("statistics must be untouched, got %+v", rule.Statistics)
	}
}

func TestTriggerScheduledRuleRejectsInactiveRule(t *testing.T) {
	seed := seedTwoArticlesTwoSites()
	seed.Rules[0].IsActive = false
	module := distributionservice.NewInMemoryModule(seed, nil)

	err := module.Commands.TriggerScheduledRule(context.Background(), "rule-1")
	if !errors.Is(err, domainerrors.ErrRuleNotFoundOrInactive) {
		t.Fatalf("expected inactive rejection, got %v", err)
	}
	if err := module.Commands.TriggerScheduledRule(context.Background(), "missing"); !errors.Is(err, domainerrors.ErrRuleNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestApplyTransformationsSubstitutesFirstPlaceholderOnly(t *testing.T) {
	article := entities.Article{Title: "Hello", Content: "body"}
	transformed := commands.ApplyTransformations(article, &entities.RuleTransformations{
		SEOTitle:       "{title} | {title}",
		SEODescription: "{title} and {title} again",
	})
	if transformed.SEOTitle != "Hello | {title}" {
		t.Fatalf("unexpected seo title: %q", transformed.SEOTitle)
	}
	if transformed.SEODescription != "Hello and {title} again" {
		t.Fatalf("unexpected seo description: %q", transformed.SEODescription)
	}
}
