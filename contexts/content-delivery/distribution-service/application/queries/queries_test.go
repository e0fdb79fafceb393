package queries_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"quill/contexts/content-delivery/distribution-service/adapters/memory"
	"quill/contexts/content-delivery/distribution-service/application/queries"
	"quill/contexts/content-delivery/distribution-service/domain/entities"
	domainerrors "quill/contexts/content-delivery/distribution-service/domain/errors"
)

func TestStatsArithmetic(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore(memory.Seed{
		Records: []entities.DistributionRecord{
			{ID: "r1", ArticleID: "a1", RuleID: "rule-1", TargetSite: "a.example.com", Status: entities.RecordStatusSuccess, CreatedAt: now},
			{ID: "r2", ArticleID: "a1", RuleID: "rule-1", TargetSite: "b.example.com", Status: entities.RecordStatusSuccess, CreatedAt: now},
			{ID: "r3", ArticleID: "a2", RuleID: "rule-1", TargetSite: "a.example.com", Status: entities.RecordStatusFailed, CreatedAt: now},
			{ID: "r4", ArticleID: "a3", RuleID: "rule-2", TargetSite: "a.example.com", Status: entities.RecordStatusPending, CreatedAt: now},
		},
	})
	uc := queries.UseCase{Rules: store, Records: store}

	stats, err := uc.Stats(context.Background(), "", "")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 4 || stats.Successful != 2 || stats.Failed != 1 || stats.Pending != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.SuccessRate != 50 {
		t.Fatalf("unexpected success rate: %v", stats.SuccessRate)
	}

	bySite, err := uc.Stats(context.Background(), "a.example.com", "")
	if err != nil {
		t.Fatalf("stats by site failed: %v", err)
	}
	if bySite.Total != 3 || bySite.Successful != 1 {
		t.Fatalf("unexpected site stats: %+v", bySite)
	}

	byRule, err := uc.Stats(context.Background(), "", "rule-2")
	if err != nil {
		t.Fatalf("stats by rule failed: %v", err)
	}
	if byRule.Total != 1 || byRule.Pending != 1 {
		t.Fatalf("unexpected rule stats: %+v", byRule)
	}
}

func TestStatsEmptyStore(t *testing.T) {
	store := memory.NewStore(memory.Seed{})
	uc := queries.UseCase{Rules: store, Records: store}

	stats, err := uc.Stats(context.Background(), "", "")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 0 || stats.SuccessRate != 0 {
		t.Fatalf("unexpected stats for empty store: %+v", stats)
	}
}

func TestGetRuleTrimsAndPropagatesNotFound(t *testing.T) {
	store := memory.NewStore(memory.Seed{
		Rules: []entities.DistributionRule{{ID: "rule-1", Name: "tech-sync"}},
	})
	uc := queries.UseCase{Rules: store, Records: store}

	rule, err := uc.GetRule(context.Background(), "  rule-1  ")
	if err != nil {
		t.Fatalf("get rule failed: %v", err)
	}
	if rule.Name != "tech-sync" {
		t.Fatalf("unexpected rule: %+v", rule)
	}

	if _, err := uc.GetRule(context.Background(), "missing"); !errors.Is(err, domainerrors.ErrRuleNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecordsBySiteDefaultsLimit(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	records := make([]entities.DistributionRecord, 0, 60)
	for i := 0; i < 60; i++ {
		records = append(records, entities.DistributionRecord{
			ID:         fmt.Sprintf("record-%02d", i),
			ArticleID:  "a1",
			TargetSite: "a.example.com",
			Status:     entities.RecordStatusSuccess,
			CreatedAt:  now.Add(time.Duration(i) * time.Minute),
		})
	}
	store := memory.NewStore(memory.Seed{Records: records})
	uc := queries.UseCase{Rules: store, Records: store}

	listed, err := uc.RecordsBySite(context.Background(), "a.example.com", 0)
	if err != nil {
		t.Fatalf("records by site failed: %v", err)
	}
	if len(listed) != 50 {
		t.Fatalf("expected default limit of 50, got %d", len(listed))
	}
}
