package workers_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	distributionservice "quill/contexts/content-delivery/distribution-service"
	"quill/contexts/content-delivery/distribution-service/adapters/memory"
	"quill/contexts/content-delivery/distribution-service/application/workers"
	"quill/contexts/content-delivery/distribution-service/domain/entities"
	"quill/contexts/content-delivery/distribution-service/ports"
)

type capturingPublisher struct {
	topics []string
	events []ports.EventEnvelope
}

func (p *capturingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func TestOutboxRelayPublishesAndAcknowledges(t *testing.T) {
	store := memory.NewStore(memory.Seed{})
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	store.NowFunc = func() time.Time { return now }

	envelope := ports.EventEnvelope{
		EventID:       "event-1",
		EventType:     "distribution.run_completed",
		OccurredAt:    now,
		SourceService: "distribution-service",
		SchemaVersion: 1,
		PartitionKey:  "rule-1",
		Data:          json.RawMessage(`{"rule_id":"rule-1"}`),
	}
	if err := store.AppendOutbox(context.Background(), envelope); err != nil {
		t.Fatalf("append outbox failed: %v", err)
	}
	// Appending the same event twice must not duplicate the row.
	if err := store.AppendOutbox(context.Background(), envelope); err != nil {
		t.Fatalf("idempotent append failed: %v", err)
	}

	publisher := &capturingPublisher{}
	relay := workers.OutboxRelay{Outbox: store, Publisher: publisher, Clock: store}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(publisher.events))
	}
	if publisher.topics[0] != "distribution.runs" {
		t.Fatalf("unexpected topic: %q", publisher.topics[0])
	}
	if publisher.events[0].EventType != "distribution.run_completed" {
		t.Fatalf("unexpected event type: %q", publisher.events[0].EventType)
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected acknowledged outbox, got %d pending", len(pending))
	}

	// A second cycle with nothing pending publishes nothing.
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("idle relay run failed: %v", err)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("idle cycle must not republish, got %d events", len(publisher.events))
	}
}

func TestRunCompletionFlowsThroughOutbox(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	published := now.Add(-time.Hour)
	module := distributionservice.NewInMemoryModule(memory.Seed{
		Rules: []entities.DistributionRule{{
			ID:               "rule-1",
			Name:             "tech-sync",
			SourceCategories: []string{"Tech"},
			TargetSites:      []string{"a.example.com"},
			SyncInterval:     3600,
			IsActive:         true,
			LastRunStatus:    entities.RuleRunStatusPending,
		}},
		Articles: []entities.Article{{
			ID:          "article-1",
			Title:       "Go generics",
			Slug:        "go-generics",
			Category:    "Tech",
			Status:      "published",
			PublishedAt: &published,
		}},
		Sites: []entities.Site{{ID: "site-a", Domain: "a.example.com", Name: "Site A"}},
	}, nil)
	module.Store.NowFunc = func() time.Time { return now }

	if _, err := module.Commands.ExecuteDistribution(context.Background(), "rule-1"); err != nil {
		t.Fatalf("execute distribution failed: %v", err)
	}

	publisher := &capturingPublisher{}
	relay := workers.OutboxRelay{Outbox: module.Store, Publisher: publisher, Clock: module.Store}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}

	if len(publisher.events) != 1 {
		t.Fatalf("expected the run completion event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.EventType != "distribution.run_completed" {
		t.Fatalf("unexpected event type: %q", event.EventType)
	}
	if event.PartitionKey != "rule-1" {
		t.Fatalf("unexpected partition key: %q", event.PartitionKey)
	}
	if event.SourceService != "distribution-service" {
		t.Fatalf("unexpected source service: %q", event.SourceService)
	}
}
