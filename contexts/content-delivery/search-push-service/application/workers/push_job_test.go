package workers_test

import (
	"context"
	"testing"
	"time"

	"quill/contexts/content-delivery/search-push-service/adapters/memory"
	"quill/contexts/content-delivery/search-push-service/application/commands"
	"quill/contexts/content-delivery/search-push-service/application/workers"
	"quill/contexts/content-delivery/search-push-service/domain/entities"
)

type recordingClient struct {
	batches [][]string
}

func (c *recordingClient) Push(_ context.Context, urls []string) (entities.PushResult, error) {
	c.batches = append(c.batches, urls)
	return entities.PushResult{OK: true, Status: 200}, nil
}

func TestPushJobSubmitsRecentWindow(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	source := memory.NewSource([]entities.PublishedArticle{
		{ID: "1", Slug: "fresh", SiteDomain: "blog.example.com", PublishedAt: now.Add(-2 * time.Hour)},
		{ID: "2", Slug: "stale", SiteDomain: "blog.example.com", PublishedAt: now.Add(-30 * time.Hour)},
	})
	source.NowFunc = func() time.Time { return now }

	client := &recordingClient{}
	job := workers.PushJob{
		Commands: commands.UseCase{
			Articles:   source,
			Client:     client,
			Clock:      source,
			SiteDomain: "blog.example.com",
		},
	}

	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("push job failed: %v", err)
	}
	if len(client.batches) != 1 {
		t.Fatalf("expected one batch, got %d", len(client.batches))
	}
	if len(client.batches[0]) != 1 || client.batches[0][0] != "https://blog.example.com/fresh" {
		t.Fatalf("unexpected batch: %v", client.batches[0])
	}
}

func TestPushJobSkipsEmptyWindow(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	source := memory.NewSource(nil)
	source.NowFunc = func() time.Time { return now }

	client := &recordingClient{}
	job := workers.PushJob{
		Commands: commands.UseCase{
			Articles:   source,
			Client:     client,
			Clock:      source,
			SiteDomain: "blog.example.com",
		},
	}

	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("push job failed: %v", err)
	}
	if len(client.batches) != 0 {
		t.Fatalf("empty window must not reach the client, got %v", client.batches)
	}
}
