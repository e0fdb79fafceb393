package commands_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quill/contexts/content-delivery/search-push-service/adapters/memory"
	"quill/contexts/content-delivery/search-push-service/application/commands"
	"quill/contexts/content-delivery/search-push-service/domain/entities"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type stubClient struct {
	pushed [][]string
	result entities.PushResult
	err    error
}

func (c *stubClient) Push(_ context.Context, urls []string) (entities.PushResult, error) {
	c.pushed = append(c.pushed, urls)
	return c.result, c.err
}

func newSource(articles ...entities.PublishedArticle) *memory.Source {
	source := memory.NewSource(articles)
	source.NowFunc = func() time.Time { return testNow }
	return source
}

func TestCollectRecentArticleURLs(t *testing.T) {
	source := newSource(
		entities.PublishedArticle{ID: "1", Slug: "fresh-post", SiteDomain: "blog.example.com", PublishedAt: testNow.Add(-2 * time.Hour)},
		entities.PublishedArticle{ID: "2", Slug: "/leading-slash", SiteDomain: "blog.example.com", PublishedAt: testNow.Add(-3 * time.Hour)},
		entities.PublishedArticle{ID: "3", Slug: "fresh-post", SiteDomain: "blog.example.com", PublishedAt: testNow.Add(-4 * time.Hour)},
		entities.PublishedArticle{ID: "4", Slug: "other-site", SiteDomain: "other.example.com", PublishedAt: testNow.Add(-1 * time.Hour)},
		entities.PublishedArticle{ID: "5", Slug: "stale-post", SiteDomain: "blog.example.com", PublishedAt: testNow.Add(-48 * time.Hour)},
	)

	uc := commands.UseCase{
		Articles:   source,
		Clock:      source,
		SiteDomain: "Blog.Example.Com",
	}
	urls, err := uc.CollectRecentArticleURLs(context.Background(), 24)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	want := []string{
		"https://blog.example.com/fresh-post",
		"https://blog.example.com/leading-slash",
	}
	if len(urls) != len(want) {
		t.Fatalf("unexpected urls: %v", urls)
	}
	for i, url := range want {
		if urls[i] != url {
			t.Fatalf("unexpected urls: %v", urls)
		}
	}
}

func TestCollectRecentArticleURLsDefaultsWindow(t *testing.T) {
	source := newSource(
		entities.PublishedArticle{ID: "1", Slug: "inside", SiteDomain: "blog.example.com", PublishedAt: testNow.Add(-23 * time.Hour)},
		entities.PublishedArticle{ID: "2", Slug: "outside", SiteDomain: "blog.example.com", PublishedAt: testNow.Add(-25 * time.Hour)},
	)
	uc := commands.UseCase{Articles: source, Clock: source, SiteDomain: "blog.example.com", Protocol: "http"}

	urls, err := uc.CollectRecentArticleURLs(context.Background(), 0)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(urls) != 1 || urls[0] != "http://blog.example.com/inside" {
		t.Fatalf("unexpected urls: %v", urls)
	}
}

func TestPushURLsEmptyBatchIsNoop(t *testing.T) {
	client := &stubClient{}
	uc := commands.UseCase{Client: client}

	result, err := uc.PushURLs(context.Background(), nil)
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if !result.OK || result.Status != 200 {
		t.Fatalf("empty batch must succeed, got %+v", result)
	}
	if len(client.pushed) != 0 {
		t.Fatalf("empty batch must not reach the client")
	}
}

func TestPushURLsReportsRejectionWithoutError(t *testing.T) {
	client := &stubClient{result: entities.PushResult{OK: false, Status: 401, Response: "token is not valid"}}
	uc := commands.UseCase{Client: client}

	result, err := uc.PushURLs(context.Background(), []string{"https://blog.example.com/a"})
	if err != nil {
		t.Fatalf("rejection must not raise: %v", err)
	}
	if result.OK || result.Status != 401 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPushURLsPropagatesClientError(t *testing.T) {
	wantErr := errors.New("connection refused")
	client := &stubClient{err: wantErr}
	uc := commands.UseCase{Client: client}

	_, err := uc.PushURLs(context.Background(), []string{"https://blog.example.com/a"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected client error, got %v", err)
	}
}
