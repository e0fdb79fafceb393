package memory

import (
	"context"
	"sync"

	"quill/contexts/content-delivery/distribution-service/domain/entities"
	"quill/contexts/content-delivery/distribution-service/ports"
)

// SyncRunner executes submitted tasks inline, which keeps detached work
// deterministic in tests.
type SyncRunner struct {
	mu        sync.Mutex
	submitted []string
}

func (r *SyncRunner) Submit(name string, fn func(context.Context)) ports.TaskHandle {
	r.mu.Lock()
	r.submitted = append(r.submitted, name)
	r.mu.Unlock()

	fn(context.Background())
	done := make(chan struct{})
	close(done)
	return syncHandle{done: done}
}

// Submitted returns the task names seen so far, in submission order.
func (r *SyncRunner) Submitted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.submitted...)
}

type syncHandle struct {
	done chan struct{}
}

func (h syncHandle) Done() <-chan struct{} {
	return h.done
}

// StubPublisher records pushes and fails for domains listed in FailFor.
type StubPublisher struct {
	mu      sync.Mutex
	FailFor map[string]error

	pushes []PushedArticle
}

type PushedArticle struct {
	Article entities.TransformedArticle
	Site    entities.Site
}

func (p *StubPublisher) PublishToSite(_ context.Context, article entities.TransformedArticle, site entities.Site) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err, ok := p.FailFor[site.Domain]; ok {
		return err
	}
	p.pushes = append(p.pushes, PushedArticle{Article: article, Site: site})
	return nil
}

func (p *StubPublisher) Pushes() []PushedArticle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PushedArticle(nil), p.pushes...)
}

var _ ports.TaskRunner = (*SyncRunner)(nil)
var _ ports.SitePublisher = (*StubPublisher)(nil)
