package ports

import (
	"context"
	"time"

	"quill/contexts/content-delivery/distribution-service/domain/entities"
	eventsv1 "quill/internal/shared/events"
)

type RuleRepository interface {
	CreateRule(ctx context.Context, rule entities.DistributionRule) error
	UpdateRule(ctx context.Context, rule entities.DistributionRule) error
	DeleteRule(ctx context.Context, ruleID string) error
	GetRule(ctx context.Context, ruleID string) (entities.DistributionRule, error)
	GetRuleByName(ctx context.Context, name string) (entities.DistributionRule, error)
	ListRules(ctx context.Context) ([]entities.DistributionRule, error)
	ListActiveRules(ctx context.Context) ([]entities.DistributionRule, error)

	// MarkRuleRunning is a compare-and-set: it transitions the rule to
	// running and stamps lastRun only when the rule is not already running.
	// Returns ErrRuleAlreadyRunning when the guard loses.
	MarkRuleRunning(ctx context.Context, ruleID string, startedAt time.Time) error

	// CompleteRuleRun atomically writes the post-run state: status,
	// statistics, lastRun and errorMessage in one row update.
	CompleteRuleRun(ctx context.Context, rule entities.DistributionRule) error
}

type RecordFilter struct {
	TargetSite string
	RuleID     string
	Status     entities.RecordStatus
	Limit      int
}

type RecordRepository interface {
	CreateRecord(ctx context.Context, record entities.DistributionRecord) error
	UpdateRecord(ctx context.Context, record entities.DistributionRecord) error
	GetRecord(ctx context.Context, recordID string) (entities.DistributionRecord, error)
	ListRecordsByArticle(ctx context.Context, articleID string) ([]entities.DistributionRecord, error)
	ListRecordsBySite(ctx context.Context, targetSite string, limit int) ([]entities.DistributionRecord, error)
	ListFailedRecords(ctx context.Context, maxRetries int) ([]entities.DistributionRecord, error)

	// ListDistributedSites returns the subset of targetSites that already
	// hold a success or pending record for the article.
	ListDistributedSites(ctx context.Context, articleID string, targetSites []string) ([]string, error)

	// DeleteRecordsBefore removes records in any of the given terminal
	// statuses created before cutoff and reports how many were deleted.
	DeleteRecordsBefore(ctx context.Context, cutoff time.Time, statuses []entities.RecordStatus) (int, error)

	CountRecords(ctx context.Context, filter RecordFilter) (int64, error)
}

// ArticleFilter mirrors the selection criteria a rule can express.
// Zero values mean "no constraint".
type ArticleFilter struct {
	Categories     []string
	Tags           []string
	Status         string
	PublishedAfter *time.Time
	PublishedSince *time.Time
	SiteDomain     string
	Limit          int
}

type ArticleDirectory interface {
	ListArticles(ctx context.Context, filter ArticleFilter) ([]entities.Article, error)
}

type SiteDirectory interface {
	FindSiteByDomain(ctx context.Context, domain string) (entities.Site, error)
}

// SitePublisher performs the actual cross-site content push. A nil publisher
// keeps distribution as pure bookkeeping, which is the current extension
// point for real delivery.
type SitePublisher interface {
	PublishToSite(ctx context.Context, article entities.TransformedArticle, site entities.Site) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// TaskHandle lets a caller optionally wait for detached work to finish.
type TaskHandle interface {
	Done() <-chan struct{}
}

// TaskRunner makes detached execution an explicit, observable submission
// instead of an implicit goroutine spawn.
type TaskRunner interface {
	Submit(name string, fn func(context.Context)) TaskHandle
}

// RuleScheduler lets the engine keep per-rule cron jobs in step with rule
// configuration changes. Implemented by the platform scheduler.
type RuleScheduler interface {
	ScheduleCustomRule(ruleID string, expression string) error
	UnscheduleRule(ruleID string)
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = eventsv1.Envelope

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
