package entities

import "time"

type RuleRunStatus string

const (
	RuleRunStatusPending RuleRunStatus = "pending"
	RuleRunStatusRunning RuleRunStatus = "running"
	RuleRunStatusSuccess RuleRunStatus = "success"
	RuleRunStatusError   RuleRunStatus = "error"
)

type RecordStatus string

const (
	RecordStatusPending   RecordStatus = "pending"
	RecordStatusSuccess   RecordStatus = "success"
	RecordStatusFailed    RecordStatus = "failed"
	RecordStatusCancelled RecordStatus = "cancelled"
	// RecordStatusAbandoned marks a record whose retry budget is exhausted.
	// Terminal: the retry sweep never picks it up again, only a manual retry can.
	RecordStatusAbandoned RecordStatus = "abandoned"
)

// RuleConditions narrows the article selection of a rule beyond categories.
type RuleConditions struct {
	PublishedAfter *time.Time
	Tags           []string
	Status         string
}

// RuleTransformations are the structural edits applied to an article before
// it is distributed. SEOTitle and SEODescription are templates where the
// literal token {title} is replaced with the original article title.
type RuleTransformations struct {
	TitlePrefix    string
	TitleSuffix    string
	ContentPrefix  string
	ContentSuffix  string
	AddTags        []string
	SEOTitle       string
	SEODescription string
}

type RuleStatistics struct {
	TotalRuns                int
	SuccessfulRuns           int
	FailedRuns               int
	LastSuccessfulRun        *time.Time
	TotalArticlesDistributed int
}

type DistributionRule struct {
	ID               string
	Name             string
	Description      string
	SourceCategories []string
	TargetSites      []string
	Conditions       *RuleConditions
	Transformations  *RuleTransformations
	SyncInterval     int // seconds between scheduled runs
	IsActive         bool
	Priority         int
	LastRun          *time.Time
	LastRunStatus    RuleRunStatus
	ErrorMessage     string
	Statistics       RuleStatistics
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type DistributionRecord struct {
	ID              string
	ArticleID       string
	RuleID          string // empty for manually created records
	TargetSite      string
	Status          RecordStatus
	ErrorMessage    string
	TransformedData []byte
	DistributedAt   *time.Time
	RetryCount      int
	LastRetryAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Article is owned by the CMS content store; this module reads it only.
type Article struct {
	ID          string
	Title       string
	Content     string
	Summary     string
	Slug        string
	Category    string
	Tags        []string
	SiteDomain  string
	Status      string
	PublishedAt *time.Time
}

// TransformedArticle is the payload shape actually sent to a target site.
type TransformedArticle struct {
	Article
	SEOTitle       string
	SEODescription string
}

type Site struct {
	ID     string
	Domain string
	Name   string
}

// RunResult summarizes one distribution pass.
// Total counts source articles considered, Distributed counts per-site pushes.
type RunResult struct {
	Distributed int
	Failed      int
	Total       int
}

type RetryResult struct {
	Processed  int
	Successful int
	Failed     int
}
