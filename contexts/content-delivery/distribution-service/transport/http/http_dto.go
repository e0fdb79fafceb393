package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RuleConditionsDTO struct {
	PublishedAfter string   `json:"published_after,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Status         string   `json:"status,omitempty"`
}

type RuleTransformationsDTO struct {
	TitlePrefix    string   `json:"title_prefix,omitempty"`
	TitleSuffix    string   `json:"title_suffix,omitempty"`
	ContentPrefix  string   `json:"content_prefix,omitempty"`
	ContentSuffix  string   `json:"content_suffix,omitempty"`
	AddTags        []string `json:"add_tags,omitempty"`
	SEOTitle       string   `json:"seo_title,omitempty"`
	SEODescription string   `json:"seo_description,omitempty"`
}

type RuleStatisticsDTO struct {
	TotalRuns                int    `json:"total_runs"`
	SuccessfulRuns           int    `json:"successful_runs"`
	FailedRuns               int    `json:"failed_runs"`
	LastSuccessfulRun        string `json:"last_successful_run,omitempty"`
	TotalArticlesDistributed int    `json:"total_articles_distributed"`
}

type CreateRuleRequest struct {
	Name             string                  `json:"name"`
	Description      string                  `json:"description,omitempty"`
	SourceCategories []string                `json:"source_categories"`
	TargetSites      []string                `json:"target_sites"`
	Conditions       *RuleConditionsDTO      `json:"conditions,omitempty"`
	Transformations  *RuleTransformationsDTO `json:"transformations,omitempty"`
	SyncInterval     int                     `json:"sync_interval"`
	IsActive         *bool                   `json:"is_active,omitempty"`
	Priority         int                     `json:"priority,omitempty"`
}

type UpdateRuleRequest struct {
	Name             string                  `json:"name"`
	Description      string                  `json:"description,omitempty"`
	SourceCategories []string                `json:"source_categories"`
	TargetSites      []string                `json:"target_sites"`
	Conditions       *RuleConditionsDTO      `json:"conditions,omitempty"`
	Transformations  *RuleTransformationsDTO `json:"transformations,omitempty"`
	SyncInterval     int                     `json:"sync_interval"`
	IsActive         *bool                   `json:"is_active,omitempty"`
	Priority         int                     `json:"priority,omitempty"`
}

type DistributionRuleDTO struct {
	ID               string                  `json:"id"`
	Name             string                  `json:"name"`
	Description      string                  `json:"description,omitempty"`
	SourceCategories []string                `json:"source_categories"`
	TargetSites      []string                `json:"target_sites"`
	Conditions       *RuleConditionsDTO      `json:"conditions,omitempty"`
	Transformations  *RuleTransformationsDTO `json:"transformations,omitempty"`
	SyncInterval     int                     `json:"sync_interval"`
	IsActive         bool                    `json:"is_active"`
	Priority         int                     `json:"priority"`
	LastRun          string                  `json:"last_run,omitempty"`
	LastRunStatus    string                  `json:"last_run_status,omitempty"`
	ErrorMessage     string                  `json:"error_message,omitempty"`
	Statistics       RuleStatisticsDTO       `json:"statistics"`
	CreatedAt        string                  `json:"created_at"`
	UpdatedAt        string                  `json:"updated_at"`
}

type RuleStatusResponse struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	IsActive      bool              `json:"is_active"`
	LastRun       string            `json:"last_run,omitempty"`
	LastRunStatus string            `json:"last_run_status,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	Statistics    RuleStatisticsDTO `json:"statistics"`
}

type RunRuleResponse struct {
	RuleID  string `json:"rule_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type DistributionRecordDTO struct {
	ID            string `json:"id"`
	ArticleID     string `json:"article_id"`
	RuleID        string `json:"rule_id,omitempty"`
	TargetSite    string `json:"target_site"`
	Status        string `json:"status"`
	ErrorMessage  string `json:"error_message,omitempty"`
	DistributedAt string `json:"distributed_at,omitempty"`
	RetryCount    int    `json:"retry_count"`
	LastRetryAt   string `json:"last_retry_at,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type RetryRecordResponse struct {
	RecordID string `json:"record_id"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

type StatsResponse struct {
	Total       int64   `json:"total"`
	Successful  int64   `json:"successful"`
	Failed      int64   `json:"failed"`
	Pending     int64   `json:"pending"`
	SuccessRate float64 `json:"success_rate"`
}
