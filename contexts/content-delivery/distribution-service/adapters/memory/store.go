package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"quill/contexts/content-delivery/distribution-service/domain/entities"
	domainerrors "quill/contexts/content-delivery/distribution-service/domain/errors"
	"quill/contexts/content-delivery/distribution-service/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
	PublishedAt  *time.Time
}

// Seed carries optional initial state for tests and local boot.
type Seed struct {
	Rules    []entities.DistributionRule
	Records  []entities.DistributionRecord
	Articles []entities.Article
	Sites    []entities.Site
}

type Store struct {
	mu sync.RWMutex

	rules    map[string]entities.DistributionRule
	records  map[string]entities.DistributionRecord
	articles map[string]entities.Article
	sites    map[string]entities.Site
	outbox   map[string]outboxRecord

	// NowFunc overrides the clock for deterministic tests.
	NowFunc func() time.Time
}

func NewStore(seed Seed) *Store {
	s := &Store{
		rules:    make(map[string]entities.DistributionRule, len(seed.Rules)),
		records:  make(map[string]entities.DistributionRecord, len(seed.Records)),
		articles: make(map[string]entities.Article, len(seed.Articles)),
		sites:    make(map[string]entities.Site, len(seed.Sites)),
		outbox:   make(map[string]outboxRecord),
	}
	for _, rule := range seed.Rules {
		s.rules[rule.ID] = rule
	}
	for _, record := range seed.Records {
		s.records[record.ID] = record
	}
	for _, article := range seed.Articles {
		s.articles[article.ID] = article
	}
	for _, site := range seed.Sites {
		s.sites[strings.ToLower(site.Domain)] = site
	}
	return s
}

func (s *Store) CreateRule(_ context.Context, rule entities.DistributionRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; exists {
		return domainerrors.ErrRuleNameTaken
	}
	for _, existing := range s.rules {
		if existing.Name == rule.Name {
			return domainerrors.ErrRuleNameTaken
		}
	}
	s.rules[rule.ID] = rule
	return nil
}

func (s *Store) UpdateRule(_ context.Context, rule entities.DistributionRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; !exists {
		return domainerrors.ErrRuleNotFound
	}
	s.rules[rule.ID] = rule
	return nil
}

func (s *Store) DeleteRule(_ context.Context, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[ruleID]; !exists {
		return domainerrors.ErrRuleNotFound
	}
	delete(s.rules, ruleID)
	return nil
}

func (s *Store) GetRule(_ context.Context, ruleID string) (entities.DistributionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.rules[strings.TrimSpace(ruleID)]
	if !exists {
		return entities.DistributionRule{}, domainerrors.ErrRuleNotFound
	}
	return rule, nil
}

func (s *Store) GetRuleByName(_ context.Context, name string) (entities.DistributionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rule := range s.rules {
		if rule.Name == strings.TrimSpace(name) {
			return rule, nil
		}
	}
	return entities.DistributionRule{}, domainerrors.ErrRuleNotFound
}

func (s *Store) ListRules(_ context.Context) ([]entities.DistributionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]entities.DistributionRule, 0, len(s.rules))
	for _, rule := range s.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].Name < rules[j].Name
	})
	return rules, nil
}

func (s *Store) ListActiveRules(ctx context.Context) ([]entities.DistributionRule, error) {
	rules, err := s.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]entities.DistributionRule, 0, len(rules))
	for _, rule := range rules {
		if rule.IsActive {
			active = append(active, rule)
		}
	}
	return active, nil
}

func (s *Store) MarkRuleRunning(_ context.Context, ruleID string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, exists := s.rules[strings.TrimSpace(ruleID)]
	if !exists {
		return domainerrors.ErrRuleNotFound
	}
	if rule.LastRunStatus == entities.RuleRunStatusRunning {
		return domainerrors.ErrRuleAlreadyRunning
	}
	started := startedAt.UTC()
	rule.LastRunStatus = entities.RuleRunStatusRunning
	rule.LastRun = &started
	rule.UpdatedAt = started
	s.rules[rule.ID] = rule
	return nil
}

func (s *Store) CompleteRuleRun(_ context.Context, rule entities.DistributionRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; !exists {
		return domainerrors.ErrRuleNotFound
	}
	s.rules[rule.ID] = rule
	return nil
}

func (s *Store) CreateRecord(_ context.Context, record entities.DistributionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return domainerrors.ErrRecordExists
	}
	s.records[record.ID] = record
	return nil
}

func (s *Store) UpdateRecord(_ context.Context, record entities.DistributionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; !exists {
		return domainerrors.ErrRecordNotFound
	}
	s.records[record.ID] = record
	return nil
}

func (s *Store) GetRecord(_ context.Context, recordID string) (entities.DistributionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[strings.TrimSpace(recordID)]
	if !exists {
		return entities.DistributionRecord{}, domainerrors.ErrRecordNotFound
	}
	return record, nil
}

func (s *Store) ListRecordsByArticle(_ context.Context, articleID string) ([]entities.DistributionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]entities.DistributionRecord, 0)
	for _, record := range s.records {
		if record.ArticleID == strings.TrimSpace(articleID) {
			records = append(records, record)
		}
	}
	sortRecordsNewestFirst(records)
	return records, nil
}

func (s *Store) ListRecordsBySite(_ context.Context, targetSite string, limit int) ([]entities.DistributionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	records := make([]entities.DistributionRecord, 0)
	for _, record := range s.records {
		if record.TargetSite == strings.TrimSpace(targetSite) {
			records = append(records, record)
		}
	}
	sortRecordsNewestFirst(records)
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *Store) ListFailedRecords(_ context.Context, maxRetries int) ([]entities.DistributionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]entities.DistributionRecord, 0)
	for _, record := range s.records {
		if record.Status == entities.RecordStatusFailed && record.RetryCount < maxRetries {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (s *Store) ListDistributedSites(_ context.Context, articleID string, targetSites []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(targetSites))
	for _, site := range targetSites {
		wanted[site] = struct{}{}
	}
	coveredSet := make(map[string]struct{})
	for _, record := range s.records {
		if record.ArticleID != strings.TrimSpace(articleID) {
			continue
		}
		if record.Status != entities.RecordStatusSuccess && record.Status != entities.RecordStatusPending {
			continue
		}
		if _, ok := wanted[record.TargetSite]; ok {
			coveredSet[record.TargetSite] = struct{}{}
		}
	}
	// Preserve the rule's site ordering.
	covered := make([]string, 0, len(coveredSet))
	for _, site := range targetSites {
		if _, ok := coveredSet[site]; ok {
			covered = append(covered, site)
		}
	}
	return covered, nil
}

func (s *Store) DeleteRecordsBefore(_ context.Context, cutoff time.Time, statuses []entities.RecordStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	terminal := make(map[entities.RecordStatus]struct{}, len(statuses))
	for _, status := range statuses {
		terminal[status] = struct{}{}
	}
	deleted := 0
	for id, record := range s.records {
		if _, ok := terminal[record.Status]; !ok {
			continue
		}
		if record.CreatedAt.Before(cutoff) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) CountRecords(_ context.Context, filter ports.RecordFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if filter.TargetSite != "" && record.TargetSite != filter.TargetSite {
			continue
		}
		if filter.RuleID != "" && record.RuleID != filter.RuleID {
			continue
		}
		if filter.Status != "" && record.Status != filter.Status {
			continue
		}
		count++
	}
	return count, nil
}

func (s *Store) ListArticles(_ context.Context, filter ports.ArticleFilter) ([]entities.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make(map[string]struct{}, len(filter.Categories))
	for _, category := range filter.Categories {
		categories[category] = struct{}{}
	}
	requiredTags := append([]string(nil), filter.Tags...)

	articles := make([]entities.Article, 0)
	for _, article := range s.articles {
		if len(categories) > 0 {
			if _, ok := categories[article.Category]; !ok {
				continue
			}
		}
		if filter.Status != "" && article.Status != filter.Status {
			continue
		}
		if filter.SiteDomain != "" && !strings.EqualFold(article.SiteDomain, filter.SiteDomain) {
			continue
		}
		if filter.PublishedAfter != nil {
			if article.PublishedAt == nil || article.PublishedAt.Before(*filter.PublishedAfter) {
				continue
			}
		}
		if filter.PublishedSince != nil {
			if article.PublishedAt == nil || article.PublishedAt.Before(*filter.PublishedSince) {
				continue
			}
		}
		if len(requiredTags) > 0 && !tagsIntersect(article.Tags, requiredTags) {
			continue
		}
		articles = append(articles, article)
	}
	sort.Slice(articles, func(i, j int) bool {
		left, right := articles[i].PublishedAt, articles[j].PublishedAt
		if left == nil || right == nil {
			return articles[i].ID < articles[j].ID
		}
		return left.After(*right)
	})
	if filter.Limit > 0 && len(articles) > filter.Limit {
		articles = articles[:filter.Limit]
	}
	return articles, nil
}

func (s *Store) FindSiteByDomain(_ context.Context, domain string) (entities.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	site, exists := s.sites[strings.ToLower(strings.TrimSpace(domain))]
	if !exists {
		return entities.Site{}, domainerrors.ErrTargetSiteNotFound
	}
	return site, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if _, exists := s.outbox[outboxID]; exists {
		return nil
	}
	s.outbox[outboxID] = outboxRecord{
		OutboxID:     outboxID,
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.PublishedAt == nil {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	messages := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return messages, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrInvalidRecordInput
	}
	timestamp := publishedAt.UTC()
	row.PublishedAt = &timestamp
	s.outbox[outboxID] = row
	return nil
}

func (s *Store) Now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func sortRecordsNewestFirst(records []entities.DistributionRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}

func tagsIntersect(articleTags []string, requiredTags []string) bool {
	tagSet := make(map[string]struct{}, len(articleTags))
	for _, tag := range articleTags {
		tagSet[tag] = struct{}{}
	}
	for _, tag := range requiredTags {
		if _, ok := tagSet[tag]; ok {
			return true
		}
	}
	return false
}

var _ ports.RuleRepository = (*Store)(nil)
var _ ports.RecordRepository = (*Store)(nil)
var _ ports.ArticleDirectory = (*Store)(nil)
var _ ports.SiteDirectory = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
