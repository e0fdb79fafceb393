package entities

import "time"

// PushResult is the outcome of one URL submission batch.
type PushResult struct {
	OK       bool
	Status   int
	Response string
}

// PublishedArticle is the slice of article state the push service reads.
type PublishedArticle struct {
	ID          string
	Slug        string
	SiteDomain  string
	PublishedAt time.Time
}
