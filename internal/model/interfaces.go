package model

import "context"

// Scraper fetches postings from one board. Implementations never panic the
// pipeline: a hard block returns the postings collected so far together
// with a BlockedError.
type Scraper interface {
	Scrape(ctx context.Context, in *ScraperInput) (*JobResponse, error)
}

// JobStore is the canonical job collection keyed by the id fingerprint.
// InsertManyIfNotFound performs one bulk idempotent upsert: for a given id
// exactly one concurrent caller observes it in newJobs, every other caller
// sees it in seen. Documents are frozen at first write.
type JobStore interface {
	InsertManyIfNotFound(ctx context.Context, jobs []*JobPost) (seen, newJobs []*JobPost, err error)
	FindByID(ctx context.Context, id string) (*JobPost, error)
	Update(ctx context.Context, job *JobPost) (bool, error)
	Close(ctx context.Context) error
}
