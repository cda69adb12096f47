// Package storage persists companies, postings, and crawl runs. Both
// implementations share one upsert contract: insert-if-absent keyed by the
// (company_id, external_id) pair, else update mutable fields and bump
// last_seen_at. first_seen_at is written once and never touched again, and a
// terminal analysis status is never downgraded to pending.
package storage

import (
	"context"
	"time"

	"github.com/aman12122/job-crawler/models"
)

type Store interface {
	// Companies
	UpsertCompany(ctx context.Context, c *models.Company) error
	GetCompany(ctx context.Context, id int64) (*models.Company, error)
	ListActiveCompanies(ctx context.Context) ([]models.Company, error)
	UpdateCompanyCrawlState(ctx context.Context, id int64, crawledAt time.Time, lastError string) error

	// Postings
	UpsertPosting(ctx context.Context, p *models.JobPosting) (created bool, err error)
	GetPosting(ctx context.Context, companyID int64, externalID string) (*models.JobPosting, error)
	ListPostings(ctx context.Context, filter PostingFilter) ([]models.JobPosting, error)
	DeletePostingsUnseenSince(ctx context.Context, cutoff time.Time) (int64, error)

	// Runs
	CreateRun(ctx context.Context, run *models.CrawlRun) error
	UpdateRun(ctx context.Context, run *models.CrawlRun) error
	ListRecentRuns(ctx context.Context, limit int) ([]models.CrawlRun, error)

	// Logs (best effort; a failed log write never fails a run)
	Log(ctx context.Context, runID *int64, companyID int64, level models.LogLevel, message string)

	Close() error
}

// PostingFilter narrows dashboard reads.
type PostingFilter struct {
	Status        models.AnalysisStatus // zero value = any
	EntryLevel    bool                  // only ai_is_entry_level = true
	FirstSeenAfter time.Time            // zero value = any
	Limit         int
}
