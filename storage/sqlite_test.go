package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aman12122/job-crawler/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedCompany(t *testing.T, store *SQLiteStore) *models.Company {
	t.Helper()
	c := &models.Company{
		Name:       "Acme",
		CareersURL: "https://boards.greenhouse.io/acme",
		Strategy:   models.StrategyGreenhouse,
		Pagination: models.PaginationOffset,
		IsActive:   true,
	}
	if err := store.UpsertCompany(context.Background(), c); err != nil {
		t.Fatalf("upsert company: %v", err)
	}
	return c
}

func TestUpsertCompany_Idempotent(t *testing.T) {
	store := newTestStore(t)
	c := seedCompany(t, store)

	again := &models.Company{
		Name:       "Acme",
		CareersURL: "https://boards.greenhouse.io/acme-v2",
		Strategy:   models.StrategyGreenhouse,
		Pagination: models.PaginationOffset,
		IsActive:   true,
	}
	if err := store.UpsertCompany(context.Background(), again); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if again.ID != c.ID {
		t.Fatalf("same name should keep the same id: %d vs %d", again.ID, c.ID)
	}

	got, err := store.GetCompany(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("get company: %v", err)
	}
	if got.CareersURL != "https://boards.greenhouse.io/acme-v2" {
		t.Fatalf("careers url not updated: %s", got.CareersURL)
	}
}

func TestUpsertPosting_InsertThenUpdate(t *testing.T) {
	store := newTestStore(t)
	c := seedCompany(t, store)
	ctx := context.Background()

	p := models.NewPosting(c.ID, models.JobStub{ExternalID: "j-1", Title: "Software Engineer", URL: "https://x.test/j-1"})
	created, err := store.UpsertPosting(ctx, p)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !created {
		t.Fatal("first upsert should report created")
	}
	firstSeen := p.FirstSeenAt

	// Same job rediscovered with a changed title.
	p2 := models.NewPosting(c.ID, models.JobStub{ExternalID: "j-1", Title: "Software Engineer I", URL: "https://x.test/j-1"})
	created, err = store.UpsertPosting(ctx, p2)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if created {
		t.Fatal("second upsert should not report created")
	}
	if !p2.FirstSeenAt.Equal(firstSeen) {
		t.Fatalf("first_seen_at changed: %s vs %s", p2.FirstSeenAt, firstSeen)
	}
	if p2.LastSeenAt.Before(firstSeen) {
		t.Fatal("last_seen_at went backwards")
	}

	got, err := store.GetPosting(ctx, c.ID, "j-1")
	if err != nil {
		t.Fatalf("get posting: %v", err)
	}
	if got.Title != "Software Engineer I" {
		t.Fatalf("title not updated: %s", got.Title)
	}
}

func TestUpsertPosting_PendingNeverDowngradesVerdict(t *testing.T) {
	store := newTestStore(t)
	c := seedCompany(t, store)
	ctx := context.Background()

	p := models.NewPosting(c.ID, models.JobStub{ExternalID: "j-2", Title: "Data Engineer", URL: "https://x.test/j-2"})
	p.ApplyVerdict(&models.Verdict{IsEntryLevel: true, Confidence: 90, MinYears: 0, Reasoning: "new grad"})
	if _, err := store.UpsertPosting(ctx, p); err != nil {
		t.Fatalf("insert analyzed: %v", err)
	}

	// Next run rediscovers the job before re-analysis.
	rediscovered := models.NewPosting(c.ID, models.JobStub{ExternalID: "j-2", Title: "Data Engineer", URL: "https://x.test/j-2"})
	if _, err := store.UpsertPosting(ctx, rediscovered); err != nil {
		t.Fatalf("upsert pending: %v", err)
	}

	got, err := store.GetPosting(ctx, c.ID, "j-2")
	if err != nil {
		t.Fatalf("get posting: %v", err)
	}
	if got.Status != models.AnalysisAnalyzed {
		t.Fatalf("pending rediscovery downgraded status to %s", got.Status)
	}
	if got.IsEntryLevel == nil || !*got.IsEntryLevel {
		t.Fatal("verdict fields lost on pending rediscovery")
	}
	if got.Confidence == nil || *got.Confidence != 90 {
		t.Fatal("confidence lost on pending rediscovery")
	}
}

func TestUpsertPosting_TerminalOverwritesTerminal(t *testing.T) {
	store := newTestStore(t)
	c := seedCompany(t, store)
	ctx := context.Background()

	p := models.NewPosting(c.ID, models.JobStub{ExternalID: "j-3", Title: "Platform Engineer", URL: "https://x.test/j-3"})
	p.Status = models.AnalysisFailed
	if _, err := store.UpsertPosting(ctx, p); err != nil {
		t.Fatalf("insert failed-status: %v", err)
	}

	retried := models.NewPosting(c.ID, models.JobStub{ExternalID: "j-3", Title: "Platform Engineer", URL: "https://x.test/j-3"})
	retried.ApplyVerdict(&models.Verdict{IsEntryLevel: false, Confidence: 80, MinYears: 5, Reasoning: "5+ years"})
	if _, err := store.UpsertPosting(ctx, retried); err != nil {
		t.Fatalf("upsert analyzed: %v", err)
	}

	got, err := store.GetPosting(ctx, c.ID, "j-3")
	if err != nil {
		t.Fatalf("get posting: %v", err)
	}
	if got.Status != models.AnalysisAnalyzed {
		t.Fatalf("retry verdict should replace failed status, got %s", got.Status)
	}
}

func TestUpsertPosting_EmptyDescriptionKeepsStored(t *testing.T) {
	store := newTestStore(t)
	c := seedCompany(t, store)
	ctx := context.Background()

	p := models.NewPosting(c.ID, models.JobStub{ExternalID: "j-4", Title: "QA Engineer", URL: "https://x.test/j-4"})
	p.Description = "Full description from the detail page."
	if _, err := store.UpsertPosting(ctx, p); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Listing-only rediscovery carries no description.
	stub := models.NewPosting(c.ID, models.JobStub{ExternalID: "j-4", Title: "QA Engineer", URL: "https://x.test/j-4"})
	if _, err := store.UpsertPosting(ctx, stub); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.GetPosting(ctx, c.ID, "j-4")
	if err != nil {
		t.Fatalf("get posting: %v", err)
	}
	if got.Description != "Full description from the detail page." {
		t.Fatalf("stored description lost: %q", got.Description)
	}
}

func TestListPostings_Filters(t *testing.T) {
	store := newTestStore(t)
	c := seedCompany(t, store)
	ctx := context.Background()

	entry := models.NewPosting(c.ID, models.JobStub{ExternalID: "e-1", Title: "Junior Dev", URL: "https://x.test/e-1"})
	entry.ApplyVerdict(&models.Verdict{IsEntryLevel: true, Confidence: 95, MinYears: 0, Reasoning: "junior"})
	senior := models.NewPosting(c.ID, models.JobStub{ExternalID: "s-1", Title: "Architect", URL: "https://x.test/s-1"})
	senior.Status = models.AnalysisSkipped
	for _, p := range []*models.JobPosting{entry, senior} {
		if _, err := store.UpsertPosting(ctx, p); err != nil {
			t.Fatalf("seed posting: %v", err)
		}
	}

	eligible, err := store.ListPostings(ctx, PostingFilter{Status: models.AnalysisAnalyzed, EntryLevel: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(eligible) != 1 || eligible[0].ExternalID != "e-1" {
		t.Fatalf("unexpected filter result: %+v", eligible)
	}

	all, err := store.ListPostings(ctx, PostingFilter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(all))
	}
}

func TestDeletePostingsUnseenSince(t *testing.T) {
	store := newTestStore(t)
	c := seedCompany(t, store)
	ctx := context.Background()

	p := models.NewPosting(c.ID, models.JobStub{ExternalID: "old-1", Title: "Old Posting", URL: "https://x.test/old-1"})
	if _, err := store.UpsertPosting(ctx, p); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Nothing is older than a cutoff in the past.
	deleted, err := store.DeletePostingsUnseenSince(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected 0 deletions, got %d", deleted)
	}

	// A future cutoff reaps everything.
	deleted, err = store.DeletePostingsUnseenSince(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deletion, got %d", deleted)
	}
}

func TestRunLifecycle(t *testing.T) {
	store := newTestStore(t)
	c := seedCompany(t, store)
	ctx := context.Background()

	run := &models.CrawlRun{CompanyID: c.ID, StartedAt: time.Now().UTC(), Status: models.RunStatusRunning}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if run.ID == 0 {
		t.Fatal("run id not assigned")
	}

	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = models.RunStatusCompleted
	run.Discovered = 25
	run.Prefiltered = 5
	run.Classified = 18
	run.Eligible = 7
	if err := store.UpdateRun(ctx, run); err != nil {
		t.Fatalf("update run: %v", err)
	}

	runs, err := store.ListRecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.Status != models.RunStatusCompleted || got.Discovered != 25 || got.Eligible != 7 {
		t.Fatalf("unexpected run record: %+v", got)
	}
}
