package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aman12122/job-crawler/models"
)

func TestRunner_AcquireIsExclusive(t *testing.T) {
	r := NewRunner(nil, newMemStore(), nil, 2, time.Minute)

	if err := r.acquire(context.Background(), 1); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := r.acquire(context.Background(), 1); !errors.Is(err, ErrCrawlInProgress) {
		t.Fatalf("expected ErrCrawlInProgress, got %v", err)
	}
	// A different company is unaffected.
	if err := r.acquire(context.Background(), 2); err != nil {
		t.Fatalf("acquire for other company failed: %v", err)
	}

	r.release(1)
	if err := r.acquire(context.Background(), 1); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}

func TestRunner_TriggerUnknownCompany(t *testing.T) {
	store := newMemStore()
	r := NewRunner(nil, store, nil, 2, time.Minute)

	if err := r.Trigger(context.Background(), 99); !errors.Is(err, ErrUnknownCompany) {
		t.Fatalf("expected ErrUnknownCompany, got %v", err)
	}

	inactive := models.Company{Name: "Dormant", CareersURL: "https://x.test", IsActive: false}
	if err := store.UpsertCompany(context.Background(), &inactive); err != nil {
		t.Fatalf("seed company: %v", err)
	}
	if err := r.Trigger(context.Background(), inactive.ID); !errors.Is(err, ErrUnknownCompany) {
		t.Fatalf("expected ErrUnknownCompany for inactive company, got %v", err)
	}
}

func TestRunner_TriggerConflictsWhileRunning(t *testing.T) {
	store := newMemStore()
	classifier := &fakeClassifier{}

	release := make(chan struct{})
	var once sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Hold the first board request open until the test has asserted the
		// conflict, then serve an empty board.
		<-release
		w.Write([]byte(`{"jobs": []}`))
	}))
	defer srv.Close()
	defer once.Do(func() { close(release) })

	company := models.Company{
		Name:       "Acme",
		CareersURL: srv.URL,
		Strategy:   models.StrategyGreenhouse,
		Pagination: models.PaginationOffset,
		IsActive:   true,
	}
	if err := store.UpsertCompany(context.Background(), &company); err != nil {
		t.Fatalf("seed company: %v", err)
	}

	p := New(store, classifier, testFilter(), srv.Client(), nil, testCrawlerConfig())
	r := NewRunner(p, store, nil, 2, time.Minute)

	if err := r.Trigger(context.Background(), company.ID); err != nil {
		t.Fatalf("first trigger failed: %v", err)
	}
	if err := r.Trigger(context.Background(), company.ID); !errors.Is(err, ErrCrawlInProgress) {
		t.Fatalf("expected ErrCrawlInProgress, got %v", err)
	}

	once.Do(func() { close(release) })
	r.Wait()

	// With the crawl finished, a new trigger is accepted again.
	if err := r.Trigger(context.Background(), company.ID); err != nil {
		t.Fatalf("trigger after completion failed: %v", err)
	}
	r.Wait()
}
