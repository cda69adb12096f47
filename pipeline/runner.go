package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aman12122/job-crawler/models"
	"github.com/aman12122/job-crawler/storage"
)

// ErrCrawlInProgress means a crawl for the same company is already running.
var ErrCrawlInProgress = errors.New("crawl already in progress")

// ErrUnknownCompany means the requested company does not exist or is inactive.
var ErrUnknownCompany = errors.New("unknown or inactive company")

// Runner serializes crawls per company and bounds how many companies crawl
// at once. An optional Redis lock extends the per-company guarantee across
// processes; without Redis the guarantee is process-local.
type Runner struct {
	pipeline *Pipeline
	store    storage.Store
	rdb      *redis.Client
	lockTTL  time.Duration

	mu      sync.Mutex
	active  map[int64]bool
	wg      sync.WaitGroup
	budget  chan struct{}
}

func NewRunner(p *Pipeline, store storage.Store, rdb *redis.Client, maxParallel int, lockTTL time.Duration) *Runner {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	if lockTTL <= 0 {
		lockTTL = time.Hour
	}
	return &Runner{
		pipeline: p,
		store:    store,
		rdb:      rdb,
		lockTTL:  lockTTL,
		active:   map[int64]bool{},
		budget:   make(chan struct{}, maxParallel),
	}
}

// Trigger starts a crawl for one company in the background. It returns
// ErrCrawlInProgress immediately when one is already running, without
// queueing a duplicate.
func (r *Runner) Trigger(ctx context.Context, companyID int64) error {
	company, err := r.store.GetCompany(ctx, companyID)
	if err != nil {
		return err
	}
	if company == nil || !company.IsActive {
		return ErrUnknownCompany
	}

	if err := r.acquire(ctx, companyID); err != nil {
		return err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(companyID)
		r.runLocked(context.WithoutCancel(ctx), *company)
	}()
	return nil
}

// RunAll crawls every active company, at most maxParallel at a time.
// Companies already mid-crawl are skipped, not queued.
func (r *Runner) RunAll(ctx context.Context) {
	companies, err := r.store.ListActiveCompanies(ctx)
	if err != nil {
		log.Printf("Error: list companies: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, company := range companies {
		if err := r.acquire(ctx, company.ID); err != nil {
			log.Printf("Skipping %s: %v", company.Name, err)
			continue
		}
		wg.Add(1)
		go func(c models.Company) {
			defer wg.Done()
			defer r.release(c.ID)
			r.runLocked(ctx, c)
		}(company)
	}
	wg.Wait()
}

// Wait blocks until all background crawls started by Trigger have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) runLocked(ctx context.Context, company models.Company) {
	r.budget <- struct{}{}
	defer func() { <-r.budget }()

	log.Printf("Starting crawl for %s (company %d)", company.Name, company.ID)
	run, err := r.pipeline.Run(ctx, company)
	if err != nil {
		log.Printf("Crawl failed for %s: %v", company.Name, err)
		return
	}
	log.Printf("Crawl completed for %s: %d pages, %d discovered, %d prefiltered, %d classified, %d eligible, %d pending",
		company.Name, run.PagesCrawled, run.Discovered, run.Prefiltered, run.Classified, run.Eligible, run.LeftPending)
}

func (r *Runner) acquire(ctx context.Context, companyID int64) error {
	r.mu.Lock()
	if r.active[companyID] {
		r.mu.Unlock()
		return ErrCrawlInProgress
	}
	r.active[companyID] = true
	r.mu.Unlock()

	if r.rdb != nil {
		ok, err := r.rdb.SetNX(ctx, lockKey(companyID), "1", r.lockTTL).Result()
		if err != nil {
			// Redis being down degrades to the process-local lock.
			log.Printf("Warning: redis lock unavailable: %v", err)
			return nil
		}
		if !ok {
			r.mu.Lock()
			delete(r.active, companyID)
			r.mu.Unlock()
			return ErrCrawlInProgress
		}
	}
	return nil
}

func (r *Runner) release(companyID int64) {
	if r.rdb != nil {
		if err := r.rdb.Del(context.Background(), lockKey(companyID)).Err(); err != nil {
			log.Printf("Warning: failed to release redis lock for company %d: %v", companyID, err)
		}
	}
	r.mu.Lock()
	delete(r.active, companyID)
	r.mu.Unlock()
}

func lockKey(companyID int64) string {
	return fmt.Sprintf("crawler:lock:company:%d", companyID)
}
