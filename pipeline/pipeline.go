// Package pipeline drives one crawl run per company: enumerate listing pages,
// pre-filter titles, fetch detail pages for survivors, classify them, and
// reconcile everything into the store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aman12122/job-crawler/ai"
	"github.com/aman12122/job-crawler/config"
	"github.com/aman12122/job-crawler/models"
	"github.com/aman12122/job-crawler/prefilter"
	"github.com/aman12122/job-crawler/scraper"
	"github.com/aman12122/job-crawler/storage"
)

// Pipeline holds the shared dependencies of every run. It is safe for
// concurrent runs against different companies.
type Pipeline struct {
	store      storage.Store
	classifier ai.Classifier
	filter     *prefilter.Filter
	client     *http.Client
	archiver   *storage.PayloadArchiver
	cfg        config.CrawlerConfig
}

func New(store storage.Store, classifier ai.Classifier, filter *prefilter.Filter, client *http.Client, archiver *storage.PayloadArchiver, cfg config.CrawlerConfig) *Pipeline {
	return &Pipeline{
		store:      store,
		classifier: classifier,
		filter:     filter,
		client:     client,
		archiver:   archiver,
		cfg:        cfg,
	}
}

// Run executes the full pipeline for one company and records the run in the
// store. The returned CrawlRun is always populated, even on failure.
func (p *Pipeline) Run(ctx context.Context, company models.Company) (*models.CrawlRun, error) {
	run := &models.CrawlRun{
		CompanyID: company.ID,
		StartedAt: time.Now().UTC(),
		Status:    models.RunStatusRunning,
	}
	if err := p.store.CreateRun(ctx, run); err != nil {
		return run, fmt.Errorf("create run: %w", err)
	}

	// Deadline applies to the scraping and classification work. Drain writes
	// below use a detached context so a deadline never loses discovered jobs.
	runCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.RunDeadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.RunDeadline)
		defer cancel()
	}

	runErr := p.execute(runCtx, ctx, company, run)

	now := time.Now().UTC()
	run.FinishedAt = &now
	lastError := ""
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.ErrorMessage = runErr.Error()
		lastError = runErr.Error()
	} else {
		run.Status = models.RunStatusCompleted
	}

	finalCtx, finalCancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.GracePeriod)
	defer finalCancel()
	if err := p.store.UpdateRun(finalCtx, run); err != nil {
		log.Printf("Warning: failed to finalize run %d: %v", run.ID, err)
	}
	if err := p.store.UpdateCompanyCrawlState(finalCtx, company.ID, now, lastError); err != nil {
		log.Printf("Warning: failed to update crawl state for company %d: %v", company.ID, err)
	}

	return run, runErr
}

// execute does the actual work and fills in the run counters. parent is the
// un-deadlined context used for drain writes.
func (p *Pipeline) execute(ctx, parent context.Context, company models.Company, run *models.CrawlRun) error {
	sc, err := scraper.New(company, p.client, p.cfg)
	if err != nil {
		p.store.Log(ctx, &run.ID, company.ID, models.LogLevelError, err.Error())
		return err
	}

	survivors, err := p.enumerate(ctx, parent, sc, company, run)
	if err != nil {
		return err
	}

	p.store.Log(ctx, &run.ID, company.ID, models.LogLevelInfo,
		fmt.Sprintf("discovered %d listings, %d rejected by pre-filter, %d to analyze",
			run.Discovered, run.Prefiltered, len(survivors)))

	return p.analyze(ctx, parent, company, run, survivors)
}

// enumerate walks listing pages, deduplicates stubs within the run, writes
// pre-filter rejects straight to the store as skipped, and returns the stubs
// that need detail analysis.
func (p *Pipeline) enumerate(ctx, parent context.Context, sc scraper.Scraper, company models.Company, run *models.CrawlRun) ([]models.JobStub, error) {
	var (
		survivors []models.JobStub
		seen      = map[string]bool{}
		state     scraper.PageState
	)

	for {
		page, err := sc.FetchPage(ctx, state)
		if err != nil {
			var parseErr *scraper.ParseError
			if errors.As(err, &parseErr) {
				// A page that fails to parse is dropped, not fatal. Archive
				// the raw payload so the selector/format break can be fixed.
				run.Warnings++
				p.store.Log(ctx, &run.ID, company.ID, models.LogLevelWarn, err.Error())
				if aerr := p.archiver.Archive(parent, company.ID, parseErr.Raw); aerr != nil {
					log.Printf("Warning: failed to archive payload for company %d: %v", company.ID, aerr)
				}
				break
			}
			if run.PagesCrawled == 0 {
				// Nothing enumerated at all fails the run outright.
				return nil, fmt.Errorf("fetch listings: %w", err)
			}
			run.Warnings++
			p.store.Log(ctx, &run.ID, company.ID, models.LogLevelWarn,
				fmt.Sprintf("stopping pagination after %d pages: %v", run.PagesCrawled, err))
			break
		}

		run.PagesCrawled++
		for _, stub := range page.Stubs {
			if stub.ExternalID == "" || seen[stub.ExternalID] {
				continue
			}
			seen[stub.ExternalID] = true
			run.Discovered++

			if rejected, reason := p.filter.Evaluate(stub.Title); rejected {
				run.Prefiltered++
				posting := models.NewPosting(company.ID, stub)
				posting.Status = models.AnalysisSkipped
				posting.Reasoning = reason
				if _, err := p.store.UpsertPosting(parent, posting); err != nil {
					return nil, fmt.Errorf("save skipped posting %s: %w", stub.ExternalID, err)
				}
				continue
			}
			survivors = append(survivors, stub)
		}

		if !page.HasMore {
			break
		}
		state = page.Next
	}

	if ld, ok := sc.(interface{ LoopDetected() bool }); ok && ld.LoopDetected() {
		run.Warnings++
		p.store.Log(ctx, &run.ID, company.ID, models.LogLevelWarn,
			"pagination cursor repeated; enumeration stopped early")
	}

	return survivors, nil
}

// analyze fetches details and classifies the surviving stubs. Detail fetches
// run concurrently up to the configured bound; classification is serialized
// inside the classifier. Jobs that cannot be finished before the deadline or
// after a quota rejection are persisted as pending for the next run.
func (p *Pipeline) analyze(ctx, parent context.Context, company models.Company, run *models.CrawlRun, survivors []models.JobStub) error {
	detail := scraper.NewDetailFetcher(p.client, p.cfg)

	var (
		mu       sync.Mutex
		quotaHit bool
	)
	stopClassifying := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return quotaHit
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.MaxConcurrentFetches)

	for _, stub := range survivors {
		stub := stub
		g.Go(func() error {
			posting := models.NewPosting(company.ID, stub)

			// Terminal verdicts from earlier runs are not re-purchased. The
			// upsert refreshes metadata and last_seen_at; the status guard
			// keeps the stored verdict.
			existing, err := p.store.GetPosting(parent, company.ID, stub.ExternalID)
			if err != nil {
				return fmt.Errorf("lookup posting %s: %w", stub.ExternalID, err)
			}
			if existing != nil && existing.Status.Terminal() && existing.Status != models.AnalysisFailed {
				_, err := p.store.UpsertPosting(parent, posting)
				return err
			}

			if ctx.Err() != nil || stopClassifying() {
				return p.savePending(parent, run, &mu, posting)
			}

			description, err := detail.FetchDetail(ctx, stub.URL)
			if err != nil {
				if ctx.Err() != nil {
					return p.savePending(parent, run, &mu, posting)
				}
				mu.Lock()
				run.DetailFailed++
				mu.Unlock()
				posting.Status = models.AnalysisFailed
				p.store.Log(parent, &run.ID, company.ID, models.LogLevelWarn,
					fmt.Sprintf("detail fetch failed for %s: %v", stub.ExternalID, err))
				_, err := p.store.UpsertPosting(parent, posting)
				return err
			}
			posting.Description = description

			verdict, err := p.classifier.Classify(ctx, stub.Title, description)
			switch {
			case err == nil:
				posting.ApplyVerdict(verdict)
				mu.Lock()
				run.Classified++
				if verdict.IsEntryLevel {
					run.Eligible++
				}
				mu.Unlock()
			case errors.Is(err, ai.ErrQuotaExceeded):
				// The remote quota is shared; retrying other jobs in this run
				// would only burn it further. This posting failed its attempt;
				// jobs not yet attempted roll over as pending.
				mu.Lock()
				quotaHit = true
				mu.Unlock()
				posting.Status = models.AnalysisFailed
				p.store.Log(parent, &run.ID, company.ID, models.LogLevelWarn,
					fmt.Sprintf("classifier quota exhausted at %s; remaining jobs deferred to next run", stub.ExternalID))
			case ctx.Err() != nil:
				return p.savePending(parent, run, &mu, posting)
			default:
				posting.Status = models.AnalysisFailed
				p.store.Log(parent, &run.ID, company.ID, models.LogLevelWarn,
					fmt.Sprintf("classification failed for %s: %v", stub.ExternalID, err))
			}

			_, err = p.store.UpsertPosting(parent, posting)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if run.LeftPending > 0 {
		p.store.Log(parent, &run.ID, company.ID, models.LogLevelInfo,
			fmt.Sprintf("%d jobs left pending for next run", run.LeftPending))
	}
	return nil
}

// savePending persists a discovered-but-unanalyzed job so the next run picks
// it up. Uses the detached context so deadline expiry cannot drop it.
func (p *Pipeline) savePending(parent context.Context, run *models.CrawlRun, mu *sync.Mutex, posting *models.JobPosting) error {
	drainCtx, cancel := context.WithTimeout(parent, p.cfg.GracePeriod)
	defer cancel()

	posting.Status = models.AnalysisPending
	if _, err := p.store.UpsertPosting(drainCtx, posting); err != nil {
		return fmt.Errorf("save pending posting %s: %w", posting.ExternalID, err)
	}
	mu.Lock()
	run.LeftPending++
	mu.Unlock()
	return nil
}
