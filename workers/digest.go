package workers

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/aman12122/job-crawler/config"
	"github.com/aman12122/job-crawler/models"
	"github.com/aman12122/job-crawler/storage"
)

// DigestWorker periodically summarizes freshly discovered entry-level
// postings. The console backend is the only one wired today; richer channels
// can implement DigestBackend.
type DigestWorker struct {
	store     storage.Store
	interval  time.Duration
	backend   DigestBackend
	triggerCh chan struct{}
}

// DigestBackend delivers a digest somewhere a human will see it.
type DigestBackend interface {
	Deliver(ctx context.Context, postings []models.JobPosting) error
}

func NewDigestWorker(store storage.Store, retention config.RetentionConfig, backend DigestBackend) *DigestWorker {
	if backend == nil {
		backend = ConsoleBackend{}
	}
	return &DigestWorker{
		store:     store,
		interval:  retention.DigestInterval,
		backend:   backend,
		triggerCh: make(chan struct{}, 1),
	}
}

func (w *DigestWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

func (w *DigestWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Digest worker stopping")
			return
		case <-ticker.C:
			w.send(ctx)
		case <-w.triggerCh:
			log.Println("Digest worker triggered manually")
			w.send(ctx)
		}
	}
}

func (w *DigestWorker) send(ctx context.Context) {
	since := time.Now().UTC().Add(-w.interval)
	postings, err := w.store.ListPostings(ctx, storage.PostingFilter{
		Status:         models.AnalysisAnalyzed,
		EntryLevel:     true,
		FirstSeenAfter: since,
	})
	if err != nil {
		log.Printf("Digest: query error: %v", err)
		return
	}
	if len(postings) == 0 {
		return
	}
	if err := w.backend.Deliver(ctx, postings); err != nil {
		log.Printf("Digest: delivery error: %v", err)
	}
}

// ConsoleBackend prints the digest to the process log.
type ConsoleBackend struct{}

func (ConsoleBackend) Deliver(_ context.Context, postings []models.JobPosting) error {
	var b strings.Builder
	b.WriteString("New entry-level postings:\n")
	for _, p := range postings {
		b.WriteString("  - ")
		b.WriteString(p.Title)
		if p.Location != "" {
			b.WriteString(" (" + p.Location + ")")
		}
		if p.URL != "" {
			b.WriteString(" " + p.URL)
		}
		b.WriteByte('\n')
	}
	log.Print(b.String())
	return nil
}
