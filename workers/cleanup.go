// Package workers holds the background maintenance loops that run alongside
// the crawl scheduler.
package workers

import (
	"context"
	"log"
	"time"

	"github.com/aman12122/job-crawler/config"
	"github.com/aman12122/job-crawler/storage"
)

// CleanupWorker deletes postings that no crawl has seen within the retention
// window. A delisted job stops appearing in listings, so last_seen_at stops
// advancing and the sweep eventually reaps it.
type CleanupWorker struct {
	store     storage.Store
	retention config.RetentionConfig
	triggerCh chan struct{}
}

func NewCleanupWorker(store storage.Store, retention config.RetentionConfig) *CleanupWorker {
	return &CleanupWorker{
		store:     store,
		retention: retention,
		triggerCh: make(chan struct{}, 1),
	}
}

// Trigger requests an immediate sweep without waiting for the interval.
func (w *CleanupWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

func (w *CleanupWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.retention.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Cleanup worker stopping")
			return
		case <-ticker.C:
			w.sweep(ctx)
		case <-w.triggerCh:
			log.Println("Cleanup worker triggered manually")
			w.sweep(ctx)
		}
	}
}

func (w *CleanupWorker) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -w.retention.Days)
	deleted, err := w.store.DeletePostingsUnseenSince(ctx, cutoff)
	if err != nil {
		log.Printf("Cleanup: delete error: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("Cleanup: removed %d postings unseen since %s", deleted, cutoff.Format(time.RFC3339))
	}
}
