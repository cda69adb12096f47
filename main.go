package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aman12122/job-crawler/ai"
	"github.com/aman12122/job-crawler/api"
	"github.com/aman12122/job-crawler/config"
	"github.com/aman12122/job-crawler/httputil"
	"github.com/aman12122/job-crawler/logging"
	"github.com/aman12122/job-crawler/pipeline"
	"github.com/aman12122/job-crawler/prefilter"
	"github.com/aman12122/job-crawler/scheduler"
	"github.com/aman12122/job-crawler/storage"
	"github.com/aman12122/job-crawler/workers"
)

var (
	crawlNow = flag.Bool("crawl", false, "Run one crawl of all companies and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting job crawler...")

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	seedCompanies(ctx, cfg, store)

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		log.Println("Redis crawl locks enabled")
	}

	limiter := ai.NewLimiter(cfg.Gemini.RequestsPerWindow, cfg.Gemini.Window)
	classifier, err := ai.NewGeminiClassifier(ctx, cfg.Gemini, limiter)
	if err != nil {
		log.Fatalf("Failed to create classifier: %v", err)
	}

	archiver, err := storage.NewPayloadArchiver(ctx, cfg.Archive)
	if err != nil {
		log.Printf("Warning: payload archive disabled: %v", err)
	} else if archiver != nil {
		log.Printf("Archiving unparseable payloads to %s", cfg.Archive.Bucket)
	}

	clients := httputil.NewClients(cfg.Crawler.RequestTimeout)
	filter := prefilter.New(cfg.Prefilter.RejectTerms)
	pipe := pipeline.New(store, classifier, filter, clients.Scraping, archiver, cfg.Crawler)

	lockTTL := cfg.Crawler.RunDeadline + cfg.Crawler.GracePeriod
	runner := pipeline.NewRunner(pipe, store, rdb, cfg.Crawler.MaxParallelCompanies, lockTTL)

	if *crawlNow {
		log.Println("Running one-shot crawl...")
		runner.RunAll(ctx)
		log.Println("Crawl complete")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg.Scheduler, runner)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	cleanupWorker := workers.NewCleanupWorker(store, cfg.Retention)
	go cleanupWorker.Run(ctx)
	log.Println("Cleanup worker started")

	digestWorker := workers.NewDigestWorker(store, cfg.Retention, nil)
	go digestWorker.Run(ctx)
	log.Println("Digest worker started")

	server := api.NewServer(cfg.Port, store, runner)
	go func() {
		log.Printf("API listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil {
			log.Printf("API server stopped: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("API shutdown error: %v", err)
	}
	runner.Wait()
	log.Println("Stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.DatabaseURL != "" {
		store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Println("Connected to Postgres")
		return store, nil
	}
	store, err := storage.NewSQLiteStore(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	log.Printf("SQLite database: %s", cfg.SQLitePath)
	return store, nil
}

// seedCompanies loads per-company YAML files and upserts them so deployments
// can manage companies as config instead of poking the database.
func seedCompanies(ctx context.Context, cfg *config.Config, store storage.Store) {
	seeds, err := cfg.LoadCompanySeeds()
	if err != nil {
		log.Printf("Warning: could not read company seeds: %v", err)
		return
	}
	for i := range seeds {
		if err := store.UpsertCompany(ctx, &seeds[i]); err != nil {
			log.Printf("Warning: could not seed company %s: %v", seeds[i].Name, err)
			continue
		}
	}
	if len(seeds) > 0 {
		log.Printf("Seeded %d companies from %s", len(seeds), cfg.CompaniesDir)
	}
}
