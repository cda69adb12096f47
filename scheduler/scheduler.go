// Package scheduler fires recurring crawls on a cron expression or a plain
// interval.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aman12122/job-crawler/config"
	"github.com/aman12122/job-crawler/pipeline"
)

type Scheduler struct {
	cfg    config.SchedulerConfig
	runner *pipeline.Runner
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}
}

func New(cfg config.SchedulerConfig, runner *pipeline.Runner) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() {
			s.runner.RunAll(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
		return nil
	}

	if s.cfg.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runner.RunAll(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
		return nil
	}

	log.Println("No schedule configured, crawls run on API trigger only")
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}
