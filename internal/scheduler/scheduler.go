// Package scheduler periodically sweeps the libraries and queues every
// media file found. Files that need no work finish quickly in the job, so
// a sweep converges on a library where nothing is left to do.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/backmassage/mediasweep/internal/category"
	"github.com/backmassage/mediasweep/internal/config"
	"github.com/backmassage/mediasweep/internal/metrics"
	"github.com/backmassage/mediasweep/internal/pipeline"
	"github.com/backmassage/mediasweep/internal/queue"
)

// Enqueuer accepts transcode requests. *queue.Queue implements it.
type Enqueuer interface {
	Enqueue(r queue.Request) error
}

// Scheduler runs library sweeps on a cron schedule.
type Scheduler struct {
	mu   sync.Mutex
	cron *cron.Cron

	cronExpr  string
	libraries []category.Library
	exts      []string
	tempExt   string
	queue     Enqueuer
	logger    *slog.Logger
}

// SweepResult counts what a sweep did.
type SweepResult struct {
	Found     int
	Queued    int
	Duplicate int
	Rejected  int
	Stranded  int
}

// ParseCron validates a standard five-field cron expression.
func ParseCron(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// New creates a scheduler for cfg.Schedule over libs.
func New(cfg *config.Config, libs []category.Library, q Enqueuer, logger *slog.Logger) (*Scheduler, error) {
	if err := ParseCron(cfg.Schedule.Cron); err != nil {
		return nil, err
	}
	return &Scheduler{
		cronExpr:  cfg.Schedule.Cron,
		libraries: libs,
		exts:      cfg.Transcode.Extensions,
		tempExt:   cfg.Transcode.TempExtension,
		queue:     q,
		logger:    logger,
	}, nil
}

// Run schedules sweeps and blocks until ctx is done. Sweeps still running
// at that point finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.cron != nil {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.cronExpr, func() { s.Sweep(ctx, "schedule") }); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("add sweep: %w", err)
	}
	s.cron = c
	s.mu.Unlock()

	c.Start()
	s.logger.Info("scheduler started", slog.String("cron", s.cronExpr))

	<-ctx.Done()
	<-c.Stop().Done()

	s.mu.Lock()
	s.cron = nil
	s.mu.Unlock()
	s.logger.Info("scheduler stopped")
	return nil
}

// Sweep discovers every file in the libraries and enqueues it with the
// library's category.
func (s *Scheduler) Sweep(ctx context.Context, trigger string) SweepResult {
	var res SweepResult
	metrics.ScansTotal.WithLabelValues(trigger).Inc()

	found, err := pipeline.DiscoverLibraries(s.libraries, s.exts, s.tempExt)
	if err != nil {
		s.logger.Error("sweep discovery failed", slog.Any("error", err))
		return res
	}
	res.Found = len(found.Items)
	res.Stranded = len(found.Stranded)
	for _, p := range found.Stranded {
		s.logger.Warn("stranded temp file", slog.String("path", p))
	}

	for _, item := range found.Items {
		if ctx.Err() != nil {
			break
		}
		err := s.queue.Enqueue(queue.Request{Path: item.Path, Category: string(item.Category), Source: trigger})
		switch {
		case err == nil:
			res.Queued++
		case errors.Is(err, queue.ErrDuplicate):
			res.Duplicate++
		default:
			res.Rejected++
			if errors.Is(err, queue.ErrClosed) {
				return res
			}
		}
	}

	s.logger.Info("sweep finished",
		slog.String("trigger", trigger),
		slog.Int("found", res.Found),
		slog.Int("queued", res.Queued),
		slog.Int("duplicate", res.Duplicate),
		slog.Int("rejected", res.Rejected),
	)
	return res
}
