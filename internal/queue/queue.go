// Package queue serializes transcode requests from webhooks and scheduled
// scans onto a fixed pool of workers. A path is accepted at most once
// while it is pending or in flight.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/backmassage/mediasweep/internal/config"
	"github.com/backmassage/mediasweep/internal/metrics"
)

// Enqueue errors.
var (
	ErrDuplicate = errors.New("queue: path already pending or in progress")
	ErrFull      = errors.New("queue: full")
	ErrClosed    = errors.New("queue: closed")
)

// Request asks for one file to be transcoded. An empty Category lets the
// job resolve it from the path.
type Request struct {
	Path     string
	Category string
	Source   string // "radarr", "sonarr", "schedule", ...
}

// HandlerFunc processes one request.
type HandlerFunc func(ctx context.Context, r Request)

// Queue is a bounded FIFO drained by Workers goroutines.
type Queue struct {
	mu     sync.Mutex
	keys   map[string]bool
	closed bool

	ch      chan Request
	workers int
	handle  HandlerFunc
	logger  *slog.Logger
}

// New creates a queue. Call Run to start the workers.
func New(cfg config.QueueConfig, handle HandlerFunc, logger *slog.Logger) *Queue {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	size := cfg.Size
	if size < 1 {
		size = 1
	}
	return &Queue{
		keys:    make(map[string]bool),
		ch:      make(chan Request, size),
		workers: workers,
		handle:  handle,
		logger:  logger,
	}
}

// Enqueue adds r without blocking.
func (q *Queue) Enqueue(r Request) error {
	key := filepath.Clean(r.Path)

	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case q.closed:
		metrics.QueueRejectedTotal.WithLabelValues("closed").Inc()
		return ErrClosed
	case q.keys[key]:
		metrics.QueueRejectedTotal.WithLabelValues("duplicate").Inc()
		return ErrDuplicate
	}

	select {
	case q.ch <- r:
		q.keys[key] = true
		metrics.QueueDepth.Set(float64(len(q.ch)))
		q.logger.Debug("enqueued", slog.String("path", r.Path), slog.String("source", r.Source))
		return nil
	default:
		metrics.QueueRejectedTotal.WithLabelValues("full").Inc()
		return ErrFull
	}
}

// Len returns the number of pending requests.
func (q *Queue) Len() int { return len(q.ch) }

// Run starts the workers and blocks until ctx is cancelled and every
// in-flight request has returned. Pending requests are dropped.
func (q *Queue) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < q.workers; i++ {
		id := i
		g.Go(func() error {
			q.worker(gctx, id)
			return nil
		})
	}
	q.logger.Info("queue started", slog.Int("workers", q.workers), slog.Int("size", cap(q.ch)))

	err := g.Wait()

	q.mu.Lock()
	q.closed = true
	dropped := len(q.ch)
	q.mu.Unlock()
	if dropped > 0 {
		q.logger.Warn("queue stopped with pending requests", slog.Int("dropped", dropped))
	} else {
		q.logger.Info("queue stopped")
	}
	return err
}

func (q *Queue) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-q.ch:
			metrics.QueueDepth.Set(float64(len(q.ch)))
			q.process(ctx, id, r)
		}
	}
}

func (q *Queue) process(ctx context.Context, id int, r Request) {
	defer func() {
		q.mu.Lock()
		delete(q.keys, filepath.Clean(r.Path))
		q.mu.Unlock()
	}()
	defer func() {
		if rec := recover(); rec != nil {
			q.logger.Error("handler panicked", slog.Int("worker", id), slog.String("path", r.Path), slog.Any("panic", rec))
		}
	}()
	q.handle(ctx, r)
}
