// Package fileops removes superseded media files. Media servers and
// downloaders often hold files open, so removal escalates to a forced
// delete and then waits and retries before giving up.
package fileops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/backmassage/mediasweep/internal/config"
)

// ErrLocked is returned when a file survives every removal attempt.
var ErrLocked = errors.New("file could not be removed")

// Forcer is the last-resort removal capability.
type Forcer interface {
	ForceRemove(path string) error
}

// ChmodForcer makes the file writable and removes it again.
type ChmodForcer struct{}

// ForceRemove implements [Forcer].
func (ChmodForcer) ForceRemove(path string) error {
	if err := os.Chmod(path, 0o666); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Remove(path)
}

// Remover deletes files with the force-then-backoff policy.
type Remover struct {
	attempts int
	delay    time.Duration
	remove   func(path string) error
	forcer   Forcer
	holders  func(ctx context.Context, path string) ([]Holder, error)
	sleep    func(ctx context.Context, d time.Duration) error
	log      *slog.Logger
}

// Option customizes a Remover.
type Option func(*Remover)

// WithRemove replaces the direct removal tried first on every attempt.
func WithRemove(fn func(path string) error) Option { return func(r *Remover) { r.remove = fn } }

// WithForcer replaces the forced-removal capability.
func WithForcer(f Forcer) Option { return func(r *Remover) { r.forcer = f } }

// WithHolderLookup replaces the open-file holder lookup.
func WithHolderLookup(fn func(ctx context.Context, path string) ([]Holder, error)) Option {
	return func(r *Remover) { r.holders = fn }
}

// WithSleep replaces the wait between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Remover) { r.sleep = fn }
}

// NewRemover builds a Remover from the remove config section.
func NewRemover(cfg config.RemoveConfig, log *slog.Logger, opts ...Option) *Remover {
	r := &Remover{
		attempts: cfg.Attempts,
		delay:    cfg.Delay,
		remove:   os.Remove,
		forcer:   ChmodForcer{},
		holders:  ProcessHolders,
		sleep:    sleepContext,
		log:      log,
	}
	if r.attempts < 1 {
		r.attempts = 1
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Remove deletes path. A path that no longer exists counts as removed.
// Only a permission or sharing failure escalates to the forced removal and
// the wait-and-retry loop; any other error is returned as is. When every
// attempt fails the processes holding the file are logged and ErrLocked is
// returned.
func (r *Remover) Remove(ctx context.Context, path string) error {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err := r.remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if !inUse(err) {
			r.log.Warn("could not remove superseded file", "path", path, "error", err)
			return fmt.Errorf("remove %s: %w", path, err)
		}
		lastErr = err

		err = r.forcer.ForceRemove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			r.log.Debug("forced removal succeeded", "path", path, "attempt", attempt)
			return nil
		}
		lastErr = err

		if attempt == r.attempts {
			break
		}
		r.log.Info("file in use, waiting", "path", path, "attempt", attempt, "delay", r.delay)
		if err := r.sleep(ctx, r.delay); err != nil {
			return err
		}
	}

	attrs := []any{"path", path, "attempts", r.attempts, "error", lastErr}
	if holders, err := r.holders(ctx, path); err == nil && len(holders) > 0 {
		attrs = append(attrs, "held_by", holders)
	}
	r.log.Warn("could not remove superseded file", attrs...)
	return fmt.Errorf("%w: %s: %v", ErrLocked, path, lastErr)
}

// inUse reports whether err means another process or the file's
// permissions are in the way.
func inUse(err error) bool {
	return errors.Is(err, fs.ErrPermission) || isSharingViolation(err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
