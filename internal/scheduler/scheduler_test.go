package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/mediasweep/internal/category"
	"github.com/backmassage/mediasweep/internal/config"
	"github.com/backmassage/mediasweep/internal/logging"
	"github.com/backmassage/mediasweep/internal/queue"
)

type fakeQueue struct {
	got    []queue.Request
	reject map[string]error
}

func (f *fakeQueue) Enqueue(r queue.Request) error {
	if err := f.reject[filepath.Base(r.Path)]; err != nil {
		return err
	}
	f.got = append(f.got, r)
	return nil
}

func library(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o644))
	}
	return dir
}

func TestNew_RejectsBadCron(t *testing.T) {
	cfg := config.Default()
	cfg.Schedule.Cron = "every night"
	_, err := New(cfg, nil, &fakeQueue{}, logging.Discard())
	assert.Error(t, err)
}

func TestSweep_QueuesEveryFileWithLibraryCategory(t *testing.T) {
	movies := library(t, "a.mkv", "b.mp4", "notes.txt", "c.tmp")
	q := &fakeQueue{reject: map[string]error{"b.mp4": queue.ErrDuplicate}}

	s, err := New(config.Default(), []category.Library{{Root: movies, Category: category.Movie}}, q, logging.Discard())
	require.NoError(t, err)

	res := s.Sweep(context.Background(), "manual")
	assert.Equal(t, SweepResult{Found: 2, Queued: 1, Duplicate: 1, Stranded: 1}, res)
	require.Len(t, q.got, 1)
	assert.Equal(t, queue.Request{Path: filepath.Join(movies, "a.mkv"), Category: "movie", Source: "manual"}, q.got[0])
}

func TestSweep_StopsWhenQueueClosed(t *testing.T) {
	dir := library(t, "a.mkv", "b.mkv")
	q := &fakeQueue{reject: map[string]error{"a.mkv": queue.ErrClosed}}

	s, err := New(config.Default(), []category.Library{{Root: dir, Category: category.TV}}, q, logging.Discard())
	require.NoError(t, err)

	res := s.Sweep(context.Background(), "schedule")
	assert.Equal(t, 1, res.Rejected)
	assert.Empty(t, q.got)
}

func TestSweep_MissingLibrary(t *testing.T) {
	s, err := New(config.Default(), []category.Library{{Root: filepath.Join(t.TempDir(), "gone"), Category: category.TV}}, &fakeQueue{}, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, s.Sweep(context.Background(), "schedule"))
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, err := New(config.Default(), nil, &fakeQueue{}, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	// A second Run while the first is active is refused.
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.cron != nil
	}, time.Second, 10*time.Millisecond)
	assert.Error(t, s.Run(ctx))

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
