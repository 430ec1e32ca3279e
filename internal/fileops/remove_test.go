package fileops

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/mediasweep/internal/config"
	"github.com/backmassage/mediasweep/internal/logging"
)

func writeOld(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "old.tmp")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

// deniedRemove fails like os.Remove on a file another process keeps
// read-only or open.
func deniedRemove(calls *int) Option {
	return WithRemove(func(path string) error {
		*calls++
		return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrPermission}
	})
}

func noSleep(sleeps *[]time.Duration) Option {
	return WithSleep(func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	})
}

func TestRemove_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.mkv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	r := NewRemover(config.RemoveConfig{Attempts: 5, Delay: time.Second}, logging.Discard())
	require.NoError(t, r.Remove(context.Background(), path))
	assert.NoFileExists(t, path)
}

func TestRemove_MissingIsSuccess(t *testing.T) {
	r := NewRemover(config.RemoveConfig{Attempts: 1}, logging.Discard())
	assert.NoError(t, r.Remove(context.Background(), filepath.Join(t.TempDir(), "gone.mkv")))
}

func TestRemove_ForceAfterBackoff(t *testing.T) {
	path := writeOld(t)
	removes, forces := 0, 0
	var sleeps []time.Duration

	r := NewRemover(config.RemoveConfig{Attempts: 5, Delay: 5 * time.Second}, logging.Discard(),
		deniedRemove(&removes),
		WithForcer(forcerFunc(func(p string) error {
			forces++
			if forces < 3 {
				return errors.New("sharing violation")
			}
			return os.Remove(p)
		})),
		noSleep(&sleeps),
	)
	require.NoError(t, r.Remove(context.Background(), path))
	assert.NoFileExists(t, path)
	assert.Equal(t, 3, removes)
	assert.Equal(t, 3, forces)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, sleeps)
}

func TestRemove_GivesUp(t *testing.T) {
	path := writeOld(t)
	removes, forces := 0, 0
	var sleeps []time.Duration
	var looked bool

	r := NewRemover(config.RemoveConfig{Attempts: 5, Delay: 5 * time.Second}, logging.Discard(),
		deniedRemove(&removes),
		WithForcer(forcerFunc(func(string) error {
			forces++
			return errors.New("in use")
		})),
		WithHolderLookup(func(context.Context, string) ([]Holder, error) {
			looked = true
			return []Holder{{PID: 42, Name: "plex"}}, nil
		}),
		noSleep(&sleeps),
	)
	err := r.Remove(context.Background(), path)
	require.ErrorIs(t, err, ErrLocked)
	assert.FileExists(t, path)
	assert.Equal(t, 5, removes)
	assert.Equal(t, 5, forces)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second, 5 * time.Second}, sleeps,
		"no wait after the final attempt")
	assert.True(t, looked)
}

func TestRemove_ContextCancelled(t *testing.T) {
	path := writeOld(t)
	removes := 0
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRemover(config.RemoveConfig{Attempts: 3, Delay: time.Hour}, logging.Discard(),
		deniedRemove(&removes),
		WithForcer(forcerFunc(func(string) error { return errors.New("in use") })),
	)
	err := r.Remove(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, removes)
	assert.FileExists(t, path)
}

func TestRemove_OtherErrorsDoNotEscalate(t *testing.T) {
	path := writeOld(t)
	forced := false
	var sleeps []time.Duration
	ioErr := &fs.PathError{Op: "remove", Path: path, Err: syscall.EIO}

	r := NewRemover(config.RemoveConfig{Attempts: 5, Delay: 5 * time.Second}, logging.Discard(),
		WithRemove(func(string) error { return ioErr }),
		WithForcer(forcerFunc(func(string) error {
			forced = true
			return nil
		})),
		noSleep(&sleeps),
	)
	err := r.Remove(context.Background(), path)
	require.ErrorIs(t, err, syscall.EIO)
	assert.NotErrorIs(t, err, ErrLocked)
	assert.False(t, forced)
	assert.Empty(t, sleeps)
}

func TestHolderString(t *testing.T) {
	assert.Equal(t, "plex(42)", Holder{PID: 42, Name: "plex"}.String())
}

type forcerFunc func(path string) error

func (f forcerFunc) ForceRemove(path string) error { return f(path) }
