package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/mediasweep/internal/logging"
	"github.com/backmassage/mediasweep/internal/planner"
)

// scriptedEncoder returns the queued errors in order and records the
// subtitle setting of each attempt.
type scriptedEncoder struct {
	errs     []error
	dropSubs []bool
	subCodec []bool
}

func (s *scriptedEncoder) Execute(_ context.Context, _ *FileHandle, plan *planner.Plan, dropSubs bool) error {
	s.dropSubs = append(s.dropSubs, dropSubs)
	s.subCodec = append(s.subCodec, plan.HasSubtitles())
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func encodeFailure() error {
	return &EncodeError{Input: "/m/a.mkv", Err: errors.New("exit status 1")}
}

func TestRetryController_Transitions(t *testing.T) {
	tests := []struct {
		name         string
		errs         []error
		wantSuccess  bool
		wantAttempts int
		wantDropped  bool
	}{
		{"first attempt succeeds", nil, true, 1, false},
		{"retry without subtitles succeeds", []error{encodeFailure()}, true, 2, true},
		{"both attempts fail", []error{encodeFailure(), encodeFailure()}, false, 2, true},
		{"occupied output is not retried", []error{fmt.Errorf("%w: /m/a.mp4", ErrOutputExists)}, false, 1, false},
		{"rename error is not retried", []error{errors.New("rename: permission denied")}, false, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := &scriptedEncoder{errs: tt.errs}
			c := NewRetryController(enc, logging.Discard())

			res := c.Transcode(context.Background(), &FileHandle{Path: "/m/a.mkv"}, reencodePlan(t))
			assert.Equal(t, tt.wantSuccess, res.Success)
			assert.Equal(t, tt.wantAttempts, res.Attempts)
			assert.Equal(t, tt.wantDropped, res.DroppedSubtitles)
			if tt.wantSuccess {
				assert.NoError(t, res.Err)
			} else {
				assert.Error(t, res.Err)
			}

			assert.False(t, enc.dropSubs[0], "first attempt keeps subtitles")
			assert.True(t, enc.subCodec[0])
			if len(enc.dropSubs) == 2 {
				assert.True(t, enc.dropSubs[1])
				assert.False(t, enc.subCodec[1], "retry plan has no subtitle codec")
			}
		})
	}
}

func TestRetryController_CancelledContextEndsJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	enc := &scriptedEncoder{errs: []error{encodeFailure()}}

	res := NewRetryController(enc, logging.Discard()).Transcode(ctx, &FileHandle{Path: "/m/a.mkv"}, reencodePlan(t))
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
}

func TestRetryController_WithExecutor(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ep.mp4")
	writeFile(t, src, "source")

	// Fail whenever subtitles are mapped.
	r := &fakeRunner{fail: func(_ int, args []string) bool { return slices.Contains(args, "0:s?") }}
	fh := NewFileHandle(src, "mp4")
	res := NewRetryController(newTestExecutor(r), logging.Discard()).Transcode(context.Background(), fh, reencodePlan(t))

	require.True(t, res.Success)
	assert.Equal(t, 2, res.Attempts)
	assert.True(t, res.DroppedSubtitles)
	require.Len(t, r.calls, 2)
	assert.Equal(t, filepath.Join(dir, "ep.tmp"), input(r.calls[1]), "second attempt parks the restored source again")
	assert.Equal(t, []string{"ep.mp4"}, dirEntries(t, dir))
	assert.Equal(t, "encoded", readFile(t, src))
}

func TestRetryController_BothFailLeavesOriginal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ep.mp4")
	writeFile(t, src, "source")

	r := &fakeRunner{fail: func(int, []string) bool { return true }}
	fh := NewFileHandle(src, "mp4")
	res := NewRetryController(newTestExecutor(r), logging.Discard()).Transcode(context.Background(), fh, reencodePlan(t))

	assert.False(t, res.Success)
	assert.Len(t, r.calls, 2, "exactly one retry")
	assert.Equal(t, src, fh.Path)
	assert.Equal(t, []string{"ep.mp4"}, dirEntries(t, dir))
	b, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "source", string(b))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "first_attempt", StateFirstAttempt.String())
	assert.Equal(t, "retried_without_subtitles", StateRetriedWithoutSubtitles.String())
	assert.Equal(t, "done", StateDone.String())
}
