package probe

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/mediasweep/internal/logging"
)

// fakeRunner answers the stream and format ffprobe calls with canned JSON.
type fakeRunner struct {
	stream    string
	format    string
	streamErr error
	calls     [][]string
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if slices.Contains(args, "-select_streams") {
		if f.streamErr != nil {
			return nil, f.streamErr
		}
		return []byte(f.stream), nil
	}
	return []byte(f.format), nil
}

// 1080p HEVC with a stream-level bitrate.
const sampleHEVC = `{
  "programs": [],
  "streams": [
    { "index": 0, "codec_name": "hevc", "width": 1920, "bit_rate": "3500000" }
  ]
}`

// Matroska H.264 without stream bitrates; needs the container fallback.
const sampleNoStreamRate = `{
  "streams": [
    { "index": 0, "codec_name": "h264", "width": 1280 }
  ]
}`

const sampleFormat = `{
  "streams": [
    { "index": 0, "codec_type": "video" },
    { "index": 1, "codec_type": "audio", "bit_rate": "640000" },
    { "index": 2, "codec_type": "audio", "bit_rate": "192000" },
    { "index": 3, "codec_type": "subtitle" }
  ],
  "format": { "bit_rate": "4832000" }
}`

func newTestProber(r Runner) *Prober {
	return NewProber("ffprobe", r, 1920, logging.Discard())
}

func TestProbe_StreamBitRate(t *testing.T) {
	r := &fakeRunner{stream: sampleHEVC}
	d, err := newTestProber(r).Probe(context.Background(), "/m/a.mkv")
	require.NoError(t, err)

	assert.Equal(t, Descriptor{Codec: "hevc", Width: 1920, BitRate: 3500000}, d)
	require.Len(t, r.calls, 1, "no fallback call when stream bitrate is present")
	assert.Equal(t, []string{
		"ffprobe", "-hide_banner", "-loglevel", "fatal",
		"-select_streams", "v:0",
		"-show_entries", "stream=index,width,codec_name,bit_rate",
		"-of", "json", "/m/a.mkv",
	}, r.calls[0])
}

func TestProbe_ContainerFallback(t *testing.T) {
	r := &fakeRunner{stream: sampleNoStreamRate, format: sampleFormat}
	d, err := newTestProber(r).Probe(context.Background(), "/m/b.mkv")
	require.NoError(t, err)

	assert.Equal(t, "h264", d.Codec)
	assert.Equal(t, 1280, d.Width)
	assert.Equal(t, int64(4832000-640000-192000), d.BitRate)
	assert.Len(t, r.calls, 2)
}

func TestProbe_MissingFieldsUseSentinel(t *testing.T) {
	r := &fakeRunner{
		stream: `{"streams":[{"index":0}]}`,
		format: `{"streams":[{"index":0},{"index":1,"bit_rate":"900000"}],"format":{"bit_rate":"800000"}}`,
	}
	d, err := newTestProber(r).Probe(context.Background(), "/m/c.avi")
	require.NoError(t, err)

	assert.Equal(t, UnknownCodec, d.Codec)
	assert.Equal(t, 1920, d.Width)
	assert.Equal(t, int64(math.MaxInt64), d.BitRate, "non-positive estimate falls back to the sentinel")
	assert.False(t, d.BitRateKnown())
}

func TestProbe_Errors(t *testing.T) {
	tests := []struct {
		name   string
		runner *fakeRunner
		want   error
	}{
		{"ffprobe fails", &fakeRunner{streamErr: errors.New("exit status 1")}, nil},
		{"malformed output", &fakeRunner{stream: "not json"}, nil},
		{"no video stream", &fakeRunner{stream: `{"streams":[]}`}, ErrNoVideoStream},
		{"no container bitrate", &fakeRunner{stream: sampleNoStreamRate, format: `{"format":{}}`}, ErrNoFormatBitRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestProber(tt.runner).Probe(context.Background(), "/m/d.mkv")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrProbe)
			var pe *Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "/m/d.mkv", pe.Path)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestDescriptorString(t *testing.T) {
	assert.Equal(t, "codec=hevc width=1280 bitrate=900000",
		Descriptor{Codec: "hevc", Width: 1280, BitRate: 900000}.String())
	assert.Equal(t, "codec=unknown width=1920 bitrate=unknown", Unknown(1920).String())
}
