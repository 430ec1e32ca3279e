package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/mediasweep/internal/category"
	"github.com/backmassage/mediasweep/internal/config"
	"github.com/backmassage/mediasweep/internal/probe"
)

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	return New(SettingsFromConfig(cfg), category.NewTable(cfg.Category.BitRates))
}

func TestPlan_Scenarios(t *testing.T) {
	p := newTestPlanner(t)

	tests := []struct {
		name         string
		desc         probe.Descriptor
		cat          category.Category
		wasTargetExt bool
		want         []Flag // nil means no transcode
	}{
		{
			name: "tv 1080p over target is re-encoded at target rate",
			desc: probe.Descriptor{Codec: "h264", Width: 1920, BitRate: 2_200_000},
			cat:  category.TV,
			want: []Flag{
				{KeyAudioCodec, "ac3"}, {KeySubtitleCodec, "mov_text"}, {KeyMovFlags, "+faststart"},
				{KeyVideoCodec, "hevc_nvenc"}, {KeyPreset, "slow"}, {KeyVideoBitRate, "2000k"},
			},
		},
		{
			name:         "tv 1080p under margin already mp4 needs nothing",
			desc:         probe.Descriptor{Codec: "hevc", Width: 1920, BitRate: 2_050_000},
			cat:          category.TV,
			wasTargetExt: true,
		},
		{
			name: "movie 720p under margin in mkv is remuxed",
			desc: probe.Descriptor{Codec: "h264", Width: 1280, BitRate: 2_000_000},
			cat:  category.Movie,
			want: []Flag{
				{KeyAudioCodec, "ac3"}, {KeySubtitleCodec, "mov_text"}, {KeyMovFlags, "+faststart"},
				{KeyVideoCodec, "copy"},
			},
		},
		{
			name: "animation 1080p exactly at margin is re-encoded",
			desc: probe.Descriptor{Codec: "h264", Width: 1920, BitRate: 1_050_000},
			cat:  category.Animation,
			want: []Flag{
				{KeyAudioCodec, "ac3"}, {KeySubtitleCodec, "mov_text"}, {KeyMovFlags, "+faststart"},
				{KeyVideoCodec, "hevc_nvenc"}, {KeyPreset, "slow"}, {KeyVideoBitRate, "1000k"},
			},
		},
		{
			name:         "sentinel descriptor always re-encodes",
			desc:         probe.Unknown(1920),
			cat:          category.Movie,
			wasTargetExt: true,
			want: []Flag{
				{KeyAudioCodec, "ac3"}, {KeySubtitleCodec, "mov_text"}, {KeyMovFlags, "+faststart"},
				{KeyVideoCodec, "hevc_nvenc"}, {KeyPreset, "slow"}, {KeyVideoBitRate, "4000k"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := p.Plan(tt.desc, tt.cat, tt.wasTargetExt)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, plan)
				return
			}
			require.NotNil(t, plan)
			assert.Equal(t, tt.want, plan.Flags())
		})
	}
}

func TestPlan_Laws(t *testing.T) {
	p := newTestPlanner(t)
	widths := []int{640, 1280, 1920, 3840}
	rates := []int64{0, 500_000, 1_000_000, 2_000_000, 2_100_000, 4_199_999, 4_200_000, 9_000_000, 40_000_000}
	cats := []category.Category{category.TV, category.Movie, category.Animation}

	for _, c := range cats {
		for _, w := range widths {
			target, err := p.TargetRate(w, c)
			require.NoError(t, err)
			for _, r := range rates {
				for _, wasTarget := range []bool{false, true} {
					d := probe.Descriptor{Codec: "h264", Width: w, BitRate: r}
					plan, err := p.Plan(d, c, wasTarget)
					require.NoError(t, err)

					again, _ := p.Plan(d, c, wasTarget)
					assert.Equal(t, plan, again, "planning is deterministic")

					over := float64(r) >= float64(target)*1.05
					switch {
					case over:
						require.NotNil(t, plan)
						assert.Equal(t, "hevc_nvenc", plan.VideoCodec())
						assert.Equal(t, FormatRate(target), plan.VideoBitRate())
					case wasTarget:
						assert.Nil(t, plan)
					default:
						require.NotNil(t, plan)
						assert.Equal(t, CopyCodec, plan.VideoCodec())
						assert.False(t, plan.Reencodes())
					}
					if plan != nil {
						flags := plan.Flags()
						assert.Equal(t, Flag{KeyAudioCodec, "ac3"}, flags[0])
						assert.Equal(t, Flag{KeySubtitleCodec, "mov_text"}, flags[1])
						assert.Equal(t, Flag{KeyMovFlags, "+faststart"}, flags[2])
					}
				}
			}
		}
	}
}

func TestTargetRate(t *testing.T) {
	p := newTestPlanner(t)

	rate, err := p.TargetRate(1280, category.Movie)
	require.NoError(t, err)
	assert.Equal(t, int64(2_666_666), rate, "rounded down")

	rate, err = p.TargetRate(3840, category.TV)
	require.NoError(t, err)
	assert.Equal(t, int64(4_000_000), rate)

	_, err = p.TargetRate(1920, "music")
	assert.ErrorIs(t, err, category.ErrUnknown)
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "2000k", FormatRate(2_000_000))
	assert.Equal(t, "2666k", FormatRate(2_666_666))
	assert.Equal(t, "0k", FormatRate(999))
}

func TestPlan_WithoutSubtitles(t *testing.T) {
	p := newTestPlanner(t)
	plan, err := p.Plan(probe.Descriptor{Codec: "h264", Width: 1920, BitRate: 9_000_000}, category.TV, false)
	require.NoError(t, err)
	require.True(t, plan.HasSubtitles())

	stripped := plan.WithoutSubtitles()
	assert.False(t, stripped.HasSubtitles())
	assert.True(t, plan.HasSubtitles(), "original plan is unchanged")
	assert.Equal(t, []string{
		"-c:a", "ac3", "-movflags", "+faststart",
		"-c:v", "hevc_nvenc", "-preset", "slow", "-b:v", "2000k",
	}, stripped.Args())
	assert.Equal(t, "c:a=ac3 movflags=+faststart c:v=hevc_nvenc preset=slow b:v=2000k", stripped.String())
}

func TestPlan_Accessors(t *testing.T) {
	p := newTestPlanner(t)
	plan, err := p.Plan(probe.Descriptor{Codec: "h264", Width: 1920, BitRate: 9_000_000}, category.Movie, false)
	require.NoError(t, err)
	assert.Equal(t, "hevc_nvenc", plan.VideoCodec())
	assert.Equal(t, "slow", plan.Preset())
	assert.Equal(t, "4000k", plan.VideoBitRate())
	assert.Equal(t, "ac3", plan.AudioCodec())
	assert.Equal(t, "mov_text", plan.SubtitleCodec())
	assert.True(t, plan.Reencodes())

	remux, err := p.Plan(probe.Descriptor{Codec: "hevc", Width: 1920, BitRate: 1_000_000}, category.Movie, false)
	require.NoError(t, err)
	assert.False(t, remux.Reencodes())
	assert.Empty(t, remux.Preset())
	assert.Empty(t, remux.WithoutSubtitles().SubtitleCodec())
}
