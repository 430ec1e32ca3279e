package planner

import (
	"fmt"
	"math"
	"strconv"

	"github.com/backmassage/mediasweep/internal/category"
	"github.com/backmassage/mediasweep/internal/config"
	"github.com/backmassage/mediasweep/internal/probe"
)

// Settings are the fixed inputs of every decision.
type Settings struct {
	VideoEncoder  string
	Preset        string
	AudioCodec    string
	SubtitleCodec string
	TargetWidth   int     // Width the category bitrates are defined for.
	Margin        float64 // Re-encode only above target*Margin.
}

// SettingsFromConfig extracts planner settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		VideoEncoder:  cfg.FFmpeg.VideoEncoder,
		Preset:        cfg.FFmpeg.Preset,
		AudioCodec:    cfg.FFmpeg.AudioCodec,
		SubtitleCodec: cfg.FFmpeg.SubtitleCodec,
		TargetWidth:   cfg.Transcode.TargetWidth,
		Margin:        cfg.Transcode.BitRateMargin,
	}
}

// Planner turns descriptors into plans.
type Planner struct {
	settings Settings
	table    *category.Table
}

// New returns a Planner over the given bitrate table.
func New(s Settings, table *category.Table) *Planner {
	return &Planner{settings: s, table: table}
}

// TargetRate is the category bitrate scaled by width relative to the
// target width, rounded down.
func (p *Planner) TargetRate(width int, c category.Category) (int64, error) {
	base, ok := p.table.BitRate(c)
	if !ok {
		return 0, fmt.Errorf("%w: %q", category.ErrUnknown, c)
	}
	modifier := float64(width) / float64(p.settings.TargetWidth)
	return int64(math.Floor(modifier * float64(base))), nil
}

// Plan returns the encoder flags for d, or nil when the file needs no work.
// A file over target*Margin is re-encoded at the target rate. Otherwise its
// video is stream-copied into the target container, unless it is already
// in that container.
func (p *Planner) Plan(d probe.Descriptor, c category.Category, wasTargetExt bool) (*Plan, error) {
	target, err := p.TargetRate(d.Width, c)
	if err != nil {
		return nil, err
	}

	flags := []Flag{{KeyAudioCodec, p.settings.AudioCodec}}
	if p.settings.SubtitleCodec != "" {
		flags = append(flags, Flag{KeySubtitleCodec, p.settings.SubtitleCodec})
	}
	flags = append(flags, Flag{KeyMovFlags, "+faststart"})

	if float64(d.BitRate) >= float64(target)*p.settings.Margin {
		flags = append(flags,
			Flag{KeyVideoCodec, p.settings.VideoEncoder},
			Flag{KeyPreset, p.settings.Preset},
			Flag{KeyVideoBitRate, FormatRate(target)},
		)
		return newPlan(flags...), nil
	}
	if wasTargetExt {
		return nil, nil
	}
	flags = append(flags, Flag{KeyVideoCodec, CopyCodec})
	return newPlan(flags...), nil
}

// FormatRate renders bits per second as whole kilobits, e.g. 2000000 -> "2000k".
func FormatRate(bps int64) string {
	return strconv.FormatInt(bps/1000, 10) + "k"
}
