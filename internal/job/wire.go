package job

import (
	"log/slog"

	"github.com/backmassage/mediasweep/internal/category"
	"github.com/backmassage/mediasweep/internal/config"
	"github.com/backmassage/mediasweep/internal/ffmpeg"
	"github.com/backmassage/mediasweep/internal/fileops"
	"github.com/backmassage/mediasweep/internal/logging"
	"github.com/backmassage/mediasweep/internal/planner"
	"github.com/backmassage/mediasweep/internal/probe"
)

// Binaries are the resolved tool paths.
type Binaries struct {
	FFmpeg  string
	FFprobe string
}

// NewFromConfig wires a Runner with the real ffprobe, ffmpeg, and
// filesystem collaborators.
func NewFromConfig(cfg *config.Config, bins Binaries, log *slog.Logger) (*Runner, error) {
	table, resolver := category.FromConfig(cfg)

	opts, err := ffmpeg.OptionsFromConfig(cfg, bins.FFmpeg)
	if err != nil {
		return nil, err
	}
	remover := fileops.NewRemover(cfg.Remove, logging.WithComponent(log, "remove"))
	executor := ffmpeg.NewExecutor(opts, nil, remover, logging.WithComponent(log, "ffmpeg"))

	deps := Deps{
		Table:      table,
		Resolver:   resolver,
		Prober:     probe.NewProber(bins.FFprobe, nil, cfg.Transcode.TargetWidth, logging.WithComponent(log, "probe")),
		Planner:    planner.New(planner.SettingsFromConfig(cfg), table),
		Transcoder: ffmpeg.NewRetryController(executor, logging.WithComponent(log, "retry")),
	}
	return New(cfg, deps, log), nil
}
