// Package job is the single entry point for transcoding one file. A job
// resolves the file's category, probes it, plans, and runs the encode
// under a deadline. Every failure is logged and folded into the returned
// Outcome; nothing escapes to the caller.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/backmassage/mediasweep/internal/category"
	"github.com/backmassage/mediasweep/internal/config"
	"github.com/backmassage/mediasweep/internal/display"
	"github.com/backmassage/mediasweep/internal/ffmpeg"
	"github.com/backmassage/mediasweep/internal/logging"
	"github.com/backmassage/mediasweep/internal/metrics"
	"github.com/backmassage/mediasweep/internal/planner"
	"github.com/backmassage/mediasweep/internal/probe"
)

// Outcome is the result of a job.
type Outcome int

const (
	Failed Outcome = iota
	NotRequired
	Transcoded
)

func (o Outcome) String() string {
	switch o {
	case Transcoded:
		return "transcoded"
	case NotRequired:
		return "not_required"
	}
	return "failed"
}

// OK reports whether the file was transcoded. A file that needed no work
// is not OK, but it is not a failure either.
func (o Outcome) OK() bool { return o == Transcoded }

// Prober describes a file's primary video stream.
type Prober interface {
	Probe(ctx context.Context, path string) (probe.Descriptor, error)
}

// Transcoder runs the encode attempts for a planned file.
type Transcoder interface {
	Transcode(ctx context.Context, fh *ffmpeg.FileHandle, plan *planner.Plan) ffmpeg.Result
}

// Deps are the collaborators of a Runner.
type Deps struct {
	Table      *category.Table
	Resolver   category.Resolver
	Prober     Prober
	Planner    *planner.Planner
	Transcoder Transcoder
}

// Report is everything a job learned, for callers that aggregate.
type Report struct {
	ID          string
	Path        string
	Category    category.Category
	Outcome     Outcome
	Descriptor  probe.Descriptor
	Plan        *planner.Plan
	Attempts    int
	InputBytes  int64
	OutputBytes int64
	Elapsed     time.Duration
	Err         error
}

// Runner executes jobs. It holds no per-job state and is safe for
// concurrent use on distinct paths.
type Runner struct {
	deps        Deps
	targetExt   string
	minFileSize int64
	timeout     time.Duration
	log         *slog.Logger
}

// New returns a Runner.
func New(cfg *config.Config, deps Deps, log *slog.Logger) *Runner {
	return &Runner{
		deps:        deps,
		targetExt:   cfg.Transcode.TargetExtension,
		minFileSize: cfg.Transcode.MinFileSize,
		timeout:     cfg.Transcode.JobTimeout,
		log:         logging.WithComponent(log, "job"),
	}
}

// TranscodeFromPath runs a job for path. An empty categoryName asks the
// resolver.
func (r *Runner) TranscodeFromPath(ctx context.Context, path, categoryName string) Outcome {
	return r.Run(ctx, path, categoryName).Outcome
}

// Run runs a job and returns its full report.
func (r *Runner) Run(ctx context.Context, path, categoryName string) (rep Report) {
	rep = Report{ID: uuid.NewString(), Path: path, Outcome: Failed}
	log := logging.WithJob(r.log, rep.ID, path)
	start := time.Now()

	metrics.JobsInProgress.Inc()
	defer func() {
		if p := recover(); p != nil {
			rep.Outcome = Failed
			rep.Err = fmt.Errorf("panic: %v", p)
			log.Error("job panicked", "panic", p)
		}
		metrics.JobsInProgress.Dec()
		rep.Elapsed = time.Since(start)
		metrics.JobsTotal.WithLabelValues(string(rep.Category), rep.Outcome.String()).Inc()
		metrics.JobDuration.WithLabelValues(rep.Outcome.String()).Observe(rep.Elapsed.Seconds())
		log.Info("job finished", "outcome", rep.Outcome.String(), "elapsed", display.FormatElapsed(rep.Elapsed))
	}()

	cat, err := r.category(path, categoryName)
	if err != nil {
		rep.Err = err
		log.Error("invalid path received", "error", err)
		return rep
	}
	rep.Category = cat
	log.Info("received file", "category", string(cat))

	info, err := os.Stat(path)
	if err != nil {
		rep.Err = err
		log.Error("file not found", "error", err)
		return rep
	}
	if info.IsDir() || info.Size() < r.minFileSize {
		rep.Err = fmt.Errorf("%s: too small or not a regular file (%d bytes)", path, info.Size())
		log.Error("file too small, possibly incomplete", "size", info.Size())
		return rep
	}
	rep.InputBytes = info.Size()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	desc, err := r.deps.Prober.Probe(ctx, path)
	if err != nil {
		rep.Err = err
		log.Error("cannot probe file", "error", err)
		return rep
	}
	rep.Descriptor = desc
	log.Debug("file info", "codec", desc.Codec, "width", desc.Width, "bitrate", display.FormatBitRate(desc.BitRate))

	fh := ffmpeg.NewFileHandle(path, r.targetExt)
	plan, err := r.deps.Planner.Plan(desc, cat, fh.WasTargetExt)
	if err != nil {
		rep.Err = err
		log.Error("cannot plan transcode", "error", err)
		return rep
	}
	if plan == nil {
		rep.Outcome = NotRequired
		log.Info("no transcode required")
		return rep
	}
	rep.Plan = plan
	log.Debug("params", "flags", plan.String())

	res := r.deps.Transcoder.Transcode(ctx, fh, plan)
	rep.Attempts = res.Attempts
	if !res.Success {
		rep.Err = res.Err
		if errors.Is(res.Err, context.DeadlineExceeded) {
			log.Error("transcode timed out", "timeout", r.timeout)
		} else {
			log.Error("transcode failed", "attempts", res.Attempts, "error", res.Err)
		}
		return rep
	}

	rep.Outcome = Transcoded
	if out, err := os.Stat(fh.Path); err == nil {
		rep.OutputBytes = out.Size()
	}
	if saved := rep.InputBytes - rep.OutputBytes; saved > 0 {
		metrics.BytesSavedTotal.Add(float64(saved))
	}
	log.Info("successfully transcoded",
		"output", fh.Path,
		"subtitles_dropped", res.DroppedSubtitles,
		"size_change", display.FormatBytesWithSign(rep.OutputBytes-rep.InputBytes),
		"percent_of_original", display.Percent(rep.OutputBytes, rep.InputBytes),
	)
	return rep
}

func (r *Runner) category(path, name string) (category.Category, error) {
	if name != "" {
		return r.deps.Table.Parse(name)
	}
	if r.deps.Resolver == nil {
		return "", fmt.Errorf("%w: no resolver configured", category.ErrUnresolved)
	}
	return r.deps.Resolver.Resolve(path)
}
