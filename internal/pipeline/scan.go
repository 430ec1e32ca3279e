package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/backmassage/mediasweep/internal/category"
	"github.com/backmassage/mediasweep/internal/display"
	"github.com/backmassage/mediasweep/internal/job"
	"github.com/backmassage/mediasweep/internal/logging"
	"github.com/backmassage/mediasweep/internal/naming"
)

// RunStats tracks aggregate counters and byte totals across a scan.
type RunStats struct {
	Total            int
	Current          int
	Transcoded       int
	NotRequired      int
	Failed           int
	Stranded         int
	TotalInputBytes  int64 // Only files that were transcoded.
	TotalOutputBytes int64
}

// SpaceSaved returns the aggregate byte difference between inputs and outputs.
// Positive means outputs are smaller; negative means they grew.
func (s *RunStats) SpaceSaved() int64 {
	return s.TotalInputBytes - s.TotalOutputBytes
}

// JobRunner runs one job. *job.Runner implements it.
type JobRunner interface {
	Run(ctx context.Context, path, category string) job.Report
}

// Scanner transcodes whole libraries, one file at a time.
type Scanner struct {
	jobs      JobRunner
	exts      []string
	targetExt string
	tempExt   string
	log       *slog.Logger
}

// NewScanner returns a Scanner that considers files with the given
// extensions and flags stranded tempExt files.
func NewScanner(jobs JobRunner, exts []string, targetExt, tempExt string, log *slog.Logger) *Scanner {
	return &Scanner{
		jobs:      jobs,
		exts:      exts,
		targetExt: targetExt,
		tempExt:   tempExt,
		log:       logging.WithComponent(log, "scan"),
	}
}

// Scan discovers every file in libs and runs a job for each, passing the
// library's category. It stops early when ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context, libs []category.Library) RunStats {
	var stats RunStats

	found, err := DiscoverLibraries(libs, s.exts, s.tempExt)
	if err != nil {
		s.log.Error("file discovery failed", "error", err)
		return stats
	}
	stats.Total = len(found.Items)
	stats.Stranded = len(found.Stranded)
	s.log.Info("scan started", "libraries", len(libs), "files", stats.Total)
	for _, p := range found.Stranded {
		s.reportStranded(p)
	}

	for i, item := range found.Items {
		if ctx.Err() != nil {
			s.log.Warn("interrupted", "remaining", stats.Total-i)
			break
		}
		stats.Current = i + 1
		s.log.Info("queued for transcoding", "progress", progress(stats.Current, stats.Total), "file", filepath.Base(item.Path))

		rep := s.jobs.Run(ctx, item.Path, string(item.Category))
		switch rep.Outcome {
		case job.Transcoded:
			stats.Transcoded++
			stats.TotalInputBytes += rep.InputBytes
			stats.TotalOutputBytes += rep.OutputBytes
		case job.NotRequired:
			stats.NotRequired++
		default:
			stats.Failed++
		}
	}

	s.logSummary(&stats)
	return stats
}

// A stranded temp file is a parked source. With no output beside it, the
// parked name is the only copy. With an output beside it, the encode may
// have finished with the source left locked, or may have been cut short, so
// renaming would overwrite something either way.
func (s *Scanner) reportStranded(path string) {
	output := naming.WithExtension(path, s.targetExt)
	if outputBeside(path, s.targetExt) {
		s.log.Warn("stranded temp file beside an existing output; check which one is complete before removing either",
			"path", path, "output", output)
		return
	}
	s.log.Warn("stranded temp file with no output beside it; it holds the only copy", "path", path, "original", output)
}

func outputBeside(tempPath, targetExt string) bool {
	info, err := os.Stat(naming.WithExtension(tempPath, targetExt))
	return err == nil && info.Mode().IsRegular()
}

func (s *Scanner) logSummary(stats *RunStats) {
	s.log.Info("scan finished",
		"processed", stats.Current,
		"transcoded", stats.Transcoded,
		"not_required", stats.NotRequired,
		"failed", stats.Failed,
		"stranded", stats.Stranded,
	)
	if stats.Transcoded == 0 {
		return
	}
	saved := stats.SpaceSaved()
	attrs := []any{
		"input", display.FormatBytes(stats.TotalInputBytes),
		"output", display.FormatBytes(stats.TotalOutputBytes),
	}
	if saved >= 0 {
		s.log.Info("total space saved: "+display.FormatBytes(saved), attrs...)
	} else {
		s.log.Warn("overall output is larger: "+display.FormatBytes(-saved), attrs...)
	}
}

func progress(current, total int) string {
	return fmt.Sprintf("[%d/%d]", current, total)
}
