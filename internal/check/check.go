// Package check locates the ffmpeg tools and verifies that the configured
// encoders exist before any job runs. RunCheck prints the same checks,
// plus host and library details, as an informational report.
package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/backmassage/mediasweep/internal/config"
	"github.com/backmassage/mediasweep/internal/display"
	"github.com/backmassage/mediasweep/internal/job"
	"github.com/backmassage/mediasweep/internal/probe"
)

// Sentinel errors returned by Deps when a required tool or encoder is missing.
var (
	ErrFfmpegNotFound  = errors.New("ffmpeg not found")
	ErrFfprobeNotFound = errors.New("ffprobe not found")
	ErrEncoderMissing  = errors.New("encoder not available in ffmpeg")
)

// Checker runs the tool checks. The zero value is not usable; call New.
type Checker struct {
	runner   probe.Runner
	lookPath func(string) (string, error)
	log      *slog.Logger
}

// Option customizes a Checker.
type Option func(*Checker)

// WithRunner replaces the command runner.
func WithRunner(r probe.Runner) Option { return func(c *Checker) { c.runner = r } }

// WithLookPath replaces the PATH lookup.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(c *Checker) { c.lookPath = fn }
}

// New returns a Checker using real processes.
func New(log *slog.Logger, opts ...Option) *Checker {
	c := &Checker{runner: probe.ExecRunner{}, lookPath: exec.LookPath, log: log}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FindBinary resolves a tool: the configured path if set, else name in
// the working directory, else name on PATH.
func (c *Checker) FindBinary(configured, name string) (string, error) {
	if configured != "" {
		if isExecutable(configured) {
			return configured, nil
		}
		return "", fmt.Errorf("%s: configured path %q is not an executable file", name, configured)
	}
	if local, err := filepath.Abs(name); err == nil && isExecutable(local) {
		return local, nil
	}
	return c.lookPath(name)
}

// Deps resolves ffmpeg and ffprobe and confirms that the configured video
// and audio encoders are compiled into ffmpeg.
func (c *Checker) Deps(ctx context.Context, cfg *config.Config) (job.Binaries, error) {
	var bins job.Binaries
	var err error
	if bins.FFmpeg, err = c.FindBinary(cfg.FFmpeg.BinaryPath, "ffmpeg"); err != nil {
		return bins, fmt.Errorf("%w: %v", ErrFfmpegNotFound, err)
	}
	if bins.FFprobe, err = c.FindBinary(cfg.FFmpeg.ProbePath, "ffprobe"); err != nil {
		return bins, fmt.Errorf("%w: %v", ErrFfprobeNotFound, err)
	}

	encoders, err := c.encoders(ctx, bins.FFmpeg)
	if err != nil {
		return bins, fmt.Errorf("list encoders: %w", err)
	}
	for _, name := range []string{cfg.FFmpeg.VideoEncoder, cfg.FFmpeg.AudioCodec, cfg.FFmpeg.SubtitleCodec} {
		if name != "" && !encoders[name] {
			return bins, fmt.Errorf("%w: %s", ErrEncoderMissing, name)
		}
	}
	return bins, nil
}

// RunCheck logs tool versions, encoder availability, host resources, and
// library roots. It is informational only and does not stop on failure.
func (c *Checker) RunCheck(ctx context.Context, cfg *config.Config) {
	c.log.Info("=== System Check ===")

	ffmpegPath := c.checkTool(ctx, cfg.FFmpeg.BinaryPath, "ffmpeg")
	c.checkTool(ctx, cfg.FFmpeg.ProbePath, "ffprobe")
	if ffmpegPath != "" {
		c.checkEncoders(ctx, ffmpegPath, cfg)
	}
	c.checkHost(ctx)
	c.checkLibraries(cfg)
}

func (c *Checker) checkTool(ctx context.Context, configured, name string) string {
	path, err := c.FindBinary(configured, name)
	if err != nil {
		c.log.Error(name+" not found", "error", err)
		return ""
	}
	out, err := c.runner.Output(ctx, path, "-hide_banner", "-version")
	if err != nil {
		c.log.Warn(name+" found but -version failed", "path", path, "error", err)
		return path
	}
	c.log.Info(name+" ok", "path", path, "version", firstLine(string(out)))
	return path
}

func (c *Checker) checkEncoders(ctx context.Context, ffmpegPath string, cfg *config.Config) {
	encoders, err := c.encoders(ctx, ffmpegPath)
	if err != nil {
		c.log.Warn("could not list encoders", "error", err)
		return
	}
	for _, name := range []string{cfg.FFmpeg.VideoEncoder, cfg.FFmpeg.AudioCodec, cfg.FFmpeg.SubtitleCodec} {
		if encoders[name] {
			c.log.Info("encoder available", "encoder", name)
		} else {
			c.log.Error("encoder missing", "encoder", name)
		}
	}
}

func (c *Checker) checkHost(ctx context.Context) {
	attrs := []any{"cores", runtime.NumCPU()}
	if avg, err := load.AvgWithContext(ctx); err == nil && avg != nil {
		attrs = append(attrs, "load1", fmt.Sprintf("%.2f", avg.Load1))
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		attrs = append(attrs,
			"mem_total", display.FormatBytes(int64(vm.Total)),
			"mem_available", display.FormatBytes(int64(vm.Available)),
		)
	}
	c.log.Info("host", attrs...)
}

func (c *Checker) checkLibraries(cfg *config.Config) {
	for _, lib := range cfg.Libraries {
		fi, err := os.Stat(lib.Path)
		switch {
		case err != nil:
			c.log.Warn("library root unavailable", "path", lib.Path, "category", lib.Category, "error", err)
		case !fi.IsDir():
			c.log.Warn("library root is not a directory", "path", lib.Path)
		default:
			c.log.Info("library ok", "path", lib.Path, "category", lib.Category)
		}
	}
}

// encoders returns the encoder names listed by `ffmpeg -encoders`.
func (c *Checker) encoders(ctx context.Context, ffmpegPath string) (map[string]bool, error) {
	out, err := c.runner.Output(ctx, ffmpegPath, "-hide_banner", "-encoders")
	if err != nil {
		return nil, err
	}
	return parseEncoders(string(out)), nil
}

// parseEncoders reads lines of the form " V....D hevc_nvenc  NVIDIA ..."
// after the "------" separator.
func parseEncoders(out string) map[string]bool {
	names := make(map[string]bool)
	started := false
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if !started {
			if len(fields) > 0 && strings.HasPrefix(fields[0], "---") {
				started = true
			}
			continue
		}
		if len(fields) >= 2 {
			names[fields[1]] = true
		}
	}
	return names
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "\n"); idx > 0 {
		return s[:idx]
	}
	return s
}

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular() && fi.Mode().Perm()&0o111 != 0
}
