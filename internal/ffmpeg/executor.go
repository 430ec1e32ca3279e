package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/backmassage/mediasweep/internal/config"
	"github.com/backmassage/mediasweep/internal/fileops"
	"github.com/backmassage/mediasweep/internal/metrics"
	"github.com/backmassage/mediasweep/internal/naming"
	"github.com/backmassage/mediasweep/internal/planner"
)

const stderrTailLines = 20

// FileHandle tracks where a job's file currently lives. The executor
// updates Path as the file is renamed, replaced, or restored.
type FileHandle struct {
	Path         string
	OriginalExt  string
	WasTargetExt bool
}

// NewFileHandle describes the file at path before any work is done.
func NewFileHandle(path, targetExt string) *FileHandle {
	_, ext := naming.Split(path)
	return &FileHandle{
		Path:         path,
		OriginalExt:  ext,
		WasTargetExt: naming.ExtensionMatches(ext, targetExt),
	}
}

// Runner starts one ffmpeg process and waits for it.
type Runner interface {
	Run(ctx context.Context, args []string, stderr io.Writer) error
}

// ExecRunner runs ffmpeg with os/exec. Cancelling ctx kills the process.
type ExecRunner struct{}

// Run implements [Runner].
func (ExecRunner) Run(ctx context.Context, args []string, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stderr = stderr
	return cmd.Run()
}

// Remover retires a superseded source file.
type Remover interface {
	Remove(ctx context.Context, path string) error
}

// ExecResult holds the outcome of a single ffmpeg invocation.
type ExecResult struct {
	Stderr string
	Err    error
}

// Options are the fixed parameters of every attempt.
type Options struct {
	Binary    string
	TargetExt string
	TempExt   string
	FileMode  os.FileMode
	Verbose   bool // Tee ffmpeg stderr to os.Stderr.
}

// OptionsFromConfig extracts executor options. binary is the resolved
// ffmpeg path.
func OptionsFromConfig(cfg *config.Config, binary string) (Options, error) {
	mode, err := cfg.Transcode.Mode()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Binary:    binary,
		TargetExt: cfg.Transcode.TargetExtension,
		TempExt:   cfg.Transcode.TempExtension,
		FileMode:  os.FileMode(mode),
		Verbose:   cfg.FFmpeg.Verbose,
	}, nil
}

// Executor performs single encode attempts.
type Executor struct {
	opts    Options
	runner  Runner
	remover Remover
	log     *slog.Logger
}

// NewExecutor returns an Executor. A nil runner uses [ExecRunner].
func NewExecutor(opts Options, runner Runner, remover Remover, log *slog.Logger) *Executor {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Executor{opts: opts, runner: runner, remover: remover, log: log}
}

// Execute runs one attempt for fh. On success the output replaces the
// source and fh points at it. On failure any partial output is deleted,
// the source is back under its original name, and the error matches
// ErrEncodeFailed or ErrOutputExists.
func (e *Executor) Execute(ctx context.Context, fh *FileHandle, plan *planner.Plan, dropSubs bool) error {
	base, ext := naming.Split(fh.Path)
	output := base + "." + e.opts.TargetExt

	if !naming.ExtensionMatches(ext, e.opts.TargetExt) {
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("%w: %s", ErrOutputExists, output)
		}
	}

	if naming.ExtensionMatches(ext, e.opts.TargetExt) {
		temp := base + "." + e.opts.TempExt
		if _, err := os.Stat(temp); err == nil {
			return fmt.Errorf("%w: %s", ErrOutputExists, temp)
		}
		e.log.Debug("renaming source out of the output path", "from", fh.Path, "to", temp)
		if err := os.Rename(fh.Path, temp); err != nil {
			return fmt.Errorf("rename %s: %w", fh.Path, err)
		}
		fh.Path = temp
	}

	args := Build(e.opts.Binary, fh.Path, output, plan, dropSubs)
	e.log.Debug("running ffmpeg", "args", strings.Join(args[1:], " "))

	res := e.run(ctx, args)
	if res.Err != nil {
		e.restore(fh, output)
		encErr := &EncodeError{Input: fh.Path, Cause: Classify(res.Stderr), Stderr: res.Stderr, Err: res.Err}
		if ctx.Err() != nil {
			encErr.Err = fmt.Errorf("%w: %w", ctx.Err(), res.Err)
		}
		e.logStderr(res.Stderr)
		return encErr
	}

	if err := e.remover.Remove(ctx, fh.Path); err != nil {
		if errors.Is(err, fileops.ErrLocked) {
			metrics.LockedRemovalsTotal.Inc()
		}
		e.log.Warn("superseded file left in place", "path", fh.Path, "error", err)
	}
	if err := os.Chmod(output, e.opts.FileMode); err != nil {
		e.log.Warn("could not set output permissions", "path", output, "error", err)
	}
	fh.Path = output
	return nil
}

func (e *Executor) run(ctx context.Context, args []string) ExecResult {
	var stderrBuf bytes.Buffer
	var w io.Writer = &stderrBuf
	if e.opts.Verbose {
		w = io.MultiWriter(&stderrBuf, os.Stderr)
	}
	err := e.runner.Run(ctx, args, w)
	return ExecResult{Stderr: stderrBuf.String(), Err: err}
}

// restore deletes a partial output and moves a parked source back to its
// original name.
func (e *Executor) restore(fh *FileHandle, output string) {
	if err := os.Remove(output); err != nil && !errors.Is(err, fs.ErrNotExist) {
		e.log.Error("could not delete partial output", "path", output, "error", err)
	}
	if !naming.HasExtension(fh.Path, e.opts.TempExt) {
		return
	}
	if _, err := os.Stat(fh.Path); err != nil {
		return
	}
	ext := fh.OriginalExt
	if ext == "" {
		ext = e.opts.TargetExt
	}
	restored := naming.WithExtension(fh.Path, ext)
	e.log.Debug("restoring source name", "from", fh.Path, "to", restored, "ext", ext)
	if err := os.Rename(fh.Path, restored); err != nil {
		e.log.Error("could not restore source name", "path", fh.Path, "error", err)
		return
	}
	fh.Path = restored
}

func (e *Executor) logStderr(stderr string) {
	lines := tail(stderr, stderrTailLines)
	if len(lines) == 0 {
		return
	}
	e.log.Debug("last ffmpeg output", "stderr", strings.Join(lines, "\n"))
}
