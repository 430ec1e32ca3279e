package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes a command and returns its stdout.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec. Stderr is folded into the error.
type ExecRunner struct{}

// Output implements [Runner].
func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Prober runs ffprobe against single files.
type Prober struct {
	binary      string
	runner      Runner
	targetWidth int
	log         *slog.Logger
}

// NewProber returns a Prober using the given ffprobe binary. Missing widths
// fall back to targetWidth.
func NewProber(binary string, runner Runner, targetWidth int, log *slog.Logger) *Prober {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Prober{binary: binary, runner: runner, targetWidth: targetWidth, log: log}
}

// Probe returns the descriptor of the first video stream of path. Fields
// ffprobe leaves out take their [Unknown] values; every failure to obtain
// usable output is an *Error.
func (p *Prober) Probe(ctx context.Context, path string) (Descriptor, error) {
	raw, err := p.run(ctx, "stream", path,
		"-select_streams", "v:0",
		"-show_entries", "stream=index,width,codec_name,bit_rate",
	)
	if err != nil {
		return Descriptor{}, err
	}
	if len(raw.Streams) == 0 {
		return Descriptor{}, &Error{Op: "stream", Path: path, Err: ErrNoVideoStream}
	}

	s := raw.Streams[0]
	d := Unknown(p.targetWidth)
	if s.CodecName != "" {
		d.Codec = s.CodecName
	}
	if s.Width > 0 {
		d.Width = s.Width
	}

	rate := parseInt64(s.BitRate)
	if rate <= 0 {
		rate, err = p.manualBitRate(ctx, path, s.Index)
		if err != nil {
			return Descriptor{}, err
		}
	}
	if rate > 0 {
		d.BitRate = rate
	}

	p.log.Debug("probed", "path", path, "codec", d.Codec, "width", d.Width, "bitrate", d.BitRate)
	return d, nil
}

// manualBitRate estimates the video bitrate as the container bitrate less
// the bitrates of every other stream.
func (p *Prober) manualBitRate(ctx context.Context, path string, videoIndex int) (int64, error) {
	raw, err := p.run(ctx, "format", path,
		"-show_entries", "format=bit_rate:stream=index,codec_type,bit_rate",
	)
	if err != nil {
		return 0, err
	}
	total := parseInt64(raw.Format.BitRate)
	if total <= 0 {
		return 0, &Error{Op: "format", Path: path, Err: ErrNoFormatBitRate}
	}
	rate := total
	for _, s := range raw.Streams {
		if s.Index == videoIndex {
			continue
		}
		rate -= parseInt64(s.BitRate)
	}
	p.log.Debug("estimated bitrate from container", "path", path, "format_bitrate", total, "estimate", rate)
	return rate, nil
}

func (p *Prober) run(ctx context.Context, op, path string, entries ...string) (*ffprobeOutput, error) {
	args := append([]string{"-hide_banner", "-loglevel", "fatal"}, entries...)
	args = append(args, "-of", "json", path)

	out, err := p.runner.Output(ctx, p.binary, args...)
	if err != nil {
		return nil, &Error{Op: op, Path: path, Err: err}
	}
	raw, err := parseJSON(out)
	if err != nil {
		return nil, &Error{Op: op, Path: path, Err: err}
	}
	return raw, nil
}

// parseJSON decodes raw ffprobe JSON output.
func parseJSON(data []byte) (*ffprobeOutput, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	return &raw, nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	BitRate string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	BitRate   string `json:"bit_rate"`
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}
