package ffmpeg

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors returned by [Executor.Execute].
var (
	ErrEncodeFailed = errors.New("ffmpeg encode failed")
	ErrOutputExists = errors.New("path is occupied by another file")
)

// EncodeError carries the tail of ffmpeg's stderr for a failed attempt.
type EncodeError struct {
	Input  string
	Cause  Cause
	Stderr string
	Err    error
}

func (e *EncodeError) Error() string {
	if e.Cause != CauseUnknown {
		return fmt.Sprintf("ffmpeg %q (%s): %v", e.Input, e.Cause, e.Err)
	}
	return fmt.Sprintf("ffmpeg %q: %v", e.Input, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Is makes every *EncodeError match [ErrEncodeFailed].
func (e *EncodeError) Is(target error) bool { return target == ErrEncodeFailed }

// Cause is a best-effort classification of ffmpeg stderr.
type Cause string

const (
	CauseUnknown    Cause = ""
	CauseSubtitle   Cause = "subtitle"
	CauseAttachment Cause = "attachment"
	CauseMuxQueue   Cause = "mux queue"
	CauseTimestamp  Cause = "timestamp"
	CauseEncoder    Cause = "encoder"
)

// Pre-compiled regexes for classifying ffmpeg stderr. Checked in order by
// [Classify]; the first match wins.
var (
	reSubtitleIssue = regexp.MustCompile(
		`(?i)Subtitle codec .* is not supported|` +
			`Could not find tag for codec .* in stream .*subtitle|` +
			`Error initializing output stream .*subtitle|` +
			`Error while opening encoder for output stream .*subtitle|` +
			`Subtitle encoding currently only possible from text to text or bitmap to bitmap|` +
			`codec not currently supported in container`)

	reAttachmentIssue = regexp.MustCompile(
		`Attachment stream \d+ has no (filename|mimetype) tag`)

	reMuxQueueOverflow = regexp.MustCompile(
		`Too many packets buffered for output stream`)

	reTimestampIssue = regexp.MustCompile(
		`(?i)Non-monotonous DTS|non monotonically increasing dts|` +
			`DTS .*out of order|PTS .*out of order|` +
			`pts has no value|missing PTS|Timestamps are unset`)

	reEncoderIssue = regexp.MustCompile(
		`(?i)Unknown encoder|No capable devices found|Cannot load nvcuda|` +
			`OpenEncodeSessionEx failed|Error while opening encoder`)
)

// Classify returns the first matching failure cause in stderr.
func Classify(stderr string) Cause {
	switch {
	case reSubtitleIssue.MatchString(stderr):
		return CauseSubtitle
	case reAttachmentIssue.MatchString(stderr):
		return CauseAttachment
	case reMuxQueueOverflow.MatchString(stderr):
		return CauseMuxQueue
	case reTimestampIssue.MatchString(stderr):
		return CauseTimestamp
	case reEncoderIssue.MatchString(stderr):
		return CauseEncoder
	}
	return CauseUnknown
}

// tail returns the last n non-empty lines of s.
func tail(s string, n int) []string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
