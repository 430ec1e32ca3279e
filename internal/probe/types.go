package probe

import (
	"errors"
	"fmt"
	"math"
)

// UnknownCodec is the codec name reported when ffprobe omits codec_name.
const UnknownCodec = "unknown"

// Descriptor is the probed view of a file's primary video stream.
type Descriptor struct {
	Codec   string
	Width   int
	BitRate int64 // Bits per second.
}

// Unknown is the sentinel descriptor. Its bitrate is maximal so a file
// described by it is always judged to need transcoding.
func Unknown(targetWidth int) Descriptor {
	return Descriptor{Codec: UnknownCodec, Width: targetWidth, BitRate: math.MaxInt64}
}

// BitRateKnown reports whether BitRate came from the file rather than the
// sentinel.
func (d Descriptor) BitRateKnown() bool { return d.BitRate != math.MaxInt64 }

func (d Descriptor) String() string {
	rate := "unknown"
	if d.BitRateKnown() {
		rate = fmt.Sprintf("%d", d.BitRate)
	}
	return fmt.Sprintf("codec=%s width=%d bitrate=%s", d.Codec, d.Width, rate)
}

// ErrProbe matches every probe failure via errors.Is.
var ErrProbe = errors.New("probe failed")

// Conditions wrapped by *Error.
var (
	ErrNoVideoStream   = errors.New("no video stream")
	ErrNoFormatBitRate = errors.New("container reports no bit_rate")
)

// Error describes a failed ffprobe invocation or unusable output.
type Error struct {
	Op   string // "stream" or "format"
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ffprobe %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes every *Error match [ErrProbe].
func (e *Error) Is(target error) bool { return target == ErrProbe }
