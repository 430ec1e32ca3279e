package planner

import "strings"

// Encoder flag keys, written to ffmpeg as "-<key> <value>".
const (
	KeyAudioCodec    = "c:a"
	KeySubtitleCodec = "c:s"
	KeyMovFlags      = "movflags"
	KeyVideoCodec    = "c:v"
	KeyPreset        = "preset"
	KeyVideoBitRate  = "b:v"
)

// CopyCodec keeps the video stream as is.
const CopyCodec = "copy"

// Flag is one ordered encoder option.
type Flag struct {
	Key   string
	Value string
}

// Plan is an immutable, ordered set of encoder flags.
type Plan struct {
	flags []Flag
}

func newPlan(flags ...Flag) *Plan {
	return &Plan{flags: flags}
}

// Flags returns a copy of the flags in application order.
func (p *Plan) Flags() []Flag {
	out := make([]Flag, len(p.flags))
	copy(out, p.flags)
	return out
}

// Get returns the value for key.
func (p *Plan) Get(key string) (string, bool) {
	for _, f := range p.flags {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// VideoCodec returns the c:v value.
func (p *Plan) VideoCodec() string {
	v, _ := p.Get(KeyVideoCodec)
	return v
}

// VideoBitRate returns the b:v value, empty when copying.
func (p *Plan) VideoBitRate() string {
	v, _ := p.Get(KeyVideoBitRate)
	return v
}

// Preset returns the encoder preset, empty when copying.
func (p *Plan) Preset() string {
	v, _ := p.Get(KeyPreset)
	return v
}

// AudioCodec returns the c:a value.
func (p *Plan) AudioCodec() string {
	v, _ := p.Get(KeyAudioCodec)
	return v
}

// SubtitleCodec returns the c:s value, empty once subtitles are dropped.
func (p *Plan) SubtitleCodec() string {
	v, _ := p.Get(KeySubtitleCodec)
	return v
}

// Reencodes reports whether the video stream is re-encoded rather than copied.
func (p *Plan) Reencodes() bool { return p.VideoCodec() != CopyCodec }

// HasSubtitles reports whether the plan still converts subtitle streams.
func (p *Plan) HasSubtitles() bool {
	_, ok := p.Get(KeySubtitleCodec)
	return ok
}

// WithoutSubtitles returns a copy of p without the subtitle codec flag.
func (p *Plan) WithoutSubtitles() *Plan {
	flags := make([]Flag, 0, len(p.flags))
	for _, f := range p.flags {
		if f.Key != KeySubtitleCodec {
			flags = append(flags, f)
		}
	}
	return &Plan{flags: flags}
}

// Args renders the flags as ffmpeg arguments.
func (p *Plan) Args() []string {
	args := make([]string, 0, 2*len(p.flags))
	for _, f := range p.flags {
		args = append(args, "-"+f.Key, f.Value)
	}
	return args
}

func (p *Plan) String() string {
	parts := make([]string, len(p.flags))
	for i, f := range p.flags {
		parts[i] = f.Key + "=" + f.Value
	}
	return strings.Join(parts, " ")
}
