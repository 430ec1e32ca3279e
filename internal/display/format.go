// Package display formats sizes, rates, and durations for log lines and
// terminal reports.
package display

import (
	"fmt"
	"math"
	"time"
)

// FormatBytes returns a human-readable size (B, KiB, MiB, GiB, TiB, PiB).
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	suffixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp < len(suffixes)-1; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), suffixes[exp])
}

// FormatBytesWithSign prefixes with + or - for delta display (e.g. "- 1.2 GiB").
func FormatBytesWithSign(bytes int64) string {
	switch {
	case bytes > 0:
		return "+ " + FormatBytes(bytes)
	case bytes < 0:
		return "- " + FormatBytes(-bytes)
	}
	return FormatBytes(0)
}

// FormatBitRate labels a rate in bits per second, e.g. "2.2 Mbps". The
// unknown-bitrate sentinel renders as "unknown".
func FormatBitRate(bps int64) string {
	switch {
	case bps == math.MaxInt64 || bps < 0:
		return "unknown"
	case bps < 1_000_000:
		return fmt.Sprintf("%d kbps", bps/1000)
	}
	return fmt.Sprintf("%.1f Mbps", float64(bps)/1_000_000)
}

// FormatElapsed renders a duration as H:MM:SS, rounded to whole seconds.
func FormatElapsed(d time.Duration) string {
	s := int64(d.Round(time.Second) / time.Second)
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
}

// Percent returns part as a whole-number percentage of total.
func Percent(part, total int64) int64 {
	if total <= 0 {
		return 100
	}
	return part * 100 / total
}
