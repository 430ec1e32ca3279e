package ffmpeg

import "github.com/backmassage/mediasweep/internal/planner"

// Build constructs the complete ffmpeg argument slice, binary first. All
// audio streams and every non-attached-picture video stream are mapped;
// subtitle streams are mapped unless dropSubs is set. Plan flags follow the
// maps in plan order.
func Build(binary, input, output string, plan *planner.Plan, dropSubs bool) []string {
	args := make([]string, 0, 32)

	// --- Preamble ---
	args = append(args, binary, "-hide_banner", "-nostdin", "-y", "-loglevel", "error", "-stats")

	// --- Input ---
	args = append(args, "-i", input)

	// --- Stream maps ---
	args = append(args, "-map", "0:a?", "-map", "0:V")
	if dropSubs {
		plan = plan.WithoutSubtitles()
	} else {
		args = append(args, "-map", "0:s?")
	}

	// --- Encoder flags ---
	args = append(args, plan.Args()...)

	// --- Output ---
	return append(args, output)
}
