// Package probe inspects media files with ffprobe and reduces the result to
// the three facts the planner needs: codec, width, and video bitrate.
//
// The first video stream is probed directly. When ffprobe reports no
// stream-level bitrate (common for Matroska), the bitrate is estimated
// from the container total minus every other stream's bitrate, using a
// second ffprobe call.
package probe
