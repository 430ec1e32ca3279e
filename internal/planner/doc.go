// Package planner decides whether a probed file needs work and, if so,
// which encoder flags to pass to ffmpeg.
//
// The decision is pure: the same descriptor, category, and extension
// always produce the same plan. A nil plan means the file already meets
// its target.
package planner
