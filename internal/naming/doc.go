// Package naming derives the paths a transcode job moves a file through:
// the temporary name a target-extension source is parked under, and the
// output path in the target container.
package naming
