// Package ffmpeg runs the encode step of a transcode job.
//
// The [Executor] performs one attempt: it parks a target-extension source
// under a temporary name, runs ffmpeg into the target path, and either
// retires the source or puts everything back the way it was. The
// [RetryController] wraps it in a two-attempt state machine whose second
// attempt leaves subtitle streams out.
package ffmpeg
