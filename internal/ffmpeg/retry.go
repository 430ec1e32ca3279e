package ffmpeg

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/backmassage/mediasweep/internal/metrics"
	"github.com/backmassage/mediasweep/internal/planner"
)

// State is a step of the retry state machine.
type State int

const (
	StateFirstAttempt State = iota
	StateRetriedWithoutSubtitles
	StateDone
)

func (s State) String() string {
	switch s {
	case StateFirstAttempt:
		return "first_attempt"
	case StateRetriedWithoutSubtitles:
		return "retried_without_subtitles"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// Encoder runs one attempt. *Executor implements it.
type Encoder interface {
	Execute(ctx context.Context, fh *FileHandle, plan *planner.Plan, dropSubs bool) error
}

// Result summarizes a controlled transcode.
type Result struct {
	Success          bool
	Attempts         int
	DroppedSubtitles bool
	Err              error // Last attempt's error when !Success.
}

// RetryController runs at most two attempts: the full plan, then the plan
// without subtitles if the first encode failed.
type RetryController struct {
	enc Encoder
	log *slog.Logger
}

// NewRetryController wraps enc.
func NewRetryController(enc Encoder, log *slog.Logger) *RetryController {
	return &RetryController{enc: enc, log: log}
}

// Transcode drives the state machine to Done.
func (c *RetryController) Transcode(ctx context.Context, fh *FileHandle, plan *planner.Plan) Result {
	var res Result
	state := StateFirstAttempt

	for state != StateDone {
		dropSubs := state == StateRetriedWithoutSubtitles
		attemptPlan := plan
		if dropSubs {
			attemptPlan = plan.WithoutSubtitles()
		}

		start := time.Now()
		res.Attempts++
		res.DroppedSubtitles = dropSubs
		err := c.enc.Execute(ctx, fh, attemptPlan, dropSubs)
		c.record(state, err)

		if err == nil {
			c.log.Info("transcode attempt succeeded", "state", state.String(), "elapsed", time.Since(start).Round(time.Second))
			res.Success, res.Err = true, nil
			return res
		}
		res.Err = err

		next := c.next(ctx, state, err)
		attrs := []any{"state", state.String(), "next", next.String(), "error", err}
		var encErr *EncodeError
		if errors.As(err, &encErr) && encErr.Cause != CauseUnknown {
			attrs = append(attrs, "cause", string(encErr.Cause))
		}
		c.log.Error("transcode attempt failed", attrs...)
		if next == StateRetriedWithoutSubtitles {
			c.log.Info("retrying without subtitles")
		}
		state = next
	}
	return res
}

// next is the transition function. Only an encode failure on the first
// attempt earns a retry; occupied paths and expired deadlines end the job.
func (c *RetryController) next(ctx context.Context, state State, err error) State {
	if state != StateFirstAttempt || ctx.Err() != nil {
		return StateDone
	}
	if errors.Is(err, ErrEncodeFailed) {
		return StateRetriedWithoutSubtitles
	}
	return StateDone
}

func (c *RetryController) record(state State, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.EncodeAttemptsTotal.WithLabelValues(state.String(), result).Inc()
}
