package consensus

import (
	"context"
	"errors"
	"fmt"

	"github.com/quorumlabs/quorum/pkg/adapter"
)

// ErrProfileNotFound is returned when the requested profile cannot be
// resolved. No stage runs and no callbacks fire.
var ErrProfileNotFound = errors.New("consensus profile not found")

// ErrorKind classifies stage failures.
type ErrorKind string

const (
	KindModelUnavailable  ErrorKind = "model_unavailable"
	KindTimeout           ErrorKind = "timeout"
	KindRateLimited       ErrorKind = "rate_limited"
	KindStreamInterrupted ErrorKind = "stream_interrupted"
	KindEmptyResponse     ErrorKind = "empty_response"
	KindCancelled         ErrorKind = "cancelled"
)

// StageError wraps a stage failure with its classification. Retryable
// errors get a single retry with backoff inside the stage executor;
// everything else propagates immediately.
type StageError struct {
	Stage     Stage
	Kind      ErrorKind
	Err       error
	retryable bool
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s stage: %s: %s", e.Stage, e.Kind, e.Err.Error())
	}
	return fmt.Sprintf("%s stage: %s", e.Stage, e.Kind)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the stage executor may retry the call once.
func (e *StageError) Retryable() bool {
	return e.retryable
}

// classifyStageError maps an invocation failure onto the error taxonomy.
func classifyStageError(stage Stage, err error) *StageError {
	switch {
	case errors.Is(err, context.Canceled):
		return &StageError{Stage: stage, Kind: KindCancelled, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &StageError{Stage: stage, Kind: KindTimeout, Err: err, retryable: true}
	case adapter.IsModelUnavailable(err):
		return &StageError{Stage: stage, Kind: KindModelUnavailable, Err: err}
	case adapter.IsRateLimited(err):
		return &StageError{Stage: stage, Kind: KindRateLimited, Err: err, retryable: true}
	case adapter.IsTransient(err):
		return &StageError{Stage: stage, Kind: KindStreamInterrupted, Err: err, retryable: true}
	default:
		return &StageError{Stage: stage, Kind: KindStreamInterrupted, Err: err}
	}
}

func emptyResponseError(stage Stage) *StageError {
	return &StageError{Stage: stage, Kind: KindEmptyResponse, Err: fmt.Errorf("model returned no content")}
}

func cancelledError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Kind: KindCancelled, Err: err}
}
