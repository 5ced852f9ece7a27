// Package stageerr defines the sentinel errors every pipeline stage wraps
// its failures in, and the StageError type the orchestrator converts them
// into for the Job Store's {kind, stage, message} error record
// (spec.md §7).
package stageerr

import (
	"errors"
	"fmt"

	"transcribecore/internal/models"
)

// Sentinel errors, one per spec.md §7 error kind. Stage packages wrap these
// with fmt.Errorf("...: %w", ErrX) so the orchestrator can classify a
// failure with errors.Is without the stage package depending on models
// directly for its error plumbing.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrSourceTooLong     = errors.New("source too long")
	ErrModelError        = errors.New("model error")
	ErrNoAudioContent    = errors.New("no audio content")
	ErrTimeout           = errors.New("timeout")
	ErrInternal          = errors.New("internal error")
)

var kindBySentinel = []struct {
	err  error
	kind models.ErrorKind
}{
	{ErrInvalidInput, models.ErrInvalidInput},
	{ErrSourceUnavailable, models.ErrSourceUnavailable},
	{ErrSourceTooLong, models.ErrSourceTooLong},
	{ErrModelError, models.ErrModelError},
	{ErrNoAudioContent, models.ErrNoAudioContent},
	{ErrTimeout, models.ErrTimeout},
	{ErrInternal, models.ErrInternal},
}

// Classify maps an error produced by a stage package to the error-kind
// taxonomy of spec.md §7, defaulting to "internal" for anything
// unrecognized.
func Classify(err error) models.ErrorKind {
	for _, entry := range kindBySentinel {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return models.ErrInternal
}

// StageError is the {kind, stage, message} triple recorded on a job's
// terminal failure.
type StageError struct {
	Stage   string
	Kind    models.ErrorKind
	Message string
	Cause   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (stage=%s, kind=%s)", e.Message, e.Stage, e.Kind)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// Wrap classifies err and attaches the stage it occurred in.
func Wrap(stage string, err error) *StageError {
	return &StageError{
		Stage:   stage,
		Kind:    Classify(err),
		Message: err.Error(),
		Cause:   err,
	}
}

// ToJobError converts a StageError into the models.JobError persisted on
// the job record.
func (e *StageError) ToJobError() models.JobError {
	return models.JobError{Kind: e.Kind, Stage: e.Stage, Message: e.Message}
}
