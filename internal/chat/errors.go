package chat

import (
	"errors"
	"fmt"
)

// Error kinds for the pipeline. These are part of the package's public API
// and should be checked with errors.Is().
//
// Example:
//
//	res, err := orc.Answer(ctx, sessionID, query)
//	if errors.Is(err, chat.ErrValidation) {
//	    // 400-equivalent
//	}
var (
	// ErrValidation indicates a missing or empty query or session id.
	ErrValidation = errors.New("validation error")

	// ErrConfiguration indicates missing or inconsistent settings, such as
	// an unknown response format or an unpriced model. Fatal; should be
	// caught at startup where possible.
	ErrConfiguration = errors.New("configuration error")

	// ErrRetrieval indicates the retrieval collaborator failed, returned
	// malformed data, or returned no context at all. Answers must be
	// grounded, so an empty result is an error by policy.
	ErrRetrieval = errors.New("retrieval error")

	// ErrModelInvocation indicates the model collaborator failed or
	// produced empty output.
	ErrModelInvocation = errors.New("model invocation error")

	// ErrPersistence indicates a read or write failure against the session
	// store. Not-found on a history read is not an error; it maps to an
	// empty history.
	ErrPersistence = errors.New("persistence error")
)

// PipelineError wraps a failure with the step it occurred in and the
// session it belongs to, so every error carries enough context to diagnose.
type PipelineError struct {
	Step      Step
	SessionID string
	Err       error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s (session %q): %v", e.Step, e.SessionID, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// stepError builds a PipelineError wrapping err in the given kind.
func stepError(step Step, sessionID string, kind, err error) *PipelineError {
	return &PipelineError{
		Step:      step,
		SessionID: sessionID,
		Err:       fmt.Errorf("%w: %w", kind, err),
	}
}
