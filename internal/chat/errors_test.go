package chat

import (
	"errors"
	"strings"
	"testing"
)

func TestPipelineError_WrapsKind(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := stepError(StepRetrieveContext, "s-1", ErrRetrieval, cause)

	if !errors.Is(err, ErrRetrieval) {
		t.Error("errors.Is(err, ErrRetrieval) = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if errors.Is(err, ErrValidation) {
		t.Error("errors.Is(err, ErrValidation) = true, want false")
	}

	var pe *PipelineError
	if !errors.As(err, &pe) {
		t.Fatal("errors.As(err, *PipelineError) = false, want true")
	}
	if pe.Step != StepRetrieveContext {
		t.Errorf("Step = %v, want StepRetrieveContext", pe.Step)
	}
	if pe.SessionID != "s-1" {
		t.Errorf("SessionID = %q, want %q", pe.SessionID, "s-1")
	}
}

func TestPipelineError_MessageCarriesContext(t *testing.T) {
	t.Parallel()

	err := stepError(StepInvokeModel, "abc", ErrModelInvocation, errors.New("timeout"))
	msg := err.Error()
	for _, want := range []string{"invoke_model", "abc", "timeout"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}
