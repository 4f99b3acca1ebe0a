package chat

// Step identifies a stage of the answer pipeline. Steps execute strictly in
// order with no branching back; any step can transition to the error state,
// which aborts the remaining steps.
type Step int

const (
	StepStart Step = iota
	StepRetrieveContext
	StepLoadHistory
	StepInvokeModel
	StepInterpretResponse
	StepComputeCost
	StepPersistResults
	StepDone
)

var stepNames = [...]string{
	StepStart:             "start",
	StepRetrieveContext:   "retrieve_context",
	StepLoadHistory:       "load_history",
	StepInvokeModel:       "invoke_model",
	StepInterpretResponse: "interpret_response",
	StepComputeCost:       "compute_cost",
	StepPersistResults:    "persist_results",
	StepDone:              "done",
}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return "unknown"
	}
	return stepNames[s]
}
