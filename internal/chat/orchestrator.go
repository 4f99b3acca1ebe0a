// Package chat implements the answer pipeline: retrieve supporting context,
// load conversation history, invoke the model, normalize its output, account
// for cost, and persist the exchange.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ragline/ragline/internal/observability"
)

// Retriever returns ordered context snippets for a query. An empty result
// is a valid output for the collaborator; the orchestrator rejects it by
// policy because ungrounded answers are unacceptable.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]ContextItem, error)
}

// SessionStore persists conversation history and eval records, keyed by
// session id. LoadHistory maps an unknown session to an empty history, not
// an error. Each append is an independent read-modify-write.
type SessionStore interface {
	LoadHistory(ctx context.Context, sessionID string) ([]Turn, error)
	AppendHistory(ctx context.Context, sessionID string, turns []Turn) error
	AppendEval(ctx context.Context, sessionID string, record EvalRecord) error
}

// ModelInvoker runs one model call for an assembled prompt and reports raw
// output plus token counts.
type ModelInvoker interface {
	Invoke(ctx context.Context, req PromptRequest) (*Invocation, error)
}

// Config contains all required parameters for the Orchestrator.
type Config struct {
	Retriever Retriever
	Sessions  SessionStore
	Invoker   ModelInvoker
	Logger    *slog.Logger

	// Format selects the response interpreter, resolved once here.
	Format Format

	// SystemPrompt is prepended to every assembled prompt.
	SystemPrompt string

	// Prices maps exact model names to per-token prices.
	Prices PriceTable

	// Metrics is optional; nil disables instrumentation.
	Metrics *observability.Metrics
}

func (cfg Config) validate() error {
	if cfg.Retriever == nil {
		return fmt.Errorf("%w: retriever is required", ErrConfiguration)
	}
	if cfg.Sessions == nil {
		return fmt.Errorf("%w: session store is required", ErrConfiguration)
	}
	if cfg.Invoker == nil {
		return fmt.Errorf("%w: model invoker is required", ErrConfiguration)
	}
	if cfg.Logger == nil {
		return fmt.Errorf("%w: logger is required", ErrConfiguration)
	}
	if len(cfg.Prices) == 0 {
		return fmt.Errorf("%w: price table is empty", ErrConfiguration)
	}
	return nil
}

// Orchestrator composes the pipeline collaborators. It holds no mutable
// state between runs; everything per-run is local to Answer, so concurrent
// runs need no synchronization beyond what the collaborators provide.
type Orchestrator struct {
	retriever    Retriever
	sessions     SessionStore
	invoker      ModelInvoker
	interpreter  Interpreter
	prices       PriceTable
	systemPrompt string
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// New creates an Orchestrator, resolving the response format into a fixed
// interpreter. An unknown format fails here, before any request is served.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	interpreter, err := NewInterpreter(cfg.Format, cfg.Logger)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		retriever:    cfg.Retriever,
		sessions:     cfg.Sessions,
		invoker:      cfg.Invoker,
		interpreter:  interpreter,
		prices:       cfg.Prices,
		systemPrompt: cfg.SystemPrompt,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
	}, nil
}

// userPayload is the single user message wrapping context and query.
type userPayload struct {
	Context []string `json:"CONTEXT"`
	Query   string   `json:"QUERY"`
}

// Answer runs one retrieve → generate → persist cycle for the session.
//
// Steps execute strictly in order; the first failure aborts the remaining
// steps and is returned as a *PipelineError carrying the step and error
// kind. The one deliberate exception is persistence: once the model has
// produced an answer, append failures are logged and counted but the answer
// is still returned.
func (o *Orchestrator) Answer(ctx context.Context, sessionID, query string) (*Result, error) {
	start := time.Now()

	if sessionID == "" || query == "" {
		return nil, o.fail(StepStart, sessionID,
			stepError(StepStart, sessionID, ErrValidation, errors.New("session id and query must be non-empty")))
	}

	logger := o.logger.With("session_id", sessionID)
	logger.Debug("starting answer pipeline", "query_length", len(query))

	// Retrieve grounding context.
	items, err := o.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, o.fail(StepRetrieveContext, sessionID,
			stepError(StepRetrieveContext, sessionID, ErrRetrieval, err))
	}
	if len(items) == 0 {
		return nil, o.fail(StepRetrieveContext, sessionID,
			stepError(StepRetrieveContext, sessionID, ErrRetrieval, errors.New("no context retrieved for query")))
	}
	contexts := make([]string, len(items))
	for i, item := range items {
		contexts[i] = item.Content
	}

	// Load conversation history. Unknown sessions yield an empty history
	// inside the store; any error here is a real read failure.
	history, err := o.sessions.LoadHistory(ctx, sessionID)
	if err != nil {
		return nil, o.fail(StepLoadHistory, sessionID,
			stepError(StepLoadHistory, sessionID, ErrPersistence, err))
	}

	// Assemble the prompt and invoke the model.
	payload, err := json.Marshal(userPayload{Context: contexts, Query: query})
	if err != nil {
		return nil, o.fail(StepInvokeModel, sessionID,
			stepError(StepInvokeModel, sessionID, ErrModelInvocation, err))
	}

	inv, err := o.invoker.Invoke(ctx, PromptRequest{
		System:  o.systemPrompt,
		History: history,
		User:    string(payload),
	})
	if err != nil {
		return nil, o.fail(StepInvokeModel, sessionID,
			stepError(StepInvokeModel, sessionID, ErrModelInvocation, err))
	}

	// Interpretation never fails; degraded results are already logged by
	// the interpreter.
	interp := o.interpreter.Interpret(inv.Output)

	cost, err := o.prices.Compute(inv.Model, inv.InputTokens, inv.OutputTokens)
	if err != nil {
		return nil, o.fail(StepComputeCost, sessionID,
			&PipelineError{Step: StepComputeCost, SessionID: sessionID, Err: err})
	}

	elapsed := time.Since(start)
	answer := answerOf(interp.Value)

	o.persist(ctx, logger, sessionID, query, contexts, interp.Value, answer, cost, elapsed)

	if o.metrics != nil {
		o.metrics.Runs.WithLabelValues("ok").Inc()
		o.metrics.Tokens.WithLabelValues("input").Add(float64(inv.InputTokens))
		o.metrics.Tokens.WithLabelValues("output").Add(float64(inv.OutputTokens))
		o.metrics.CostTotal.Add(cost.TotalCost)
		o.metrics.ObservePipelineLatency(elapsed)
	}

	logger.Info("answer pipeline completed",
		"model", inv.Model,
		"input_tokens", inv.InputTokens,
		"output_tokens", inv.OutputTokens,
		"degraded", interp.Degraded,
		"elapsed", elapsed)

	return &Result{SessionID: sessionID, Answer: answer}, nil
}

// persist appends the new turns and the eval record concurrently and waits
// for both. The two writes are independent: one can succeed while the other
// fails, and neither failure reverts the already-computed answer.
func (o *Orchestrator) persist(ctx context.Context, logger *slog.Logger, sessionID, query string,
	contexts []string, value, answer any, cost CostRecord, elapsed time.Duration,
) {
	turns := []Turn{
		{Role: RoleUser, Content: query},
		{Role: RoleAssistant, Content: renderContent(value)},
	}
	record := EvalRecord{
		Chat:           ChatRecord{Query: query, Context: contexts, Answer: answer},
		Cost:           cost,
		ElapsedSeconds: elapsed.Seconds(),
	}

	historyCh := make(chan error, 1)
	evalCh := make(chan error, 1)
	go func() { historyCh <- o.sessions.AppendHistory(ctx, sessionID, turns) }()
	go func() { evalCh <- o.sessions.AppendEval(ctx, sessionID, record) }()

	if err := <-historyCh; err != nil {
		logger.Error("appending chat history failed", "step", StepPersistResults.String(), "error", err)
		if o.metrics != nil {
			o.metrics.PersistFailures.WithLabelValues("history").Inc()
		}
	}
	if err := <-evalCh; err != nil {
		logger.Error("appending eval record failed", "step", StepPersistResults.String(), "error", err)
		if o.metrics != nil {
			o.metrics.PersistFailures.WithLabelValues("evals").Inc()
		}
	}
}

// fail logs and counts a pipeline failure, then returns the error unchanged.
func (o *Orchestrator) fail(step Step, sessionID string, err *PipelineError) error {
	o.logger.Error("answer pipeline failed",
		"step", step.String(),
		"session_id", sessionID,
		"error", err.Err)
	if o.metrics != nil {
		o.metrics.Runs.WithLabelValues("error").Inc()
		o.metrics.StepFailures.WithLabelValues(step.String()).Inc()
	}
	return err
}

// answerOf extracts the caller-visible answer from an interpreted value:
// objects carrying an "answer" field surface that field, everything else is
// returned as-is.
func answerOf(value any) any {
	switch v := value.(type) {
	case map[string]any:
		if a, ok := v["answer"]; ok {
			return a
		}
	case StructuredAnswer:
		return v.Answer
	}
	return value
}

// renderContent renders an interpreted value for storage as an assistant
// turn. Strings are stored as-is, objects as their JSON encoding.
func renderContent(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(data)
}
