package chat

import "encoding/json"

// Conversation roles stored in session history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a session's conversation history.
// Turns are immutable once appended; insertion order is conversation order.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ContextItem is a retrieved snippet of supporting text used to ground an
// answer. It is never persisted on its own, only embedded into the prompt
// and the eval record.
type ContextItem struct {
	Content string `json:"content"`
}

// ToolCall is a tool or function invocation emitted by the model.
// Arguments holds the raw JSON argument payload exactly as the model
// produced it.
type ToolCall struct {
	Name      string
	Arguments string
}

// RawOutput is the unnormalized model output for a single invocation.
// Exactly which fields are populated depends on the configured response
// format; the interpreter turns this into a caller-facing answer.
type RawOutput struct {
	Text         string
	ToolCalls    []ToolCall
	FunctionCall *ToolCall
	Structured   json.RawMessage
}

// Invocation is the result of one model call: raw output plus the token
// accounting needed for cost computation. It lives only for the duration
// of one pipeline run.
type Invocation struct {
	Output       RawOutput
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// PromptRequest is the assembled prompt handed to the model invoker.
type PromptRequest struct {
	System  string
	History []Turn
	User    string
}

// CostRecord is the derived pricing breakdown for one invocation.
// Never mutated after creation.
type CostRecord struct {
	Model        string  `json:"model"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	InputPrice   float64 `json:"input_tokens_price"`
	OutputPrice  float64 `json:"output_tokens_price"`
	TotalCost    float64 `json:"total_tokens_cost"`
}

// ChatRecord captures the query, grounding context and answer of one run.
type ChatRecord struct {
	Query   string   `json:"query"`
	Context []string `json:"context"`
	Answer  any      `json:"answer"`
}

// EvalRecord is the append-only audit entry persisted once per pipeline run.
type EvalRecord struct {
	Chat           ChatRecord `json:"chat"`
	Cost           CostRecord `json:"cost"`
	ElapsedSeconds float64    `json:"time"`
}

// Result is the caller-facing outcome of a pipeline run. Answer is either a
// plain string or a structured object, depending on the response format and
// what the model produced.
type Result struct {
	SessionID string
	Answer    any
}
