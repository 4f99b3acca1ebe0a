package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Format selects how raw model output is normalized into an answer. The
// format is fixed per deployment, not per call; NewInterpreter resolves it
// once at startup.
type Format string

const (
	// FormatPlain takes the message text, strips code fences and triple
	// quotes, and decodes it as JSON when possible.
	FormatPlain Format = "plain"

	// FormatTool takes the first emitted tool call's argument payload
	// verbatim, falling back to plain handling of the text content.
	FormatTool Format = "tool"

	// FormatFunction decodes the function-call argument string as JSON,
	// wrapping it as {"answer": <raw>} when it is not valid JSON.
	FormatFunction Format = "function"

	// FormatStructured decodes schema-constrained output into a
	// StructuredAnswer.
	FormatStructured Format = "structured"
)

// StructuredAnswer is the fixed schema the model is constrained to in
// structured mode.
type StructuredAnswer struct {
	Answer  string   `json:"answer"`
	Intents []string `json:"intents"`
	Flag    bool     `json:"flag"`
}

// Interpretation is a normalized model answer. Value is a string, a decoded
// JSON object, or a StructuredAnswer. Degraded marks results produced by
// the plain fallback when the model ignored its tool or function contract.
type Interpretation struct {
	Value    any
	Degraded bool
}

// Interpreter converts raw model output into a normalized answer.
// Interpretation never fails: a parse failure always yields a best-effort
// string or object, never an error.
type Interpreter interface {
	Interpret(raw RawOutput) Interpretation
}

// NewInterpreter resolves the configured format into a fixed interpreter
// implementation. An unknown format is a fatal configuration error and must
// prevent startup.
func NewInterpreter(format Format, logger *slog.Logger) (Interpreter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch format {
	case FormatPlain, "":
		return plainInterpreter{}, nil
	case FormatTool:
		return toolInterpreter{logger: logger}, nil
	case FormatFunction:
		return functionInterpreter{logger: logger}, nil
	case FormatStructured:
		return structuredInterpreter{logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w: unknown response format %q", ErrConfiguration, format)
	}
}

// plainInterpreter normalizes plain text content.
type plainInterpreter struct{}

func (plainInterpreter) Interpret(raw RawOutput) Interpretation {
	return Interpretation{Value: interpretText(raw.Text)}
}

// toolInterpreter returns the first tool call's argument payload verbatim.
type toolInterpreter struct {
	logger *slog.Logger
}

func (i toolInterpreter) Interpret(raw RawOutput) Interpretation {
	if len(raw.ToolCalls) > 0 {
		return Interpretation{Value: raw.ToolCalls[0].Arguments}
	}
	i.logger.Warn("model answered with content instead of a tool call")
	return Interpretation{Value: interpretText(raw.Text), Degraded: true}
}

// functionInterpreter decodes the function-call argument string.
type functionInterpreter struct {
	logger *slog.Logger
}

func (i functionInterpreter) Interpret(raw RawOutput) Interpretation {
	if raw.FunctionCall == nil {
		i.logger.Warn("model answered with content instead of a function call")
		return Interpretation{Value: interpretText(raw.Text), Degraded: true}
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw.FunctionCall.Arguments), &decoded); err != nil {
		return Interpretation{Value: map[string]any{"answer": raw.FunctionCall.Arguments}}
	}
	return Interpretation{Value: decoded}
}

// structuredInterpreter decodes schema-constrained output.
type structuredInterpreter struct {
	logger *slog.Logger
}

func (i structuredInterpreter) Interpret(raw RawOutput) Interpretation {
	payload := raw.Structured
	if len(payload) == 0 {
		payload = json.RawMessage(raw.Text)
	}

	var sa StructuredAnswer
	if err := json.Unmarshal(payload, &sa); err != nil {
		// The model is schema-constrained, so this should not happen; keep
		// the no-fail contract and degrade to plain handling.
		i.logger.Warn("structured output did not match schema", "error", err)
		return Interpretation{Value: interpretText(string(payload)), Degraded: true}
	}
	return Interpretation{Value: sa}
}

// interpretText cleans fence and quote markers from text content and
// decodes it as JSON when possible, returning the cleaned text otherwise.
func interpretText(text string) any {
	cleaned := CleanResponseText(text)

	var decoded any
	if err := json.Unmarshal([]byte(cleaned), &decoded); err == nil {
		switch decoded.(type) {
		case map[string]any, []any:
			return decoded
		}
	}
	return cleaned
}

// CleanResponseText strips leading and trailing code-fence markers (```
// with an optional "json" tag) and triple-quote markers (''' or """) from
// text, handling zero, one, or several nested markers.
func CleanResponseText(text string) string {
	s := strings.TrimSpace(text)
	for {
		trimmed := trimMarkers(s)
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}

func trimMarkers(s string) string {
	if rest, ok := strings.CutPrefix(s, "```json"); ok {
		s = strings.TrimSpace(rest)
	} else if rest, ok := strings.CutPrefix(s, "```"); ok {
		s = strings.TrimSpace(rest)
	}
	if rest, ok := strings.CutSuffix(s, "```"); ok {
		s = strings.TrimSpace(rest)
	}

	for _, quote := range []string{"'''", `"""`} {
		if rest, ok := strings.CutPrefix(s, quote); ok {
			s = strings.TrimSpace(rest)
		}
		if rest, ok := strings.CutSuffix(s, quote); ok {
			s = strings.TrimSpace(rest)
		}
	}
	return s
}
