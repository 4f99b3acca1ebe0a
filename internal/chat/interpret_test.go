package chat

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/ragline/ragline/internal/testutil"
)

func TestCleanResponseText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain text untouched", input: "hello world", want: "hello world"},
		{name: "json fence", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", input: "```\ntext\n```", want: "text"},
		{name: "triple single quotes", input: "'''text'''", want: "text"},
		{name: "triple double quotes", input: `"""text"""`, want: "text"},
		{name: "nested fence and quotes", input: "```json\n'''{\"a\":1}'''\n```", want: `{"a":1}`},
		{name: "surrounding whitespace", input: "  \n```json\nx\n```\n  ", want: "x"},
		{name: "empty input", input: "", want: ""},
		{name: "marker only", input: "```", want: ""},
		{name: "already cleaned is idempotent", input: `{"a":1}`, want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := CleanResponseText(tt.input)
			if got != tt.want {
				t.Errorf("CleanResponseText(%q) = %q, want %q", tt.input, got, tt.want)
			}
			// Cleaning is idempotent.
			if again := CleanResponseText(got); again != got {
				t.Errorf("CleanResponseText not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestNewInterpreter_UnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := NewInterpreter(Format("yaml"), testutil.DiscardLogger())
	if err == nil {
		t.Fatal("NewInterpreter(yaml) = nil error, want ErrConfiguration")
	}
	if got := err.Error(); got == "" {
		t.Error("error message is empty")
	}
}

func TestNewInterpreter_EmptyFormatIsPlain(t *testing.T) {
	t.Parallel()

	interp, err := NewInterpreter("", testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewInterpreter(\"\") error: %v", err)
	}
	got := interp.Interpret(RawOutput{Text: "hi"})
	if got.Value != "hi" {
		t.Errorf("Interpret = %v, want %q", got.Value, "hi")
	}
}

func TestPlainInterpreter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want any
	}{
		{name: "plain string", text: "the capital is Paris", want: "the capital is Paris"},
		{
			name: "fenced json object decodes",
			text: "```json\n{\"answer\": \"yes\"}\n```",
			want: map[string]any{"answer": "yes"},
		},
		{
			name: "json array decodes",
			text: `[1, 2]`,
			want: []any{float64(1), float64(2)},
		},
		{
			name: "scalar json stays a string",
			text: `42`,
			want: "42",
		},
		{
			name: "invalid json stays a string",
			text: "{not json",
			want: "{not json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := plainInterpreter{}.Interpret(RawOutput{Text: tt.text})
			if !reflect.DeepEqual(got.Value, tt.want) {
				t.Errorf("Interpret(%q) = %#v, want %#v", tt.text, got.Value, tt.want)
			}
			if got.Degraded {
				t.Error("plain interpretation marked degraded")
			}
		})
	}
}

func TestToolInterpreter(t *testing.T) {
	t.Parallel()

	logger := testutil.DiscardLogger()

	t.Run("first tool call arguments verbatim", func(t *testing.T) {
		t.Parallel()
		raw := RawOutput{ToolCalls: []ToolCall{
			{Name: "lookup", Arguments: `{"city": "Paris"}`},
			{Name: "ignored", Arguments: `{}`},
		}}
		got := toolInterpreter{logger: logger}.Interpret(raw)
		if got.Value != `{"city": "Paris"}` {
			t.Errorf("Interpret = %v, want verbatim arguments", got.Value)
		}
		if got.Degraded {
			t.Error("tool call interpretation marked degraded")
		}
	})

	t.Run("no tool call degrades to plain text", func(t *testing.T) {
		t.Parallel()
		got := toolInterpreter{logger: logger}.Interpret(RawOutput{Text: "just text"})
		if got.Value != "just text" {
			t.Errorf("Interpret = %v, want %q", got.Value, "just text")
		}
		if !got.Degraded {
			t.Error("fallback not marked degraded")
		}
	})
}

func TestFunctionInterpreter(t *testing.T) {
	t.Parallel()

	logger := testutil.DiscardLogger()

	tests := []struct {
		name string
		raw  RawOutput
		want any
	}{
		{
			name: "valid json arguments decode to object",
			raw:  RawOutput{FunctionCall: &ToolCall{Name: "answer", Arguments: `{"answer": "answer: yes"}`}},
			want: map[string]any{"answer": "answer: yes"},
		},
		{
			name: "invalid json arguments wrap as answer",
			raw:  RawOutput{FunctionCall: &ToolCall{Name: "answer", Arguments: "not json"}},
			want: map[string]any{"answer": "not json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := functionInterpreter{logger: logger}.Interpret(tt.raw)
			if !reflect.DeepEqual(got.Value, tt.want) {
				t.Errorf("Interpret = %#v, want %#v", got.Value, tt.want)
			}
			if got.Degraded {
				t.Error("function interpretation marked degraded")
			}
		})
	}

	t.Run("absent function call degrades to plain text", func(t *testing.T) {
		t.Parallel()
		got := functionInterpreter{logger: logger}.Interpret(RawOutput{Text: "fallback"})
		if got.Value != "fallback" {
			t.Errorf("Interpret = %v, want %q", got.Value, "fallback")
		}
		if !got.Degraded {
			t.Error("fallback not marked degraded")
		}
	})
}

func TestStructuredInterpreter(t *testing.T) {
	t.Parallel()

	logger := testutil.DiscardLogger()

	t.Run("structured payload decodes", func(t *testing.T) {
		t.Parallel()
		raw := RawOutput{Structured: json.RawMessage(`{"answer":"yes","intents":["greet"],"flag":true}`)}
		got := structuredInterpreter{logger: logger}.Interpret(raw)
		want := StructuredAnswer{Answer: "yes", Intents: []string{"greet"}, Flag: true}
		if !reflect.DeepEqual(got.Value, want) {
			t.Errorf("Interpret = %#v, want %#v", got.Value, want)
		}
	})

	t.Run("falls back to text payload", func(t *testing.T) {
		t.Parallel()
		raw := RawOutput{Text: `{"answer":"from text","intents":[],"flag":false}`}
		got := structuredInterpreter{logger: logger}.Interpret(raw)
		want := StructuredAnswer{Answer: "from text", Intents: []string{}}
		if !reflect.DeepEqual(got.Value, want) {
			t.Errorf("Interpret = %#v, want %#v", got.Value, want)
		}
	})

	t.Run("schema mismatch degrades to plain text", func(t *testing.T) {
		t.Parallel()
		got := structuredInterpreter{logger: logger}.Interpret(RawOutput{Text: "plain sentence"})
		if got.Value != "plain sentence" {
			t.Errorf("Interpret = %v, want %q", got.Value, "plain sentence")
		}
		if !got.Degraded {
			t.Error("schema mismatch not marked degraded")
		}
	})
}
