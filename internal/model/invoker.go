// Package model adapts the Gemini API (google.golang.org/genai) to the
// pipeline's ModelInvoker and Embedder contracts.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ragline/ragline/internal/chat"
)

// Params are the generation parameters applied to every invocation.
type Params struct {
	Temperature float32
	TopP        float32
	MaxTokens   int32
	Seed        int32
}

// Config contains all required parameters for the Invoker.
type Config struct {
	Client *genai.Client
	Model  string
	Format chat.Format
	Params Params

	// Declarations are the tool/function declarations advertised to the
	// model. Required for the tool and function formats.
	Declarations []*genai.FunctionDeclaration

	// Limiter throttles outbound calls. Nil uses a default of 10 req/s
	// with a burst of 30.
	Limiter *rate.Limiter

	Logger *slog.Logger
}

// Invoker runs chat completions against a fixed model deployment. The
// request shape follows the configured response format: plain requests
// carry no tools, tool/function requests advertise the configured
// declarations, and structured requests constrain output to the answer
// schema.
type Invoker struct {
	client  *genai.Client
	model   string
	format  chat.Format
	params  Params
	tools   []*genai.Tool
	schema  *genai.Schema
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewInvoker creates an Invoker, validating that the configured format has
// what it needs before the first request is served.
func NewInvoker(cfg Config) (*Invoker, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("%w: genai client is required", chat.ErrConfiguration)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model name is required", chat.ErrConfiguration)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	inv := &Invoker{
		client:  cfg.Client,
		model:   cfg.Model,
		format:  cfg.Format,
		params:  cfg.Params,
		limiter: cfg.Limiter,
		logger:  cfg.Logger,
	}
	if inv.limiter == nil {
		inv.limiter = rate.NewLimiter(10, 30)
	}

	switch cfg.Format {
	case chat.FormatTool, chat.FormatFunction:
		if len(cfg.Declarations) == 0 {
			return nil, fmt.Errorf("%w: format %q requires tool declarations", chat.ErrConfiguration, cfg.Format)
		}
		inv.tools = []*genai.Tool{{FunctionDeclarations: cfg.Declarations}}
	case chat.FormatStructured:
		inv.schema = answerSchema()
	}

	return inv, nil
}

// Invoke runs one chat completion and maps the response to the pipeline's
// raw output shape. An empty response is an error, not an empty answer.
func (v *Invoker) Invoke(ctx context.Context, req chat.PromptRequest) (*chat.Invocation, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := genai.Role(genai.RoleUser)
		if turn.Role == chat.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(req.User, genai.RoleUser))

	resp, err := v.client.Models.GenerateContent(ctx, v.model, contents, v.generationConfig(req.System))
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	raw := chat.RawOutput{Text: resp.Text()}
	for _, fc := range resp.FunctionCalls() {
		args, err := json.Marshal(fc.Args)
		if err != nil {
			return nil, fmt.Errorf("encoding call arguments for %q: %w", fc.Name, err)
		}
		raw.ToolCalls = append(raw.ToolCalls, chat.ToolCall{Name: fc.Name, Arguments: string(args)})
	}
	if v.format == chat.FormatFunction && len(raw.ToolCalls) > 0 {
		raw.FunctionCall = &raw.ToolCalls[0]
	}
	if v.format == chat.FormatStructured && raw.Text != "" {
		raw.Structured = json.RawMessage(raw.Text)
	}

	if raw.Text == "" && len(raw.ToolCalls) == 0 {
		return nil, errors.New("model returned empty output")
	}

	inv := &chat.Invocation{Output: raw, Model: v.model}
	if usage := resp.UsageMetadata; usage != nil {
		inv.InputTokens = int64(usage.PromptTokenCount)
		inv.OutputTokens = int64(usage.CandidatesTokenCount)
	}

	v.logger.Debug("model invocation completed",
		"model", v.model,
		"tool_calls", len(raw.ToolCalls),
		"input_tokens", inv.InputTokens,
		"output_tokens", inv.OutputTokens)

	return inv, nil
}

// generationConfig builds the per-request configuration. The system
// instruction carries no role; roles belong to conversation contents only.
func (v *Invoker) generationConfig(system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(v.params.Temperature),
		TopP:            genai.Ptr(v.params.TopP),
		MaxOutputTokens: v.params.MaxTokens,
		Seed:            genai.Ptr(v.params.Seed),
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	switch v.format {
	case chat.FormatTool, chat.FormatFunction:
		cfg.Tools = v.tools
	case chat.FormatStructured:
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = v.schema
	}
	return cfg
}

// answerSchema is the fixed schema for structured output.
func answerSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"answer":  {Type: genai.TypeString},
			"intents": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"flag":    {Type: genai.TypeBoolean},
		},
		Required: []string{"answer", "intents", "flag"},
	}
}
