package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/genai"

	"github.com/ragline/ragline/api"
	"github.com/ragline/ragline/internal/chat"
	"github.com/ragline/ragline/internal/config"
	"github.com/ragline/ragline/internal/database"
	"github.com/ragline/ragline/internal/log"
	"github.com/ragline/ragline/internal/model"
	"github.com/ragline/ragline/internal/observability"
	"github.com/ragline/ragline/internal/retrieval"
	"github.com/ragline/ragline/internal/session"
)

// runServe initializes and starts the HTTP API server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	addr, err := parseServeAddr()
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	logger.Info("starting ragline", "version", Version, "config", cfg)

	if err = database.Migrate(cfg.MigrateURL()); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	pool, err := database.Open(ctx, cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("creating genai client: %w", err)
	}

	orch, err := buildPipeline(cfg, client, pool, logger)
	if err != nil {
		return err
	}

	server := api.NewServer(orch, pool, logger.With("component", "api"))
	return server.Run(ctx, addr)
}

// buildPipeline wires the retrieval, session, and model collaborators into
// an orchestrator according to the loaded configuration.
func buildPipeline(cfg *config.Config, client *genai.Client, pool *pgxpool.Pool, logger log.Logger) (*chat.Orchestrator, error) {
	active, err := cfg.Active()
	if err != nil {
		return nil, fmt.Errorf("resolving active deployment: %w", err)
	}

	systemPrompt, err := cfg.LoadSystemPrompt()
	if err != nil {
		return nil, fmt.Errorf("loading system prompt: %w", err)
	}

	var declarations []*genai.FunctionDeclaration
	if cfg.ResponseFormat == config.FormatTool || cfg.ResponseFormat == config.FormatFunction {
		declarations, err = model.LoadDeclarations(cfg.ToolsFile)
		if err != nil {
			return nil, fmt.Errorf("loading tool declarations: %w", err)
		}
	}

	invoker, err := model.NewInvoker(model.Config{
		Client: client,
		Model:  active.Name,
		Format: chat.Format(cfg.ResponseFormat),
		Params: model.Params{
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			MaxTokens:   cfg.MaxTokens,
			Seed:        cfg.Seed,
		},
		Declarations: declarations,
		Logger:       logger.With("component", "invoker"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating model invoker: %w", err)
	}

	embedder := model.NewEmbedder(client, cfg.EmbeddingModel, cfg.EmbeddingDim,
		logger.With("component", "embedder"))
	retriever := retrieval.New(pool, embedder, cfg.RetrievalTopK,
		logger.With("component", "retriever"))
	store := session.New(pool, logger.With("component", "sessions"))

	prices := chat.PriceTable{}
	for _, d := range cfg.Deployments {
		prices[d.Name] = chat.Price{Input: d.InputPrice, Output: d.OutputPrice}
	}

	return chat.New(chat.Config{
		Retriever:    retriever,
		Sessions:     store,
		Invoker:      invoker,
		Logger:       logger.With("component", "orchestrator"),
		Format:       chat.Format(cfg.ResponseFormat),
		SystemPrompt: systemPrompt,
		Prices:       prices,
		Metrics:      observability.NewMetrics(cfg.MetricsNamespace),
	})
}

// newLogger builds the process-wide logger. DEBUG in the environment
// lowers the level.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: true})
}
