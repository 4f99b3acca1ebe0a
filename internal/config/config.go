// Package config provides application configuration with multi-source
// priority.
//
// Sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.ragline/config.yaml or ./config.yaml)
//  3. Default values
//
// Validation is fail-fast: Load returns an error for any setting the
// pipeline cannot start with, so misconfiguration never surfaces per call.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation, checked with errors.Is().
var (
	// ErrNoDeployments indicates no model deployments are configured.
	ErrNoDeployments = errors.New("no model deployments configured")

	// ErrUnknownDeployment indicates the active deployment key is not in
	// the deployments table.
	ErrUnknownDeployment = errors.New("unknown active deployment")

	// ErrInvalidPrice indicates a deployment has a negative token price.
	ErrInvalidPrice = errors.New("invalid token price")

	// ErrInvalidResponseFormat indicates the response format selector is
	// not one of plain, tool, function, structured.
	ErrInvalidResponseFormat = errors.New("invalid response format")

	// ErrMissingToolsFile indicates the tool or function format is
	// selected without a declarations file.
	ErrMissingToolsFile = errors.New("missing tools file")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbeddingDim indicates the embedding dimensionality does
	// not match what the documents index supports.
	ErrInvalidEmbeddingDim = errors.New("invalid embedding dimension")

	// ErrInvalidPostgres indicates the PostgreSQL settings are unusable.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")
)

// Response format selector values.
const (
	FormatPlain      = "plain"
	FormatTool       = "tool"
	FormatFunction   = "function"
	FormatStructured = "structured"
)

// DefaultEmbeddingModel is the default Gemini embedding model. Its output
// is truncated to EmbeddingDim dimensions to match the pgvector column.
const DefaultEmbeddingModel = "gemini-embedding-001"

// Deployment names a model tier and its per-token prices.
type Deployment struct {
	Name        string  `mapstructure:"name" json:"name"`
	InputPrice  float64 `mapstructure:"input_price" json:"input_price"`
	OutputPrice float64 `mapstructure:"output_price" json:"output_price"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON.
type Config struct {
	// Model deployments, keyed by tier label (e.g. "default", "mini").
	// ActiveDeployment selects the tier used for chat completions.
	Deployments      map[string]Deployment `mapstructure:"deployments" json:"deployments"`
	ActiveDeployment string                `mapstructure:"active_deployment" json:"active_deployment"`

	// Generation parameters.
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	TopP        float32 `mapstructure:"top_p" json:"top_p"`
	MaxTokens   int32   `mapstructure:"max_tokens" json:"max_tokens"`
	Seed        int32   `mapstructure:"seed" json:"seed"`

	// Prompt and response handling.
	SystemPrompt     string `mapstructure:"system_prompt" json:"system_prompt"`
	SystemPromptFile string `mapstructure:"system_prompt_file" json:"system_prompt_file"`
	ResponseFormat   string `mapstructure:"response_format" json:"response_format"`
	ToolsFile        string `mapstructure:"tools_file" json:"tools_file"`

	// Retrieval parameters.
	RetrievalTopK  int    `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`
	EmbeddingModel string `mapstructure:"embedding_model" json:"embedding_model"`
	EmbeddingDim   int32  `mapstructure:"embedding_dim" json:"embedding_dim"`

	// Storage configuration.
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Observability.
	MetricsNamespace string `mapstructure:"metrics_namespace" json:"metrics_namespace"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".ragline")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	// Two price tiers by default; values are per-token prices.
	viper.SetDefault("deployments", map[string]any{
		"default": map[string]any{
			"name":         "gemini-2.5-pro",
			"input_price":  0.0000025,
			"output_price": 0.00001,
		},
		"mini": map[string]any{
			"name":         "gemini-2.5-flash",
			"input_price":  0.00000015,
			"output_price": 0.0000006,
		},
	})
	viper.SetDefault("active_deployment", "default")

	viper.SetDefault("temperature", 0.2)
	viper.SetDefault("top_p", 0.95)
	viper.SetDefault("max_tokens", 2048)
	viper.SetDefault("seed", 42)

	viper.SetDefault("system_prompt", "You answer strictly from the provided CONTEXT. If the context does not contain the answer, say so.")
	viper.SetDefault("response_format", FormatPlain)

	viper.SetDefault("retrieval_top_k", 3)
	viper.SetDefault("embedding_model", DefaultEmbeddingModel)
	viper.SetDefault("embedding_dim", 768)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "ragline")
	viper.SetDefault("postgres_password", "ragline_dev_password")
	viper.SetDefault("postgres_db_name", "ragline")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("metrics_namespace", "ragline")
}

// bindEnvVariables binds environment overrides explicitly.
// NOTE: GEMINI_API_KEY is read directly by the genai client, not via Viper.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("active_deployment", "RAGLINE_DEPLOYMENT")
	mustBind("response_format", "RAGLINE_RESPONSE_FORMAT")
	mustBind("postgres_host", "RAGLINE_POSTGRES_HOST")
	mustBind("postgres_port", "RAGLINE_POSTGRES_PORT")
	mustBind("postgres_user", "RAGLINE_POSTGRES_USER")
	mustBind("postgres_password", "RAGLINE_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "RAGLINE_POSTGRES_DB")
	mustBind("postgres_ssl_mode", "RAGLINE_POSTGRES_SSL_MODE")
}

// Active returns the selected deployment.
func (c *Config) Active() (Deployment, error) {
	dep, ok := c.Deployments[c.ActiveDeployment]
	if !ok {
		return Deployment{}, fmt.Errorf("%w: %q", ErrUnknownDeployment, c.ActiveDeployment)
	}
	return dep, nil
}

// LoadSystemPrompt returns the system prompt text, preferring the prompt
// file over the inline setting when both are present.
func (c *Config) LoadSystemPrompt() (string, error) {
	if c.SystemPromptFile == "" {
		return c.SystemPrompt, nil
	}
	data, err := os.ReadFile(c.SystemPromptFile)
	if err != nil {
		return "", fmt.Errorf("reading system prompt file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// DatabaseURL returns the PostgreSQL connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}

// MigrateURL returns the connection string for golang-migrate's pgx/v5
// driver, which registers under the pgx5 scheme.
func (c *Config) MigrateURL() string {
	return "pgx5" + strings.TrimPrefix(c.DatabaseURL(), "postgres")
}

const maskedValue = "********"

// MarshalJSON masks sensitive fields so configs can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	if a.PostgresPassword != "" {
		a.PostgresPassword = maskedValue
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
