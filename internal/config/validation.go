package config

import "fmt"

// Validate checks the configuration for values the pipeline cannot start
// with. Called by Load; exported so tests and callers constructing Config
// directly can fail fast too.
func (c *Config) Validate() error {
	if len(c.Deployments) == 0 {
		return ErrNoDeployments
	}
	if _, ok := c.Deployments[c.ActiveDeployment]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDeployment, c.ActiveDeployment)
	}
	for tier, dep := range c.Deployments {
		if dep.Name == "" {
			return fmt.Errorf("%w: deployment %q has no model name", ErrUnknownDeployment, tier)
		}
		if dep.InputPrice < 0 || dep.OutputPrice < 0 {
			return fmt.Errorf("%w: deployment %q", ErrInvalidPrice, tier)
		}
	}

	switch c.ResponseFormat {
	case FormatPlain, FormatStructured:
	case FormatTool, FormatFunction:
		if c.ToolsFile == "" {
			return fmt.Errorf("%w: format %q needs a declarations file", ErrMissingToolsFile, c.ResponseFormat)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidResponseFormat, c.ResponseFormat)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (want 0..2)", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if c.EmbeddingDim < 1 || c.EmbeddingDim > 3072 {
		return fmt.Errorf("%w: %d", ErrInvalidEmbeddingDim, c.EmbeddingDim)
	}

	if c.PostgresHost == "" || c.PostgresDBName == "" || c.PostgresUser == "" {
		return fmt.Errorf("%w: host, user and database name are required", ErrInvalidPostgres)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidPostgres, c.PostgresPort)
	}
	return nil
}
