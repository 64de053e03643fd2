package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Response is a model completion plus the token usage it was billed for.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client is an abstraction over LLM providers
type Client interface {
	// Generate sends a single prompt and returns the completion
	Generate(ctx context.Context, prompt string) (*Response, error)
	// Model returns the provider model name
	Model() string
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new LLM client based on configuration. Clients are
// wrapped in a Retrying decorator when cfg.MaxRetries is positive.
func NewClient(ctx context.Context, cfg *Config, apiKey string, logger *slog.Logger) (Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var (
		client Client
		err    error
	)
	switch cfg.Provider {
	case ProviderGemini:
		client, err = NewGeminiClient(ctx, cfg, apiKey)
	case ProviderVertex:
		client, err = NewVertexClient(ctx, cfg)
	case ProviderBedrock:
		client, err = NewBedrockClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.MaxRetries > 0 {
		client = NewRetrying(client, cfg.MaxRetries, 2*time.Second, logger)
	}
	return client, nil
}
