// Package llm provides model configuration and provider clients for
// generating document edits.
package llm

import (
	"fmt"
	"strings"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini API, authenticated with an API key
	ProviderGemini Provider = "gemini"
	// ProviderVertex is Gemini on Vertex AI, authenticated with application default credentials
	ProviderVertex Provider = "vertex"
	// ProviderBedrock is Amazon Bedrock's InvokeModel API
	ProviderBedrock Provider = "bedrock"
)

// Generation defaults.
const (
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 4096
)

// Config holds the model configuration for the application
type Config struct {
	Provider    Provider `json:"provider" yaml:"provider"`
	Model       string   `json:"model" yaml:"model"`
	Temperature float32  `json:"temperature" yaml:"temperature"`
	MaxTokens   int      `json:"max_tokens" yaml:"max_tokens"`
	// Project and Region address Vertex AI and Bedrock.
	Project string `json:"project,omitempty" yaml:"project,omitempty"`
	Region  string `json:"region,omitempty" yaml:"region,omitempty"`
	// MaxRetries is the number of extra attempts on transient failures.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// DefaultConfig returns the default configuration (Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider:    ProviderGemini,
		Model:       DefaultModel(ProviderGemini),
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		MaxRetries:  1,
	}
}

// DefaultModel returns the model used for a provider when none is configured.
func DefaultModel(p Provider) string {
	switch p {
	case ProviderVertex:
		return "gemini-2.5-flash"
	case ProviderBedrock:
		return "qwen.qwen3-32b-v1:0"
	default:
		return "gemini-2.5-flash"
	}
}

// WithDefaults fills unset fields.
func (c *Config) WithDefaults() *Config {
	out := *c
	if out.Provider == "" {
		out.Provider = ProviderGemini
	}
	out.Provider = Provider(strings.ToLower(string(out.Provider)))
	if out.Model == "" {
		out.Model = DefaultModel(out.Provider)
	}
	if out.Temperature <= 0 {
		out.Temperature = DefaultTemperature
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = DefaultMaxTokens
	}
	if out.MaxRetries < 0 {
		out.MaxRetries = 0
	}
	return &out
}

// Validate checks provider-specific requirements.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderBedrock:
	case ProviderVertex:
		if c.Project == "" || c.Region == "" {
			return fmt.Errorf("vertex provider requires project and region")
		}
	default:
		return fmt.Errorf("unknown llm provider %q", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", c.Temperature)
	}
	return nil
}
