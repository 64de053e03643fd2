package llm

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

const vertexSystemInstruction = "You edit LaTeX documents by returning search and replace patches as JSON. Never return the full document."

// VertexClient implements Client for Gemini on Vertex AI
type VertexClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
	config *Config
}

// NewVertexClient creates a client using application default credentials.
func NewVertexClient(ctx context.Context, config *Config) (*VertexClient, error) {
	if config.Project == "" || config.Region == "" {
		return nil, fmt.Errorf("NewVertexClient: project and region cannot be empty")
	}

	client, err := genai.NewClient(ctx, config.Project, config.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := client.GenerativeModel(config.Model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(vertexSystemInstruction)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr(config.Temperature),
		MaxOutputTokens: genai.Ptr(int32(config.MaxTokens)),
	}

	return &VertexClient{client: client, model: model, config: config}, nil
}

// Generate sends prompt to the configured model
func (c *VertexClient) Generate(ctx context.Context, prompt string) (*Response, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	return vertexResponse(resp)
}

// Model returns the configured model name
func (c *VertexClient) Model() string {
	return c.config.Model
}

// Close releases resources held by the client
func (c *VertexClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func vertexResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no content in response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("no text parts in response")
	}

	out := &Response{Text: sb.String()}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}
