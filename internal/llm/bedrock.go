package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// Bedrock reports billed usage in these response headers.
const (
	bedrockInputTokensHeader  = "X-Amzn-Bedrock-Input-Token-Count"
	bedrockOutputTokensHeader = "X-Amzn-Bedrock-Output-Token-Count"
)

// BedrockAPI is the subset of the Bedrock runtime client used by BedrockClient.
type BedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient implements Client for text-completion models on Amazon Bedrock
type BedrockClient struct {
	api    BedrockAPI
	config *Config
}

type bedrockRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

// bedrockResponse covers the completion shapes of the text models Bedrock
// hosts; only one of the text fields is set for a given model family.
type bedrockResponse struct {
	Output *struct {
		Text string `json:"text"`
	} `json:"output"`
	Generation string `json:"generation"`
	Choices    []struct {
		Text string `json:"text"`
	} `json:"choices"`

	PromptTokenCount     int `json:"prompt_token_count"`
	GenerationTokenCount int `json:"generation_token_count"`
	Usage                *struct {
		InputTokens      int `json:"input_tokens"`
		OutputTokens     int `json:"output_tokens"`
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// NewBedrockClient loads the default AWS configuration and creates a client.
func NewBedrockClient(ctx context.Context, config *Config) (*BedrockClient, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if config.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(config.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewBedrockClientWithAPI(bedrockruntime.NewFromConfig(cfg), config), nil
}

// NewBedrockClientWithAPI creates a client over an existing runtime API.
func NewBedrockClientWithAPI(api BedrockAPI, config *Config) *BedrockClient {
	return &BedrockClient{api: api, config: config}
}

// Generate invokes the configured model with a single prompt
func (c *BedrockClient) Generate(ctx context.Context, prompt string) (*Response, error) {
	body, err := json.Marshal(bedrockRequest{
		Prompt:      prompt,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode bedrock request: %w", err)
	}

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.config.Model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke model=%s: %w", c.config.Model, err)
	}

	resp, err := parseBedrockBody(out.Body)
	if err != nil {
		return nil, err
	}
	if in, outTokens, ok := headerUsage(out); ok {
		resp.InputTokens, resp.OutputTokens = in, outTokens
	}
	return resp, nil
}

// Model returns the configured model ID
func (c *BedrockClient) Model() string {
	return c.config.Model
}

// Close is a no-op; the AWS client holds no resources.
func (c *BedrockClient) Close() error {
	return nil
}

func parseBedrockBody(body []byte) (*Response, error) {
	var rb bedrockResponse
	if err := json.Unmarshal(body, &rb); err != nil {
		return nil, fmt.Errorf("failed to decode bedrock response: %w", err)
	}

	resp := &Response{}
	switch {
	case rb.Output != nil && rb.Output.Text != "":
		resp.Text = rb.Output.Text
	case rb.Generation != "":
		resp.Text = rb.Generation
	case len(rb.Choices) > 0:
		resp.Text = rb.Choices[0].Text
	}

	resp.InputTokens, resp.OutputTokens = rb.PromptTokenCount, rb.GenerationTokenCount
	if rb.Usage != nil {
		resp.InputTokens = max(rb.Usage.InputTokens, rb.Usage.PromptTokens)
		resp.OutputTokens = max(rb.Usage.OutputTokens, rb.Usage.CompletionTokens)
	}
	return resp, nil
}

func headerUsage(out *bedrockruntime.InvokeModelOutput) (int, int, bool) {
	raw, ok := awsmiddleware.GetRawResponse(out.ResultMetadata).(*smithyhttp.Response)
	if !ok || raw == nil {
		return 0, 0, false
	}
	in, errIn := strconv.Atoi(raw.Header.Get(bedrockInputTokensHeader))
	outTokens, errOut := strconv.Atoi(raw.Header.Get(bedrockOutputTokensHeader))
	if errIn != nil || errOut != nil {
		return 0, 0, false
	}
	return in, outTokens, true
}
