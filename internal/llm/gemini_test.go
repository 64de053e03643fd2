package llm

import (
	"testing"

	vertex "cloud.google.com/go/vertexai/genai"
	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"patches":`), genai.Text(` []}`)}},
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 900, CandidatesTokenCount: 40},
	}

	out, err := geminiResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"patches": []}`, out.Text)
	assert.Equal(t, 900, out.InputTokens)
	assert.Equal(t, 40, out.OutputTokens)
}

func TestGeminiResponse_Empty(t *testing.T) {
	_, err := geminiResponse(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	_, err = geminiResponse(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{}}}})
	assert.Error(t, err)

	_, err = geminiResponse(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}},
	}}})
	assert.Error(t, err)
}

func TestVertexResponse(t *testing.T) {
	resp := &vertex.GenerateContentResponse{
		Candidates: []*vertex.Candidate{{
			Content: &vertex.Content{Parts: []vertex.Part{vertex.Text("ok")}},
		}},
		UsageMetadata: &vertex.UsageMetadata{PromptTokenCount: 12, CandidatesTokenCount: 1},
	}

	out, err := vertexResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, &Response{Text: "ok", InputTokens: 12, OutputTokens: 1}, out)

	_, err = vertexResponse(nil)
	assert.Error(t, err)
}
