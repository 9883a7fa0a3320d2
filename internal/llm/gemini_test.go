package llm

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
)

func TestFirstText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{}}},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"a":`), genai.Text(`1}`)}}},
		},
	}
	assert.Equal(t, `{"a":1}`, firstText(resp))
	assert.Equal(t, "", firstText(nil))
}

func TestGeminiUsage(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 4, TotalTokenCount: 14},
	}
	assert.Equal(t, Usage{Total: 14, Input: 10, Output: 4}, geminiUsage(resp))
	assert.Equal(t, Usage{}, geminiUsage(&genai.GenerateContentResponse{}))
}
