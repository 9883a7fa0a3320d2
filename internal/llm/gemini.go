package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when the gemini provider has no model set.
const DefaultGeminiModel = "gemini-1.5-flash"

// Gemini calls Google's generative language API.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	logger      *slog.Logger
}

// NewGemini creates a client. Close releases it.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" || model == DefaultModel {
		model = DefaultGeminiModel
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, err
	}
	return &Gemini{
		client:      cl,
		model:       model,
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(cfg.MaxTokens),
		logger:      loggerOrDefault(cfg.Logger),
	}, nil
}

// Name returns the provider identifier.
func (g *Gemini) Name() string {
	return ProviderGemini
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// Complete runs one generate-content call with JSON output requested.
func (g *Gemini) Complete(ctx context.Context, system, user string) (*Completion, error) {
	m := g.client.GenerativeModel(g.model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      &g.temperature,
		ResponseMIMEType: "application/json",
	}
	if g.maxTokens > 0 {
		m.GenerationConfig.MaxOutputTokens = &g.maxTokens
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}

	resp, err := m.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return nil, err
	}
	out := &Completion{
		Text:  firstText(resp),
		Model: g.model,
		Usage: geminiUsage(resp),
	}
	g.logger.Debug("gemini completion", "model", g.model, "input_tokens", out.Usage.Input, "output_tokens", out.Usage.Output)
	if out.Text == "" {
		return out, errors.New("gemini: empty response")
	}
	return out, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

func geminiUsage(resp *genai.GenerateContentResponse) Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return Usage{}
	}
	md := resp.UsageMetadata
	return Usage{
		Total:  int64(md.TotalTokenCount),
		Input:  int64(md.PromptTokenCount),
		Output: int64(md.CandidatesTokenCount),
	}
}
