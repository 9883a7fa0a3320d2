// Package llm wraps language-model providers behind a single completion call.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// ErrMissingAPIKey is returned when a provider is configured without a key.
var ErrMissingAPIKey = errors.New("llm: api key is empty")

// Usage holds the token counters reported by the provider. Any field may be
// zero when the provider does not report it.
type Usage struct {
	Total  int64
	Input  int64
	Output int64
}

// Completion is a raw model response.
type Completion struct {
	Text  string
	Model string
	Usage Usage
}

// Completer sends one system instruction and one user message and returns the
// raw text reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (*Completion, error)
	Name() string
}

// Config selects and configures a provider.
type Config struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Logger      *slog.Logger
}

// New builds the configured Completer.
func New(ctx context.Context, cfg Config) (Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderGemini:
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
