package genai

import (
	"context"
	"fmt"
	"strings"
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// New builds the Generator for a provider name. Empty selects OpenAI.
func New(ctx context.Context, provider string, opts ...Option) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", ProviderOpenAI:
		return NewClient(opts...)
	case ProviderGemini, "google":
		return NewGeminiClient(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}
