package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	gemini "google.golang.org/genai"
)

// contentService is the slice of the Gemini models API the client uses.
type contentService interface {
	GenerateContent(ctx context.Context, model string, contents []*gemini.Content, cfg *gemini.GenerateContentConfig) (*gemini.GenerateContentResponse, error)
}

// GeminiClient generates text with the Gemini API.
type GeminiClient struct {
	models      contentService
	model       string
	smallModel  string
	temperature float64
	maxTokens   int
	debugMode   bool
	stateDir    string
}

// NewGeminiClient creates a Gemini client. The key comes from WithAPIKey or
// the GEMINI_API_KEY environment variable. When WithModels is not used both
// classes map to GEMINI_MODEL or the default Gemini model.
func NewGeminiClient(ctx context.Context, opts ...Option) (*GeminiClient, error) {
	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = DefaultGeminiModel
	}
	cfg := defaultOpts()
	cfg.SmallModel = model
	cfg.MediumModel = model
	cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrAPIKeyNotSet)
	}
	client, err := gemini.NewClient(ctx, &gemini.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: gemini.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	slog.Debug("genai.NewGeminiClient: gemini client created", "small_model", cfg.SmallModel, "medium_model", cfg.MediumModel)
	return &GeminiClient{
		models:      client.Models,
		model:       cfg.MediumModel,
		smallModel:  cfg.SmallModel,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		debugMode:   cfg.DebugMode,
		stateDir:    cfg.StateDir,
	}, nil
}

// Generate implements Generator.
func (g *GeminiClient) Generate(ctx context.Context, class ModelClass, systemPrompt, userPrompt string) (string, error) {
	model := g.model
	if class == ModelSmall && g.smallModel != "" {
		model = g.smallModel
	}

	cfg := &gemini.GenerateContentConfig{}
	if strings.TrimSpace(systemPrompt) != "" {
		cfg.SystemInstruction = gemini.NewContentFromText(systemPrompt, gemini.RoleUser)
	}
	if g.temperature > 0 {
		temp := float32(g.temperature)
		cfg.Temperature = &temp
	}
	if g.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(g.maxTokens)
	}
	contents := []*gemini.Content{gemini.NewContentFromText(userPrompt, gemini.RoleUser)}

	start := time.Now()
	res, err := g.models.GenerateContent(ctx, model, contents, cfg)
	var text string
	if err == nil && res != nil {
		text = res.Text()
	}
	if g.debugMode {
		writeDebugEntry(g.stateDir, debugEntry{
			Timestamp: time.Now(),
			Method:    "Generate",
			Model:     model,
			Params: map[string]any{
				"system":      systemPrompt,
				"user":        userPrompt,
				"temperature": g.temperature,
				"max_tokens":  g.maxTokens,
			},
			Response:   text,
			Error:      errString(err),
			DurationMs: time.Since(start).Milliseconds(),
		})
	}
	if err != nil {
		slog.Error("genai.GeminiClient.Generate: generate content failed", "model", model, "error", err)
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
