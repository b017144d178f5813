// Package genai provides the text-generation oracle used by StreamAgent.
// It offers an OpenAI backend and a Gemini backend behind the Generator
// interface.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ModelClass selects between the cheap and the capable configured model.
type ModelClass int

const (
	ModelSmall ModelClass = iota
	ModelMedium
)

func (m ModelClass) String() string {
	if m == ModelSmall {
		return "small"
	}
	return "medium"
}

// Generator is an opaque text oracle: it turns a system and a user prompt
// into free text. Output is untrusted and must be parsed by the caller.
type Generator interface {
	Generate(ctx context.Context, class ModelClass, systemPrompt, userPrompt string) (string, error)
}

var (
	// ErrNoChoicesReturned is returned when the completion has no choices.
	ErrNoChoicesReturned = errors.New("no choices returned")
	// ErrEmptyResponse is returned when the provider returns no text.
	ErrEmptyResponse = errors.New("empty response")
	// ErrAPIKeyNotSet is returned when no API key is configured.
	ErrAPIKeyNotSet = errors.New("API key not set")
)

// Default models and sampling settings.
const (
	DefaultSmallModel  = "gpt-4o-mini"
	DefaultMediumModel = "gpt-4o"
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
)

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionsAdapter adapts the SDK completion service to chatService.
type completionsAdapter struct {
	svc *openai.ChatCompletionService
}

func (a completionsAdapter) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := a.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the generation clients.
type Opts struct {
	APIKey      string
	SmallModel  string
	MediumModel string
	Temperature float64
	MaxTokens   int
	DebugMode   bool
	StateDir    string
}

// Option defines a configuration option for the generation clients.
type Option func(*Opts)

// WithAPIKey overrides the provider API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModels sets the small and medium model names. Empty values keep the default.
func WithModels(small, medium string) Option {
	return func(o *Opts) {
		if small != "" {
			o.SmallModel = small
		}
		if medium != "" {
			o.MediumModel = medium
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// WithDebug records every call as a JSON file under <stateDir>/debug.
func WithDebug(enabled bool, stateDir string) Option {
	return func(o *Opts) {
		o.DebugMode = enabled
		o.StateDir = stateDir
	}
}

func defaultOpts() Opts {
	return Opts{
		SmallModel:  DefaultSmallModel,
		MediumModel: DefaultMediumModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat        chatService
	model       string
	smallModel  string
	temperature float64
	maxTokens   int
	debugMode   bool
	stateDir    string
}

// NewClient initializes an OpenAI client. The key comes from WithAPIKey or
// the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	cfg := defaultOpts()
	cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrAPIKeyNotSet)
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("genai.NewClient: openai client created", "small_model", cfg.SmallModel, "medium_model", cfg.MediumModel, "debug", cfg.DebugMode)
	return &Client{
		chat:        completionsAdapter{svc: &cli.Chat.Completions},
		model:       cfg.MediumModel,
		smallModel:  cfg.SmallModel,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		debugMode:   cfg.DebugMode,
		stateDir:    cfg.StateDir,
	}, nil
}

func (c *Client) modelFor(class ModelClass) string {
	if class == ModelSmall && c.smallModel != "" {
		return c.smallModel
	}
	return c.model
}

// Generate implements Generator.
func (c *Client) Generate(ctx context.Context, class ModelClass, systemPrompt, userPrompt string) (string, error) {
	return c.complete(ctx, "Generate", c.modelFor(class), systemPrompt, userPrompt)
}

func (c *Client) complete(ctx context.Context, method, model, systemPrompt, userPrompt string) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.maxTokens))
	}

	start := time.Now()
	resp, err := c.chat.Create(ctx, params)
	var out string
	if err == nil && len(resp.Choices) > 0 {
		out = resp.Choices[0].Message.Content
	}
	if c.debugMode {
		c.writeDebug(method, model, map[string]any{
			"system":      systemPrompt,
			"user":        userPrompt,
			"temperature": c.temperature,
			"max_tokens":  c.maxTokens,
		}, out, err, time.Since(start))
	}
	if err != nil {
		slog.Error("genai.Client.complete: completion failed", "model", model, "error", err)
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	slog.Debug("genai.Client.complete: completion received", "model", model, "chars", len(out), "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

func (c *Client) writeDebug(method, model string, params map[string]any, resp string, callErr error, elapsed time.Duration) {
	writeDebugEntry(c.stateDir, debugEntry{
		Timestamp:  time.Now(),
		Method:     method,
		Model:      model,
		Params:     params,
		Response:   resp,
		Error:      errString(callErr),
		DurationMs: elapsed.Milliseconds(),
	})
}
