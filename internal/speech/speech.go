// Package speech turns reply text into a hosted audio URL: text is rendered
// by PlayHT and the mp3 is uploaded to the streaming platform.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// Synthesizer turns text into a public audio URL.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Uploader stores an audio clip and returns its public URL.
type Uploader interface {
	UploadAudio(ctx context.Context, fileName string, audio []byte) (string, error)
}

var (
	// ErrCredentialsNotSet is returned when PlayHT credentials are missing.
	ErrCredentialsNotSet = errors.New("PlayHT credentials not set")
	// ErrEmptyText is returned for blank input.
	ErrEmptyText = errors.New("empty text")
)

// PlayHT defaults.
const (
	DefaultEndpoint    = "https://api.play.ht/api/v2/tts/stream"
	DefaultVoice       = "s3://voice-cloning-zero-shot/952aed5d-9b38-4a58-a867-08c448af36b5/original/manifest.json"
	DefaultVoiceEngine = "PlayDialog"
	DefaultQuality     = "premium"
)

// Opts holds configuration options for the PlayHT client.
type Opts struct {
	APIKey     string
	UserID     string
	Voice      string
	Endpoint   string
	HTTPClient *http.Client
}

// Option defines a configuration option for the PlayHT client.
type Option func(*Opts)

// WithCredentials sets the PlayHT API key and user id.
func WithCredentials(apiKey, userID string) Option {
	return func(o *Opts) {
		o.APIKey = apiKey
		o.UserID = userID
	}
}

// WithVoice selects the voice manifest.
func WithVoice(voice string) Option {
	return func(o *Opts) {
		if voice != "" {
			o.Voice = voice
		}
	}
}

// WithEndpoint overrides the TTS stream endpoint.
func WithEndpoint(u string) Option {
	return func(o *Opts) { o.Endpoint = u }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// PlayHT renders speech with the PlayHT streaming API.
type PlayHT struct {
	apiKey   string
	userID   string
	voice    string
	endpoint string
	http     *http.Client
}

// NewPlayHT creates a PlayHT client; credentials default to PLAYHT_API_KEY
// and PLAYHT_USER_ID.
func NewPlayHT(opts ...Option) (*PlayHT, error) {
	cfg := Opts{
		APIKey:   os.Getenv("PLAYHT_API_KEY"),
		UserID:   os.Getenv("PLAYHT_USER_ID"),
		Voice:    DefaultVoice,
		Endpoint: DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" || cfg.UserID == "" {
		return nil, ErrCredentialsNotSet
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &PlayHT{apiKey: cfg.APIKey, userID: cfg.UserID, voice: cfg.Voice, endpoint: cfg.Endpoint, http: hc}, nil
}

type ttsRequest struct {
	Text         string `json:"text"`
	Voice        string `json:"voice"`
	OutputFormat string `json:"output_format"`
	VoiceEngine  string `json:"voice_engine"`
	Quality      string `json:"quality"`
}

// Render returns the mp3 bytes for text.
func (p *PlayHT) Render(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(ttsRequest{
		Text:         text,
		Voice:        p.voice,
		OutputFormat: "mp3",
		VoiceEngine:  DefaultVoiceEngine,
		Quality:      DefaultQuality,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("AUTHORIZATION", p.apiKey)
	req.Header.Set("X-USER-ID", p.userID)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(audio)))
	}
	return audio, nil
}

// Renderer produces audio bytes for text.
type Renderer interface {
	Render(ctx context.Context, text string) ([]byte, error)
}

// Service renders speech and uploads it, implementing Synthesizer.
type Service struct {
	renderer Renderer
	uploader Uploader
	agentID  string
	now      func() time.Time
}

// NewService combines a renderer and an uploader for one agent.
func NewService(renderer Renderer, uploader Uploader, agentID string) *Service {
	return &Service{renderer: renderer, uploader: uploader, agentID: agentID, now: time.Now}
}

// Synthesize implements Synthesizer.
func (s *Service) Synthesize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	start := s.now()
	audio, err := s.renderer.Render(ctx, text)
	if err != nil {
		return "", fmt.Errorf("render speech: %w", err)
	}
	name := fmt.Sprintf("%s-%d.mp3", s.agentID, start.UnixMilli())
	u, err := s.uploader.UploadAudio(ctx, name, audio)
	if err != nil {
		return "", fmt.Errorf("upload speech: %w", err)
	}
	slog.Debug("speech.Service.Synthesize: audio uploaded", "agent", s.agentID, "bytes", len(audio), "url", u, "duration_ms", s.now().Sub(start).Milliseconds())
	return u, nil
}

// Disabled is a Synthesizer used when no TTS provider is configured.
type Disabled struct{}

// ErrDisabled is returned by Disabled.
var ErrDisabled = errors.New("speech synthesis disabled")

// Synthesize implements Synthesizer.
func (Disabled) Synthesize(context.Context, string) (string, error) {
	return "", ErrDisabled
}
