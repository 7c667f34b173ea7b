package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Defaults for generation parameters.
const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 1024
)

// ErrMissingAPIKey means the client was built without credentials. Callers
// report it as a configuration problem rather than an upstream failure.
var ErrMissingAPIKey = errors.New("LLM API key is not set; add it to your .env file")

// Message is one prior conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single chat completion.
type Request struct {
	Model       string
	System      string
	History     []Message
	User        string
	Temperature float64
	MaxTokens   int
}

func (r Request) withDefaults() Request {
	if r.Temperature <= 0 {
		r.Temperature = DefaultTemperature
	}
	if r.MaxTokens <= 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	return r
}

// Response is a completed generation.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client generates chat completions. Stream calls onToken for every text
// delta as it arrives and returns the assembled response; an error from
// onToken aborts the stream.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request, onToken func(string) error) (*Response, error)
}

// APIError is a non-2xx reply from the provider.
type APIError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm api status %d: %s", e.StatusCode, truncate(e.Message, 200))
}

func newAPIError(status int, body string) *APIError {
	return &APIError{
		StatusCode: status,
		Message:    strings.TrimSpace(body),
		Retryable:  status == 429 || status >= 500,
	}
}

// Config selects a provider.
type Config struct {
	Provider string // "groq", "openai" or "anthropic"
	APIKey   string
	BaseURL  string
}

// New returns a client for cfg.Provider. A missing API key is not an error
// here; every call on the client reports ErrMissingAPIKey instead.
func New(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "groq":
		if cfg.BaseURL == "" {
			cfg.BaseURL = GroqBaseURL
		}
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL), nil
	case "openai":
		if cfg.BaseURL == "" {
			cfg.BaseURL = OpenAIBaseURL
		}
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL), nil
	case "anthropic":
		return NewAnthropicClient(cfg.APIKey, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
