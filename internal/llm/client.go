package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/semlayer/semlayer/internal/config"
	"github.com/semlayer/semlayer/internal/constants"
)

// ErrDisabled is returned when the natural-language bridge is turned off.
var ErrDisabled = errors.New("llm features are disabled (set llm.enabled: true)")

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client defines the interface for LLM operations.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	ChatComplete(ctx context.Context, messages []Message) (string, error)
}

// Provider is an alias of constants.Provider.
type Provider = constants.Provider

const (
	ProviderOllama    = constants.ProviderOllama
	ProviderOpenAI    = constants.ProviderOpenAI
	ProviderAnthropic = constants.ProviderAnthropic
	ProviderGemini    = constants.ProviderGemini
)

// Config holds configuration for creating an LLM client.
type Config struct {
	Provider Provider
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

// Option is a functional option for configuring LLM clients.
type Option func(*Config)

// WithModel sets the model. An empty model keeps the provider default.
func WithModel(model string) Option {
	return func(c *Config) {
		if model != "" {
			c.Model = model
		}
	}
}

// WithBaseURL sets the base URL. An empty URL keeps the provider default.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		if url != "" {
			c.BaseURL = url
		}
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// NewConfig returns the provider defaults with opts applied.
func NewConfig(provider Provider, opts ...Option) Config {
	cfg := Config{Provider: provider}
	if mc, ok := constants.DefaultModels[provider]; ok {
		cfg.Model = mc.LLMModel
		cfg.BaseURL = mc.BaseURL
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// FromConfig builds the client described by the llm section of cfg.
func FromConfig(cfg *config.Config) (Client, error) {
	if !cfg.LLM.Enabled {
		return nil, ErrDisabled
	}
	provider := Provider(strings.ToLower(cfg.LLM.Provider))
	return NewClient(NewConfig(provider,
		WithModel(cfg.LLM.Model),
		WithBaseURL(cfg.LLM.BaseURL),
		WithAPIKey(cfg.GetAPIKey(string(provider))),
		WithTimeout(cfg.LLMTimeout()),
	))
}

// NewClient creates an LLM client from config.
func NewClient(cfg Config) (Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("no model specified for provider %q", cfg.Provider)
	}
	info := constants.GetProviderInfo(cfg.Provider)
	if info == nil {
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
	if info.NeedsAPIKey && cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required (set %s)", info.Description, info.APIKeyEnv)
	}

	switch cfg.Provider {
	case ProviderOllama:
		return NewOllamaClient(cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	case ProviderAnthropic:
		return NewAnthropicClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout), nil
	case ProviderGemini:
		return NewGeminiClient(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// AvailableProviders returns supported LLM providers.
func AvailableProviders() []Provider {
	providers := make([]Provider, 0, len(constants.AllProviders))
	for _, p := range constants.AllProviders {
		providers = append(providers, Provider(p.Name))
	}
	return providers
}

// postJSON sends body to url and decodes a 200 response into out.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// StatusError is a non-200 reply from a provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}
