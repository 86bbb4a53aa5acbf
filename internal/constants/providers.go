package constants

import "strings"

// Provider represents an LLM provider type
type Provider string

// LLM Providers
const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// ProviderInfo contains display information about a provider
type ProviderInfo struct {
	Name        string
	Description string
	Local       bool
	NeedsAPIKey bool
	APIKeyEnv   string
}

// AllProviders lists the providers the query bridge can talk to, in order
var AllProviders = []ProviderInfo{
	{
		Name:        "ollama",
		Description: "Local model server (default)",
		Local:       true,
	},
	{
		Name:        "openai",
		Description: "OpenAI chat completions",
		NeedsAPIKey: true,
		APIKeyEnv:   "OPENAI_API_KEY",
	},
	{
		Name:        "anthropic",
		Description: "Anthropic Messages API",
		NeedsAPIKey: true,
		APIKeyEnv:   "ANTHROPIC_API_KEY",
	},
	{
		Name:        "gemini",
		Description: "Google Gemini",
		NeedsAPIKey: true,
		APIKeyEnv:   "GEMINI_API_KEY",
	},
}

// GetProviderInfo returns information about a provider
func GetProviderInfo(provider Provider) *ProviderInfo {
	for _, p := range AllProviders {
		if strings.EqualFold(p.Name, string(provider)) {
			return &p
		}
	}
	return nil
}

// IsKnownProvider reports whether the provider name is supported.
func IsKnownProvider(name string) bool {
	return GetProviderInfo(Provider(name)) != nil
}

// ProviderDescription returns a human-readable description of a provider
func ProviderDescription(provider Provider) string {
	switch provider {
	case ProviderOllama:
		return "Ollama (local, free)"
	case ProviderOpenAI:
		return "OpenAI (GPT-4o family)"
	case ProviderAnthropic:
		return "Anthropic (Claude)"
	case ProviderGemini:
		return "Google Gemini (Flash, Pro)"
	default:
		return string(provider)
	}
}
