package constants

// ModelConfig holds model configuration for a provider
type ModelConfig struct {
	LLMModel string
	BaseURL  string
}

// DefaultModels contains default model configurations for each provider
var DefaultModels = map[Provider]ModelConfig{
	ProviderOllama: {
		LLMModel: "llama3.1",
		BaseURL:  "http://localhost:11434",
	},
	ProviderOpenAI: {
		LLMModel: "gpt-4o-mini",
		BaseURL:  "https://api.openai.com/v1",
	},
	ProviderAnthropic: {
		LLMModel: "claude-sonnet-4-5-20250929",
		BaseURL:  "https://api.anthropic.com/v1",
	},
	ProviderGemini: {
		LLMModel: "gemini-2.5-flash",
	},
}

// GetDefaultModel returns the default LLM model for a provider
func GetDefaultModel(provider Provider) string {
	if config, ok := DefaultModels[provider]; ok {
		return config.LLMModel
	}
	return ""
}

// GetDefaultBaseURL returns the default base URL for a provider
func GetDefaultBaseURL(provider Provider) string {
	if config, ok := DefaultModels[provider]; ok {
		return config.BaseURL
	}
	return ""
}
