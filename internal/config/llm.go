package config

import "sync"

type LLMConfig struct {
	// Provider is "openrouter" or "gemini".
	Provider    string
	Temperature float64
	MaxTokens   int
}

var (
	llmConfig *LLMConfig
	llmOnce   sync.Once
)

func LoadLLMConfig() *LLMConfig {
	llmOnce.Do(func() {
		llmConfig = &LLMConfig{
			Provider:    getEnv("LLM_PROVIDER", "openrouter"),
			Temperature: getFloat("LLM_TEMPERATURE", 0.2),
			MaxTokens:   getInt("LLM_MAX_TOKENS", 2048),
		}
	})
	return llmConfig
}
