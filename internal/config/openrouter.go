package config

import (
	"os"
	"sync"
	"time"
)

type OpenRouterConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	VisionModel string
	Timeout     time.Duration
	SiteURL     string
	SiteName    string
}

var (
	openRouterConfig *OpenRouterConfig
	openRouterOnce   sync.Once
)

func LoadOpenRouterConfig() *OpenRouterConfig {
	openRouterOnce.Do(func() {
		openRouterConfig = &OpenRouterConfig{
			APIKey:      os.Getenv("OPENROUTER_API_KEY"),
			BaseURL:     getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
			VisionModel: getEnv("OPENROUTER_VISION_MODEL", "openai/gpt-4o-mini"),
			Timeout:     getDuration("OPENROUTER_TIMEOUT", 90*time.Second),
			SiteURL:     os.Getenv("APP_URL"),
			SiteName:    getEnv("APP_NAME", "resume-insight"),
		}
	})
	return openRouterConfig
}
