package config

import (
	"log"
	"os"
	"sync"
)

type AppConfig struct {
	Name        string
	Env         string
	Port        string
	BaseURL     string
	LogLevel    string
	LogFormat   string
	UploadDir   string
	MaxUploadMB int
}

var (
	appConfig *AppConfig
	appOnce   sync.Once
)

func LoadAppConfig() *AppConfig {
	appOnce.Do(func() {
		appConfig = readAppConfig()
	})
	return appConfig
}

func readAppConfig() *AppConfig {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
		log.Printf("Warning: APP_ENV not set, defaulting to %s", env)
	}
	format := "console"
	if env == "production" {
		format = "json"
	}
	return &AppConfig{
		Name:        getEnv("APP_NAME", "resume-insight"),
		Env:         env,
		Port:        getEnv("APP_PORT", ":8080"),
		BaseURL:     os.Getenv("APP_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", format),
		UploadDir:   getEnv("UPLOAD_DIR", "./uploads"),
		MaxUploadMB: getInt("MAX_UPLOAD_MB", 5),
	}
}
