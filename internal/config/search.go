package config

import (
	"os"
	"sync"
	"time"
)

type SearchConfig struct {
	// Google Custom Search JSON API, used for web and image results.
	GoogleAPIKey  string
	GoogleCX      string
	GoogleBaseURL string

	// Job listings endpoint (JSearch compatible).
	JobsAPIKey  string
	JobsBaseURL string
	JobsHost    string

	CacheTTL time.Duration
	Timeout  time.Duration
}

var (
	searchConfig *SearchConfig
	searchOnce   sync.Once
)

func LoadSearchConfig() *SearchConfig {
	searchOnce.Do(func() {
		searchConfig = &SearchConfig{
			GoogleAPIKey:  os.Getenv("GOOGLE_SEARCH_API_KEY"),
			GoogleCX:      os.Getenv("GOOGLE_SEARCH_CX"),
			GoogleBaseURL: getEnv("GOOGLE_SEARCH_BASE_URL", "https://www.googleapis.com/customsearch/v1"),
			JobsAPIKey:    os.Getenv("JOBS_API_KEY"),
			JobsBaseURL:   getEnv("JOBS_BASE_URL", "https://jsearch.p.rapidapi.com/search"),
			JobsHost:      getEnv("JOBS_API_HOST", "jsearch.p.rapidapi.com"),
			CacheTTL:      getDuration("SEARCH_CACHE_TTL", 6*time.Hour),
			Timeout:       getDuration("SEARCH_TIMEOUT", 15*time.Second),
		}
	})
	return searchConfig
}
