package config

import (
	"sync"
	"time"
)

type DispatcherConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	QueueSize         int
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	Jitter            float64
}

var (
	dispatcherConfig *DispatcherConfig
	dispatcherOnce   sync.Once
)

func LoadDispatcherConfig() *DispatcherConfig {
	dispatcherOnce.Do(func() {
		dispatcherConfig = readDispatcherConfig()
	})
	return dispatcherConfig
}

func readDispatcherConfig() *DispatcherConfig {
	return &DispatcherConfig{
		RequestsPerWindow: getInt("DISPATCH_REQUESTS_PER_WINDOW", 20),
		Window:            getDuration("DISPATCH_WINDOW", time.Minute),
		QueueSize:         getInt("DISPATCH_QUEUE_SIZE", 64),
		MaxRetries:        getInt("DISPATCH_MAX_RETRIES", 3),
		BaseDelay:         getDuration("DISPATCH_BASE_DELAY", time.Second),
		MaxDelay:          getDuration("DISPATCH_MAX_DELAY", 90*time.Second),
		Jitter:            getFloat("DISPATCH_JITTER", 0.25),
	}
}
