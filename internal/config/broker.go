package config

import (
	"os"
	"sync"
)

type BrokerConfig struct {
	RabbitMQURL string
	Exchange    string
}

var (
	brokerConfig *BrokerConfig
	brokerOnce   sync.Once
)

func LoadBrokerConfig() *BrokerConfig {
	brokerOnce.Do(func() {
		brokerConfig = &BrokerConfig{
			RabbitMQURL: os.Getenv("RABBITMQ_URL"),
			Exchange:    getEnv("RABBITMQ_EXCHANGE", "analysis_updates"),
		}
	})
	return brokerConfig
}
