package config

import (
	"os"
	"sync"
)

type StorageConfig struct {
	// Driver is "local" or "s3".
	Driver string

	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

var (
	storageConfig *StorageConfig
	storageOnce   sync.Once
)

func LoadStorageConfig() *StorageConfig {
	storageOnce.Do(func() {
		storageConfig = &StorageConfig{
			Driver:    getEnv("STORAGE_DRIVER", "local"),
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    getEnv("S3_REGION", "auto"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
		}
	})
	return storageConfig
}
