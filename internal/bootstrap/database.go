package bootstrap

import (
	"fmt"
	"time"

	"github.com/fadilmartias/resume-insight/internal/config"
	"github.com/fadilmartias/resume-insight/internal/model"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var extensions = []string{"uuid-ossp", "vector"}

// ConnectDB opens Postgres, sizes the pool for the environment and migrates
// the schema.
func ConnectDB(dbConfig *config.DBConfig, appConfig *config.AppConfig, log *zap.Logger) (*gorm.DB, error) {
	level := gormlogger.Warn
	if appConfig.Env == "production" {
		level = gormlogger.Error
	}
	db, err := gorm.Open(postgres.Open(dbConfig.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	pgDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if appConfig.Env != "production" {
		pgDB.SetMaxIdleConns(5)
		pgDB.SetMaxOpenConns(10)
		pgDB.SetConnMaxLifetime(30 * time.Minute)
	} else {
		pgDB.SetMaxIdleConns(20)
		pgDB.SetMaxOpenConns(200)
		pgDB.SetConnMaxLifetime(time.Hour)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database ready", zap.String("host", dbConfig.Host), zap.String("name", dbConfig.Name))
	return db, nil
}

// Migrate installs the extensions the models depend on and runs AutoMigrate.
func Migrate(db *gorm.DB) error {
	for _, ext := range extensions {
		if err := db.Exec(fmt.Sprintf(`CREATE EXTENSION IF NOT EXISTS "%s"`, ext)).Error; err != nil {
			return fmt.Errorf("create extension %s: %w", ext, err)
		}
	}
	if err := db.AutoMigrate(&model.AnalysisTask{}, &model.JobListing{}); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
