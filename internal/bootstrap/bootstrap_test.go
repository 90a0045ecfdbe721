package bootstrap

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/fadilmartias/resume-insight/internal/config"
	"github.com/fadilmartias/resume-insight/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestNewDispatcher_MapsConfig(t *testing.T) {
	d, policy := NewDispatcher(&config.DispatcherConfig{
		RequestsPerWindow: 7,
		Window:            time.Second,
		QueueSize:         4,
		MaxRetries:        2,
		BaseDelay:         10 * time.Millisecond,
		MaxDelay:          time.Second,
		Jitter:            0.1,
	}, zaptest.NewLogger(t))
	defer d.Close()

	assert.Equal(t, 2, policy.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, policy.BaseDelay)
	assert.Equal(t, time.Second, policy.MaxDelay)
	assert.InDelta(t, 0.1, policy.Jitter, 1e-9)
	assert.Equal(t, 7, d.Quota("any-model").Remaining)
}

func TestNewCompleter_SelectsProvider(t *testing.T) {
	log := zaptest.NewLogger(t)
	d, policy := NewDispatcher(config.LoadDispatcherConfig(), log)
	defer d.Close()
	ctx := context.Background()

	llm, gemini, err := NewCompleter(ctx, LLMConfigs{
		LLM:        &config.LLMConfig{Provider: "openrouter"},
		OpenRouter: &config.OpenRouterConfig{APIKey: "sk-or", BaseURL: "http://127.0.0.1:0", Model: "m"},
		Gemini:     &config.GeminiConfig{},
	}, d, policy, log)
	require.NoError(t, err)
	assert.IsType(t, &service.OpenRouterService{}, llm)
	assert.Nil(t, gemini)

	_, _, err = NewCompleter(ctx, LLMConfigs{
		LLM:        &config.LLMConfig{Provider: "openrouter"},
		OpenRouter: &config.OpenRouterConfig{},
	}, d, policy, log)
	assert.ErrorIs(t, err, service.ErrMissingAPIKey)

	_, _, err = NewCompleter(ctx, LLMConfigs{
		LLM:    &config.LLMConfig{Provider: "gemini"},
		Gemini: &config.GeminiConfig{},
	}, d, policy, log)
	assert.ErrorIs(t, err, service.ErrMissingAPIKey)

	_, _, err = NewCompleter(ctx, LLMConfigs{LLM: &config.LLMConfig{Provider: "claude"}}, d, policy, log)
	assert.EqualError(t, err, `unknown LLM provider "claude"`)
}

func TestNewCache(t *testing.T) {
	log := zaptest.NewLogger(t)
	ctx := context.Background()

	cache, closeFn := NewCache(ctx, &config.RedisConfig{}, log)
	assert.IsType(t, service.NopCache{}, cache)
	assert.NoError(t, closeFn())

	mr := miniredis.RunT(t)
	cache, closeFn = NewCache(ctx, &config.RedisConfig{Addr: mr.Addr()}, log)
	defer closeFn()
	require.IsType(t, &service.RedisCache{}, cache)
	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))
	assert.True(t, mr.Exists("resume-insight:k"))

	cache, _ = NewCache(ctx, &config.RedisConfig{Addr: "127.0.0.1:1"}, log)
	assert.IsType(t, service.NopCache{}, cache)
}

func TestNewAgents_WithoutOptionalBackends(t *testing.T) {
	agents := NewAgents(nil, &config.LLMConfig{Temperature: 0.5, MaxTokens: 100}, nil, nil, nil, zaptest.NewLogger(t))
	assert.NotNil(t, agents.Parser)
	assert.NotNil(t, agents.Scorer)
	assert.NotNil(t, agents.SkillGap)
	assert.NotNil(t, agents.Personality)
	assert.NotNil(t, agents.Jobs)
}

func TestMigrate_StopsOnExtensionError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE EXTENSION IF NOT EXISTS "vector"`)).
		WillReturnError(assert.AnError)

	err = Migrate(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create extension vector")
	assert.NoError(t, mock.ExpectationsWereMet())
}
