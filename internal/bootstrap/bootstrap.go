// Package bootstrap builds the shared service graph used by the HTTP server
// and the resumectl CLI.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/fadilmartias/resume-insight/internal/agent"
	"github.com/fadilmartias/resume-insight/internal/config"
	"github.com/fadilmartias/resume-insight/internal/dispatcher"
	"github.com/fadilmartias/resume-insight/internal/extract"
	"github.com/fadilmartias/resume-insight/internal/repository"
	"github.com/fadilmartias/resume-insight/internal/service"
	"github.com/fadilmartias/resume-insight/internal/usecase"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewDispatcher builds the shared dispatcher and the retry policy every
// upstream client uses with it.
func NewDispatcher(cfg *config.DispatcherConfig, log *zap.Logger) (*dispatcher.Dispatcher, dispatcher.RetryPolicy) {
	d := dispatcher.New(dispatcher.Config{
		Limit:     cfg.RequestsPerWindow,
		Window:    cfg.Window,
		QueueSize: cfg.QueueSize,
	}, log)
	policy := dispatcher.RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseDelay,
		MaxDelay:   cfg.MaxDelay,
		Jitter:     cfg.Jitter,
	}
	return d, policy
}

type LLMConfigs struct {
	LLM        *config.LLMConfig
	OpenRouter *config.OpenRouterConfig
	Gemini     *config.GeminiConfig
}

// NewCompleter returns the chat backend selected by LLM_PROVIDER. The Gemini
// client is also returned whenever a Gemini key is present since it serves
// embeddings regardless of the chat provider; it is nil otherwise.
func NewCompleter(ctx context.Context, cfgs LLMConfigs, d *dispatcher.Dispatcher, policy dispatcher.RetryPolicy, log *zap.Logger) (service.Completer, *service.GeminiService, error) {
	var gemini *service.GeminiService
	if cfgs.Gemini != nil && cfgs.Gemini.APIKey != "" {
		var err error
		gemini, err = service.NewGeminiService(ctx, cfgs.Gemini, d, policy, log)
		if err != nil {
			return nil, nil, err
		}
	}

	switch cfgs.LLM.Provider {
	case "gemini":
		if gemini == nil {
			return nil, nil, fmt.Errorf("gemini provider: %w", service.ErrMissingAPIKey)
		}
		return gemini, gemini, nil
	case "", "openrouter":
		if cfgs.OpenRouter == nil || cfgs.OpenRouter.APIKey == "" {
			return nil, nil, fmt.Errorf("openrouter provider: %w", service.ErrMissingAPIKey)
		}
		return service.NewOpenRouterService(cfgs.OpenRouter, d, policy, log), gemini, nil
	default:
		return nil, nil, fmt.Errorf("unknown LLM provider %q", cfgs.LLM.Provider)
	}
}

// NewCache connects to Redis when REDIS_ADDR is set. An unreachable server
// degrades to no caching rather than failing startup.
func NewCache(ctx context.Context, cfg *config.RedisConfig, log *zap.Logger) (service.Cache, func() error) {
	if cfg.Addr == "" {
		return service.NopCache{}, func() error { return nil }
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, search results will not be cached", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = client.Close()
		return service.NopCache{}, func() error { return nil }
	}
	return service.NewRedisCache(client, "resume-insight:"), client.Close
}

// NewExtractor wires tesseract OCR when the binary is available.
func NewExtractor(ctx context.Context, log *zap.Logger) *extract.Extractor {
	tess := extract.NewTesseract()
	version, err := tess.Check(ctx)
	if err != nil {
		log.Warn("tesseract not available, OCR disabled", zap.Error(err))
		return extract.New(nil, log)
	}
	log.Info("tesseract available", zap.String("version", version))
	return extract.New(tess, log)
}

// NewAgents builds every analysis agent over one runner. gemini and jobs
// are optional: without both, job listings are ranked by the chat model.
func NewAgents(llm service.Completer, cfg *config.LLMConfig, search service.Searcher, gemini *service.GeminiService, jobs *repository.JobListingRepository, log *zap.Logger) usecase.Agents {
	runner := agent.NewRunner(llm, log)
	if cfg != nil {
		runner.Temperature = cfg.Temperature
		runner.MaxTokens = cfg.MaxTokens
	}

	// Typed nils must not reach the interfaces.
	var embedder service.Embedder
	if gemini != nil {
		embedder = gemini
	}
	var store agent.JobStore
	if jobs != nil {
		store = jobs
	}

	return usecase.Agents{
		Parser:      agent.NewResumeParser(runner),
		Scorer:      agent.NewResumeScorer(runner),
		SkillGap:    agent.NewSkillGapAnalyzer(runner, search, log),
		Personality: agent.NewPersonalityProfiler(runner),
		Jobs:        agent.NewJobMatcher(runner, search, embedder, store, log),
	}
}
