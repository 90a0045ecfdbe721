package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/fadilmartias/resume-insight/internal/config"
	"github.com/fadilmartias/resume-insight/internal/dispatcher"
	"github.com/fadilmartias/resume-insight/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const maxEmbeddingChars = 10000

// Embedder turns text into a vector for similarity search.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// geminiModels is the part of genai.Models used here.
type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type GeminiService struct {
	models         geminiModels
	model          string
	embeddingModel string
	dispatcher     *dispatcher.Dispatcher
	policy         dispatcher.RetryPolicy
	log            *zap.Logger

	RequestTimeout time.Duration
	// CircuitCooldown is how long the breaker stays open before a single
	// trial call is let through.
	CircuitCooldown time.Duration

	mu                sync.Mutex
	consecutiveErrors int
	circuitBreakerMax int
	openedAt          time.Time
	trialInFlight     bool
}

func NewGeminiService(ctx context.Context, cfg *config.GeminiConfig, d *dispatcher.Dispatcher, policy dispatcher.RetryPolicy, log *zap.Logger) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiService(client.Models, cfg, d, policy, log), nil
}

func newGeminiService(models geminiModels, cfg *config.GeminiConfig, d *dispatcher.Dispatcher, policy dispatcher.RetryPolicy, log *zap.Logger) *GeminiService {
	return &GeminiService{
		models:            models,
		model:             cfg.Model,
		embeddingModel:    cfg.EmbeddingModel,
		dispatcher:        d,
		policy:            policy,
		log:               logger.OrNop(log),
		RequestTimeout:    90 * time.Second,
		CircuitCooldown:   30 * time.Second,
		circuitBreakerMax: 5,
	}
}

func (s *GeminiService) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	model := firstNonEmpty(req.Model, s.model)
	contents, system := geminiContents(req.Messages)
	if len(contents) == 0 {
		return nil, fmt.Errorf("gemini: no user content to send")
	}
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSON {
		genConfig.ResponseMIMEType = "application/json"
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.RequestTimeout)
	defer cancel()

	var out *Completion
	err := dispatcher.Retry(timeoutCtx, s.dispatcher, model, s.policy, func(ctx context.Context) error {
		result, err := s.models.GenerateContent(ctx, model, contents, genConfig)
		if err != nil {
			return geminiError(err)
		}
		if err := validateGenerateResponse(result); err != nil {
			return fmt.Errorf("invalid response: %w", err)
		}

		out = &Completion{Model: model, Text: result.Text()}
		if u := result.UsageMetadata; u != nil {
			out.Usage = Usage{
				PromptTokens:     int(u.PromptTokenCount),
				CompletionTokens: int(u.CandidatesTokenCount),
				TotalTokens:      int(u.TotalTokenCount),
			}
		}
		return nil
	})
	s.record(err)
	if err != nil {
		return nil, fmt.Errorf("generate content failed: %w", err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, ErrEmptyCompletion
	}
	return out, nil
}

func (s *GeminiService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	trimmedText := strings.TrimSpace(text)
	if trimmedText == "" {
		return nil, fmt.Errorf("text for embedding cannot be empty")
	}
	if runes := []rune(trimmedText); len(runes) > maxEmbeddingChars {
		s.log.Warn("embedding text truncated", zap.Int("length", len(runes)))
		trimmedText = string(runes[:maxEmbeddingChars])
	}
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.RequestTimeout)
	defer cancel()

	content := []*genai.Content{genai.NewContentFromText(trimmedText, genai.RoleUser)}

	var values []float32
	err := dispatcher.Retry(timeoutCtx, s.dispatcher, s.embeddingModel, s.policy, func(ctx context.Context) error {
		result, err := s.models.EmbedContent(ctx, s.embeddingModel, content, nil)
		if err != nil {
			return geminiError(err)
		}
		values, err = validateEmbeddingResponse(result)
		return err
	})
	s.record(err)
	if err != nil {
		return nil, fmt.Errorf("generate embedding failed: %w", err)
	}
	return values, nil
}

// checkCircuit rejects calls while the breaker is open. Once the cooldown
// has passed it lets exactly one trial call through; record decides whether
// the breaker closes or re-opens for another cooldown.
func (s *GeminiService) checkCircuit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consecutiveErrors < s.circuitBreakerMax {
		return nil
	}
	if s.trialInFlight || time.Since(s.openedAt) < s.CircuitCooldown {
		return fmt.Errorf("circuit breaker open: too many consecutive errors (%d)", s.consecutiveErrors)
	}
	s.trialInFlight = true
	s.log.Info("circuit breaker half-open, sending trial call")
	return nil
}

func (s *GeminiService) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trialInFlight = false
	if err == nil {
		if s.consecutiveErrors >= s.circuitBreakerMax {
			s.log.Info("circuit breaker closed")
		}
		s.consecutiveErrors = 0
		return
	}
	// Cancellation by the caller says nothing about the upstream.
	if errors.Is(err, context.Canceled) {
		return
	}
	s.consecutiveErrors++
	if s.consecutiveErrors >= s.circuitBreakerMax {
		s.openedAt = time.Now()
	}
}

func (s *GeminiService) ResetCircuitBreaker() {
	s.mu.Lock()
	s.consecutiveErrors = 0
	s.trialInFlight = false
	s.mu.Unlock()
	s.log.Info("circuit breaker reset")
}

func (s *GeminiService) CircuitBreakerStatus() (consecutiveErrors int, isOpen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveErrors, s.consecutiveErrors >= s.circuitBreakerMax
}

// geminiContents splits system messages off into a system instruction.
func geminiContents(msgs []Message) ([]*genai.Content, *genai.Content) {
	var system []string
	var contents []*genai.Content
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		parts := make([]*genai.Part, 0, len(m.Images)+1)
		if m.Content != "" {
			parts = append(parts, genai.NewPartFromText(m.Content))
		}
		for _, img := range m.Images {
			parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
		}
		if len(parts) > 0 {
			contents = append(contents, genai.NewContentFromParts(parts, role))
		}
	}
	if len(system) == 0 {
		return contents, nil
	}
	return contents, genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
}

// geminiError maps API errors onto StatusError so the retry loop can read
// the status code and any RetryInfo delay.
func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiStatusError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiStatusError(*apiErrPtr)
	}
	return err
}

func apiStatusError(apiErr genai.APIError) *dispatcher.StatusError {
	body := apiErr.Message
	if len(apiErr.Details) > 0 {
		if raw, err := json.Marshal(apiErr.Details); err == nil {
			body = body + " " + string(raw)
		}
	}
	return dispatcher.NewStatusError(apiErr.Code, nil, body)
}

func validateGenerateResponse(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return fmt.Errorf("response is nil")
	}
	if len(resp.Candidates) == 0 {
		return fmt.Errorf("no candidates in response")
	}
	if resp.Candidates[0].Content == nil {
		return fmt.Errorf("candidate content is nil")
	}
	if len(resp.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("no parts in content")
	}
	return nil
}

func validateEmbeddingResponse(resp *genai.EmbedContentResponse) ([]float32, error) {
	if resp == nil {
		return nil, fmt.Errorf("response is nil")
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	embeddings := resp.Embeddings[0].Values
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedding vector is empty")
	}
	for i, val := range embeddings {
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return nil, fmt.Errorf("invalid embedding value at index %d: %v", i, val)
		}
	}
	return embeddings, nil
}
