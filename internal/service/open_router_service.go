package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fadilmartias/resume-insight/internal/config"
	"github.com/fadilmartias/resume-insight/internal/dispatcher"
	"github.com/fadilmartias/resume-insight/internal/logger"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// OpenRouterService talks to an OpenAI compatible chat completions endpoint.
type OpenRouterService struct {
	cfg        *config.OpenRouterConfig
	client     *resty.Client
	dispatcher *dispatcher.Dispatcher
	policy     dispatcher.RetryPolicy
	log        *zap.Logger
	now        func() time.Time
}

func NewOpenRouterService(cfg *config.OpenRouterConfig, d *dispatcher.Dispatcher, policy dispatcher.RetryPolicy, log *zap.Logger) *OpenRouterService {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.SiteURL != "" {
		client.SetHeader("HTTP-Referer", cfg.SiteURL)
	}
	if cfg.SiteName != "" {
		client.SetHeader("X-Title", cfg.SiteName)
	}

	return &OpenRouterService{
		cfg:        cfg,
		client:     client,
		dispatcher: d,
		policy:     policy,
		log:        logger.OrNop(log),
		now:        time.Now,
	}
}

func (s *OpenRouterService) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if s.cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter: %w", ErrMissingAPIKey)
	}
	model := s.modelFor(req)
	payload := s.buildPayload(model, req)

	var out *Completion
	err := dispatcher.Retry(ctx, s.dispatcher, model, s.policy, func(ctx context.Context) error {
		resp, err := s.client.R().
			SetContext(ctx).
			SetAuthToken(s.cfg.APIKey).
			SetBody(payload).
			Post("/chat/completions")
		if err != nil {
			return fmt.Errorf("openrouter request: %w", err)
		}

		if remaining, resetAt, ok := dispatcher.ParseRateLimitHeaders(resp.Header(), s.now()); ok {
			s.dispatcher.SetQuota(model, remaining, resetAt)
		}

		body := resp.String()
		if resp.IsError() {
			return dispatcher.NewStatusError(resp.StatusCode(), resp.Header(), body)
		}
		// Upstream provider failures can arrive as 200 with an error object.
		if e := gjson.Get(body, "error"); e.Exists() {
			code := int(e.Get("code").Int())
			if code == 0 {
				code = http.StatusBadGateway
			}
			return dispatcher.NewStatusError(code, resp.Header(), e.Get("message").String())
		}

		text := gjson.Get(body, "choices.0.message.content").String()
		if strings.TrimSpace(text) == "" {
			return ErrEmptyCompletion
		}

		usage := gjson.Get(body, "usage")
		out = &Completion{
			Model: firstNonEmpty(gjson.Get(body, "model").String(), model),
			Text:  text,
			Usage: Usage{
				PromptTokens:     int(usage.Get("prompt_tokens").Int()),
				CompletionTokens: int(usage.Get("completion_tokens").Int()),
				TotalTokens:      int(usage.Get("total_tokens").Int()),
			},
		}
		return nil
	})
	if err != nil {
		s.log.Error("openrouter completion failed", zap.String("model", model), zap.Error(err))
		return nil, err
	}

	s.log.Debug("openrouter completion",
		zap.String("model", out.Model),
		zap.Int("total_tokens", out.Usage.TotalTokens),
	)
	return out, nil
}

func (s *OpenRouterService) modelFor(req CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	for _, m := range req.Messages {
		if len(m.Images) > 0 {
			return s.cfg.VisionModel
		}
	}
	return s.cfg.Model
}

func (s *OpenRouterService) buildPayload(model string, req CompletionRequest) map[string]any {
	messages := make([]map[string]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, map[string]any{
			"role":    m.Role,
			"content": messageContent(m),
		})
	}

	payload := map[string]any{
		"model":    model,
		"messages": messages,
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if req.JSON {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}
	return payload
}

// messageContent returns a plain string for text only messages and a list of
// content parts when images are attached.
func messageContent(m Message) any {
	if len(m.Images) == 0 {
		return m.Content
	}
	parts := make([]map[string]any, 0, len(m.Images)+1)
	if m.Content != "" {
		parts = append(parts, map[string]any{"type": "text", "text": m.Content})
	}
	for _, img := range m.Images {
		url := fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))
		parts = append(parts, map[string]any{
			"type":      "image_url",
			"image_url": map[string]string{"url": url},
		})
	}
	return parts
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
