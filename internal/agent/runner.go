// Package agent holds the prompt driven analysis steps run against a chat
// completion backend. Each agent asks for JSON, repairs and validates the
// answer, and degrades to a canned payload when the model fails.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fadilmartias/resume-insight/internal/jsonrepair"
	"github.com/fadilmartias/resume-insight/internal/logger"
	"github.com/fadilmartias/resume-insight/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

var agentRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "resume_insight_agent_runs_total",
	Help: "Agent invocations by outcome (ok, fallback, error).",
}, []string{"agent", "outcome"})

type Runner struct {
	llm service.Completer
	log *zap.Logger

	Temperature float64
	MaxTokens   int
	// Strict returns agent failures to the caller instead of fallback payloads.
	Strict bool
}

func NewRunner(llm service.Completer, log *zap.Logger) *Runner {
	return &Runner{
		llm:         llm,
		log:         logger.OrNop(log),
		Temperature: 0.2,
		MaxTokens:   2048,
	}
}

type Prompt struct {
	Agent  string
	System string
	User   string
	Images []service.ImagePart
	Schema *gojsonschema.Schema
}

// Run sends p, repairs the JSON answer, checks it against p.Schema and
// decodes it into out.
func (r *Runner) Run(ctx context.Context, p Prompt, out any) error {
	resp, err := r.llm.Complete(ctx, service.CompletionRequest{
		Messages: []service.Message{
			{Role: service.RoleSystem, Content: p.System},
			{Role: service.RoleUser, Content: p.User, Images: p.Images},
		},
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", p.Agent, err)
	}

	cleaned, err := jsonrepair.Repair(resp.Text)
	if err != nil {
		return fmt.Errorf("%s: %w", p.Agent, err)
	}
	if p.Schema != nil {
		if err := validate(p.Agent, p.Schema, cleaned); err != nil {
			return err
		}
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("%s: decode response: %w", p.Agent, err)
	}

	agentRuns.WithLabelValues(p.Agent, "ok").Inc()
	r.log.Debug("agent completed", zap.String("agent", p.Agent), zap.String("model", resp.Model))
	return nil
}

// degrade returns nil when the caller should fall back to a canned payload.
func (r *Runner) degrade(agent string, err error) error {
	if r.Strict || errors.Is(err, context.Canceled) {
		agentRuns.WithLabelValues(agent, "error").Inc()
		return err
	}
	agentRuns.WithLabelValues(agent, "fallback").Inc()
	r.log.Warn("agent fell back to default payload", zap.String("agent", agent), zap.Error(err))
	return nil
}
