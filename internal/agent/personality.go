package agent

import (
	"context"
	"fmt"
	"strings"
)

type PersonalityProfiler struct {
	runner *Runner
}

func NewPersonalityProfiler(r *Runner) *PersonalityProfiler {
	return &PersonalityProfiler{runner: r}
}

func (p *PersonalityProfiler) Profile(ctx context.Context, text string) (*PersonalityProfile, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoContent
	}

	var out PersonalityProfile
	err := p.runner.Run(ctx, Prompt{
		Agent:  "personality",
		System: personalitySystem,
		User:   fmt.Sprintf(personalityUser, clip(text, maxPromptChars)),
		Schema: personalitySchema,
	}, &out)
	if err != nil {
		if err := p.runner.degrade("personality", err); err != nil {
			return nil, err
		}
		return &PersonalityProfile{
			Openness:          50,
			Conscientiousness: 50,
			Extraversion:      50,
			Agreeableness:     50,
			Neuroticism:       50,
			Summary:           "Personality insights are unavailable right now.",
			Fallback:          true,
		}, nil
	}

	out.Openness = out.Openness.Clamp()
	out.Conscientiousness = out.Conscientiousness.Clamp()
	out.Extraversion = out.Extraversion.Clamp()
	out.Agreeableness = out.Agreeableness.Clamp()
	out.Neuroticism = out.Neuroticism.Clamp()
	return &out, nil
}
