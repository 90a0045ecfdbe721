package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fadilmartias/resume-insight/internal/service"
)

var ErrNoContent = errors.New("resume has no text or images")

const maxPromptChars = 24000

type ResumeParser struct {
	runner *Runner
}

func NewResumeParser(r *Runner) *ResumeParser {
	return &ResumeParser{runner: r}
}

// Parse extracts a structured profile from resume text. Images are sent
// along when the resume was uploaded as a picture.
func (p *ResumeParser) Parse(ctx context.Context, text string, images []service.ImagePart) (*ResumeProfile, error) {
	text = strings.TrimSpace(text)
	if text == "" && len(images) == 0 {
		return nil, ErrNoContent
	}

	user := fmt.Sprintf(parserUser, clip(text, maxPromptChars))
	if len(images) > 0 {
		user = fmt.Sprintf(parserImageUser, clip(text, maxPromptChars))
	}

	var profile ResumeProfile
	err := p.runner.Run(ctx, Prompt{
		Agent:  "resume_parser",
		System: parserSystem,
		User:   user,
		Images: images,
		Schema: profileSchema,
	}, &profile)
	if err != nil {
		if err := p.runner.degrade("resume_parser", err); err != nil {
			return nil, err
		}
		return fallbackProfile(text), nil
	}

	profile.Skills = dedupe(profile.Skills)
	if profile.Experience == nil {
		profile.Experience = []Experience{}
	}
	if profile.Education == nil {
		profile.Education = []Education{}
	}
	return &profile, nil
}

func fallbackProfile(text string) *ResumeProfile {
	return &ResumeProfile{
		Summary:    clip(text, 600),
		Skills:     []string{},
		Experience: []Experience{},
		Education:  []Education{},
		Fallback:   true,
	}
}

// dedupe trims and drops case-insensitive duplicates, keeping first spelling.
func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		key := strings.ToLower(it)
		if it == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
