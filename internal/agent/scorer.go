package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type ResumeScorer struct {
	runner *Runner
}

func NewResumeScorer(r *Runner) *ResumeScorer {
	return &ResumeScorer{runner: r}
}

func (s *ResumeScorer) Score(ctx context.Context, profile *ResumeProfile, targetRole string) (*ResumeScore, error) {
	raw, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("resume_scorer: encode profile: %w", err)
	}
	role := strings.TrimSpace(targetRole)
	if role == "" {
		role = "not specified"
	}

	var score ResumeScore
	err = s.runner.Run(ctx, Prompt{
		Agent:  "resume_scorer",
		System: scorerSystem,
		User:   fmt.Sprintf(scorerUser, role, raw),
		Schema: scoreSchema,
	}, &score)
	if err != nil {
		if err := s.runner.degrade("resume_scorer", err); err != nil {
			return nil, err
		}
		return heuristicScore(profile), nil
	}

	score.Overall = score.Overall.Clamp()
	score.ATS.Score = score.ATS.Score.Clamp()
	for i := range score.Sections {
		score.Sections[i].Score = score.Sections[i].Score.Clamp()
	}
	return &score, nil
}

// heuristicScore rates how complete the profile is when the model is unavailable.
func heuristicScore(p *ResumeProfile) *ResumeScore {
	sections := []SectionScore{
		{Name: "contact", Score: presence(p.Contact.Name != "" && (p.Contact.Email != "" || p.Contact.Phone != ""))},
		{Name: "summary", Score: presence(len(strings.Fields(p.Summary)) >= 15)},
		{Name: "skills", Score: Score(min(len(p.Skills)*10, 100))},
		{Name: "experience", Score: Score(min(len(p.Experience)*34, 100))},
		{Name: "education", Score: presence(len(p.Education) > 0)},
	}

	var total Score
	for _, s := range sections {
		total += s.Score
	}

	return &ResumeScore{
		Overall:      total / Score(len(sections)),
		Sections:     sections,
		Strengths:    []string{},
		Improvements: []string{"Detailed feedback is unavailable right now. The score reflects section completeness only."},
		Fallback:     true,
	}
}

func presence(ok bool) Score {
	if ok {
		return 100
	}
	return 0
}
