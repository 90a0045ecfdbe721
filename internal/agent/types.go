package agent

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Score is a 0-100 rating. Models occasionally answer with decimals or
// quoted numbers, both are accepted and bounded on decode.
type Score int

func (s *Score) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) {
		return fmt.Errorf("invalid score %s", b)
	}
	*s = Score(math.Round(math.Max(0, math.Min(100, f))))
	return nil
}

// Clamp bounds s to [0, 100].
func (s Score) Clamp() Score {
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	}
	return s
}

type Contact struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	Website  string `json:"website,omitempty"`
}

type Experience struct {
	Title       string   `json:"title"`
	Company     string   `json:"company"`
	Start       string   `json:"start,omitempty"`
	End         string   `json:"end,omitempty"`
	Description string   `json:"description,omitempty"`
	Highlights  []string `json:"highlights,omitempty"`
}

type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree,omitempty"`
	Field       string `json:"field,omitempty"`
	Year        string `json:"year,omitempty"`
}

type ResumeProfile struct {
	Contact    Contact      `json:"contact"`
	Headline   string       `json:"headline,omitempty"`
	Summary    string       `json:"summary"`
	Skills     []string     `json:"skills"`
	Experience []Experience `json:"experience"`
	Education  []Education  `json:"education"`
	Fallback   bool         `json:"fallback,omitempty"`
}

type SectionScore struct {
	Name     string `json:"name"`
	Score    Score  `json:"score"`
	Feedback string `json:"feedback,omitempty"`
}

type ATSReport struct {
	Score           Score    `json:"score"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
	MissingKeywords []string `json:"missing_keywords,omitempty"`
	Issues          []string `json:"issues,omitempty"`
}

type ResumeScore struct {
	Overall      Score          `json:"overall"`
	Sections     []SectionScore `json:"sections"`
	Strengths    []string       `json:"strengths"`
	Improvements []string       `json:"improvements"`
	ATS          ATSReport      `json:"ats"`
	Fallback     bool           `json:"fallback,omitempty"`
}

type Resource struct {
	Title  string `json:"title"`
	Link   string `json:"link"`
	Source string `json:"source,omitempty"`
}

type MissingSkill struct {
	Skill     string     `json:"skill"`
	Priority  string     `json:"priority"`
	Reason    string     `json:"reason,omitempty"`
	Resources []Resource `json:"resources,omitempty"`
}

type SkillGapReport struct {
	TargetRole     string         `json:"target_role"`
	MatchScore     Score          `json:"match_score"`
	MatchingSkills []string       `json:"matching_skills"`
	MissingSkills  []MissingSkill `json:"missing_skills"`
	Fallback       bool           `json:"fallback,omitempty"`
}

// PersonalityProfile holds Big Five trait scores on a 0-100 scale.
type PersonalityProfile struct {
	Openness          Score    `json:"openness"`
	Conscientiousness Score    `json:"conscientiousness"`
	Extraversion      Score    `json:"extraversion"`
	Agreeableness     Score    `json:"agreeableness"`
	Neuroticism       Score    `json:"neuroticism"`
	Summary           string   `json:"summary"`
	WorkStyle         []string `json:"work_style,omitempty"`
	Fallback          bool     `json:"fallback,omitempty"`
}

type JobMatch struct {
	Title    string  `json:"title"`
	Company  string  `json:"company,omitempty"`
	Location string  `json:"location,omitempty"`
	Link     string  `json:"link"`
	Snippet  string  `json:"snippet,omitempty"`
	Source   string  `json:"source,omitempty"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason,omitempty"`
}

const (
	RankingEmbedding = "embedding"
	RankingLLM       = "llm"
	RankingNone      = "none"
)

type JobMatches struct {
	Query    string     `json:"query"`
	Location string     `json:"location,omitempty"`
	Ranking  string     `json:"ranking"`
	Jobs     []JobMatch `json:"jobs"`
	Fallback bool       `json:"fallback,omitempty"`
}
