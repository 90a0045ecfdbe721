package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fadilmartias/resume-insight/internal/logger"
	"github.com/fadilmartias/resume-insight/internal/service"
	"go.uber.org/zap"
)

var ErrTargetRoleRequired = errors.New("target role is required")

const (
	maxEnrichedSkills = 5
	resourcesPerSkill = 3
	maxMissingSkills  = 8
)

var priorityRank = map[string]int{"high": 0, "medium": 1, "low": 2}

type SkillGapAnalyzer struct {
	runner *Runner
	search service.Searcher
	log    *zap.Logger
}

// NewSkillGapAnalyzer builds an analyzer. search may be nil, in which case
// missing skills come without learning resources.
func NewSkillGapAnalyzer(r *Runner, search service.Searcher, log *zap.Logger) *SkillGapAnalyzer {
	return &SkillGapAnalyzer{runner: r, search: search, log: logger.OrNop(log)}
}

func (a *SkillGapAnalyzer) Analyze(ctx context.Context, profile *ResumeProfile, targetRole string) (*SkillGapReport, error) {
	role := strings.TrimSpace(targetRole)
	if role == "" {
		return nil, ErrTargetRoleRequired
	}

	var report SkillGapReport
	err := a.runner.Run(ctx, Prompt{
		Agent:  "skill_gap",
		System: skillGapSystem,
		User:   fmt.Sprintf(skillGapUser, role, strings.Join(profile.Skills, ", "), experienceLines(profile)),
		Schema: skillGapSchema,
	}, &report)
	if err != nil {
		if err := a.runner.degrade("skill_gap", err); err != nil {
			return nil, err
		}
		return &SkillGapReport{
			TargetRole:     role,
			MatchingSkills: append([]string{}, profile.Skills...),
			MissingSkills:  []MissingSkill{},
			Fallback:       true,
		}, nil
	}

	report.TargetRole = role
	report.MatchScore = report.MatchScore.Clamp()
	report.MatchingSkills = dedupe(report.MatchingSkills)
	report.MissingSkills = normalizeMissing(report.MissingSkills)
	a.enrich(ctx, role, report.MissingSkills)
	return &report, nil
}

// enrich attaches web search results as learning resources. Search failures
// only cost the resources.
func (a *SkillGapAnalyzer) enrich(ctx context.Context, role string, skills []MissingSkill) {
	if a.search == nil {
		return
	}
	for i := range skills {
		if i >= maxEnrichedSkills {
			break
		}
		query := fmt.Sprintf("learn %s for %s course tutorial", skills[i].Skill, role)
		results, err := a.search.Web(ctx, query, resourcesPerSkill)
		if err != nil {
			a.log.Warn("skill resource search failed", zap.String("skill", skills[i].Skill), zap.Error(err))
			if ctx.Err() != nil {
				return
			}
			continue
		}
		for _, r := range results {
			skills[i].Resources = append(skills[i].Resources, Resource{Title: r.Title, Link: r.Link, Source: r.Source})
		}
	}
}

func normalizeMissing(in []MissingSkill) []MissingSkill {
	out := make([]MissingSkill, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, m := range in {
		m.Skill = strings.TrimSpace(m.Skill)
		key := strings.ToLower(m.Skill)
		if m.Skill == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		m.Priority = strings.ToLower(strings.TrimSpace(m.Priority))
		if _, ok := priorityRank[m.Priority]; !ok {
			m.Priority = "medium"
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return priorityRank[out[i].Priority] < priorityRank[out[j].Priority]
	})
	if len(out) > maxMissingSkills {
		out = out[:maxMissingSkills]
	}
	return out
}

func experienceLines(p *ResumeProfile) string {
	if len(p.Experience) == 0 {
		return "none listed"
	}
	var b strings.Builder
	for _, e := range p.Experience {
		fmt.Fprintf(&b, "- %s at %s", e.Title, e.Company)
		if e.Start != "" || e.End != "" {
			fmt.Fprintf(&b, " (%s - %s)", e.Start, e.End)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
