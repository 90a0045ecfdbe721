package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/fadilmartias/resume-insight/internal/logger"
	"github.com/fadilmartias/resume-insight/internal/model"
	"github.com/fadilmartias/resume-insight/internal/service"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

var ErrNoJobQuery = errors.New("no job query could be derived from the profile")

const defaultJobLimit = 10

// JobStore persists listings and ranks them by embedding distance.
type JobStore interface {
	UpsertListings(ctx context.Context, listings []model.JobListing) error
	NearestListings(ctx context.Context, embedding pgvector.Vector, links []string, topK int) ([]model.JobListing, error)
}

type JobMatcher struct {
	runner   *Runner
	search   service.Searcher
	embedder service.Embedder
	store    JobStore
	log      *zap.Logger
	Limit    int
}

// NewJobMatcher wires a matcher. embedder and store are optional; without
// both, listings are ranked by the model instead of vector distance.
func NewJobMatcher(r *Runner, search service.Searcher, embedder service.Embedder, store JobStore, log *zap.Logger) *JobMatcher {
	return &JobMatcher{
		runner:   r,
		search:   search,
		embedder: embedder,
		store:    store,
		log:      logger.OrNop(log),
		Limit:    defaultJobLimit,
	}
}

// Match searches listings for query (or a query derived from the profile)
// and ranks them against the profile.
func (m *JobMatcher) Match(ctx context.Context, profile *ResumeProfile, query, location string) (*JobMatches, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		query = JobQuery(profile)
	}
	if query == "" {
		return nil, ErrNoJobQuery
	}
	out := &JobMatches{Query: query, Location: location, Ranking: RankingNone, Jobs: []JobMatch{}}

	results, err := m.search.Jobs(ctx, query, location, m.Limit)
	if err != nil {
		if err := m.runner.degrade("job_matcher", err); err != nil {
			return nil, err
		}
		out.Fallback = true
		return out, nil
	}
	results = uniqueLinks(results)
	if len(results) == 0 {
		return out, nil
	}

	if m.embedder != nil && m.store != nil {
		jobs, err := m.rankByEmbedding(ctx, query, profile, results)
		if err == nil {
			out.Jobs, out.Ranking = jobs, RankingEmbedding
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.log.Warn("embedding ranking failed, asking the model instead", zap.Error(err))
	} else if m.store != nil {
		if err := m.store.UpsertListings(ctx, toListings(query, results)); err != nil {
			m.log.Warn("storing job listings failed", zap.Error(err))
		}
	}

	jobs, err := m.rankByModel(ctx, profile, results)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.log.Warn("model ranking failed, keeping search order", zap.Error(err))
		out.Jobs = toMatches(results)
		return out, nil
	}
	out.Jobs, out.Ranking = jobs, RankingLLM
	return out, nil
}

func (m *JobMatcher) rankByEmbedding(ctx context.Context, query string, profile *ResumeProfile, results []service.SearchResult) ([]JobMatch, error) {
	listings := toListings(query, results)
	for i := range listings {
		vec, err := m.embedder.GenerateEmbedding(ctx, listingText(results[i]))
		if err != nil {
			return nil, fmt.Errorf("embed listing: %w", err)
		}
		v := pgvector.NewVector(vec)
		listings[i].Embedding = &v
	}
	if err := m.store.UpsertListings(ctx, listings); err != nil {
		return nil, fmt.Errorf("store listings: %w", err)
	}

	pvec, err := m.embedder.GenerateEmbedding(ctx, ProfileText(profile))
	if err != nil {
		return nil, fmt.Errorf("embed profile: %w", err)
	}

	links := make([]string, len(listings))
	for i, l := range listings {
		links[i] = l.Link
	}
	nearest, err := m.store.NearestListings(ctx, pgvector.NewVector(pvec), links, len(links))
	if err != nil {
		return nil, fmt.Errorf("nearest listings: %w", err)
	}

	jobs := make([]JobMatch, 0, len(nearest))
	for _, l := range nearest {
		jobs = append(jobs, JobMatch{
			Title:    l.Title,
			Company:  l.Company,
			Location: l.Location,
			Link:     l.Link,
			Snippet:  l.Snippet,
			Source:   l.Source,
			// cosine distance lies in [0, 2]
			Score: math.Round((1-l.Distance/2)*1000) / 10,
		})
	}
	return jobs, nil
}

type relevance struct {
	Scores []struct {
		Index  int     `json:"index"`
		Score  float64 `json:"score"`
		Reason string  `json:"reason"`
	} `json:"scores"`
}

func (m *JobMatcher) rankByModel(ctx context.Context, profile *ResumeProfile, results []service.SearchResult) ([]JobMatch, error) {
	var listings strings.Builder
	for i, r := range results {
		fmt.Fprintf(&listings, "%d. %s\n", i, listingText(r))
	}

	var rel relevance
	err := m.runner.Run(ctx, Prompt{
		Agent:  "job_relevance",
		System: relevanceSystem,
		User:   fmt.Sprintf(relevanceUser, ProfileText(profile), listings.String()),
		Schema: relevanceSchema,
	}, &rel)
	if err != nil {
		return nil, err
	}

	jobs := toMatches(results)
	for _, s := range rel.Scores {
		if s.Index < 0 || s.Index >= len(jobs) {
			continue
		}
		jobs[s.Index].Score = math.Max(0, math.Min(100, s.Score))
		jobs[s.Index].Reason = s.Reason
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].Score > jobs[j].Score })
	return jobs, nil
}

// JobQuery picks a search query for the profile: headline, latest title,
// then top skills.
func JobQuery(p *ResumeProfile) string {
	if p == nil {
		return ""
	}
	if h := strings.TrimSpace(p.Headline); h != "" {
		return h
	}
	if len(p.Experience) > 0 && strings.TrimSpace(p.Experience[0].Title) != "" {
		return strings.TrimSpace(p.Experience[0].Title)
	}
	if len(p.Skills) > 0 {
		return strings.Join(p.Skills[:min(3, len(p.Skills))], " ")
	}
	return ""
}

// ProfileText flattens a profile for embedding and ranking prompts.
func ProfileText(p *ResumeProfile) string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	if p.Headline != "" {
		b.WriteString(p.Headline + "\n")
	}
	if p.Summary != "" {
		b.WriteString(p.Summary + "\n")
	}
	if len(p.Skills) > 0 {
		b.WriteString("Skills: " + strings.Join(p.Skills, ", ") + "\n")
	}
	b.WriteString(experienceLines(p))
	return b.String()
}

func listingText(r service.SearchResult) string {
	parts := []string{r.Title}
	if r.Company != "" {
		parts = append(parts, "at "+r.Company)
	}
	if r.Location != "" {
		parts = append(parts, "("+r.Location+")")
	}
	text := strings.Join(parts, " ")
	if r.Snippet != "" {
		text += ": " + r.Snippet
	}
	return text
}

func toListings(query string, results []service.SearchResult) []model.JobListing {
	listings := make([]model.JobListing, len(results))
	for i, r := range results {
		listings[i] = model.JobListing{
			Title:    r.Title,
			Company:  r.Company,
			Location: r.Location,
			Link:     r.Link,
			Snippet:  r.Snippet,
			Source:   r.Source,
			Query:    query,
		}
	}
	return listings
}

func toMatches(results []service.SearchResult) []JobMatch {
	jobs := make([]JobMatch, len(results))
	for i, r := range results {
		jobs[i] = JobMatch{
			Title:    r.Title,
			Company:  r.Company,
			Location: r.Location,
			Link:     r.Link,
			Snippet:  r.Snippet,
			Source:   r.Source,
		}
	}
	return jobs
}

func uniqueLinks(results []service.SearchResult) []service.SearchResult {
	seen := make(map[string]struct{}, len(results))
	out := results[:0:0]
	for _, r := range results {
		if _, ok := seen[r.Link]; ok {
			continue
		}
		seen[r.Link] = struct{}{}
		out = append(out, r)
	}
	return out
}
