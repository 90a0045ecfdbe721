package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/fadilmartias/resume-insight/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testJobs = []service.SearchResult{
	{Title: "Frontend Developer", Company: "Pixel", Link: "https://jobs.example/fe", Snippet: "React and CSS"},
	{Title: "Backend Engineer", Company: "Acme", Link: "https://jobs.example/be", Snippet: "Go and Postgres"},
	{Title: "Backend Engineer", Company: "Acme", Link: "https://jobs.example/be", Snippet: "duplicate"},
}

func TestJobMatcher_RanksByEmbedding(t *testing.T) {
	search := &fakeSearcher{jobs: testJobs}
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	m := NewJobMatcher(newTestRunner(t, &fakeLLM{}), search, embedder, store, zaptest.NewLogger(t))

	out, err := m.Match(context.Background(), testProfile(), "", "Berlin")
	require.NoError(t, err)
	assert.Equal(t, RankingEmbedding, out.Ranking)
	assert.Equal(t, "Backend Engineer", out.Query)
	require.Len(t, out.Jobs, 2)
	assert.Equal(t, "https://jobs.example/be", out.Jobs[0].Link)
	assert.Greater(t, out.Jobs[0].Score, out.Jobs[1].Score)

	assert.Len(t, store.listings, 2)
	assert.NotNil(t, store.listings["https://jobs.example/fe"].Embedding)
	assert.Equal(t, "Backend Engineer", store.listings["https://jobs.example/fe"].Query)
	// two listings plus the profile
	assert.Equal(t, 3, embedder.calls)
}

func TestJobMatcher_FallsBackToModelRanking(t *testing.T) {
	llm := &fakeLLM{answers: map[string]string{"rank job listings": `{"scores": [
		{"index": 0, "score": 35, "reason": "frontend heavy"},
		{"index": 1, "score": 91, "reason": "Go backend"},
		{"index": 7, "score": 99}
	]}`}}
	store := newFakeStore()
	m := NewJobMatcher(newTestRunner(t, llm), &fakeSearcher{jobs: testJobs}, &fakeEmbedder{err: errors.New("embedding quota")}, store, zaptest.NewLogger(t))

	out, err := m.Match(context.Background(), testProfile(), "go developer", "")
	require.NoError(t, err)
	assert.Equal(t, RankingLLM, out.Ranking)
	assert.Equal(t, "go developer", out.Query)
	require.Len(t, out.Jobs, 2)
	assert.Equal(t, "https://jobs.example/be", out.Jobs[0].Link)
	assert.Equal(t, 91.0, out.Jobs[0].Score)
	assert.Equal(t, "Go backend", out.Jobs[0].Reason)
}

func TestJobMatcher_WithoutEmbedderStoresAndRanksByModel(t *testing.T) {
	llm := &fakeLLM{answers: map[string]string{"rank job listings": `{"scores": [{"index": 0, "score": 10}, {"index": 1, "score": 80}]}`}}
	store := newFakeStore()
	m := NewJobMatcher(newTestRunner(t, llm), &fakeSearcher{jobs: testJobs}, nil, store, zaptest.NewLogger(t))

	out, err := m.Match(context.Background(), testProfile(), "", "")
	require.NoError(t, err)
	assert.Equal(t, RankingLLM, out.Ranking)
	assert.Len(t, store.listings, 2)
	assert.Nil(t, store.listings["https://jobs.example/be"].Embedding)
}

func TestJobMatcher_KeepsSearchOrderWhenModelFails(t *testing.T) {
	m := NewJobMatcher(newTestRunner(t, &fakeLLM{err: errors.New("down")}), &fakeSearcher{jobs: testJobs}, nil, nil, zaptest.NewLogger(t))

	out, err := m.Match(context.Background(), testProfile(), "", "")
	require.NoError(t, err)
	assert.Equal(t, RankingNone, out.Ranking)
	require.Len(t, out.Jobs, 2)
	assert.Equal(t, "https://jobs.example/fe", out.Jobs[0].Link)
	assert.False(t, out.Fallback)
}

func TestJobMatcher_SearchFailureFallsBack(t *testing.T) {
	m := NewJobMatcher(newTestRunner(t, &fakeLLM{}), &fakeSearcher{err: service.ErrMissingAPIKey}, nil, nil, zaptest.NewLogger(t))

	out, err := m.Match(context.Background(), testProfile(), "", "")
	require.NoError(t, err)
	assert.True(t, out.Fallback)
	assert.Empty(t, out.Jobs)

	m.runner.Strict = true
	_, err = m.Match(context.Background(), testProfile(), "", "")
	assert.ErrorIs(t, err, service.ErrMissingAPIKey)
}

func TestJobQuery(t *testing.T) {
	assert.Equal(t, "Backend Engineer", JobQuery(testProfile()))
	assert.Equal(t, "Data Analyst", JobQuery(&ResumeProfile{Experience: []Experience{{Title: " Data Analyst "}}}))
	assert.Equal(t, "SQL Python Tableau", JobQuery(&ResumeProfile{Skills: []string{"SQL", "Python", "Tableau", "Excel"}}))
	assert.Equal(t, "", JobQuery(&ResumeProfile{}))

	m := NewJobMatcher(newTestRunner(t, &fakeLLM{}), &fakeSearcher{}, nil, nil, nil)
	_, err := m.Match(context.Background(), &ResumeProfile{}, "", "")
	assert.ErrorIs(t, err, ErrNoJobQuery)
}
