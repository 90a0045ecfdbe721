package agent

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/fadilmartias/resume-insight/internal/model"
	"github.com/fadilmartias/resume-insight/internal/service"
	"github.com/pgvector/pgvector-go"
)

// fakeLLM answers by the first system prompt keyword that matches.
type fakeLLM struct {
	mu      sync.Mutex
	answers map[string]string
	err     error
	reqs    []service.CompletionRequest
}

func (f *fakeLLM) Complete(ctx context.Context, req service.CompletionRequest) (*service.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	system := req.Messages[0].Content
	for key, answer := range f.answers {
		if strings.Contains(system, key) {
			return &service.Completion{Model: "fake", Text: answer}, nil
		}
	}
	return nil, errors.New("no canned answer")
}

type fakeSearcher struct {
	mu      sync.Mutex
	web     map[string][]service.SearchResult
	jobs    []service.SearchResult
	err     error
	queries []string
}

func (f *fakeSearcher) Web(_ context.Context, query string, n int) ([]service.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	for key, res := range f.web {
		if strings.Contains(query, key) {
			return res, nil
		}
	}
	return nil, nil
}

func (f *fakeSearcher) Images(context.Context, string, int) ([]service.SearchResult, error) {
	return nil, nil
}

func (f *fakeSearcher) Jobs(_ context.Context, query, _ string, _ int) ([]service.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.jobs, nil
}

// fakeEmbedder maps text onto a 2-d vector: backend words vs frontend words.
type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	t := strings.ToLower(text)
	var back, front float32 = 0.1, 0.1
	for _, w := range []string{"go", "backend", "postgres"} {
		if strings.Contains(t, w) {
			back++
		}
	}
	for _, w := range []string{"react", "frontend", "css"} {
		if strings.Contains(t, w) {
			front++
		}
	}
	return []float32{back, front}, nil
}

type fakeStore struct {
	mu       sync.Mutex
	listings map[string]model.JobListing
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{listings: map[string]model.JobListing{}}
}

func (f *fakeStore) UpsertListings(_ context.Context, listings []model.JobListing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, l := range listings {
		f.listings[l.Link] = l
	}
	return nil
}

func (f *fakeStore) NearestListings(_ context.Context, embedding pgvector.Vector, links []string, topK int) ([]model.JobListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.JobListing
	for _, link := range links {
		l, ok := f.listings[link]
		if !ok || l.Embedding == nil {
			continue
		}
		l.Distance = cosineDistance(embedding.Slice(), l.Embedding.Slice())
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i] * b[i])
		na += float64(a[i] * a[i])
		nb += float64(b[i] * b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
