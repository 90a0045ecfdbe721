package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/fadilmartias/resume-insight/internal/dispatcher"
	"github.com/fadilmartias/resume-insight/internal/extract"
	"github.com/fadilmartias/resume-insight/internal/model"
	"github.com/fadilmartias/resume-insight/internal/notify"
	"github.com/fadilmartias/resume-insight/internal/repository"
	"github.com/fadilmartias/resume-insight/internal/service"
)

// fakeLLM answers by the first system prompt keyword that matches.
type fakeLLM struct {
	mu      sync.Mutex
	answers map[string]string
	block   chan struct{}
	calls   int
}

func (f *fakeLLM) Complete(ctx context.Context, req service.CompletionRequest) (*service.Completion, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	system := req.Messages[0].Content
	for key, answer := range f.answers {
		if strings.Contains(system, key) {
			return &service.Completion{Model: "fake", Text: answer}, nil
		}
	}
	return nil, errors.New("no canned answer")
}

type fakeSearcher struct {
	jobs []service.SearchResult
}

func (f *fakeSearcher) Web(context.Context, string, int) ([]service.SearchResult, error) {
	return nil, nil
}

func (f *fakeSearcher) Images(context.Context, string, int) ([]service.SearchResult, error) {
	return nil, nil
}

func (f *fakeSearcher) Jobs(context.Context, string, string, int) ([]service.SearchResult, error) {
	return f.jobs, nil
}

type fakeTasks struct {
	mu      sync.Mutex
	tasks   map[string]model.AnalysisTask
	updates int
	err     error
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{tasks: map[string]model.AnalysisTask{}}
}

func (f *fakeTasks) CreateTask(_ context.Context, task *model.AnalysisTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tasks[task.ID.String()] = *task
	return nil
}

func (f *fakeTasks) UpdateTask(_ context.Context, task *model.AnalysisTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	f.tasks[task.ID.String()] = *task
	return nil
}

func (f *fakeTasks) FindTaskByID(_ context.Context, id string) (*model.AnalysisTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &task, nil
}

type fakeJobs struct {
	listings []model.JobListing
	total    int64
	page     int
	size     int
}

func (f *fakeJobs) ListJobs(_ context.Context, page, pageSize int) ([]model.JobListing, int64, error) {
	f.page, f.size = page, pageSize
	return f.listings, f.total, nil
}

type fakeExtractor struct {
	doc *extract.Document
	err error
}

func (f *fakeExtractor) Text(context.Context, string, string, []byte) (*extract.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	doc := *f.doc
	return &doc, nil
}

type fakeStore struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeStore) Save(_ context.Context, key string, _ []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return key, nil
}

func (f *fakeStore) Load(context.Context, string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

type fakeNotifier struct {
	mu      sync.Mutex
	updates []notify.Update
}

func (f *fakeNotifier) Publish(_ context.Context, u notify.Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	return nil
}

func (f *fakeNotifier) Close() error { return nil }

func (f *fakeNotifier) stages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.updates))
	for i, u := range f.updates {
		out[i] = u.Stage
	}
	return out
}

type fakeStats []dispatcher.Stats

func (f fakeStats) Stats() []dispatcher.Stats { return f }
