package repository

import (
	"context"
	"sync"

	"github.com/fadilmartias/resume-insight/internal/model"
	"github.com/google/uuid"
)

// MemoryTaskRepository keeps tasks in process. It backs one-shot CLI runs
// where no database is configured.
type MemoryTaskRepository struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]model.AnalysisTask
}

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{tasks: make(map[uuid.UUID]model.AnalysisTask)}
}

func (r *MemoryTaskRepository) CreateTask(_ context.Context, task *model.AnalysisTask) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID] = *task
	return nil
}

func (r *MemoryTaskRepository) UpdateTask(_ context.Context, task *model.AnalysisTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; !ok {
		return ErrNotFound
	}
	r.tasks[task.ID] = *task
	return nil
}

func (r *MemoryTaskRepository) FindTaskByID(_ context.Context, id string) (*model.AnalysisTask, error) {
	key, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &task, nil
}
