package repository

import (
	"context"
	"errors"

	"github.com/fadilmartias/resume-insight/internal/model"
	"gorm.io/gorm"
)

type AnalysisTaskRepository struct {
	db *gorm.DB
}

func NewAnalysisTaskRepository(db *gorm.DB) *AnalysisTaskRepository {
	return &AnalysisTaskRepository{db}
}

func (r *AnalysisTaskRepository) CreateTask(ctx context.Context, task *model.AnalysisTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *AnalysisTaskRepository) UpdateTask(ctx context.Context, task *model.AnalysisTask) error {
	return r.db.WithContext(ctx).Save(task).Error
}

func (r *AnalysisTaskRepository) FindTaskByID(ctx context.Context, id string) (*model.AnalysisTask, error) {
	var task model.AnalysisTask
	err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}
