package repository

import (
	"context"
	"testing"

	"github.com/fadilmartias/resume-insight/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTaskRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()

	task := &model.AnalysisTask{FileName: "cv.pdf", Status: model.StatusProcessing}
	require.NoError(t, repo.CreateTask(ctx, task))
	require.NotEqual(t, uuid.Nil, task.ID)

	task.Status = model.StatusCompleted
	require.NoError(t, repo.UpdateTask(ctx, task))

	got, err := repo.FindTaskByID(ctx, task.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	got.Status = model.StatusFailed
	again, err := repo.FindTaskByID(ctx, task.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, again.Status, "returned tasks are copies")

	_, err = repo.FindTaskByID(ctx, "bogus")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.UpdateTask(ctx, &model.AnalysisTask{ID: uuid.New()}), ErrNotFound)
}
