package repository

import (
	"context"
	"testing"

	"github.com/nadmax/radar/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockTaskRepository_Lifecycle(t *testing.T) {
	repo := NewMockTaskRepository()
	ctx := context.Background()

	tasks, err := repo.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	id, err := repo.CreateTask(ctx, task.NewTask("first", task.StatusPending, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	second, err := repo.CreateTask(ctx, task.NewTask("second", task.StatusDone, 90))
	require.NoError(t, err)
	assert.Greater(t, second, id)

	require.NoError(t, repo.UpdateTask(ctx, &task.Task{ID: id, Name: "first*", Status: task.StatusDone, Accuracy: 70}))

	stats, err := repo.GetTaskStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "Done", stats[0].Status)
	assert.Equal(t, 2, stats[0].Count)
	assert.Equal(t, 80.0, stats[0].AverageAccuracy)

	deleted, err := repo.DeleteTask(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteTask(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = repo.GetTask(ctx, id)
	assert.ErrorIs(t, err, task.ErrNotFound)

	err = repo.UpdateTask(ctx, &task.Task{ID: id, Name: "gone", Status: task.StatusDone})
	assert.ErrorIs(t, err, task.ErrNotFound)
}
