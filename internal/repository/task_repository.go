package repository

import (
	"context"

	"github.com/nadmax/radar/internal/repository/models"
	"github.com/nadmax/radar/internal/task"
)

type TaskRepository interface {
	ListTasks(ctx context.Context) ([]task.Task, error)
	GetTask(ctx context.Context, id int64) (*task.Task, error)
	CreateTask(ctx context.Context, t *task.Task) (int64, error)
	UpdateTask(ctx context.Context, t *task.Task) error
	DeleteTask(ctx context.Context, id int64) (bool, error)
	GetTaskStats(ctx context.Context) ([]models.StatusStats, error)
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
