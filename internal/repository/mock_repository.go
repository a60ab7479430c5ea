package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nadmax/radar/internal/repository/models"
	"github.com/nadmax/radar/internal/task"
)

// MockTaskRepository is an in-memory TaskRepository with error injection,
// used by handler and collector tests.
type MockTaskRepository struct {
	mu     sync.Mutex
	Tasks  map[int64]task.Task
	nextID int64

	CreateCalls int
	UpdateCalls int
	DeleteCalls int

	ListError    error
	GetError     error
	CreateError  error
	UpdateError  error
	DeleteError  error
	StatsError   error
	MigrateError error
	PingError    error
	Closed       bool
}

func NewMockTaskRepository() *MockTaskRepository {
	return &MockTaskRepository{Tasks: make(map[int64]task.Task)}
}

func (m *MockTaskRepository) ListTasks(_ context.Context) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListError != nil {
		return nil, m.ListError
	}

	tasks := make([]task.Task, 0, len(m.Tasks))
	for _, t := range m.Tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	return tasks, nil
}

func (m *MockTaskRepository) GetTask(_ context.Context, id int64) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetError != nil {
		return nil, m.GetError
	}

	t, ok := m.Tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, task.ErrNotFound)
	}

	return &t, nil
}

func (m *MockTaskRepository) CreateTask(_ context.Context, t *task.Task) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	if m.CreateError != nil {
		return 0, m.CreateError
	}

	m.nextID++
	now := time.Now().UTC()
	t.ID = m.nextID
	t.CreatedAt = now
	t.UpdatedAt = now
	m.Tasks[t.ID] = *t

	return t.ID, nil
}

func (m *MockTaskRepository) UpdateTask(_ context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateCalls++
	if m.UpdateError != nil {
		return m.UpdateError
	}

	existing, ok := m.Tasks[t.ID]
	if !ok {
		return fmt.Errorf("task %d: %w", t.ID, task.ErrNotFound)
	}

	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	m.Tasks[t.ID] = *t

	return nil
}

func (m *MockTaskRepository) DeleteTask(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls++
	if m.DeleteError != nil {
		return false, m.DeleteError
	}

	if _, ok := m.Tasks[id]; !ok {
		return false, nil
	}
	delete(m.Tasks, id)

	return true, nil
}

func (m *MockTaskRepository) GetTaskStats(_ context.Context) ([]models.StatusStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.StatsError != nil {
		return nil, m.StatsError
	}

	byStatus := make(map[string]*models.StatusStats)
	sums := make(map[string]float64)
	for _, t := range m.Tasks {
		s, ok := byStatus[string(t.Status)]
		if !ok {
			s = &models.StatusStats{Status: string(t.Status)}
			byStatus[string(t.Status)] = s
		}
		s.Count++
		sums[s.Status] += t.Accuracy
	}

	stats := make([]models.StatusStats, 0, len(byStatus))
	for status, s := range byStatus {
		s.AverageAccuracy = sums[status] / float64(s.Count)
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Status < stats[j].Status })

	return stats, nil
}

func (m *MockTaskRepository) Migrate(_ context.Context) error {
	return m.MigrateError
}

func (m *MockTaskRepository) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PingError
}

func (m *MockTaskRepository) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Seed inserts tasks directly, assigning ids in order.
func (m *MockTaskRepository) Seed(tasks ...*task.Task) {
	for _, t := range tasks {
		_, _ = m.CreateTask(context.Background(), t)
	}

	m.mu.Lock()
	m.CreateCalls -= len(tasks)
	m.mu.Unlock()
}

func (m *MockTaskRepository) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PingError = err
}
