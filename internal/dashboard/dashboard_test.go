package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nadmax/radar/internal/repository"
	"github.com/nadmax/radar/internal/task"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDashboard(t *testing.T) (*Dashboard, *repository.MockTaskRepository) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo := repository.NewMockTaskRepository()
	return NewDashboard(repo, logger), repo
}

func TestNewDashboard(t *testing.T) {
	dash, _ := setupTestDashboard(t)

	assert.NotNil(t, dash)
	assert.NotNil(t, dash.repo)
	assert.NotNil(t, NewDashboard(repository.NewMockTaskRepository(), nil).log)
}

func TestGetStats_Empty(t *testing.T) {
	dash, _ := setupTestDashboard(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil)
	w := httptest.NewRecorder()

	dash.GetStats(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var stats Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))

	assert.Equal(t, 0, stats.TotalTasks)
	assert.Equal(t, 0, stats.PendingTasks)
	assert.Equal(t, 0.0, stats.AverageAccuracy)
	assert.Len(t, stats.TasksByStatus, 4)
	assert.NotZero(t, stats.LastUpdated)
}

func TestGetStats_WithTasks(t *testing.T) {
	dash, repo := setupTestDashboard(t)
	repo.Seed(
		task.NewTask("a", task.StatusPending, 0),
		task.NewTask("b", task.StatusRunning, 50),
		task.NewTask("c", task.StatusDone, 90),
		task.NewTask("d", task.StatusDone, 100),
		task.NewTask("e", task.StatusFailed, 10),
	)

	w := httptest.NewRecorder()
	dash.GetStats(w, httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var stats Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))

	assert.Equal(t, 5, stats.TotalTasks)
	assert.Equal(t, 1, stats.PendingTasks)
	assert.Equal(t, 1, stats.RunningTasks)
	assert.Equal(t, 2, stats.DoneTasks)
	assert.Equal(t, 1, stats.FailedTasks)
	assert.Equal(t, 2, stats.TasksByStatus["Done"])
	assert.InDelta(t, 50.0, stats.AverageAccuracy, 0.0001)
}

func TestCollect_RepositoryError(t *testing.T) {
	dash, repo := setupTestDashboard(t)
	repo.StatsError = errors.New("db down")

	_, err := dash.Collect(context.Background())
	assert.Error(t, err)
}

func TestGetStats_RepositoryError(t *testing.T) {
	dash, repo := setupTestDashboard(t)
	repo.StatsError = errors.New("db down")

	w := httptest.NewRecorder()
	dash.GetStats(w, httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestGetStats_MethodNotAllowed(t *testing.T) {
	dash, _ := setupTestDashboard(t)

	w := httptest.NewRecorder()
	dash.GetStats(w, httptest.NewRequest(http.MethodPost, "/dashboard/stats", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
