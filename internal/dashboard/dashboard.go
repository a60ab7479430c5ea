// Package dashboard serves aggregate views of the task set: counts per status
// and the average accuracy, the numbers behind the status chart.
package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/nadmax/radar/internal/httputil"
	"github.com/nadmax/radar/internal/repository"
	"github.com/nadmax/radar/internal/task"
	"github.com/sirupsen/logrus"
)

type Dashboard struct {
	repo repository.TaskRepository
	log  *logrus.Logger
}

type Stats struct {
	TotalTasks      int            `json:"total_tasks"`
	PendingTasks    int            `json:"pending_tasks"`
	RunningTasks    int            `json:"running_tasks"`
	DoneTasks       int            `json:"done_tasks"`
	FailedTasks     int            `json:"failed_tasks"`
	TasksByStatus   map[string]int `json:"tasks_by_status"`
	AverageAccuracy float64        `json:"average_accuracy"`
	LastUpdated     time.Time      `json:"last_updated"`
}

func NewDashboard(repo repository.TaskRepository, logger *logrus.Logger) *Dashboard {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Dashboard{repo: repo, log: logger}
}

// Collect aggregates the repository's per-status stats. Every canonical status
// is present in TasksByStatus, zero when no task has it.
func (d *Dashboard) Collect(ctx context.Context) (*Stats, error) {
	rows, err := d.repo.GetTaskStats(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TasksByStatus: make(map[string]int, len(task.Statuses())),
		LastUpdated:   time.Now().UTC(),
	}
	for _, s := range task.Statuses() {
		stats.TasksByStatus[string(s)] = 0
	}

	var accuracySum float64
	for _, row := range rows {
		stats.TotalTasks += row.Count
		stats.TasksByStatus[row.Status] += row.Count
		accuracySum += row.AverageAccuracy * float64(row.Count)

		switch task.Status(row.Status) {
		case task.StatusPending:
			stats.PendingTasks += row.Count
		case task.StatusRunning:
			stats.RunningTasks += row.Count
		case task.StatusDone:
			stats.DoneTasks += row.Count
		case task.StatusFailed:
			stats.FailedTasks += row.Count
		}
	}

	if stats.TotalTasks > 0 {
		stats.AverageAccuracy = accuracySum / float64(stats.TotalTasks)
	}

	return stats, nil
}

func (d *Dashboard) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := d.Collect(r.Context())
	if err != nil {
		d.log.WithError(err).Error("failed to collect dashboard stats")
		httputil.WriteJSONError(w, "failed to load stats", http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, stats)
}
