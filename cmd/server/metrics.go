package main

import (
	"context"
	"time"

	"github.com/nadmax/radar/internal/dashboard"
	"github.com/nadmax/radar/internal/metrics"
	"github.com/nadmax/radar/internal/repository"
	"github.com/nadmax/radar/internal/task"
	"github.com/sirupsen/logrus"
)

func startMetricsCollector(ctx context.Context, repo repository.TaskRepository, interval time.Duration, log *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	dash := dashboard.NewDashboard(repo, log)
	updateTaskMetrics(ctx, dash, log)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateTaskMetrics(ctx, dash, log)
		}
	}
}

func updateTaskMetrics(ctx context.Context, dash *dashboard.Dashboard, log *logrus.Logger) {
	stats, err := dash.Collect(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Warn("failed to collect task metrics")
		}
		return
	}

	statuses := make([]string, 0, len(task.Statuses()))
	for _, s := range task.Statuses() {
		statuses = append(statuses, string(s))
	}

	metrics.UpdateTaskGauges(stats.TasksByStatus, statuses, stats.AverageAccuracy)
}
