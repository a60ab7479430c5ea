// Package metrics provides Prometheus metrics for the task dashboard.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"

	NotificationQueued  = "queued"
	NotificationDropped = "dropped"
	NotificationFailed  = "failed"
)

var (
	TaskMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_task_mutations_total",
			Help: "Total number of successful task mutations",
		},
		[]string{"operation"},
	)
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_notifications_total",
			Help: "Total number of change notifications by outcome",
		},
		[]string{"result"},
	)
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "radar_ws_clients",
			Help: "Number of currently connected dashboard viewers",
		},
	)
	TasksByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "radar_tasks",
			Help: "Current number of tasks by status",
		},
		[]string{"status"},
	)
	AverageAccuracy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "radar_task_accuracy_average",
			Help: "Average accuracy across all tasks",
		},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "radar_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radar_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)

func RecordMutation(operation string) {
	TaskMutations.WithLabelValues(operation).Inc()
}

func RecordNotification(result string) {
	Notifications.WithLabelValues(result).Inc()
}

func SetWebSocketClients(count int) {
	WebSocketClients.Set(float64(count))
}

// UpdateTaskGauges replaces the per-status gauges. Statuses missing from
// counts are reported as zero.
func UpdateTaskGauges(counts map[string]int, statuses []string, averageAccuracy float64) {
	TasksByStatus.Reset()
	for _, status := range statuses {
		TasksByStatus.WithLabelValues(status).Set(0)
	}
	for status, count := range counts {
		TasksByStatus.WithLabelValues(status).Set(float64(count))
	}

	AverageAccuracy.Set(averageAccuracy)
}

func RecordRateLimited() {
	RateLimited.Inc()
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
