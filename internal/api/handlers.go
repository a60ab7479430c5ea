// Package api exposes the task store over HTTP and wires mutations to the
// viewer notification channel.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nadmax/radar/internal/dashboard"
	"github.com/nadmax/radar/internal/httputil"
	"github.com/nadmax/radar/internal/metrics"
	"github.com/nadmax/radar/internal/middleware"
	"github.com/nadmax/radar/internal/notify"
	"github.com/nadmax/radar/internal/report"
	"github.com/nadmax/radar/internal/repository"
	"github.com/nadmax/radar/internal/task"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

type Options struct {
	// Viewers serves the WebSocket endpoint. Nil disables /ws.
	Viewers        http.Handler
	Logger         *logrus.Logger
	RateLimitRPS   float64
	RateLimitBurst int
	JWTSecret      string
}

type API struct {
	repo     repository.TaskRepository
	notifier notify.Notifier
	exporter *report.Exporter
	log      *logrus.Logger
	mux      *http.ServeMux
	handler  http.Handler
}

func NewAPI(repo repository.TaskRepository, notifier notify.Notifier, opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if notifier == nil {
		notifier = notify.NotifierFunc(func(context.Context) error { return nil })
	}

	api := &API{
		repo:     repo,
		notifier: notifier,
		exporter: report.NewExporter(repo),
		log:      logger,
		mux:      http.NewServeMux(),
	}

	api.setupRoutes(opts.Viewers)
	api.handler = middleware.Chain(api.mux,
		middleware.Logging(logger),
		middleware.MetricsMiddleware,
		middleware.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst),
		middleware.RequireToken(opts.JWTSecret),
	)

	return api
}

func (a *API) setupRoutes(viewers http.Handler) {
	a.mux.HandleFunc("/", a.handleRoot)
	a.mux.HandleFunc("/tasks", a.handleTasks)
	a.mux.HandleFunc("/tasks/", a.handleTaskByID)
	a.mux.HandleFunc("/export", a.handleExport)
	a.mux.HandleFunc("/health", a.handleHealth)
	a.mux.Handle("/metrics", promhttp.Handler())

	dash := dashboard.NewDashboard(a.repo, a.log)
	a.mux.HandleFunc("/dashboard/stats", dash.GetStats)

	if viewers != nil {
		a.mux.Handle("/ws", viewers)
	}
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		httputil.WriteJSONError(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "Backend is Live!")
}

func (a *API) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createTask(w, r)
	case http.MethodGet:
		a.listTasks(w, r)
	default:
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *API) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	rawID := strings.TrimPrefix(r.URL.Path, "/tasks/")
	if rawID == "" {
		httputil.WriteJSONError(w, "Task ID is required", http.StatusBadRequest)
		return
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteJSONError(w, "Task ID must be a positive integer", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getTask(w, r, id)
	case http.MethodPut:
		a.updateTask(w, r, id)
	case http.MethodDelete:
		a.deleteTask(w, r, id)
	default:
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := a.repo.ListTasks(r.Context())
	if err != nil {
		a.writeStoreError(w, err, "list")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tasks)
}

func (a *API) getTask(w http.ResponseWriter, r *http.Request, id int64) {
	t, err := a.repo.GetTask(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, err, "get")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, t)
}

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeTaskRequest(w, r)
	if !ok {
		return
	}

	t, err := req.toTask(false)
	if err != nil {
		a.writeStoreError(w, err, "create")
		return
	}

	id, err := a.repo.CreateTask(r.Context(), t)
	if err != nil {
		a.writeStoreError(w, err, "create")
		return
	}

	a.log.WithFields(logrus.Fields{
		"task_id": id,
		"status":  t.Status,
	}).Info("task created")
	a.notifyChange(r.Context(), metrics.OperationCreate)

	httputil.WriteJSON(w, http.StatusCreated, CreateTaskResponse{ID: id})
}

func (a *API) updateTask(w http.ResponseWriter, r *http.Request, id int64) {
	req, ok := a.decodeTaskRequest(w, r)
	if !ok {
		return
	}

	t, err := req.toTask(true)
	if err != nil {
		a.writeStoreError(w, err, "update")
		return
	}
	t.ID = id

	if err := a.repo.UpdateTask(r.Context(), t); err != nil {
		a.writeStoreError(w, err, "update")
		return
	}

	a.log.WithFields(logrus.Fields{
		"task_id": id,
		"status":  t.Status,
	}).Info("task updated")
	a.notifyChange(r.Context(), metrics.OperationUpdate)

	httputil.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Updated", ID: id})
}

// deleteTask is idempotent: removing a missing task still answers 200, but
// viewers are only notified when a row was actually removed.
func (a *API) deleteTask(w http.ResponseWriter, r *http.Request, id int64) {
	deleted, err := a.repo.DeleteTask(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, err, "delete")
		return
	}

	if deleted {
		a.log.WithField("task_id", id).Info("task deleted")
		a.notifyChange(r.Context(), metrics.OperationDelete)
	}

	httputil.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Deleted", ID: id})
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = report.FormatJSON
	}

	data, contentType, err := a.exporter.Export(r.Context(), format)
	if err != nil {
		if errors.Is(err, report.ErrUnsupportedFormat) {
			httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		a.writeStoreError(w, err, "export")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="tasks.%s"`, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.repo.Ping(ctx); err != nil {
		a.log.WithError(err).Warn("health check failed")
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) decodeTaskRequest(w http.ResponseWriter, r *http.Request) (TaskRequest, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteJSONError(w, "Failed to read request body", http.StatusBadRequest)
		return TaskRequest{}, false
	}

	defer func() {
		if err := r.Body.Close(); err != nil {
			a.log.WithError(err).Warn("failed to close request body")
		}
	}()

	var req TaskRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return TaskRequest{}, false
	}

	return req, true
}

// notifyChange runs after a committed mutation. A failed notification is
// logged and never fails the request.
func (a *API) notifyChange(ctx context.Context, operation string) {
	metrics.RecordMutation(operation)

	if err := a.notifier.Notify(context.WithoutCancel(ctx)); err != nil {
		metrics.RecordNotification(metrics.NotificationFailed)
		a.log.WithError(err).WithField("operation", operation).Warn("failed to notify viewers")
	}
}

// writeStoreError maps domain errors to client errors and hides everything
// else behind a generic 500.
func (a *API) writeStoreError(w http.ResponseWriter, err error, operation string) {
	var verr *task.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.WriteJSONError(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, task.ErrNotFound):
		httputil.WriteJSONError(w, "Task not found", http.StatusNotFound)
	default:
		a.log.WithError(err).WithField("operation", operation).Error("task store failure")
		httputil.WriteJSONError(w, fmt.Sprintf("failed to %s task", operation), http.StatusInternalServerError)
	}
}
