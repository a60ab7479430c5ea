package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nadmax/radar/internal/api"
	"github.com/nadmax/radar/internal/middleware"
	"github.com/nadmax/radar/internal/notify"
	"github.com/nadmax/radar/internal/repository"
	"github.com/nadmax/radar/internal/task"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "client-secret"

func setupServer(t *testing.T, secret string) (*httptest.Server, *notify.Hub) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	hub := notify.NewHub(logger)
	srv := httptest.NewServer(api.NewAPI(repository.NewMockTaskRepository(), hub, api.Options{
		Viewers:   hub,
		Logger:    logger,
		JWTSecret: secret,
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	return srv, hub
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)

	_, err = New("://bad")
	assert.Error(t, err)
}

func TestClient_CRUD(t *testing.T) {
	srv, _ := setupServer(t, "")
	c, err := New(srv.URL + "/")
	require.NoError(t, err)
	ctx := context.Background()

	tasks, err := c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	id, err := c.Create(ctx, TaskInput{Name: "segmentation", Accuracy: 64})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "segmentation", got.Name)
	assert.Equal(t, task.StatusPending, got.Status)

	require.NoError(t, c.Update(ctx, id, TaskInput{Name: "segmentation", Status: "Done", Accuracy: 91}))

	tasks, err = c.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.StatusDone, tasks[0].Status)
	assert.Equal(t, 91.0, tasks[0].Accuracy)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalTasks)
	assert.Equal(t, 1, stats.DoneTasks)

	require.NoError(t, c.Delete(ctx, id))
	require.NoError(t, c.Delete(ctx, id))

	_, err = c.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_APIError(t *testing.T) {
	srv, _ := setupServer(t, "")
	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Create(context.Background(), TaskInput{Name: "x", Accuracy: 150})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "accuracy")
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestClient_Token(t *testing.T) {
	srv, _ := setupServer(t, testSecret)
	ctx := context.Background()

	anonymous, err := New(srv.URL)
	require.NoError(t, err)
	_, err = anonymous.Create(ctx, TaskInput{Name: "x"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	token, err := middleware.IssueToken(testSecret, "radarctl", time.Minute)
	require.NoError(t, err)

	authed, err := New(srv.URL, WithToken(token), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	_, err = authed.Create(ctx, TaskInput{Name: "x"})
	assert.NoError(t, err)
}

func TestClient_Watch(t *testing.T) {
	srv, hub := setupServer(t, "")
	c, err := New(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan notify.Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, func(e notify.Event) { events <- e })
	}()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = c.Create(context.Background(), TaskInput{Name: "watched"})
	require.NoError(t, err)

	select {
	case e := <-events:
		assert.Equal(t, notify.EventTasksChanged, e.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestClient_WatchServerClose(t *testing.T) {
	srv, hub := setupServer(t, "")
	c, err := New(srv.URL)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- c.Watch(context.Background(), func(notify.Event) {})
	}()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Close()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after server close")
	}
}
