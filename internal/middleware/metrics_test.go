package middleware

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requestRecord struct {
	method, endpoint, status string
}

// captureRequests swaps the Prometheus recorder for one that keeps every
// observation in memory.
func captureRequests(t *testing.T) *[]requestRecord {
	t.Helper()

	var records []requestRecord
	original := recordHTTPRequest
	recordHTTPRequest = func(method, endpoint, status string, _ time.Duration) {
		records = append(records, requestRecord{method, endpoint, status})
	}
	t.Cleanup(func() { recordHTTPRequest = original })

	return &records
}

func TestResponseWriter_Status(t *testing.T) {
	rw := wrap(httptest.NewRecorder())
	assert.Equal(t, http.StatusOK, rw.statusCode)

	for _, code := range []int{http.StatusCreated, http.StatusNotFound, http.StatusServiceUnavailable} {
		rec := httptest.NewRecorder()
		rw := wrap(rec)
		rw.WriteHeader(code)

		assert.Equal(t, code, rw.statusCode)
		assert.Equal(t, code, rec.Code)
	}

	assert.Same(t, rw, wrap(rw))
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestResponseWriter_Hijack(t *testing.T) {
	rec := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw := wrap(rec)

	_, _, err := rw.Hijack()
	require.NoError(t, err)
	assert.True(t, rec.hijacked)
	assert.Equal(t, http.StatusSwitchingProtocols, rw.statusCode)

	_, _, err = wrap(httptest.NewRecorder()).Hijack()
	assert.Error(t, err)
}

func TestNormalizeEndpoint(t *testing.T) {
	cases := map[string]string{
		"/tasks/123":         "/tasks/:id",
		"/tasks/abc":         "/tasks/:id",
		"/tasks/123/subtask": "/tasks/123/subtask",
		"/tasks/":            "/tasks/",
		"/tasks":             "/tasks",
		"/ws":                "/ws",
		"/":                  "/",
		"/dashboard/stats":   "/dashboard/stats",
	}

	for path, want := range cases {
		assert.Equal(t, want, normalizeEndpoint(path), path)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	tests := []struct {
		method   string
		path     string
		code     int
		endpoint string
		status   string
	}{
		{http.MethodGet, "/tasks/123", http.StatusOK, "/tasks/:id", "200"},
		{http.MethodPost, "/tasks", http.StatusCreated, "/tasks", "201"},
		{http.MethodPut, "/tasks/999", http.StatusNotFound, "/tasks/:id", "404"},
		{http.MethodDelete, "/tasks/1", http.StatusInternalServerError, "/tasks/:id", "500"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			records := captureRequests(t)

			handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, nil))

			require.Len(t, *records, 1)
			assert.Equal(t, requestRecord{tt.method, tt.endpoint, tt.status}, (*records)[0])
		})
	}
}

func TestMetricsMiddleware_ImplicitOK(t *testing.T) {
	records := captureRequests(t)

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Len(t, *records, 1)
	assert.Equal(t, "200", (*records)[0].status)
}
