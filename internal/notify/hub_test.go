package notify

import (
	"context"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/nadmax/radar/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestHub(t *testing.T, opts ...Option) (*Hub, *httptest.Server) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	hub := NewHub(logger, opts...)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	return hub, srv
}

func dialHub(t *testing.T, srv *httptest.Server) net.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, br, _, err := ws.Dial(context.Background(), url)
	require.NoError(t, err)
	if br != nil {
		ws.PutReader(br)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	require.Eventually(t, func() bool {
		return hub.ClientCount() == n
	}, 2*time.Second, 10*time.Millisecond)
}

func readEvent(conn net.Conn, timeout time.Duration) (Event, error) {
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	data, err := wsutil.ReadServerText(conn)
	if err != nil {
		return Event{}, err
	}

	return DecodeEvent(data)
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)

	assert.NotNil(t, hub.log)
	assert.Equal(t, DefaultBufferSize, hub.bufferSize)
	assert.Equal(t, DefaultWriteTimeout, hub.writeTimeout)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestNewHub_Options(t *testing.T) {
	hub := NewHub(nil, WithBufferSize(32), WithWriteTimeout(time.Second))
	assert.Equal(t, 32, hub.bufferSize)
	assert.Equal(t, time.Second, hub.writeTimeout)

	hub = NewHub(nil, WithBufferSize(0), WithWriteTimeout(-1))
	assert.Equal(t, DefaultBufferSize, hub.bufferSize)
	assert.Equal(t, DefaultWriteTimeout, hub.writeTimeout)
}

func TestHub_NotifyReachesEveryViewerOnce(t *testing.T) {
	hub, srv := setupTestHub(t)

	first := dialHub(t, srv)
	second := dialHub(t, srv)
	waitForClients(t, hub, 2)

	require.NoError(t, hub.Notify(context.Background()))

	for _, conn := range []net.Conn{first, second} {
		e, err := readEvent(conn, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, EventTasksChanged, e.Event)

		_, err = readEvent(conn, 200*time.Millisecond)
		assert.Error(t, err, "viewer should receive exactly one event")
	}
}

func TestHub_EventsPerMutation(t *testing.T) {
	hub, srv := setupTestHub(t)

	conn := dialHub(t, srv)
	waitForClients(t, hub, 1)

	for i := 0; i < 3; i++ {
		assert.Equal(t, 1, hub.Broadcast(TasksChanged()))
	}

	for i := 0; i < 3; i++ {
		e, err := readEvent(conn, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, EventTasksChanged, e.Event)
	}
}

func TestHub_BroadcastWithoutViewers(t *testing.T) {
	hub := NewHub(nil)
	assert.Equal(t, 0, hub.Broadcast(TasksChanged()))
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hub := NewHub(logger, WithBufferSize(1))

	server, peer := net.Pipe()
	defer func() { _ = peer.Close() }()

	c := &client{
		id:   "slow",
		conn: server,
		send: make(chan []byte, 1),
		done: make(chan struct{}),
	}
	require.True(t, hub.register(c))

	assert.Equal(t, 1, hub.Broadcast(TasksChanged()))
	assert.Equal(t, 0, hub.Broadcast(TasksChanged()), "second event should be dropped")
	assert.Len(t, c.send, 1)
}

func TestHub_SkipsClosedClients(t *testing.T) {
	hub := NewHub(nil)

	server, peer := net.Pipe()
	defer func() { _ = peer.Close() }()

	c := &client{
		id:   "closed",
		conn: server,
		send: make(chan []byte, 4),
		done: make(chan struct{}),
	}
	require.True(t, hub.register(c))
	c.close()

	assert.Equal(t, 0, hub.Broadcast(TasksChanged()))
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, srv := setupTestHub(t)

	conn := dialHub(t, srv)
	waitForClients(t, hub, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WebSocketClients))

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.WebSocketClients))
}

func TestHub_UnregistersOnCloseFrame(t *testing.T) {
	hub, srv := setupTestHub(t)

	conn := dialHub(t, srv)
	waitForClients(t, hub, 1)

	body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "bye")
	require.NoError(t, wsutil.WriteClientMessage(conn, ws.OpClose, body))

	waitForClients(t, hub, 0)
}

func TestHub_AnswersPing(t *testing.T) {
	hub, srv := setupTestHub(t)

	conn := dialHub(t, srv)
	waitForClients(t, hub, 1)

	require.NoError(t, wsutil.WriteClientMessage(conn, ws.OpPing, []byte("radar")))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame, err := ws.ReadFrame(conn)
	require.NoError(t, err)
	assert.Equal(t, ws.OpPong, frame.Header.OpCode)
	assert.Equal(t, "radar", string(frame.Payload))
}

func TestHub_Close(t *testing.T) {
	hub, srv := setupTestHub(t)

	conn := dialHub(t, srv)
	waitForClients(t, hub, 1)

	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())

	_, err := readEvent(conn, 2*time.Second)
	assert.Error(t, err)

	late := dialHub(t, srv)
	_, err = readEvent(late, 2*time.Second)
	assert.Error(t, err, "hub should reject viewers after Close")
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_CloseTwice(t *testing.T) {
	hub, srv := setupTestHub(t)

	dialHub(t, srv)
	waitForClients(t, hub, 1)

	hub.Close()
	assert.NotPanics(t, hub.Close)
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.Broadcast(TasksChanged()))
}

func TestHub_RejectsPlainHTTP(t *testing.T) {
	_, srv := setupTestHub(t)

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.GreaterOrEqual(t, resp.StatusCode, 400)
}
