package notify

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/google/uuid"
	"github.com/nadmax/radar/internal/metrics"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBufferSize   = 8
	DefaultWriteTimeout = 5 * time.Second

	// Viewers only send control frames; anything larger is a misbehaving peer.
	maxFrameSize = 4096
)

// Broadcaster fans an event out to local viewers.
type Broadcaster interface {
	Broadcast(e Event) int
}

type Option func(*Hub)

func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// Hub keeps one WebSocket per connected viewer and pushes events to all of
// them. Each viewer has a bounded send buffer; when it is full the event is
// dropped for that viewer only.
type Hub struct {
	mu           sync.RWMutex
	clients      map[string]*client
	closed       bool
	bufferSize   int
	writeTimeout time.Duration
	log          *logrus.Logger
}

type client struct {
	id        string
	conn      net.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
}

func NewHub(logger *logrus.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	h := &Hub{
		clients:      make(map[string]*client),
		bufferSize:   DefaultBufferSize,
		writeTimeout: DefaultWriteTimeout,
		log:          logger,
	}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, rw, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.log.WithError(err).WithField("remote_addr", r.RemoteAddr).Warn("websocket upgrade failed")
		return
	}

	// The server's read and write timeouts survive the hijack.
	_ = conn.SetDeadline(time.Time{})

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, h.bufferSize),
		done: make(chan struct{}),
	}

	if !h.register(c) {
		_ = c.write(ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusGoingAway, "shutting down")), h.writeTimeout)
		c.close()
		return
	}

	var reader io.Reader = conn
	if rw != nil {
		reader = rw.Reader
	}

	go h.writeLoop(c)
	h.readLoop(c, reader)
	h.unregister(c)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	h.clients[c.id] = c
	metrics.SetWebSocketClients(len(h.clients))
	h.log.WithFields(logrus.Fields{
		"client_id": c.id,
		"clients":   len(h.clients),
	}).Debug("viewer connected")

	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		metrics.SetWebSocketClients(len(h.clients))
		h.log.WithFields(logrus.Fields{
			"client_id": c.id,
			"clients":   len(h.clients),
		}).Debug("viewer disconnected")
	}
	h.mu.Unlock()

	c.close()
}

func (h *Hub) readLoop(c *client, r io.Reader) {
	for {
		hdr, err := ws.ReadHeader(r)
		if err != nil {
			return
		}
		if hdr.Length > maxFrameSize {
			return
		}

		payload := make([]byte, hdr.Length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return
		}
		if hdr.Masked {
			ws.Cipher(payload, hdr.Mask, 0)
		}

		switch hdr.OpCode {
		case ws.OpClose:
			_ = c.write(ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, "")), h.writeTimeout)
			return
		case ws.OpPing:
			if err := c.write(ws.NewPongFrame(payload), h.writeTimeout); err != nil {
				return
			}
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(ws.NewTextFrame(msg), h.writeTimeout); err != nil {
				h.log.WithError(err).WithField("client_id", c.id).Debug("failed to push event")
				h.unregister(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

// Broadcast queues e for every connected viewer and returns how many viewers
// it was queued for.
func (h *Hub) Broadcast(e Event) int {
	msg, err := e.Encode()
	if err != nil {
		h.log.WithError(err).Error("failed to encode event")
		return 0
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	queued := 0
	for _, c := range clients {
		select {
		case <-c.done:
			continue
		default:
		}

		select {
		case c.send <- msg:
			queued++
			metrics.RecordNotification(metrics.NotificationQueued)
		default:
			metrics.RecordNotification(metrics.NotificationDropped)
			h.log.WithField("client_id", c.id).Warn("viewer buffer full, event dropped")
		}
	}

	h.log.WithFields(logrus.Fields{
		"event":   e.Event,
		"viewers": queued,
	}).Debug("event broadcast")

	return queued
}

func (h *Hub) Notify(_ context.Context) error {
	h.Broadcast(TasksChanged())
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every viewer and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[string]*client)
	metrics.SetWebSocketClients(0)
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.write(ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusGoingAway, "shutting down")), h.writeTimeout)
		c.close()
	}
}

func (c *client) write(f ws.Frame, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}

	return ws.WriteFrame(c.conn, f)
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
