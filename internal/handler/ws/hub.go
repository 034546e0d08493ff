// Package ws pushes the chart's visual model to browser clients over websocket.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"LiveChart/internal/service/surface"
	"LiveChart/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	sendBuffer   = 256
	pingInterval = 30 * time.Second
	readTimeout  = 75 * time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(*http.Request) bool { return true },
	EnableCompression: true,
}

// SnapshotFunc returns the full model sent to a client right after it connects.
type SnapshotFunc func() surface.Snapshot

type pendingUpdate struct {
	version uint64
	b       []byte
}

type client struct {
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once

	// updates published before the snapshot is queued wait in pending
	mu      sync.Mutex
	ready   bool
	pending []pendingUpdate
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// push queues b, or holds it while the client still waits for its snapshot. It reports false
// when the client buffer is full.
func (c *client) push(version uint64, b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		if len(c.pending) >= sendBuffer {
			return false
		}
		c.pending = append(c.pending, pendingUpdate{version: version, b: b})
		return true
	}
	select {
	case c.out <- b:
		return true
	default:
		return false
	}
}

// start queues the snapshot followed by held updates newer than it, then releases the client.
func (c *client) start(snapshot []byte, version uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ok := true
	if snapshot != nil {
		ok = c.enqueue(snapshot)
	}
	for _, p := range c.pending {
		if snapshot != nil && p.version <= version {
			continue
		}
		ok = ok && c.enqueue(p.b)
	}
	c.pending = nil
	c.ready = true
	return ok
}

func (c *client) enqueue(b []byte) bool {
	select {
	case c.out <- b:
		return true
	default:
		return false
	}
}

// Hub fans model updates out to connected clients. Clients that fall behind are dropped and
// expected to reconnect for a fresh snapshot.
type Hub struct {
	log      *logger.Logger
	snapshot SnapshotFunc

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(log *logger.Logger, snapshot SnapshotFunc) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		log:      log,
		snapshot: snapshot,
		clients:  make(map[*client]struct{}),
	}
}

type snapshotMsg struct {
	Type string           `json:"type"`
	Data surface.Snapshot `json:"data"`
}

// Publish implements surface.Listener.
func (h *Hub) Publish(u surface.Update) {
	b, err := json.Marshal(u)
	if err != nil {
		h.log.Warn("encode update failed", logger.String("type", u.Type), logger.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.push(u.Version, b) {
			h.log.Warn("ws client too slow, dropping")
			c.close()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.serve)
}

func (h *Hub) serve(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// upgrader already wrote the error response
		h.log.Debug("ws upgrade failed", logger.Error(err))
		return nil
	}
	cl := &client{conn: conn, out: make(chan []byte, sendBuffer), done: make(chan struct{})}

	// registered clients hold updates until the snapshot is queued; held updates already
	// covered by the snapshot version are dropped
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("ws client connected", logger.String("remote", c.RealIP()))

	var (
		snap    []byte
		version uint64
	)
	if h.snapshot != nil {
		s := h.snapshot()
		b, err := json.Marshal(snapshotMsg{Type: "snapshot", Data: s})
		if err != nil {
			h.log.Warn("encode snapshot failed", logger.Error(err))
		} else {
			snap, version = b, s.Version
		}
	}
	if !cl.start(snap, version) {
		h.log.Warn("ws client too slow, dropping")
		cl.close()
	}

	go h.write(cl)
	h.read(cl)

	cl.close()
	h.mu.Lock()
	delete(h.clients, cl)
	h.mu.Unlock()
	_ = conn.Close()
	h.log.Debug("ws client disconnected", logger.String("remote", c.RealIP()))
	return nil
}

func (h *Hub) write(cl *client) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case b := <-cl.out:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cl.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				cl.close()
				_ = cl.conn.Close()
				return
			}
		case <-ping.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.close()
				_ = cl.conn.Close()
				return
			}
		case <-cl.done:
			_ = cl.conn.Close()
			return
		}
	}
}

// read drains client frames until the connection fails; clients only send pongs.
func (h *Hub) read(cl *client) {
	_ = cl.conn.SetReadDeadline(time.Now().Add(readTimeout))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
	}
}
