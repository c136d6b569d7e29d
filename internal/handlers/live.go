package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"simguard/internal/registry"
	"simguard/pkg/realtime"
)

// maxInboundFrame bounds client frames; the channel is push only and
// inbound frames are discarded.
const maxInboundFrame = 4 << 10

// LiveHandler attaches subscribers to the event bus over WebSocket or
// server-sent events.
type LiveHandler struct {
	bus          *realtime.Broadcaster
	store        *registry.Store
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	// pongWait is how long a WebSocket may stay silent; zero disables it.
	pongWait time.Duration
	log      *slog.Logger
}

// NewLiveHandler serves the live feed. pingInterval must match the bus ping
// interval: a WebSocket peer that answers no ping for two intervals is
// disconnected.
func NewLiveHandler(bus *realtime.Broadcaster, store *registry.Store, writeTimeout, pingInterval time.Duration, log *slog.Logger) *LiveHandler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &LiveHandler{
		bus:   bus,
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
		pongWait:     2 * max(pingInterval, 0),
		log:          log,
	}
}

func (h *LiveHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.serveWS)
	r.Get("/events", h.serveSSE)
}

func (h *LiveHandler) initEvent() realtime.Event {
	return realtime.Event{Type: realtime.TypeInit, Payload: h.store.Snapshot()}
}

func (h *LiveHandler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WarnContext(r.Context(), "websocket upgrade failed", "err", err)
		return
	}
	sub, err := h.bus.Subscribe(&wsConn{conn: conn, timeout: h.writeTimeout}, h.initEvent)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.writeTimeout))
		_ = conn.Close()
		return
	}
	defer h.bus.Unsubscribe(sub)

	conn.SetReadLimit(maxInboundFrame)
	if h.pongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(h.pongWait))
		})
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.log.DebugContext(r.Context(), "websocket read failed", "subscriber", sub.ID(), "err", err)
			}
			return
		}
	}
}

// wsConn adapts a gorilla connection to realtime.Conn.
type wsConn struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (c *wsConn) WriteMessage(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.timeout))
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (h *LiveHandler) serveSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	conn := &sseConn{w: w, rc: http.NewResponseController(w), timeout: h.writeTimeout}
	defer conn.finish()
	sub, err := h.bus.Subscribe(conn, h.initEvent)
	if err != nil {
		return
	}
	defer h.bus.Unsubscribe(sub)

	select {
	case <-r.Context().Done():
	case <-sub.Done():
	}
}

// sseConn adapts a streaming response to realtime.Conn. Close only marks the
// stream; finish waits for an in-flight write so nothing touches the writer
// after the handler returns.
type sseConn struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	rc      *http.ResponseController
	timeout time.Duration
	closed  atomic.Bool
}

var errStreamClosed = errors.New("stream closed")

func (c *sseConn) WriteMessage(data []byte) error {
	return c.write(func() error { return writeSSE(c.w, "message", string(data)) })
}

func (c *sseConn) Ping() error {
	return c.write(func() error {
		_, err := c.w.Write([]byte(": keepalive\n\n"))
		return err
	})
}

func (c *sseConn) write(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return errStreamClosed
	}
	if err := c.rc.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return c.rc.Flush()
}

func (c *sseConn) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *sseConn) finish() {
	c.mu.Lock()
	c.closed.Store(true)
	c.mu.Unlock()
}

func writeSSE(w http.ResponseWriter, event string, data string) error {
	var b strings.Builder
	b.WriteString("event: " + event + "\n")
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	_, err := w.Write([]byte(b.String()))
	return err
}
