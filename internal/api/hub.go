package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-lights/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lights/internal/infrastructure/logging"
)

// Frame kinds on the live event socket.
const (
	frameEvent       = "event"
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	framePing        = "ping"
	framePong        = "pong"
	frameAck         = "ack"
	frameError       = "error"

	clientQueueSize = 64
)

// wsFrame is one JSON message written to a client.
type wsFrame struct {
	Kind  string    `json:"kind"`
	ID    string    `json:"id,omitempty"`
	Event string    `json:"event,omitempty"`
	At    time.Time `json:"at"`
	Data  any       `json:"data,omitempty"`
}

// wsRequest is one JSON message read from a client, e.g.
// {"kind":"subscribe","id":"1","channels":["schedule.fired"]}.
type wsRequest struct {
	Kind     string   `json:"kind"`
	ID       string   `json:"id"`
	Channels []string `json:"channels"`
}

// Hub fans events out to connected browsers.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// wsClient is one browser connection. An empty filter means every event.
// The queue is never closed; done tells the writer to stop.
type wsClient struct {
	hub      *Hub
	conn     *websocket.Conn
	queue    chan []byte
	done     chan struct{}
	stopOnce sync.Once
	mu       sync.RWMutex
	filter   map[string]struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS middleware already vets the origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run blocks until ctx is done and then drops every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.stop()
		c.conn.Close()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues an event for every client whose filter admits it.
// Slow clients lose events rather than block the publisher.
func (h *Hub) Publish(event string, data any) {
	msg, err := json.Marshal(wsFrame{Kind: frameEvent, Event: event, At: time.Now().UTC(), Data: data})
	if err != nil {
		h.logger.Error("failed to encode event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		if c.wants(event) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(msg)
	}
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.stop()
	if ok {
		h.logger.Debug("websocket client disconnected", "clients", n)
	}
}

// timings returns the ping period and pong wait with defaults applied.
func (h *Hub) timings() (ping, pong time.Duration) {
	ping = time.Duration(h.cfg.PingInterval) * time.Second
	pong = time.Duration(h.cfg.PongTimeout) * time.Second
	if ping <= 0 {
		ping = 30 * time.Second
	}
	if pong <= 0 {
		pong = 10 * time.Second
	}
	return ping, pong
}

// handleWebSocket upgrades the request and attaches it to the hub.
// There is no authentication on this endpoint.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		hub:    s.hub,
		conn:   conn,
		queue:  make(chan []byte, clientQueueSize),
		done:   make(chan struct{}),
		filter: make(map[string]struct{}),
	}
	s.hub.add(c)

	go c.writeLoop()
	go c.readLoop()
}

func (c *wsClient) readLoop() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	if n := c.hub.cfg.MaxMessageSize; n > 0 {
		c.conn.SetReadLimit(int64(n))
	}
	ping, pong := c.hub.timings()
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(ping + pong)) }
	extend() //nolint:errcheck // a failed deadline surfaces on the next read
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		extend() //nolint:errcheck // a failed deadline surfaces on the next read
		c.handle(raw)
	}
}

func (c *wsClient) writeLoop() {
	ping, pong := c.hub.timings()
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		var (
			kind = websocket.TextMessage
			msg  []byte
		)
		select {
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
			return
		case msg = <-c.queue:
		case <-ticker.C:
			kind = websocket.PingMessage
		}

		c.conn.SetWriteDeadline(time.Now().Add(pong)) //nolint:errcheck // write error is checked below
		if err := c.conn.WriteMessage(kind, msg); err != nil {
			return
		}
	}
}

func (c *wsClient) handle(raw []byte) {
	var req wsRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.reply(frameError, "", map[string]string{"message": "invalid JSON message"})
		return
	}

	switch req.Kind {
	case framePing:
		c.reply(framePong, req.ID, nil)
	case frameSubscribe, frameUnsubscribe:
		c.mu.Lock()
		for _, ch := range req.Channels {
			if req.Kind == frameSubscribe {
				c.filter[ch] = struct{}{}
			} else {
				delete(c.filter, ch)
			}
		}
		c.mu.Unlock()
		c.reply(frameAck, req.ID, map[string]any{req.Kind: req.Channels})
	default:
		c.reply(frameError, req.ID, map[string]string{"message": "unknown message kind: " + req.Kind})
	}
}

func (c *wsClient) wants(event string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.filter) == 0 {
		return true
	}
	_, ok := c.filter[event]
	return ok
}

func (c *wsClient) reply(kind, id string, data any) {
	msg, err := json.Marshal(wsFrame{Kind: kind, ID: id, At: time.Now().UTC(), Data: data})
	if err != nil {
		return
	}
	c.enqueue(msg)
}

// enqueue never blocks. A full queue or a stopped client drops msg.
func (c *wsClient) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.queue <- msg:
		return true
	default:
		return false
	}
}

func (c *wsClient) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}
