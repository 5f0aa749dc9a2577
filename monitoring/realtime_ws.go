package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"fuelcell/ml"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType identifies the payload of a feed message.
type MessageType string

const (
	PredictionMade    MessageType = "prediction"
	ArtifactsReloaded MessageType = "artifacts_reloaded"
	Heartbeat         MessageType = "heartbeat"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	sendBuffer   = 64

	defaultHeartbeatInterval = 30 * time.Second
)

// Message is the envelope sent to every subscriber.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Client is one connected websocket subscriber.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	clientID string
}

// HubStats are cumulative counters of the feed.
type HubStats struct {
	ConnectedClients int       `json:"connected_clients"`
	MessagesSent     int64     `json:"messages_sent"`
	MessagesDropped  int64     `json:"messages_dropped"`
	StartTime        time.Time `json:"start_time"`
}

// WebSocketHub fans prediction events out to live dashboards.
type WebSocketHub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *zap.Logger
	sent       atomic.Int64
	dropped    atomic.Int64
	started    time.Time
	heartbeat  time.Duration
}

// NewWebSocketHub returns a hub that is idle until Start is called.
func NewWebSocketHub(logger *zap.Logger) *WebSocketHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketHub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.Named("ws"),
		started:   time.Now(),
		heartbeat: defaultHeartbeatInterval,
	}
}

// Start runs the hub loop until Stop is called. Subscribers get a Heartbeat
// message carrying the hub stats on every heartbeat interval.
func (h *WebSocketHub) Start() {
	defer h.logger.Info("websocket hub stopped")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-heartbeat.C:
			if h.ClientCount() > 0 {
				if err := h.Publish(Heartbeat, h.Stats()); err != nil {
					h.logger.Warn("heartbeat failed", zap.Error(err))
				}
			}

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", zap.String("client_id", client.clientID), zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", zap.String("client_id", client.clientID), zap.Int("total", total))

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					h.sent.Add(1)
				default:
					// Slow consumer: drop it rather than block the feed.
					close(client.send)
					delete(h.clients, client)
					h.dropped.Add(1)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends the hub loop and closes every subscriber.
func (h *WebSocketHub) Stop() {
	h.cancel()
}

// HandleWebSocket upgrades the request and subscribes the connection to the feed.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		clientID: uuid.NewString(),
	}

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go client.writePump(h.logger)
	go client.readPump(h)
}

// Publish queues a typed message for every subscriber. A full queue drops the message.
func (h *WebSocketHub) Publish(kind MessageType, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	message, err := json.Marshal(Message{
		ID:        uuid.NewString(),
		Type:      kind,
		Timestamp: time.Now(),
		Data:      payload,
	})
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- message:
	default:
		h.dropped.Add(1)
		h.logger.Warn("broadcast queue is full, dropping message", zap.String("type", string(kind)))
	}
	return nil
}

// PublishPrediction broadcasts p to all subscribers.
func (h *WebSocketHub) PublishPrediction(p *ml.Prediction) error {
	return h.Publish(PredictionMade, p)
}

func (h *WebSocketHub) PublishReload(a *ml.Artifacts) error {
	return h.Publish(ArtifactsReloaded, map[string]string{"version": a.Version})
}

// ClientCount returns the number of connected subscribers.
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WebSocketHub) Stats() HubStats {
	return HubStats{
		ConnectedClients: h.ClientCount(),
		MessagesSent:     h.sent.Load(),
		MessagesDropped:  h.dropped.Load(),
		StartTime:        h.started,
	}
}

func (c *Client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("websocket write failed", zap.String("client_id", c.clientID), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only services control frames; the feed is one-way.
func (c *Client) readPump(h *WebSocketHub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket read failed", zap.String("client_id", c.clientID), zap.Error(err))
			}
			return
		}
	}
}
