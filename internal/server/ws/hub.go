// Package ws bridges SignalBus channels to browser WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/tradedesk/internal/cache/memory"
	"github.com/alanyoungcy/tradedesk/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	sendBufferSize = 256
)

// busPatterns are the bus subscriptions the hub forwards from.
var busPatterns = []string{
	domain.SessionChannelPrefix + "*",
	domain.MarketChannelPrefix + "*",
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool // channel names or market patterns
	mu   sync.RWMutex
}

// subscribeMsg is the JSON frame a client sends to change subscriptions:
// {"action":"subscribe","channels":["ch:market:BTC/USDT"]}.
type subscribeMsg struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

// Config carries runtime metadata reported to clients on connect.
type Config struct {
	Mode      string
	StartedAt time.Time
	// Sessions reports the number of open sessions; optional.
	Sessions func() int
}

// Hub fans bus messages out to WebSocket clients subscribed to the
// message's channel.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan domain.Message
	register   chan *client
	unregister chan *client
	bus        domain.SignalBus
	mu         sync.RWMutex
	logger     *slog.Logger
	cfg        Config
}

// NewHub creates a Hub reading from bus.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	if strings.TrimSpace(cfg.Mode) == "" {
		cfg.Mode = "unknown"
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now().UTC()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan domain.Message, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		bus:        bus,
		logger:     logger.With(slog.String("component", "ws_hub")),
		cfg:        cfg,
	}
}

// Run subscribes to the bus and serves client registration and broadcast
// until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	for _, pattern := range busPatterns {
		msgCh, err := h.bus.Subscribe(ctx, pattern)
		if err != nil {
			h.logger.Error("subscribe failed",
				slog.String("pattern", pattern),
				slog.String("error", err.Error()),
			)
			continue
		}
		go h.forward(ctx, pattern, msgCh)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("client connected", slog.Int("total_clients", h.clientCount()))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("client disconnected", slog.Int("total_clients", h.clientCount()))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.isSubscribed(msg.Channel) {
					continue
				}
				select {
				case c.send <- msg.Payload:
				default:
					h.logger.Warn("dropping message for slow client", slog.String("channel", msg.Channel))
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) forward(ctx context.Context, pattern string, msgCh <-chan domain.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgCh:
			if !ok {
				h.logger.Warn("bus subscription closed", slog.String("pattern", pattern))
				return
			}
			select {
			case h.broadcast <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HandleWS upgrades the request and registers the client.
// GET /ws?session={id}&pair=BTC/USDT
//
// The session and pair query parameters pre-subscribe the client to that
// session's channel and that pair's market channel.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool),
	}
	q := r.URL.Query()
	for _, id := range q["session"] {
		c.subscribe(domain.SessionChannel(id))
	}
	for _, p := range q["pair"] {
		c.subscribe(domain.MarketChannel(domain.NormalizeSymbol(p)))
	}

	h.register <- c
	c.sendStatus()

	go c.writePump()
	go c.readPump()
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var sub subscribeMsg
		if err := json.Unmarshal(message, &sub); err != nil {
			continue
		}
		switch sub.Action {
		case "subscribe":
			for _, ch := range sub.Channels {
				c.subscribe(ch)
			}
		case "unsubscribe":
			c.mu.Lock()
			for _, ch := range sub.Channels {
				delete(c.subs, ch)
			}
			c.mu.Unlock()
		}
	}
}

// subscribe adds a channel. Session channels must be named exactly; market
// channels may use glob patterns.
func (c *client) subscribe(channel string) {
	switch {
	case strings.HasPrefix(channel, domain.SessionChannelPrefix):
		id := strings.TrimPrefix(channel, domain.SessionChannelPrefix)
		if id == "" || strings.ContainsAny(id, "*?[") {
			return
		}
	case strings.HasPrefix(channel, domain.MarketChannelPrefix):
	default:
		return
	}
	c.mu.Lock()
	c.subs[channel] = true
	c.mu.Unlock()
}

func (c *client) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.subs[channel] {
		return true
	}
	for sub := range c.subs {
		if memory.Match(sub, channel) {
			return true
		}
	}
	return false
}

// sendStatus pushes a hub_status frame so clients can mark the connection
// healthy before any event flows.
func (c *client) sendStatus() {
	data := map[string]any{
		"mode":           c.hub.cfg.Mode,
		"uptime_seconds": max(int64(time.Since(c.hub.cfg.StartedAt).Seconds()), 0),
	}
	if c.hub.cfg.Sessions != nil {
		data["sessions"] = c.hub.cfg.Sessions()
	}
	msg, err := json.Marshal(map[string]any{"type": "hub_status", "data": data})
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
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
