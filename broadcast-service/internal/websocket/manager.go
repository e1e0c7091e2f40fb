package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // must be less than pongWait

	sendBufferSize = 256
)

var (
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "broadcast_connected_clients",
		Help: "Number of WebSocket clients watching an item",
	})

	messagesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_messages_delivered_total",
		Help: "Total number of bid events queued to WebSocket clients",
	})

	slowClientsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_slow_clients_dropped_total",
		Help: "Total number of clients disconnected because their send buffer was full",
	})
)

// Manager manages all WebSocket connections.
// Registration, removal and fan-out all happen on the Run goroutine;
// the mutex only guards reads from other goroutines.
type Manager struct {
	mu sync.RWMutex
	// itemID -> set of clients watching that item
	subscribers map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	logger *zap.Logger
}

// Client represents a WebSocket client connection
type Client struct {
	ID     string
	ItemID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// BroadcastMessage represents a message to broadcast to all clients watching an item
type BroadcastMessage struct {
	ItemID  string
	Payload []byte
}

// NewManager creates a new WebSocket manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		subscribers: make(map[string]map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *BroadcastMessage, sendBufferSize),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// NewClient creates a client for conn watching itemID
func NewClient(id, itemID string, conn *websocket.Conn) *Client {
	return &Client{
		ID:     id,
		ItemID: itemID,
		Conn:   conn,
		Send:   make(chan []byte, sendBufferSize),
	}
}

// Run starts the manager's main loop until ctx is cancelled, then closes
// every connection. This should run in a goroutine
func (m *Manager) Run(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return

		case client := <-m.register:
			m.registerClient(client)

		case client := <-m.unregister:
			m.unregisterClient(client)

		case message := <-m.broadcast:
			m.broadcastToItem(message.ItemID, message.Payload)
		}
	}
}

// RegisterClient adds a client to the manager. If the manager has stopped
// the connection is closed instead.
func (m *Manager) RegisterClient(client *Client) {
	select {
	case m.register <- client:
	case <-m.done:
		client.Conn.Close()
	}
}

// UnregisterClient removes a client from the manager. Safe to call more than once.
func (m *Manager) UnregisterClient(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.done:
	}
}

// Broadcast sends a message to all clients watching an item
func (m *Manager) Broadcast(itemID string, payload []byte) {
	select {
	case m.broadcast <- &BroadcastMessage{ItemID: itemID, Payload: payload}:
	case <-m.done:
	}
}

// registerClient adds a client to the subscribers map
func (m *Manager) registerClient(client *Client) {
	m.mu.Lock()
	set, ok := m.subscribers[client.ItemID]
	if !ok {
		set = make(map[*Client]struct{})
		m.subscribers[client.ItemID] = set
	}
	set[client] = struct{}{}
	m.mu.Unlock()

	connectedClients.Inc()
	m.logger.Info("client subscribed", zap.String("client_id", client.ID), zap.String("item_id", client.ItemID))

	// Start goroutine to handle writes for this client
	go client.writePump()
}

// unregisterClient removes a client and closes its send channel.
// Clients that are not registered are ignored.
func (m *Manager) unregisterClient(client *Client) {
	m.mu.Lock()
	set, ok := m.subscribers[client.ItemID]
	if ok {
		_, ok = set[client]
	}
	if ok {
		delete(set, client)
		if len(set) == 0 {
			delete(m.subscribers, client.ItemID)
		}
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	// writePump sends the close frame and closes the connection
	close(client.Send)
	connectedClients.Dec()
	m.logger.Info("client unsubscribed", zap.String("client_id", client.ID), zap.String("item_id", client.ItemID))
}

// broadcastToItem sends a message to all clients watching a specific item
func (m *Manager) broadcastToItem(itemID string, payload []byte) {
	m.mu.RLock()
	var slow []*Client
	count := 0
	for client := range m.subscribers[itemID] {
		select {
		case client.Send <- payload:
			count++
		default:
			// One slow client must not block the others
			slow = append(slow, client)
		}
	}
	m.mu.RUnlock()

	for _, client := range slow {
		m.logger.Warn("dropping slow client", zap.String("client_id", client.ID), zap.String("item_id", itemID))
		slowClientsDropped.Inc()
		m.unregisterClient(client)
	}

	if count > 0 {
		messagesDelivered.Add(float64(count))
		m.logger.Debug("broadcast bid event", zap.String("item_id", itemID), zap.Int("clients", count))
	}
}

func (m *Manager) closeAll() {
	m.mu.RLock()
	var all []*Client
	for _, set := range m.subscribers {
		for client := range set {
			all = append(all, client)
		}
	}
	m.mu.RUnlock()

	for _, client := range all {
		m.unregisterClient(client)
	}
}

// GetSubscriberCount returns the number of clients watching an item
func (m *Manager) GetSubscriberCount(itemID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers[itemID])
}

// writePump pumps messages from the Send channel to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			// Send ping to keep connection alive
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads from the connection until it fails, then unregisters the client.
// Watchers only receive, so incoming messages are logged and ignored.
func (c *Client) readPump(m *Manager) {
	defer m.UnregisterClient(c)

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Warn("websocket read error", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}

		var msg map[string]any
		if err := json.Unmarshal(message, &msg); err == nil {
			m.logger.Debug("client message", zap.String("client_id", c.ID), zap.Any("message", msg))
		}
	}
}

// StartReadPump starts the read pump for this client
func (c *Client) StartReadPump(m *Manager) {
	go c.readPump(m)
}
