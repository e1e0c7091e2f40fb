package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development (use proper CORS in production)
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// BidReader reads the current highest bid for an item.
type BidReader interface {
	HighestBid(ctx context.Context, itemID string) (float64, string, error)
}

// Handler handles WebSocket connections
type Handler struct {
	manager *Manager
	bids    BidReader
	logger  *zap.Logger
}

// NewHandler creates a new WebSocket handler. bids may be nil, in which case
// stats carry only the subscriber count.
func NewHandler(manager *Manager, bids BidReader, logger *zap.Logger) *Handler {
	return &Handler{
		manager: manager,
		bids:    bids,
		logger:  logger,
	}
}

type welcomeMessage struct {
	Type     string `json:"type"`
	ItemID   string `json:"itemId"`
	ClientID string `json:"clientId"`
}

type itemStats struct {
	ItemID        string  `json:"itemId"`
	Subscribers   int     `json:"subscribers"`
	CurrentBid    float64 `json:"current_bid"`
	HighestBidder string  `json:"highest_bidder,omitempty"`
}

// SetupRoutes configures WebSocket routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// WebSocket endpoint: /ws/items/{id}
	router.HandleFunc("/ws/items/{id}", h.HandleWebSocket).Methods("GET")

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/stats/items/{id}", h.GetStats).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}

// HandleWebSocket upgrades HTTP connection to WebSocket
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]

	// Upgrade writes its own error response on failure
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	client := NewClient(uuid.New().String(), itemID, conn)

	// Queue the welcome message before registering so it is always first
	welcome, err := json.Marshal(welcomeMessage{Type: "connected", ItemID: itemID, ClientID: client.ID})
	if err == nil {
		client.Send <- welcome
	}

	h.manager.RegisterClient(client)
	client.StartReadPump(h.manager)
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "broadcast-service",
	})
}

// GetStats returns statistics for an item
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]

	stats := itemStats{
		ItemID:      itemID,
		Subscribers: h.manager.GetSubscriberCount(itemID),
	}

	if h.bids != nil {
		bid, bidder, err := h.bids.HighestBid(r.Context(), itemID)
		if err != nil {
			h.logger.Warn("failed to read highest bid", zap.String("item_id", itemID), zap.Error(err))
		} else {
			stats.CurrentBid = bid
			stats.HighestBidder = bidder
		}
	}

	respondJSON(w, http.StatusOK, stats)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
