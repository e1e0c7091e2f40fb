package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aaronwang/pickup-auction/archival-worker/internal/database"
	"github.com/aaronwang/pickup-auction/shared/models"
)

const (
	defaultBidLimit = 50
	maxBidLimit     = 500
)

// Archive reads archived bids and orders.
type Archive interface {
	Ping(ctx context.Context) error
	GetBidHistory(ctx context.Context, itemID string, limit int) ([]models.Bid, error)
	GetOrder(ctx context.Context, orderID string) (models.Order, error)
}

// Handler serves the worker's health, metrics and archive lookups
type Handler struct {
	archive Archive
	logger  *zap.Logger
}

// NewHandler creates a new archive handler
func NewHandler(archive Archive, logger *zap.Logger) *Handler {
	return &Handler{archive: archive, logger: logger}
}

// SetupRoutes configures the worker routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	archive := router.PathPrefix("/archive").Subrouter()
	archive.HandleFunc("/items/{id}/bids", h.BidHistory).Methods("GET")
	archive.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET")

	return router
}

// HealthCheck reports whether PostgreSQL is reachable
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.archive.Ping(r.Context()); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  "database unavailable",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "archival-worker",
	})
}

// BidHistory lists an item's archived bids, newest first
func (h *Handler) BidHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultBidLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxBidLimit {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	bids, err := h.archive.GetBidHistory(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		h.logger.Error("failed to read bid history", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, bids)
}

// GetOrder returns an archived order
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.archive.GetOrder(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, database.ErrOrderNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to read order", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
