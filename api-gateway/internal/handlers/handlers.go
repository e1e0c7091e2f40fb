package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aaronwang/pickup-auction/api-gateway/internal/auction"
	"github.com/aaronwang/pickup-auction/api-gateway/internal/service"
	"github.com/aaronwang/pickup-auction/api-gateway/internal/swipe"
	"github.com/aaronwang/pickup-auction/shared/models"
)

// Pinger is a dependency the health check verifies.
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

// Handler contains HTTP request handlers
type Handler struct {
	store   *auction.Store
	bidding *service.BiddingService
	decks   *swipe.Service
	events  []models.AuctionEvent
	redis   Pinger
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler. redis may be nil when event
// publishing is disabled.
func NewHandler(store *auction.Store, bidding *service.BiddingService, decks *swipe.Service, events []models.AuctionEvent, redis Pinger, logger *zap.Logger) *Handler {
	return &Handler{
		store:   store,
		bidding: bidding,
		decks:   decks,
		events:  events,
		redis:   redis,
		logger:  logger,
	}
}

// SetupRoutes configures all HTTP routes. CORS wraps the router so
// preflight requests are answered before route matching.
func (h *Handler) SetupRoutes() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/items", h.ListItems).Methods("GET")
	api.HandleFunc("/items/{id}", h.GetItem).Methods("GET")
	api.HandleFunc("/items/{id}/bid", h.PlaceBid).Methods("POST")
	api.HandleFunc("/items/{id}/win", h.SimulateWin).Methods("POST")

	api.HandleFunc("/orders", h.ListOrders).Methods("GET")
	api.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/pay", h.PayOrder).Methods("POST")

	api.HandleFunc("/watchlist", h.GetWatchlist).Methods("GET")
	api.HandleFunc("/watchlist/{id}", h.IsWatched).Methods("GET")
	api.HandleFunc("/watchlist/{id}", h.AddToWatchlist).Methods("PUT")
	api.HandleFunc("/watchlist/{id}", h.RemoveFromWatchlist).Methods("DELETE")

	api.HandleFunc("/user", h.GetUser).Methods("GET")
	api.HandleFunc("/user/switch", h.SwitchUser).Methods("POST")
	api.HandleFunc("/my-bids", h.MyBids).Methods("GET")
	api.HandleFunc("/events", h.ListEvents).Methods("GET")

	admin := api.NewRoute().Subrouter()
	admin.Use(h.requireAdmin)
	admin.HandleFunc("/items/{id}/status", h.ToggleItemStatus).Methods("POST")
	admin.HandleFunc("/pickup/{code}", h.FindByPickupCode).Methods("GET")
	admin.HandleFunc("/admin/monitor", h.Monitor).Methods("GET")
	admin.HandleFunc("/admin/reports", h.Reports).Methods("GET")

	deck := api.PathPrefix("/swipe/{profile}").Subrouter()
	deck.HandleFunc("", h.GetDeck).Methods("GET")
	deck.HandleFunc("/swipe", h.Swipe).Methods("POST")
	deck.HandleFunc("/undo", h.Undo).Methods("POST")
	deck.HandleFunc("/reset", h.ResetDeck).Methods("POST")
	deck.HandleFunc("/matches", h.Matches).Methods("GET")
	deck.HandleFunc("/matches/seen", h.MarkMatchesSeen).Methods("POST")
	deck.HandleFunc("/match/dismiss", h.DismissMatch).Methods("POST")
	deck.HandleFunc("/preferences", h.SetPreferences).Methods("PUT")
	deck.HandleFunc("/membership", h.SetMembership).Methods("PUT")
	deck.HandleFunc("/onboarding", h.CompleteOnboarding).Methods("PUT")

	// Middleware
	router.Use(h.loggingMiddleware)

	return corsMiddleware(router)
}

// HealthCheck returns service health status, including Redis when event
// publishing is enabled
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status":  "healthy",
		"service": "api-gateway",
		"time":    time.Now().UTC().Format(time.RFC3339),
	}

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := h.redis.Ping(ctx); err != nil {
			h.logger.Warn("redis health check failed", zap.Error(err))
			body["status"] = "unhealthy"
			body["redis"] = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		body["redis"] = "ok"
	}

	respondJSON(w, http.StatusOK, body)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondFailure maps domain errors to status codes. Anything unexpected is
// logged and reported as a 500.
func (h *Handler) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auction.ErrItemNotFound),
		errors.Is(err, auction.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, swipe.ErrInvalidDirection),
		errors.Is(err, swipe.ErrEmptyProfile),
		errors.Is(err, swipe.ErrInvalidMembership):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, swipe.ErrNoMoreProfiles),
		errors.Is(err, swipe.ErrNothingToUndo),
		errors.Is(err, swipe.ErrNoSuperLikes):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("uri", r.URL.RequestURI()),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}
