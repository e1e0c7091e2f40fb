package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/aaronwang/pickup-auction/api-gateway/internal/catalog"
	"github.com/aaronwang/pickup-auction/shared/models"
)

// GetWatchlist returns the watched items in the order they were added.
func (h *Handler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.WatchedItems(r.Context())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// IsWatched reports whether an item is on the watchlist.
func (h *Handler) IsWatched(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	watched, err := h.store.IsInWatchlist(r.Context(), itemID)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"item_id": itemID, "watched": watched})
}

// AddToWatchlist watches an existing item.
func (h *Handler) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	if _, err := h.store.Item(r.Context(), itemID); err != nil {
		h.respondFailure(w, r, err)
		return
	}
	if err := h.store.AddToWatchlist(r.Context(), itemID); err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"item_id": itemID, "watched": true})
}

// RemoveFromWatchlist stops watching an item.
func (h *Handler) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	if err := h.store.RemoveFromWatchlist(r.Context(), itemID); err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"item_id": itemID, "watched": false})
}

// GetUser returns the current user.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap.User)
}

type switchUserRequest struct {
	Role models.Role `json:"role"`
}

// SwitchUser swaps the current user for the demo identity of a role.
func (h *Handler) SwitchUser(w http.ResponseWriter, r *http.Request) {
	var req switchUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleUser {
		respondError(w, http.StatusBadRequest, "Role must be admin or user")
		return
	}

	user, err := h.store.SwitchUser(r.Context(), req.Role)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// MyBids lists the current user's bids with their standing.
func (h *Handler) MyBids(w http.ResponseWriter, r *http.Request) {
	bids, err := h.store.MyBids(r.Context())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bids)
}

// ListEvents returns pickup sessions.
// Query params: when (live, upcoming, past), location.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	window := catalog.EventWindow(q.Get("when"))
	switch window {
	case "", catalog.EventsLive, catalog.EventsUpcoming, catalog.EventsPast:
	default:
		respondError(w, http.StatusBadRequest, "when must be live, upcoming or past")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"events":    catalog.FilterEvents(h.events, window, q.Get("location")),
		"locations": catalog.Locations(h.events),
	})
}

// Monitor returns the live auction monitor.
func (h *Handler) Monitor(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.Monitor(r.Context())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Reports returns the sales report.
func (h *Handler) Reports(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.Report(r.Context())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
