package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// ListOrders returns every generated order.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap.Orders)
}

// GetOrder returns a single order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.store.Order(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// PayOrder runs the simulated checkout. The request blocks for the
// configured payment delay.
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.bidding.PayOrder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// FindByPickupCode looks up the order presented at the pickup desk.
func (h *Handler) FindByPickupCode(w http.ResponseWriter, r *http.Request) {
	order, err := h.store.FindOrderByPickupCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
