package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/aaronwang/pickup-auction/api-gateway/internal/auction"
	"github.com/aaronwang/pickup-auction/api-gateway/internal/service"
	"github.com/aaronwang/pickup-auction/shared/models"
)

// itemView is an item with the values the detail page derives from it.
type itemView struct {
	models.Item
	MinimumBid float64           `json:"minimum_bid"`
	Countdown  auction.Countdown `json:"countdown"`
	Watched    bool              `json:"watched"`
}

// ListItems searches the catalog.
// Query params: q, category (repeatable), condition (repeatable), status,
// min_price, max_price, sort.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := auction.Filter{
		Query:      q.Get("q"),
		Categories: q["category"],
		Status:     models.ItemStatus(q.Get("status")),
		SortBy:     auction.SortOrder(q.Get("sort")),
	}
	for _, c := range q["condition"] {
		f.Conditions = append(f.Conditions, models.Condition(c))
	}

	var err error
	if f.MinPrice, err = parsePrice(q.Get("min_price")); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid min_price")
		return
	}
	if f.MaxPrice, err = parsePrice(q.Get("max_price")); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid max_price")
		return
	}

	items, err := h.store.Search(r.Context(), f)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func parsePrice(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, errors.New("invalid price")
	}
	return v, nil
}

// GetItem returns an item with its countdown and minimum bid
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]

	item, err := h.store.Item(r.Context(), itemID)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	watched, err := h.store.IsInWatchlist(r.Context(), itemID)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, itemView{
		Item:       item,
		MinimumBid: auction.MinimumBid(item),
		Countdown:  auction.TimeLeft(item.EndsAt, h.store.Now()),
		Watched:    watched,
	})
}

// PlaceBid handles bid placement requests
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]

	var bidReq models.BidRequest
	if err := decodeJSON(r, &bidReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if bidReq.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "Bid amount must be positive")
		return
	}

	response, err := h.bidding.PlaceBid(r.Context(), itemID, bidReq)
	switch {
	case errors.Is(err, service.ErrBidTooLow):
		respondJSON(w, http.StatusUnprocessableEntity, response)
	case errors.Is(err, service.ErrAuctionClosed):
		respondJSON(w, http.StatusConflict, response)
	case err != nil:
		h.respondFailure(w, r, err)
	default:
		respondJSON(w, http.StatusCreated, response)
	}
}

// SimulateWin generates an order for the item, as if the current user won it.
func (h *Handler) SimulateWin(w http.ResponseWriter, r *http.Request) {
	order, err := h.bidding.SimulateWin(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// ToggleItemStatus pauses or resumes an item.
func (h *Handler) ToggleItemStatus(w http.ResponseWriter, r *http.Request) {
	item, err := h.store.ToggleItemStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}
