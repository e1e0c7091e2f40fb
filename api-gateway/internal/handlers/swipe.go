package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/aaronwang/pickup-auction/api-gateway/internal/swipe"
	"github.com/aaronwang/pickup-auction/shared/models"
)

type swipeRequest struct {
	Direction models.SwipeDirection `json:"direction"`
}

type membershipRequest struct {
	Membership models.Membership `json:"membership"`
}

type onboardingRequest struct {
	Complete bool `json:"complete"`
}

func profileID(r *http.Request) string {
	return mux.Vars(r)["profile"]
}

// GetDeck returns the profile's deck state and top card.
func (h *Handler) GetDeck(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r)(h.decks.View(r.Context(), profileID(r)))
}

// Swipe applies a gesture to the top card.
func (h *Handler) Swipe(w http.ResponseWriter, r *http.Request) {
	var req swipeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.decks.Swipe(r.Context(), profileID(r), req.Direction)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Undo reverts the last swipe and returns the restored card.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	c, err := h.decks.Undo(r.Context(), profileID(r))
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// ResetDeck reshuffles the deck.
func (h *Handler) ResetDeck(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r)(h.decks.Reset(r.Context(), profileID(r)))
}

// Matches lists matched characters.
func (h *Handler) Matches(w http.ResponseWriter, r *http.Request) {
	matched, err := h.decks.Matches(r.Context(), profileID(r))
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, matched)
}

// MarkMatchesSeen clears the unseen-match badge.
func (h *Handler) MarkMatchesSeen(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r)(h.decks.MarkMatchesSeen(r.Context(), profileID(r)))
}

// DismissMatch closes the match overlay.
func (h *Handler) DismissMatch(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r)(h.decks.DismissMatch(r.Context(), profileID(r)))
}

// SetPreferences replaces the matching preferences.
func (h *Handler) SetPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs models.Preferences
	if err := decodeJSON(r, &prefs); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.respondView(w, r)(h.decks.SetPreferences(r.Context(), profileID(r), prefs))
}

// SetMembership switches the premium tier.
func (h *Handler) SetMembership(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.respondView(w, r)(h.decks.SetMembership(r.Context(), profileID(r), req.Membership))
}

// CompleteOnboarding records the onboarding flag.
func (h *Handler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	var req onboardingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.respondView(w, r)(h.decks.CompleteOnboarding(r.Context(), profileID(r), req.Complete))
}

// respondView writes a deck view or the error that replaced it.
func (h *Handler) respondView(w http.ResponseWriter, r *http.Request) func(swipe.View, error) {
	return func(v swipe.View, err error) {
		if err != nil {
			h.respondFailure(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, v)
	}
}
