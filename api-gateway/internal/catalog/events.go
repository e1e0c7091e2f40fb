package catalog

import (
	"slices"

	"github.com/aaronwang/pickup-auction/shared/models"
)

// EventWindow groups pickup sessions by schedule.
type EventWindow string

// Event windows. An empty window matches every session.
const (
	EventsLive     EventWindow = "live"
	EventsUpcoming EventWindow = "upcoming"
	EventsPast     EventWindow = "past"
)

// Contains reports whether a session with status s belongs to w.
func (w EventWindow) Contains(s models.EventStatus) bool {
	switch w {
	case EventsLive:
		return s == models.EventStatusActive || s == models.EventStatusClosing
	case EventsUpcoming:
		return s == models.EventStatusUpcoming
	case EventsPast:
		return s == models.EventStatusClosed
	default:
		return true
	}
}

// FilterEvents returns the sessions in window held at location, ordered by
// start time. An empty location matches all.
func FilterEvents(events []models.AuctionEvent, window EventWindow, location string) []models.AuctionEvent {
	out := make([]models.AuctionEvent, 0, len(events))
	for _, e := range events {
		if !window.Contains(e.Status) {
			continue
		}
		if location != "" && e.Location != location {
			continue
		}
		out = append(out, e)
	}
	slices.SortStableFunc(out, func(a, b models.AuctionEvent) int { return a.StartTime.Compare(b.StartTime) })
	return out
}

// Locations lists the distinct session locations in first-seen order.
func Locations(events []models.AuctionEvent) []string {
	var out []string
	for _, e := range events {
		if !slices.Contains(out, e.Location) {
			out = append(out, e.Location)
		}
	}
	return out
}
