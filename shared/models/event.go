package models

import "time"

// AuctionEvent is an in-person pickup session grouping several lots.
type AuctionEvent struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Location  string      `json:"location"`
	Address   string      `json:"address"`
	StartTime time.Time   `json:"start_time"`
	Status    EventStatus `json:"status"`
	ItemIDs   []string    `json:"item_ids"`
}

// EventStatus is the schedule state of an auction session.
type EventStatus string

// Event statuses.
const (
	EventStatusUpcoming EventStatus = "upcoming"
	EventStatusActive   EventStatus = "active"
	EventStatusClosing  EventStatus = "closing"
	EventStatusClosed   EventStatus = "closed"
)
