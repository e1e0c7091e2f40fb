package models

import "time"

// Bid represents a single bid on an item. Bids are immutable once placed.
type Bid struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// BidRequest represents the incoming bid request from API
type BidRequest struct {
	Amount float64 `json:"amount"`
}

// BidResponse represents the API response after placing a bid
type BidResponse struct {
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	CurrentBid float64   `json:"current_bid"`
	MinimumBid float64   `json:"minimum_bid"`
	YourBid    float64   `json:"your_bid"`
	EndsAt     time.Time `json:"ends_at,omitempty"`
	Extended   bool      `json:"extended,omitempty"`
	EventID    string    `json:"event_id,omitempty"`
}

// BidEvent is published when a bid is accepted.
// This is sent to:
// 1. Redis Pub/Sub (for real-time WebSocket broadcast)
// 2. NATS JetStream (for archival to PostgreSQL)
type BidEvent struct {
	EventID     string    `json:"event_id"`
	ItemID      string    `json:"item_id"`
	BidID       string    `json:"bid_id"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	Amount      float64   `json:"amount"`
	PreviousBid float64   `json:"previous_bid"`
	EndsAt      time.Time `json:"ends_at"`
	Extended    bool      `json:"extended"`
	Timestamp   time.Time `json:"timestamp"`
}
