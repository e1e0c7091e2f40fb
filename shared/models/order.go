package models

import "time"

// Order is generated when a user wins an item and tracks checkout and pickup.
type Order struct {
	ID             string      `json:"id"`
	ItemID         string      `json:"item_id"`
	Status         OrderStatus `json:"status"`
	WinningBid     float64     `json:"winning_bid"`
	BuyersPremium  float64     `json:"buyers_premium"`
	ItemFee        float64     `json:"item_fee"`
	Total          float64     `json:"total"`
	PickupCode     string      `json:"pickup_code"`
	PickupDeadline time.Time   `json:"pickup_deadline"`
	CreatedAt      time.Time   `json:"created_at"`
	PaidAt         *time.Time  `json:"paid_at,omitempty"`
}

// OrderStatus is the payment state of an order.
type OrderStatus string

// Order statuses.
const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
)

// OrderEventType distinguishes order lifecycle events.
type OrderEventType string

// Order event types.
const (
	OrderEventCreated OrderEventType = "order.created"
	OrderEventPaid    OrderEventType = "order.paid"
)

// OrderEvent is published to the archival stream whenever an order changes.
type OrderEvent struct {
	EventID   string         `json:"event_id"`
	Type      OrderEventType `json:"type"`
	Order     Order          `json:"order"`
	Timestamp time.Time      `json:"timestamp"`
}
