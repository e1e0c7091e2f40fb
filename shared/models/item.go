package models

import "time"

// Item represents a local-pickup auction lot.
type Item struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Condition     Condition  `json:"condition"`
	Category      string     `json:"category"`
	Images        []string   `json:"images"`
	StartingPrice float64    `json:"starting_price"`
	CurrentPrice  float64    `json:"current_price"`
	EndsAt        time.Time  `json:"ends_at"`
	Status        ItemStatus `json:"status"`
	Bids          []Bid      `json:"bids"` // most recent first
}

// Condition describes the physical state of an item.
type Condition string

// Item conditions.
const (
	ConditionNew     Condition = "new"
	ConditionOpenBox Condition = "open_box"
	ConditionUsed    Condition = "used"
)

// ItemStatus is the lifecycle state of an auction lot.
type ItemStatus string

// Item statuses.
const (
	ItemStatusActive ItemStatus = "active"
	ItemStatusEnded  ItemStatus = "ended"
	ItemStatusSold   ItemStatus = "sold"
	ItemStatusPaused ItemStatus = "paused"
)

// HighestBid returns the head of the bid list, if any.
func (i *Item) HighestBid() (Bid, bool) {
	if len(i.Bids) == 0 {
		return Bid{}, false
	}
	return i.Bids[0], true
}

// HasEnded reports whether the auction clock has run out at now.
func (i *Item) HasEnded(now time.Time) bool {
	return !i.EndsAt.After(now)
}
