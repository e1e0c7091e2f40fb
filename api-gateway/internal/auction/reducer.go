package auction

import (
	"slices"
	"time"

	"github.com/aaronwang/pickup-auction/shared/models"
)

const (
	// ExtensionWindow is the anti-sniping window: a bid landing with less
	// than this much time left pushes the end time to now+ExtensionWindow.
	ExtensionWindow = 2 * time.Minute

	// BuyersPremiumRate is charged on top of the winning bid.
	BuyersPremiumRate = 0.15

	// ItemFee is the flat handling fee per won lot.
	ItemFee = 2.0

	// PickupWindow is how long a winner has to collect the item.
	PickupWindow = 5 * 24 * time.Hour
)

// applyBid returns a copy of item with bid at the head of its bid list and
// the price and end time updated. The input item is not modified.
// The amount is trusted: validation belongs to the caller.
func applyBid(item models.Item, bid models.Bid, now time.Time) (models.Item, bool) {
	extended := false
	timeLeft := item.EndsAt.Sub(now)
	if timeLeft > 0 && timeLeft < ExtensionWindow {
		item.EndsAt = now.Add(ExtensionWindow)
		extended = true
	}

	bids := make([]models.Bid, 0, len(item.Bids)+1)
	bids = append(bids, bid)
	bids = append(bids, item.Bids...)

	item.CurrentPrice = bid.Amount
	item.Bids = bids
	return item, extended
}

// buildOrder prices a won item. Total is winning bid + premium + fee.
func buildOrder(id string, item models.Item, pickupCode string, now time.Time) models.Order {
	winningBid := item.CurrentPrice
	premium := winningBid * BuyersPremiumRate
	return models.Order{
		ID:             id,
		ItemID:         item.ID,
		Status:         models.OrderStatusPending,
		WinningBid:     winningBid,
		BuyersPremium:  premium,
		ItemFee:        ItemFee,
		Total:          winningBid + premium + ItemFee,
		PickupCode:     pickupCode,
		PickupDeadline: now.Add(PickupWindow),
		CreatedAt:      now,
	}
}

// toggledStatus flips paused lots back to active and pauses everything else.
func toggledStatus(status models.ItemStatus) models.ItemStatus {
	if status == models.ItemStatusPaused {
		return models.ItemStatusActive
	}
	return models.ItemStatusPaused
}

// replaceAt returns a new slice equal to s with s[i] replaced by v.
func replaceAt[T any](s []T, i int, v T) []T {
	out := slices.Clone(s)
	out[i] = v
	return out
}

func indexOfItem(items []models.Item, id string) int {
	return slices.IndexFunc(items, func(it models.Item) bool { return it.ID == id })
}

func indexOfOrder(orders []models.Order, id string) int {
	return slices.IndexFunc(orders, func(o models.Order) bool { return o.ID == id })
}

func userForRole(role models.Role) models.User {
	if role == models.RoleAdmin {
		return models.DemoAdmin
	}
	return models.DemoUser
}
