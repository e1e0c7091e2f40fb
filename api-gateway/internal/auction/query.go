package auction

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/aaronwang/pickup-auction/shared/models"
)

// SortOrder selects how catalog results are ordered.
type SortOrder string

// Sort orders.
const (
	SortEndingSoon SortOrder = "ending-soon"
	SortPriceLow   SortOrder = "price-low"
	SortPriceHigh  SortOrder = "price-high"
	SortNewest     SortOrder = "newest"
)

// Filter narrows the catalog. Zero values match everything.
type Filter struct {
	Query      string
	Categories []string
	Conditions []models.Condition
	Status     models.ItemStatus
	MinPrice   float64
	MaxPrice   float64 // 0 means no upper bound
	SortBy     SortOrder
}

// Search returns the items matching f in the requested order.
func Search(items []models.Item, f Filter) []models.Item {
	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]models.Item, 0, len(items))
	for _, item := range items {
		if query != "" &&
			!strings.Contains(strings.ToLower(item.Title), query) &&
			!strings.Contains(strings.ToLower(item.Description), query) {
			continue
		}
		if len(f.Categories) > 0 && !slices.Contains(f.Categories, item.Category) {
			continue
		}
		if len(f.Conditions) > 0 && !slices.Contains(f.Conditions, item.Condition) {
			continue
		}
		if f.Status != "" && item.Status != f.Status {
			continue
		}
		if item.CurrentPrice < f.MinPrice {
			continue
		}
		if f.MaxPrice > 0 && item.CurrentPrice > f.MaxPrice {
			continue
		}
		out = append(out, item)
	}

	switch f.SortBy {
	case SortPriceLow:
		slices.SortStableFunc(out, func(a, b models.Item) int { return cmpFloat(a.CurrentPrice, b.CurrentPrice) })
	case SortPriceHigh:
		slices.SortStableFunc(out, func(a, b models.Item) int { return cmpFloat(b.CurrentPrice, a.CurrentPrice) })
	case SortNewest:
		// Lots run for a fixed period, so the latest end time was listed last.
		slices.SortStableFunc(out, func(a, b models.Item) int { return b.EndsAt.Compare(a.EndsAt) })
	case SortEndingSoon:
		slices.SortStableFunc(out, func(a, b models.Item) int { return a.EndsAt.Compare(b.EndsAt) })
	}
	return out
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// MinimumBid is the lowest amount a new bid on item may carry.
func MinimumBid(item models.Item) float64 {
	return item.CurrentPrice + 1
}

// BidStatus is a bidder's standing on an item.
type BidStatus string

// Bid standings.
const (
	BidStatusWinning BidStatus = "winning"
	BidStatusOutbid  BidStatus = "outbid"
	BidStatusWon     BidStatus = "won"
	BidStatusLost    BidStatus = "lost"
)

// MyBid is an item the user has bid on, with their latest bid.
type MyBid struct {
	Item      models.Item `json:"item"`
	MyBid     models.Bid  `json:"my_bid"`
	IsWinning bool        `json:"is_winning"`
	IsEnded   bool        `json:"is_ended"`
	Status    BidStatus   `json:"status"`
}

// BidsByUser lists the items userID has bid on.
func BidsByUser(items []models.Item, userID string, now time.Time) []MyBid {
	out := make([]MyBid, 0)
	for _, item := range items {
		idx := slices.IndexFunc(item.Bids, func(b models.Bid) bool { return b.UserID == userID })
		if idx < 0 {
			continue
		}

		winning := item.Bids[0].UserID == userID
		ended := item.HasEnded(now)

		var status BidStatus
		switch {
		case ended && winning:
			status = BidStatusWon
		case ended:
			status = BidStatusLost
		case winning:
			status = BidStatusWinning
		default:
			status = BidStatusOutbid
		}

		out = append(out, MyBid{
			Item:      item,
			MyBid:     item.Bids[idx],
			IsWinning: winning,
			IsEnded:   ended,
			Status:    status,
		})
	}
	return out
}

// RecentBid is a bid annotated with its item title for the live feed.
type RecentBid struct {
	models.Bid
	ItemTitle string `json:"item_title"`
}

// MonitorReport feeds the admin live monitor.
type MonitorReport struct {
	ActiveAuctions    int           `json:"active_auctions"`
	ClosingWithinHour int           `json:"closing_within_hour"`
	TotalBids         int           `json:"total_bids"`
	UniqueBidders     int           `json:"unique_bidders"`
	EndingSoonest     []models.Item `json:"ending_soonest"`
	RecentBids        []RecentBid   `json:"recent_bids"`
}

const recentBidsLimit = 5

// Monitor summarises live activity across the catalog.
func Monitor(items []models.Item, now time.Time) MonitorReport {
	active := Search(items, Filter{Status: models.ItemStatusActive, SortBy: SortEndingSoon})

	report := MonitorReport{
		ActiveAuctions: len(active),
		EndingSoonest:  active,
	}

	bidders := make(map[string]struct{})
	for _, item := range active {
		if left := item.EndsAt.Sub(now); left < time.Hour {
			report.ClosingWithinHour++
		}
		report.TotalBids += len(item.Bids)
		for _, b := range item.Bids {
			bidders[b.UserID] = struct{}{}
		}
	}
	report.UniqueBidders = len(bidders)

	var recent []RecentBid
	for _, item := range items {
		for _, b := range item.Bids {
			recent = append(recent, RecentBid{Bid: b, ItemTitle: item.Title})
		}
	}
	slices.SortStableFunc(recent, func(a, b RecentBid) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if len(recent) > recentBidsLimit {
		recent = recent[:recentBidsLimit]
	}
	report.RecentBids = recent

	return report
}

// SalesReport feeds the admin reports page.
type SalesReport struct {
	TotalSales  float64 `json:"total_sales"`
	Orders      int     `json:"orders"`
	PaidOrders  int     `json:"paid_orders"`
	PickupRate  float64 `json:"pickup_rate"` // percent of orders paid
	ActiveItems int     `json:"active_items"`
}

// Report totals sales over all generated orders.
func Report(items []models.Item, orders []models.Order) SalesReport {
	r := SalesReport{Orders: len(orders)}
	for _, o := range orders {
		r.TotalSales += o.Total
		if o.Status == models.OrderStatusPaid {
			r.PaidOrders++
		}
	}
	if r.Orders > 0 {
		r.PickupRate = float64(r.PaidOrders) / float64(r.Orders) * 100
	}
	for _, item := range items {
		if item.Status == models.ItemStatusActive {
			r.ActiveItems++
		}
	}
	return r
}

// WatchedItems resolves watchlist ids to items, in watchlist order.
func WatchedItems(items []models.Item, watchlist []string) []models.Item {
	out := make([]models.Item, 0, len(watchlist))
	for _, id := range watchlist {
		if idx := indexOfItem(items, id); idx >= 0 {
			out = append(out, items[idx])
		}
	}
	return out
}

// Search runs a catalog search against the current state.
func (s *Store) Search(ctx context.Context, f Filter) ([]models.Item, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return Search(snap.Items, f), nil
}

// MyBids lists the current user's bids.
func (s *Store) MyBids(ctx context.Context) ([]MyBid, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return BidsByUser(snap.Items, snap.User.ID, s.now()), nil
}

// Monitor builds the live monitor report.
func (s *Store) Monitor(ctx context.Context) (MonitorReport, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return MonitorReport{}, err
	}
	return Monitor(snap.Items, s.now()), nil
}

// Report builds the sales report.
func (s *Store) Report(ctx context.Context) (SalesReport, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return SalesReport{}, err
	}
	return Report(snap.Items, snap.Orders), nil
}

// WatchedItems returns the items on the watchlist.
func (s *Store) WatchedItems(ctx context.Context) ([]models.Item, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return WatchedItems(snap.Items, snap.Watchlist), nil
}
