// Package auction holds the marketplace state: the lot catalog, the current
// user, generated orders and the watchlist.
//
// All state is owned by the goroutine running Store.Run. Every operation is
// sent to it as a message and applied in order, so mutations never race.
// Collections are copy-on-write: a mutation replaces the slice it touches,
// and snapshots handed to callers are never modified afterwards.
package auction

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/aaronwang/pickup-auction/shared/models"
)

var (
	// ErrItemNotFound is returned for operations on an unknown item id.
	ErrItemNotFound = errors.New("item not found")

	// ErrOrderNotFound is returned for operations on an unknown order id.
	ErrOrderNotFound = errors.New("order not found")
)

type state struct {
	items     []models.Item
	orders    []models.Order
	watchlist []string
	user      models.User
	version   uint64
}

// Snapshot is a consistent read-only view of the store. Its slices are
// shared with the store and must not be modified.
type Snapshot struct {
	Items     []models.Item  `json:"items"`
	Orders    []models.Order `json:"orders"`
	Watchlist []string       `json:"watchlist"`
	User      models.User    `json:"user"`
	Version   uint64         `json:"version"`
}

// BidResult describes an accepted bid.
type BidResult struct {
	Bid           models.Bid  `json:"bid"`
	Item          models.Item `json:"item"`
	PreviousPrice float64     `json:"previous_price"`
	Extended      bool        `json:"extended"`
}

// Store is the auction state container.
type Store struct {
	cmds chan func(*state)

	now        func() time.Time
	newID      func() string
	pickupCode func() string

	st state
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides the bid and order id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithPickupCodes overrides the pickup code generator.
func WithPickupCodes(fn func() string) Option {
	return func(s *Store) { s.pickupCode = fn }
}

// NewStore creates a store seeded with items and the demo user.
// Run must be started before any operation is called.
func NewStore(items []models.Item, opts ...Option) *Store {
	s := &Store{
		cmds:       make(chan func(*state)),
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
		pickupCode: RandomPickupCode,
		st: state{
			items:     slices.Clone(items),
			orders:    []models.Order{},
			watchlist: []string{},
			user:      models.DemoUser,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run applies operations until ctx is cancelled.
// This should run in a goroutine
func (s *Store) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.cmds:
			cmd(&s.st)
		}
	}
}

// do hands fn to the Run loop and waits until it has been applied.
func (s *Store) do(ctx context.Context, fn func(*state)) error {
	done := make(chan struct{})
	cmd := func(st *state) {
		fn(st)
		close(done)
	}

	select {
	case s.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}

	// fn never blocks once accepted.
	<-done
	return nil
}

// PlaceBid records a bid of amount on itemID by the current user.
//
// The amount is not validated: callers must reject bids below the minimum
// before calling. If less than ExtensionWindow remains on the item's clock,
// the end time is pushed to now+ExtensionWindow. An unknown item leaves the
// state untouched and returns ErrItemNotFound.
func (s *Store) PlaceBid(ctx context.Context, itemID string, amount float64) (BidResult, error) {
	var res BidResult
	var opErr error

	err := s.do(ctx, func(st *state) {
		idx := indexOfItem(st.items, itemID)
		if idx < 0 {
			opErr = ErrItemNotFound
			return
		}

		now := s.now()
		bid := models.Bid{
			ID:        s.newID(),
			ItemID:    itemID,
			UserID:    st.user.ID,
			UserName:  st.user.Name,
			Amount:    amount,
			CreatedAt: now,
		}

		prev := st.items[idx]
		updated, extended := applyBid(prev, bid, now)
		st.items = replaceAt(st.items, idx, updated)
		st.version++

		res = BidResult{
			Bid:           bid,
			Item:          updated,
			PreviousPrice: prev.CurrentPrice,
			Extended:      extended,
		}
	})
	if err != nil {
		return BidResult{}, err
	}
	return res, opErr
}

// SimulateWin generates a pending order for itemID at its current price.
func (s *Store) SimulateWin(ctx context.Context, itemID string) (models.Order, error) {
	var order models.Order
	var opErr error

	err := s.do(ctx, func(st *state) {
		idx := indexOfItem(st.items, itemID)
		if idx < 0 {
			opErr = ErrItemNotFound
			return
		}

		order = buildOrder(s.newID(), st.items[idx], s.uniquePickupCode(st.orders), s.now())
		orders := make([]models.Order, 0, len(st.orders)+1)
		orders = append(orders, st.orders...)
		st.orders = append(orders, order)
		st.version++
	})
	if err != nil {
		return models.Order{}, err
	}
	return order, opErr
}

// uniquePickupCode draws codes until one is not used by any order.
// After maxPickupCodeAttempts the last draw is returned as is.
func (s *Store) uniquePickupCode(orders []models.Order) string {
	code := s.pickupCode()
	for attempt := 1; attempt < maxPickupCodeAttempts; attempt++ {
		taken := slices.ContainsFunc(orders, func(o models.Order) bool { return o.PickupCode == code })
		if !taken {
			break
		}
		code = s.pickupCode()
	}
	return code
}

// MarkAsPaid moves an order to paid. Paying a paid order is a no-op.
func (s *Store) MarkAsPaid(ctx context.Context, orderID string) (models.Order, error) {
	var order models.Order
	var opErr error

	err := s.do(ctx, func(st *state) {
		idx := indexOfOrder(st.orders, orderID)
		if idx < 0 {
			opErr = ErrOrderNotFound
			return
		}

		order = st.orders[idx]
		if order.Status == models.OrderStatusPaid {
			return
		}

		paidAt := s.now()
		order.Status = models.OrderStatusPaid
		order.PaidAt = &paidAt
		st.orders = replaceAt(st.orders, idx, order)
		st.version++
	})
	if err != nil {
		return models.Order{}, err
	}
	return order, opErr
}

// AddToWatchlist adds itemID to the watchlist. Adding twice is a no-op.
func (s *Store) AddToWatchlist(ctx context.Context, itemID string) error {
	return s.do(ctx, func(st *state) {
		if slices.Contains(st.watchlist, itemID) {
			return
		}
		wl := make([]string, 0, len(st.watchlist)+1)
		wl = append(wl, st.watchlist...)
		st.watchlist = append(wl, itemID)
		st.version++
	})
}

// RemoveFromWatchlist drops itemID from the watchlist.
func (s *Store) RemoveFromWatchlist(ctx context.Context, itemID string) error {
	return s.do(ctx, func(st *state) {
		if !slices.Contains(st.watchlist, itemID) {
			return
		}
		st.watchlist = slices.DeleteFunc(slices.Clone(st.watchlist), func(id string) bool { return id == itemID })
		st.version++
	})
}

// IsInWatchlist reports whether itemID is watched.
func (s *Store) IsInWatchlist(ctx context.Context, itemID string) (bool, error) {
	var found bool
	err := s.do(ctx, func(st *state) {
		found = slices.Contains(st.watchlist, itemID)
	})
	return found, err
}

// SwitchUser replaces the current user with the fixed identity for role.
// Any role other than admin selects the demo user.
func (s *Store) SwitchUser(ctx context.Context, role models.Role) (models.User, error) {
	var user models.User
	err := s.do(ctx, func(st *state) {
		st.user = userForRole(role)
		st.version++
		user = st.user
	})
	return user, err
}

// ToggleItemStatus pauses an item, or resumes it when already paused.
func (s *Store) ToggleItemStatus(ctx context.Context, itemID string) (models.Item, error) {
	var item models.Item
	var opErr error

	err := s.do(ctx, func(st *state) {
		idx := indexOfItem(st.items, itemID)
		if idx < 0 {
			opErr = ErrItemNotFound
			return
		}
		item = st.items[idx]
		item.Status = toggledStatus(item.Status)
		st.items = replaceAt(st.items, idx, item)
		st.version++
	})
	if err != nil {
		return models.Item{}, err
	}
	return item, opErr
}

// Snapshot returns the current state.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func(st *state) {
		snap = Snapshot{
			Items:     st.items,
			Orders:    st.orders,
			Watchlist: st.watchlist,
			User:      st.user,
			Version:   st.version,
		}
	})
	return snap, err
}

// Item returns a single item.
func (s *Store) Item(ctx context.Context, itemID string) (models.Item, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return models.Item{}, err
	}
	idx := indexOfItem(snap.Items, itemID)
	if idx < 0 {
		return models.Item{}, ErrItemNotFound
	}
	return snap.Items[idx], nil
}

// Order returns a single order.
func (s *Store) Order(ctx context.Context, orderID string) (models.Order, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return models.Order{}, err
	}
	idx := indexOfOrder(snap.Orders, orderID)
	if idx < 0 {
		return models.Order{}, ErrOrderNotFound
	}
	return snap.Orders[idx], nil
}

// FindOrderByPickupCode looks up the order presented at the pickup desk.
func (s *Store) FindOrderByPickupCode(ctx context.Context, code string) (models.Order, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return models.Order{}, err
	}
	code = NormalizePickupCode(code)
	for _, o := range snap.Orders {
		if o.PickupCode == code {
			return o, nil
		}
	}
	return models.Order{}, ErrOrderNotFound
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}
