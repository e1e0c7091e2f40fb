package auction

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronwang/pickup-auction/shared/models"
)

var fixedTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func newTestStore(t *testing.T, items []models.Item, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{
		WithClock(func() time.Time { return fixedTime }),
		WithIDGenerator(sequentialIDs("id")),
	}, opts...)
	store := NewStore(items, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	go store.Run(ctx)
	t.Cleanup(cancel)
	return store
}

func testItem(id string, price float64, endsIn time.Duration) models.Item {
	return models.Item{
		ID:            id,
		Title:         "Item " + id,
		Condition:     models.ConditionNew,
		Category:      "Electronics",
		StartingPrice: 1,
		CurrentPrice:  price,
		EndsAt:        fixedTime.Add(endsIn),
		Status:        models.ItemStatusActive,
		Bids: []models.Bid{
			{ID: "seed-" + id, ItemID: id, UserID: "user-2", UserName: "Anna K.", Amount: price, CreatedAt: fixedTime.Add(-5 * time.Minute)},
		},
	}
}

func TestPlaceBidUpdatesPriceAndPrependsBid(t *testing.T) {
	store := newTestStore(t, []models.Item{testItem("item-1", 127, time.Hour)})
	ctx := context.Background()

	res, err := store.PlaceBid(ctx, "item-1", 150)
	require.NoError(t, err)

	assert.Equal(t, 127.0, res.PreviousPrice)
	assert.False(t, res.Extended)
	assert.Equal(t, models.DemoUser.ID, res.Bid.UserID)
	assert.Equal(t, models.DemoUser.Name, res.Bid.UserName)
	assert.Equal(t, fixedTime, res.Bid.CreatedAt)

	item, err := store.Item(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, 150.0, item.CurrentPrice)
	require.Len(t, item.Bids, 2)
	assert.Equal(t, res.Bid, item.Bids[0])
	assert.Equal(t, "seed-item-1", item.Bids[1].ID)
	assert.Equal(t, fixedTime.Add(time.Hour), item.EndsAt, "end time must not move outside the window")
}

func TestPlaceBidAntiSniping(t *testing.T) {
	tests := []struct {
		name         string
		endsIn       time.Duration
		wantEndsIn   time.Duration
		wantExtended bool
	}{
		{"ninety seconds left extends", 90 * time.Second, ExtensionWindow, true},
		{"one second left extends", time.Second, ExtensionWindow, true},
		{"exactly two minutes left is unchanged", ExtensionWindow, ExtensionWindow, false},
		{"plenty of time is unchanged", 10 * time.Minute, 10 * time.Minute, false},
		{"already ended is unchanged", -time.Minute, -time.Minute, false},
		{"ending now is unchanged", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t, []models.Item{testItem("item-1", 100, tt.endsIn)})

			res, err := store.PlaceBid(context.Background(), "item-1", 110)
			require.NoError(t, err)
			assert.Equal(t, tt.wantExtended, res.Extended)
			assert.Equal(t, fixedTime.Add(tt.wantEndsIn), res.Item.EndsAt)
		})
	}
}

func TestPlaceBidExample(t *testing.T) {
	store := newTestStore(t, []models.Item{testItem("item-1", 127, 90*time.Second)})

	res, err := store.PlaceBid(context.Background(), "item-1", 150)
	require.NoError(t, err)

	assert.Equal(t, 150.0, res.Item.CurrentPrice)
	assert.Equal(t, 120*time.Second, res.Item.EndsAt.Sub(fixedTime))
	assert.Equal(t, 150.0, res.Item.Bids[0].Amount)
}

func TestPlaceBidUnknownItemIsNoOp(t *testing.T) {
	store := newTestStore(t, []models.Item{testItem("item-1", 100, time.Hour)})
	ctx := context.Background()

	before, err := store.Snapshot(ctx)
	require.NoError(t, err)

	_, err = store.PlaceBid(ctx, "missing", 500)
	assert.ErrorIs(t, err, ErrItemNotFound)

	after, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPlaceBidDoesNotEnforceMonotonicPrice(t *testing.T) {
	store := newTestStore(t, []models.Item{testItem("item-1", 100, time.Hour)})

	res, err := store.PlaceBid(context.Background(), "item-1", 50)
	require.NoError(t, err)
	assert.Equal(t, 50.0, res.Item.CurrentPrice)
	assert.Equal(t, 50.0, res.Item.Bids[0].Amount)
}

func TestPlaceBidCopyOnWrite(t *testing.T) {
	store := newTestStore(t, []models.Item{testItem("item-1", 100, time.Hour), testItem("item-2", 10, time.Hour)})
	ctx := context.Background()

	before, err := store.Snapshot(ctx)
	require.NoError(t, err)

	_, err = store.PlaceBid(ctx, "item-1", 120)
	require.NoError(t, err)

	assert.Equal(t, 100.0, before.Items[0].CurrentPrice, "earlier snapshot must not change")
	assert.Len(t, before.Items[0].Bids, 1)

	after, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Greater(t, after.Version, before.Version)
	assert.Equal(t, 120.0, after.Items[0].CurrentPrice)
}

func TestPlaceBidAttributedToCurrentUser(t *testing.T) {
	store := newTestStore(t, []models.Item{testItem("item-1", 100, time.Hour)})
	ctx := context.Background()

	_, err := store.SwitchUser(ctx, models.RoleAdmin)
	require.NoError(t, err)

	res, err := store.PlaceBid(ctx, "item-1", 101)
	require.NoError(t, err)
	assert.Equal(t, models.DemoAdmin.ID, res.Bid.UserID)
}

func TestSimulateWin(t *testing.T) {
	store := newTestStore(t, []models.Item{testItem("item-1", 200, time.Hour)})
	ctx := context.Background()

	order, err := store.SimulateWin(ctx, "item-1")
	require.NoError(t, err)

	assert.Equal(t, "item-1", order.ItemID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, 200.0, order.WinningBid)
	assert.InDelta(t, 30.0, order.BuyersPremium, 1e-9)
	assert.Equal(t, ItemFee, order.ItemFee)
	assert.InDelta(t, 200*1.15+2, order.Total, 1e-9)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{8}$`), order.PickupCode)
	assert.Equal(t, fixedTime.Add(5*24*time.Hour), order.PickupDeadline)

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Orders, 1)
	assert.Equal(t, order, snap.Orders[0])
}

func TestSimulateWinUnknownItem(t *testing.T) {
	store := newTestStore(t, nil)
	_, err := store.SimulateWin(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestSimulateWinRegeneratesCollidingPickupCode(t *testing.T) {
	codes := []string{"AAAA1111", "AAAA1111", "BBBB2222"}
	var mu sync.Mutex
	next := func() string {
		mu.Lock()
		defer mu.Unlock()
		c := codes[0]
		codes = codes[1:]
		return c
	}
	store := newTestStore(t, []models.Item{testItem("item-1", 10, time.Hour)}, WithPickupCodes(next))
	ctx := context.Background()

	first, err := store.SimulateWin(ctx, "item-1")
	require.NoError(t, err)
	second, err := store.SimulateWin(ctx, "item-1")
	require.NoError(t, err)

	assert.Equal(t, "AAAA1111", first.PickupCode)
	assert.Equal(t, "BBBB2222", second.PickupCode)
}

func TestMarkAsPaid(t *testing.T) {
	store := newTestStore(t, []models.Item{testItem("item-1", 10, time.Hour)})
	ctx := context.Background()

	order, err := store.SimulateWin(ctx, "item-1")
	require.NoError(t, err)

	paid, err := store.MarkAsPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	again, err := store.MarkAsPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, paid, again)

	_, err = store.MarkAsPaid(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestFindOrderByPickupCode(t *testing.T) {
	store := newTestStore(t, []models.Item{testItem("item-1", 10, time.Hour)},
		WithPickupCodes(func() string { return "ABCD1234" }))
	ctx := context.Background()

	order, err := store.SimulateWin(ctx, "item-1")
	require.NoError(t, err)

	found, err := store.FindOrderByPickupCode(ctx, " abcd1234 ")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	_, err = store.FindOrderByPickupCode(ctx, "NOPE0000")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestWatchlistRoundTrip(t *testing.T) {
	store := newTestStore(t, []models.Item{testItem("item-1", 10, time.Hour)})
	ctx := context.Background()

	watched, err := store.IsInWatchlist(ctx, "item-1")
	require.NoError(t, err)
	assert.False(t, watched)

	require.NoError(t, store.AddToWatchlist(ctx, "item-1"))
	require.NoError(t, store.AddToWatchlist(ctx, "item-1"))
	watched, err = store.IsInWatchlist(ctx, "item-1")
	require.NoError(t, err)
	assert.True(t, watched)

	items, err := store.WatchedItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.NoError(t, store.RemoveFromWatchlist(ctx, "item-1"))
	watched, err = store.IsInWatchlist(ctx, "item-1")
	require.NoError(t, err)
	assert.False(t, watched)

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Watchlist)
}

func TestSwitchUser(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	user, err := store.SwitchUser(ctx, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.DemoAdmin, user)

	user, err = store.SwitchUser(ctx, models.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, models.DemoUser, user)

	user, err = store.SwitchUser(ctx, "someone")
	require.NoError(t, err)
	assert.Equal(t, models.DemoUser, user)
}

func TestToggleItemStatus(t *testing.T) {
	store := newTestStore(t, []models.Item{testItem("item-1", 10, time.Hour)})
	ctx := context.Background()

	item, err := store.ToggleItemStatus(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusPaused, item.Status)

	item, err = store.ToggleItemStatus(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusActive, item.Status)

	_, err = store.ToggleItemStatus(ctx, "missing")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestOperationsRespectContext(t *testing.T) {
	// No Run loop: nothing will ever accept the command.
	store := NewStore(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := store.PlaceBid(ctx, "item-1", 10)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentBidsAreSerialized(t *testing.T) {
	store := newTestStore(t, []models.Item{testItem("item-1", 0, time.Hour)})
	ctx := context.Background()

	const bidders = 50
	var wg sync.WaitGroup
	for i := 1; i <= bidders; i++ {
		wg.Add(1)
		go func(amount float64) {
			defer wg.Done()
			_, err := store.PlaceBid(ctx, "item-1", amount)
			assert.NoError(t, err)
		}(float64(i))
	}
	wg.Wait()

	item, err := store.Item(ctx, "item-1")
	require.NoError(t, err)
	assert.Len(t, item.Bids, bidders+1)
	assert.Equal(t, item.Bids[0].Amount, item.CurrentPrice)
}
