package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aaronwang/pickup-auction/api-gateway/internal/auction"
	"github.com/aaronwang/pickup-auction/shared/models"
)

var fixedTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeLive struct {
	mu      sync.Mutex
	events  []models.BidEvent
	highest map[string]float64
	err     error

	delays map[float64]time.Duration // per bid amount, set before use
}

func (f *fakeLive) PublishBidEvent(_ context.Context, _ string, event any) error {
	time.Sleep(f.delays[event.(models.BidEvent).Amount])

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event.(models.BidEvent))
	return nil
}

func (f *fakeLive) RecordHighestBid(_ context.Context, itemID, _ string, amount float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.highest == nil {
		f.highest = make(map[string]float64)
	}
	f.highest[itemID] = amount
	return nil
}

type published struct {
	subject string
	data    []byte
}

type fakeArchive struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakeArchive) Publish(_ context.Context, subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{subject: subject, data: data})
	return nil
}

func (f *fakeArchive) subjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.msgs))
	for i, m := range f.msgs {
		out[i] = m.subject
	}
	return out
}

func newTestStore(t *testing.T, items ...models.Item) *auction.Store {
	t.Helper()
	store := auction.NewStore(items, auction.WithClock(func() time.Time { return fixedTime }))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go store.Run(ctx)
	return store
}

func testItem(id string, price float64, endsIn time.Duration) models.Item {
	return models.Item{
		ID:            id,
		Title:         "Item " + id,
		StartingPrice: 10,
		CurrentPrice:  price,
		EndsAt:        fixedTime.Add(endsIn),
		Status:        models.ItemStatusActive,
		Bids: []models.Bid{{
			ID: id + "-seed", ItemID: id, UserID: "user-2", UserName: "Bidder", Amount: price,
			CreatedAt: fixedTime.Add(-time.Hour),
		}},
	}
}

func newTestService(t *testing.T, store *auction.Store, opts ...Option) (*BiddingService, *fakeLive, *fakeArchive) {
	live := &fakeLive{}
	archive := &fakeArchive{}
	base := []Option{WithLivePublisher(live), WithArchive(archive), WithPaymentDelay(0)}
	svc := NewBiddingService(store, zap.NewNop(), append(base, opts...)...)
	return svc, live, archive
}

func TestPlaceBidAcceptedAndPublished(t *testing.T) {
	store := newTestStore(t, testItem("tv", 127, 90*time.Second))
	svc, live, archive := newTestService(t, store)

	resp, err := svc.PlaceBid(context.Background(), "tv", models.BidRequest{Amount: 150})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 150.0, resp.CurrentBid)
	assert.Equal(t, 151.0, resp.MinimumBid)
	assert.True(t, resp.Extended)
	assert.Equal(t, fixedTime.Add(auction.ExtensionWindow), resp.EndsAt)
	assert.NotEmpty(t, resp.EventID)

	svc.Wait()

	require.Len(t, live.events, 1)
	ev := live.events[0]
	assert.Equal(t, resp.EventID, ev.EventID)
	assert.Equal(t, "tv", ev.ItemID)
	assert.Equal(t, models.DemoUser.ID, ev.UserID)
	assert.Equal(t, 127.0, ev.PreviousBid)
	assert.Equal(t, 150.0, live.highest["tv"])

	require.Equal(t, []string{"bid.events.tv"}, archive.subjects())
	var archived models.BidEvent
	require.NoError(t, json.Unmarshal(archive.msgs[0].data, &archived))
	assert.Equal(t, ev.BidID, archived.BidID)
}

func TestLivePublishesKeepBidOrder(t *testing.T) {
	store := newTestStore(t, testItem("tv", 127, time.Hour), testItem("sofa", 40, time.Hour))
	svc, live, archive := newTestService(t, store)
	live.delays = map[float64]time.Duration{150: 50 * time.Millisecond}
	ctx := context.Background()

	for _, amount := range []float64{150, 160} {
		_, err := svc.PlaceBid(ctx, "tv", models.BidRequest{Amount: amount})
		require.NoError(t, err)
	}
	_, err := svc.PlaceBid(ctx, "sofa", models.BidRequest{Amount: 45})
	require.NoError(t, err)
	svc.Wait()

	item, err := store.Item(ctx, "tv")
	require.NoError(t, err)
	assert.Equal(t, 160.0, item.CurrentPrice)
	assert.Equal(t, 160.0, live.highest["tv"])
	assert.Equal(t, 45.0, live.highest["sofa"])

	var tvAmounts []float64
	for _, ev := range live.events {
		if ev.ItemID == "tv" {
			tvAmounts = append(tvAmounts, ev.Amount)
		}
	}
	assert.Equal(t, []float64{150, 160}, tvAmounts)

	var archived []float64
	for _, m := range archive.msgs {
		if m.subject != "bid.events.tv" {
			continue
		}
		var ev models.BidEvent
		require.NoError(t, json.Unmarshal(m.data, &ev))
		archived = append(archived, ev.Amount)
	}
	assert.Equal(t, []float64{150, 160}, archived)
}

func TestPlaceBidRejections(t *testing.T) {
	paused := testItem("paused", 50, time.Hour)
	paused.Status = models.ItemStatusPaused

	store := newTestStore(t,
		testItem("tv", 127, time.Hour),
		testItem("ended", 80, -time.Minute),
		paused,
	)
	svc, live, archive := newTestService(t, store)
	ctx := context.Background()

	tests := []struct {
		name    string
		itemID  string
		amount  float64
		wantErr error
	}{
		{"below minimum", "tv", 127.5, ErrBidTooLow},
		{"equal to current price", "tv", 127, ErrBidTooLow},
		{"ended item", "ended", 500, ErrAuctionClosed},
		{"paused item", "paused", 500, ErrAuctionClosed},
		{"unknown item", "nope", 500, auction.ErrItemNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.PlaceBid(ctx, tt.itemID, models.BidRequest{Amount: tt.amount})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, resp.Success)
		})
	}

	resp, err := svc.PlaceBid(ctx, "tv", models.BidRequest{Amount: 100})
	require.ErrorIs(t, err, ErrBidTooLow)
	assert.Equal(t, 128.0, resp.MinimumBid)
	assert.Equal(t, 127.0, resp.CurrentBid)

	item, err := store.Item(ctx, "tv")
	require.NoError(t, err)
	assert.Equal(t, 127.0, item.CurrentPrice)
	assert.Len(t, item.Bids, 1)

	svc.Wait()
	assert.Empty(t, live.events)
	assert.Empty(t, archive.subjects())
}

func TestPlaceBidAtMinimumIsAccepted(t *testing.T) {
	store := newTestStore(t, testItem("tv", 127, time.Hour))
	svc, _, _ := newTestService(t, store)

	resp, err := svc.PlaceBid(context.Background(), "tv", models.BidRequest{Amount: 128})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.False(t, resp.Extended)
	svc.Wait()
}

func TestPublishFailureDoesNotFailBid(t *testing.T) {
	store := newTestStore(t, testItem("tv", 127, time.Hour))
	svc, live, _ := newTestService(t, store)
	live.err = errors.New("redis down")

	resp, err := svc.PlaceBid(context.Background(), "tv", models.BidRequest{Amount: 200})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	svc.Wait()
}

func TestServiceWithoutPublishers(t *testing.T) {
	store := newTestStore(t, testItem("tv", 127, time.Hour))
	svc := NewBiddingService(store, zap.NewNop(), WithPaymentDelay(0))
	ctx := context.Background()

	_, err := svc.PlaceBid(ctx, "tv", models.BidRequest{Amount: 200})
	require.NoError(t, err)
	order, err := svc.SimulateWin(ctx, "tv")
	require.NoError(t, err)
	_, err = svc.PayOrder(ctx, order.ID)
	require.NoError(t, err)
	svc.Wait()
}

func TestCheckoutFlow(t *testing.T) {
	store := newTestStore(t, testItem("mixer", 100, time.Hour))
	svc, _, archive := newTestService(t, store)
	ctx := context.Background()

	order, err := svc.SimulateWin(ctx, "mixer")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.InDelta(t, 117.0, order.Total, 1e-9)

	paid, err := svc.PayOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	again, err := svc.PayOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, paid.PaidAt, again.PaidAt)

	svc.Wait()
	subject := "order.events." + order.ID
	assert.Equal(t, []string{subject, subject}, archive.subjects())

	var created models.OrderEvent
	require.NoError(t, json.Unmarshal(archive.msgs[0].data, &created))
	assert.Equal(t, models.OrderEventCreated, created.Type)
	assert.Equal(t, order.PickupCode, created.Order.PickupCode)

	_, err = svc.SimulateWin(ctx, "nope")
	assert.ErrorIs(t, err, auction.ErrItemNotFound)
	_, err = svc.PayOrder(ctx, "nope")
	assert.ErrorIs(t, err, auction.ErrOrderNotFound)
}

func TestPayOrderCancelledDuringProcessing(t *testing.T) {
	store := newTestStore(t, testItem("mixer", 100, time.Hour))
	svc, _, _ := newTestService(t, store, WithPaymentDelay(time.Hour))

	order, err := svc.SimulateWin(context.Background(), "mixer")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = svc.PayOrder(ctx, order.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	current, err := store.Order(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, current.Status)
	svc.Wait()
}
