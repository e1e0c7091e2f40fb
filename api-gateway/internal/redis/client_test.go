package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := NewClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestNewClientFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(context.Background(), addr, "", 0)
	assert.Error(t, err)
}

func TestPublishBidEvent(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	sub := c.client.Subscribe(ctx, "bid_events:item-1")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, c.PublishBidEvent(ctx, "item-1", map[string]any{"amount": 150}))

	select {
	case msg := <-sub.Channel():
		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, 150.0, got["amount"])
		assert.Equal(t, "bid_events:item-1", msg.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRecordHighestBid(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.RecordHighestBid(ctx, "item-1", "user-1", 150.5))
	require.NoError(t, c.RecordHighestBid(ctx, "item-1", "user-2", 160))

	bid, err := mr.Get("item:item-1:current_bid")
	require.NoError(t, err)
	assert.Equal(t, "160", bid)

	bidder, err := mr.Get("item:item-1:highest_bidder")
	require.NoError(t, err)
	assert.Equal(t, "user-2", bidder)
}

func TestPing(t *testing.T) {
	c, mr := newTestClient(t)
	require.NoError(t, c.Ping(context.Background()))

	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}

func TestSwipeStateRoundTrip(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	data, err := c.LoadSwipeState(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, c.SaveSwipeState(ctx, "alice", []byte(`{"swipeCount":3}`)))
	assert.True(t, mr.Exists("swipe-ai-storage:alice"))

	data, err = c.LoadSwipeState(ctx, "alice")
	require.NoError(t, err)
	assert.JSONEq(t, `{"swipeCount":3}`, string(data))
}
