package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBids struct {
	bid    float64
	bidder string
	err    error
}

func (f fakeBids) HighestBid(context.Context, string) (float64, string, error) {
	return f.bid, f.bidder, f.err
}

func newTestServer(t *testing.T, bids BidReader) (*httptest.Server, *Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	m := NewManager(zap.NewNop())
	go m.Run(ctx)

	srv := httptest.NewServer(NewHandler(m, bids, zap.NewNop()).SetupRoutes())
	t.Cleanup(srv.Close)
	return srv, m
}

func dial(t *testing.T, srv *httptest.Server, itemID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/items/" + itemID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func getStats(t *testing.T, srv *httptest.Server, itemID string) itemStats {
	t.Helper()
	resp, err := http.Get(srv.URL + "/stats/items/" + itemID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats itemStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	return stats
}

func TestWelcomeThenBroadcast(t *testing.T) {
	srv, m := newTestServer(t, nil)

	tv := dial(t, srv, "tv")
	welcome := readJSON(t, tv)
	assert.Equal(t, "connected", welcome["type"])
	assert.Equal(t, "tv", welcome["itemId"])
	assert.NotEmpty(t, welcome["clientId"])

	sofa := dial(t, srv, "sofa")
	readJSON(t, sofa)

	m.Broadcast("tv", []byte(`{"item_id":"tv","amount":150}`))

	msg := readJSON(t, tv)
	assert.Equal(t, 150.0, msg["amount"])

	// Other items receive nothing
	require.NoError(t, sofa.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := sofa.ReadMessage()
	assert.Error(t, err)
}

func TestStatsCountsSubscribers(t *testing.T) {
	srv, m := newTestServer(t, fakeBids{bid: 150, bidder: "user-1"})

	conn := dial(t, srv, "tv")
	readJSON(t, conn)
	readJSON(t, dial(t, srv, "tv"))

	stats := getStats(t, srv, "tv")
	assert.Equal(t, "tv", stats.ItemID)
	assert.Equal(t, 2, stats.Subscribers)
	assert.Equal(t, 150.0, stats.CurrentBid)
	assert.Equal(t, "user-1", stats.HighestBidder)

	conn.Close()
	assert.Eventually(t, func() bool {
		return m.GetSubscriberCount("tv") == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStatsIgnoresBidReaderError(t *testing.T) {
	srv, _ := newTestServer(t, fakeBids{err: errors.New("redis down")})

	stats := getStats(t, srv, "tv")
	assert.Zero(t, stats.Subscribers)
	assert.Zero(t, stats.CurrentBid)
	assert.Empty(t, stats.HighestBidder)
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}
