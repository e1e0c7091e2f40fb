package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aaronwang/pickup-auction/shared/keys"
)

// Client wraps the Redis client with gateway-specific operations
type Client struct {
	client *redis.Client
}

// NewClient creates a new Redis client and checks the connection
func NewClient(ctx context.Context, addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: rdb}, nil
}

// PublishBidEvent publishes a bid event to Redis Pub/Sub.
// The broadcast service forwards it to WebSocket clients watching the item.
func (c *Client) PublishBidEvent(ctx context.Context, itemID string, event any) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return c.client.Publish(ctx, keys.BidChannel(itemID), eventJSON).Err()
}

// RecordHighestBid mirrors an item's current bid so other services can read
// it without calling the gateway.
func (c *Client) RecordHighestBid(ctx context.Context, itemID, userID string, amount float64) error {
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, keys.CurrentBidKey(itemID), amount, 0)
	pipe.Set(ctx, keys.HighestBidderKey(itemID), userID, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record highest bid: %w", err)
	}
	return nil
}

// LoadSwipeState returns the stored deck state for profile, or nil when
// nothing has been saved yet.
func (c *Client) LoadSwipeState(ctx context.Context, profile string) ([]byte, error) {
	data, err := c.client.Get(ctx, keys.SwipeState(profile)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load swipe state: %w", err)
	}
	return data, nil
}

// SaveSwipeState stores the deck state for profile.
func (c *Client) SaveSwipeState(ctx context.Context, profile string, data []byte) error {
	if err := c.client.Set(ctx, keys.SwipeState(profile), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save swipe state: %w", err)
	}
	return nil
}

// Ping checks the connection; the gateway health check uses it.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}
