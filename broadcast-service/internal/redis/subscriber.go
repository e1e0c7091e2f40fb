package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aaronwang/pickup-auction/shared/keys"
	"github.com/aaronwang/pickup-auction/shared/models"
)

// Subscriber wraps Redis Pub/Sub functionality
type Subscriber struct {
	client *redis.Client
	pubsub *redis.PubSub
	logger *zap.Logger
}

// Message is a bid event received on an item channel
type Message struct {
	ItemID  string
	Payload []byte // raw JSON, forwarded as is
	Event   models.BidEvent
}

// NewSubscriber creates a new Redis Pub/Sub subscriber and checks the connection
func NewSubscriber(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*Subscriber, error) {
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

	return &Subscriber{client: rdb, logger: logger}, nil
}

// SubscribeToPattern subscribes to every channel matching pattern,
// e.g. keys.BidChannelPattern for all items
func (s *Subscriber) SubscribeToPattern(ctx context.Context, pattern string) error {
	return s.subscribe(ctx, s.client.PSubscribe(ctx, pattern))
}

func (s *Subscriber) subscribe(ctx context.Context, pubsub *redis.PubSub) error {
	// Wait for the subscription confirmation so no message is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	if s.pubsub != nil {
		s.pubsub.Close()
	}
	s.pubsub = pubsub
	return nil
}

// Listen forwards parsed messages to out until ctx is cancelled or the
// subscription is closed. Unparseable payloads are logged and skipped.
// This is a blocking operation - run in a goroutine
func (s *Subscriber) Listen(ctx context.Context, out chan<- Message) error {
	if s.pubsub == nil {
		return errors.New("not subscribed to any channel")
	}

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription closed")
			}

			m, err := parseMessage(msg.Channel, msg.Payload)
			if err != nil {
				s.logger.Warn("dropping bid event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}

			select {
			case out <- m:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func parseMessage(channel, payload string) (Message, error) {
	itemID := keys.ItemIDFromChannel(channel)
	if itemID == "" {
		return Message{}, fmt.Errorf("unexpected channel %q", channel)
	}

	var event models.BidEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return Message{}, fmt.Errorf("failed to parse message: %w", err)
	}

	return Message{ItemID: itemID, Payload: []byte(payload), Event: event}, nil
}

// HighestBid reads the current bid the gateway mirrors for an item.
// Missing keys yield zero values.
func (s *Subscriber) HighestBid(ctx context.Context, itemID string) (float64, string, error) {
	pipe := s.client.Pipeline()
	bidCmd := pipe.Get(ctx, keys.CurrentBidKey(itemID))
	bidderCmd := pipe.Get(ctx, keys.HighestBidderKey(itemID))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, "", fmt.Errorf("failed to get item bid: %w", err)
	}

	bid, _ := bidCmd.Float64()
	bidder, _ := bidderCmd.Result()
	return bid, bidder, nil
}

// Close closes the subscriber
func (s *Subscriber) Close() error {
	if s.pubsub != nil {
		s.pubsub.Close()
	}
	return s.client.Close()
}
