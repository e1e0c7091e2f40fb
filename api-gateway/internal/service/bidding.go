package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aaronwang/pickup-auction/api-gateway/internal/auction"
	"github.com/aaronwang/pickup-auction/api-gateway/internal/metrics"
	"github.com/aaronwang/pickup-auction/shared/models"
	"github.com/aaronwang/pickup-auction/shared/stream"
)

var (
	// ErrBidTooLow is returned when a bid is below the item's minimum bid.
	ErrBidTooLow = errors.New("bid too low")

	// ErrAuctionClosed is returned when bidding on a paused or ended item.
	ErrAuctionClosed = errors.New("auction closed")
)

const (
	DefaultPaymentDelay = 2 * time.Second
	publishTimeout      = 5 * time.Second
)

// LivePublisher fans accepted bids out to live viewers.
type LivePublisher interface {
	PublishBidEvent(ctx context.Context, itemID string, event any) error
	RecordHighestBid(ctx context.Context, itemID, userID string, amount float64) error
}

// ArchivePublisher appends events to the durable archival stream.
type ArchivePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// BiddingService handles the business logic around the auction store:
// bid pre-checks, order checkout and event fan-out.
type BiddingService struct {
	store   *auction.Store
	live    LivePublisher
	archive ArchivePublisher
	logger  *zap.Logger

	paymentDelay time.Duration
	newID        func() string

	bidMu sync.Mutex  // keeps publish order equal to store order
	queue *keyedQueue // publishes run in order per transport and key
	wg    sync.WaitGroup
}

// Option configures a BiddingService.
type Option func(*BiddingService)

// WithLivePublisher enables Redis Pub/Sub fan-out.
func WithLivePublisher(p LivePublisher) Option {
	return func(s *BiddingService) { s.live = p }
}

// WithArchive enables publishing to the archival stream.
func WithArchive(p ArchivePublisher) Option {
	return func(s *BiddingService) { s.archive = p }
}

// WithPaymentDelay sets the simulated payment processing time.
func WithPaymentDelay(d time.Duration) Option {
	return func(s *BiddingService) { s.paymentDelay = d }
}

// NewBiddingService creates a new bidding service
func NewBiddingService(store *auction.Store, logger *zap.Logger, opts ...Option) *BiddingService {
	s := &BiddingService{
		store:        store,
		logger:       logger,
		paymentDelay: DefaultPaymentDelay,
		newID:        func() string { return uuid.New().String() },
		queue:        newKeyedQueue(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceBid handles the bid placement workflow:
// 1. Check the item is open and the amount clears the minimum bid
// 2. Apply the bid to the store
// 3. Publish to Redis Pub/Sub for live viewers
// 4. Publish to JetStream for archival
func (s *BiddingService) PlaceBid(ctx context.Context, itemID string, req models.BidRequest) (models.BidResponse, error) {
	item, err := s.store.Item(ctx, itemID)
	if err != nil {
		return models.BidResponse{}, err
	}

	minimum := auction.MinimumBid(item)
	rejected := models.BidResponse{
		CurrentBid: item.CurrentPrice,
		MinimumBid: minimum,
		YourBid:    req.Amount,
		EndsAt:     item.EndsAt,
	}

	if item.Status != models.ItemStatusActive || item.HasEnded(s.store.Now()) {
		metrics.BidsRejectedTotal.WithLabelValues("closed").Inc()
		rejected.Message = "Bidding is closed for this item"
		return rejected, ErrAuctionClosed
	}
	if req.Amount < minimum {
		metrics.BidsRejectedTotal.WithLabelValues("too_low").Inc()
		rejected.Message = fmt.Sprintf("Bid too low. Minimum bid is $%.2f", minimum)
		return rejected, ErrBidTooLow
	}

	s.bidMu.Lock()
	res, err := s.store.PlaceBid(ctx, itemID, req.Amount)
	if err != nil {
		s.bidMu.Unlock()
		return models.BidResponse{}, err
	}
	event := s.bidEvent(itemID, res)
	s.publishBid(event)
	s.bidMu.Unlock()

	metrics.BidsPlacedTotal.Inc()
	if res.Extended {
		metrics.AuctionExtensionsTotal.Inc()
	}

	s.logger.Info("bid placed",
		zap.String("item", itemID),
		zap.String("user", event.UserID),
		zap.Float64("amount", event.Amount),
		zap.Float64("previous", event.PreviousBid),
		zap.Bool("extended", event.Extended))

	return models.BidResponse{
		Success:    true,
		Message:    "Bid placed successfully!",
		CurrentBid: res.Item.CurrentPrice,
		MinimumBid: auction.MinimumBid(res.Item),
		YourBid:    req.Amount,
		EndsAt:     res.Item.EndsAt,
		Extended:   res.Extended,
		EventID:    event.EventID,
	}, nil
}

func (s *BiddingService) bidEvent(itemID string, res auction.BidResult) models.BidEvent {
	return models.BidEvent{
		EventID:     s.newID(),
		ItemID:      itemID,
		BidID:       res.Bid.ID,
		UserID:      res.Bid.UserID,
		UserName:    res.Bid.UserName,
		Amount:      res.Bid.Amount,
		PreviousBid: res.PreviousPrice,
		EndsAt:      res.Item.EndsAt,
		Extended:    res.Extended,
		Timestamp:   res.Bid.CreatedAt.UTC(),
	}
}

// SimulateWin generates a pending order for the item at its current price.
func (s *BiddingService) SimulateWin(ctx context.Context, itemID string) (models.Order, error) {
	order, err := s.store.SimulateWin(ctx, itemID)
	if err != nil {
		return models.Order{}, err
	}

	metrics.OrdersCreatedTotal.Inc()
	s.logger.Info("order created",
		zap.String("order", order.ID),
		zap.String("item", itemID),
		zap.Float64("total", order.Total))

	s.publishOrder(models.OrderEventCreated, order)
	return order, nil
}

// PayOrder simulates payment processing, then marks the order paid.
// Cancelling ctx during processing leaves the order pending.
func (s *BiddingService) PayOrder(ctx context.Context, orderID string) (models.Order, error) {
	order, err := s.store.Order(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if order.Status == models.OrderStatusPaid {
		return order, nil
	}

	if s.paymentDelay > 0 {
		timer := time.NewTimer(s.paymentDelay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return models.Order{}, ctx.Err()
		case <-timer.C:
		}
	}

	paid, err := s.store.MarkAsPaid(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}

	metrics.OrdersPaidTotal.Inc()
	s.logger.Info("order paid", zap.String("order", paid.ID), zap.Float64("total", paid.Total))

	s.publishOrder(models.OrderEventPaid, paid)
	return paid, nil
}

// Wait blocks until all in-flight publishes have finished.
func (s *BiddingService) Wait() {
	s.wg.Wait()
}

func (s *BiddingService) publishBid(event models.BidEvent) {
	if s.live != nil {
		s.goPublish("redis", event.ItemID, func(ctx context.Context) error {
			if err := s.live.PublishBidEvent(ctx, event.ItemID, event); err != nil {
				return err
			}
			return s.live.RecordHighestBid(ctx, event.ItemID, event.UserID, event.Amount)
		})
	}
	if s.archive != nil {
		subject := stream.BidSubject(event.ItemID)
		s.goPublish("jetstream", subject, func(ctx context.Context) error {
			return s.publishToArchive(ctx, subject, event)
		})
	}
}

func (s *BiddingService) publishOrder(typ models.OrderEventType, order models.Order) {
	if s.archive == nil {
		return
	}
	event := models.OrderEvent{
		EventID:   s.newID(),
		Type:      typ,
		Order:     order,
		Timestamp: s.store.Now().UTC(),
	}
	subject := stream.OrderSubject(order.ID)
	s.goPublish("jetstream", subject, func(ctx context.Context) error {
		return s.publishToArchive(ctx, subject, event)
	})
}

func (s *BiddingService) publishToArchive(ctx context.Context, subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return s.archive.Publish(ctx, subject, data)
}

// goPublish runs fn in the background after earlier publishes for the same
// transport and key. The write path never waits on it and failures are only
// logged.
func (s *BiddingService) goPublish(transport, key string, fn func(context.Context) error) {
	wait, done := s.queue.enter(transport + ":" + key)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer done()
		<-wait

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			metrics.EventsPublishedTotal.WithLabelValues(transport, "error").Inc()
			s.logger.Warn("failed to publish event", zap.String("transport", transport), zap.Error(err))
			return
		}
		metrics.EventsPublishedTotal.WithLabelValues(transport, "ok").Inc()
	}()
}
