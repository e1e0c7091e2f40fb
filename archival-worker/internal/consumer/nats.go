package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/aaronwang/pickup-auction/shared/models"
	"github.com/aaronwang/pickup-auction/shared/stream"
)

const (
	// DurableName survives worker restarts so no event is skipped.
	DurableName = "archival-worker"

	maxDeliver = 5
	ackWait    = 30 * time.Second
	retryDelay = 5 * time.Second
	dbTimeout  = 10 * time.Second
)

// ErrMalformedEvent marks messages that can never be archived. They are
// terminated instead of redelivered.
var ErrMalformedEvent = errors.New("malformed event")

var eventsArchived = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "archival_events_total",
	Help: "Total number of stream events handled, by kind and result",
}, []string{"kind", "result"})

// Archive persists archived events.
type Archive interface {
	ArchiveBid(ctx context.Context, event models.BidEvent) error
	ArchiveOrder(ctx context.Context, order models.Order) error
}

// NATSConsumer consumes bid and order events from JetStream and persists them
type NATSConsumer struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	archive Archive
	logger  *zap.Logger
}

// NewNATSConsumer creates a new NATS consumer
func NewNATSConsumer(natsURL string, archive Archive, logger *zap.Logger) (*NATSConsumer, error) {
	conn, err := nats.Connect(natsURL, nats.Name(DurableName))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NATSConsumer{
		conn:    conn,
		js:      js,
		archive: archive,
		logger:  logger,
	}, nil
}

// Start binds the durable consumer to the event stream and handles messages
// until ctx is cancelled.
func (c *NATSConsumer) Start(ctx context.Context) error {
	s, err := stream.Ensure(ctx, c.js)
	if err != nil {
		return err
	}

	cons, err := s.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:    DurableName,
		AckPolicy:  jetstream.AckExplicitPolicy,
		AckWait:    ackWait,
		MaxDeliver: maxDeliver,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		c.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}
	defer cc.Stop()

	c.logger.Info("consuming archival events",
		zap.String("stream", stream.Name),
		zap.String("durable", DurableName),
		zap.Strings("subjects", stream.Subjects))

	<-ctx.Done()
	return nil
}

// handleMessage archives a single message and acknowledges it. Failures
// are retried after a delay; malformed messages are dropped.
func (c *NATSConsumer) handleMessage(ctx context.Context, msg jetstream.Msg) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	kind := eventKind(msg.Subject())
	err := c.process(dbCtx, msg.Subject(), msg.Data())

	switch {
	case err == nil:
		eventsArchived.WithLabelValues(kind, "archived").Inc()
		if err := msg.Ack(); err != nil {
			c.logger.Warn("failed to ack message", zap.String("subject", msg.Subject()), zap.Error(err))
		}

	case errors.Is(err, ErrMalformedEvent):
		eventsArchived.WithLabelValues(kind, "dropped").Inc()
		c.logger.Error("dropping malformed event", zap.String("subject", msg.Subject()), zap.Error(err))
		msg.Term()

	default:
		eventsArchived.WithLabelValues(kind, "retried").Inc()
		c.logger.Warn("failed to archive event, will retry", zap.String("subject", msg.Subject()), zap.Error(err))
		msg.NakWithDelay(retryDelay)
	}
}

// process routes an event by subject and writes it to the archive
func (c *NATSConsumer) process(ctx context.Context, subject string, data []byte) error {
	switch {
	case stream.IsBidSubject(subject):
		var event models.BidEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if event.BidID == "" || event.ItemID == "" {
			return fmt.Errorf("%w: bid event without ids", ErrMalformedEvent)
		}

		if err := c.archive.ArchiveBid(ctx, event); err != nil {
			return err
		}
		c.logger.Info("archived bid",
			zap.String("event_id", event.EventID),
			zap.String("item_id", event.ItemID),
			zap.String("user_id", event.UserID),
			zap.Float64("amount", event.Amount))
		return nil

	case stream.IsOrderSubject(subject):
		var event models.OrderEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if event.Order.ID == "" {
			return fmt.Errorf("%w: order event without id", ErrMalformedEvent)
		}

		if err := c.archive.ArchiveOrder(ctx, event.Order); err != nil {
			return err
		}
		c.logger.Info("archived order",
			zap.String("event_id", event.EventID),
			zap.String("type", string(event.Type)),
			zap.String("order_id", event.Order.ID))
		return nil

	default:
		return fmt.Errorf("%w: unexpected subject %q", ErrMalformedEvent, subject)
	}
}

func eventKind(subject string) string {
	switch {
	case stream.IsBidSubject(subject):
		return "bid"
	case stream.IsOrderSubject(subject):
		return "order"
	default:
		return "unknown"
	}
}

// Close closes the NATS connection
func (c *NATSConsumer) Close() error {
	c.conn.Close()
	return nil
}
