// Package stream defines the JetStream stream the gateway publishes to and
// the archival worker consumes from.
package stream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	Name = "AUCTION_EVENTS"

	BidSubjectPrefix   = "bid.events."
	OrderSubjectPrefix = "order.events."
)

// Subjects lists every subject bound to the stream.
var Subjects = []string{BidSubjectPrefix + "*", OrderSubjectPrefix + "*"}

// BidSubject is the subject for bid events on itemID.
func BidSubject(itemID string) string { return BidSubjectPrefix + itemID }

// OrderSubject is the subject for lifecycle events of orderID.
func OrderSubject(orderID string) string { return OrderSubjectPrefix + orderID }

// IsBidSubject reports whether subject carries a bid event.
func IsBidSubject(subject string) bool { return strings.HasPrefix(subject, BidSubjectPrefix) }

// IsOrderSubject reports whether subject carries an order event.
func IsOrderSubject(subject string) bool { return strings.HasPrefix(subject, OrderSubjectPrefix) }

// Ensure creates the stream, or updates it to the current config.
func Ensure(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	s, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        Name,
		Description: "Bid and order events for archival",
		Subjects:    Subjects,
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy, // each message consumed once
		MaxAge:      24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}
	return s, nil
}
