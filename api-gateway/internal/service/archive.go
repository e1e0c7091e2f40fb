package service

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/aaronwang/pickup-auction/shared/stream"
)

// JetStreamPublisher publishes archival events with at-least-once delivery.
type JetStreamPublisher struct {
	js     jetstream.JetStream
	logger *zap.Logger
}

// NewJetStreamPublisher creates a JetStream context on conn and makes sure
// the archival stream exists.
func NewJetStreamPublisher(ctx context.Context, conn *nats.Conn, logger *zap.Logger) (*JetStreamPublisher, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err := stream.Ensure(ctx, js); err != nil {
		return nil, err
	}
	logger.Info("jetstream stream ready", zap.String("stream", stream.Name))

	return &JetStreamPublisher{js: js, logger: logger}, nil
}

// Publish waits for the server to acknowledge the message, so it is
// persisted before returning.
func (p *JetStreamPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	ack, err := p.js.Publish(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish to JetStream: %w", err)
	}

	p.logger.Debug("published to jetstream", zap.String("subject", subject), zap.Uint64("seq", ack.Sequence))
	return nil
}
