package broadcast

import (
	"MarketLedger/internal/event"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// NATSPublisher publishes committed notifications to JetStream for
// downstream consumers (indexers, archival, analytics).
// Subjects follow the pattern: market.events.{type}
type NATSPublisher struct {
	js  jetstream.JetStream
	log zerolog.Logger
}

func NewNATSPublisher(js jetstream.JetStream, log zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{js: js, log: log}
}

func (p *NATSPublisher) Publish(ctx context.Context, n event.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	subject := fmt.Sprintf("market.events.%s", n.Type)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s seq %d: %w", subject, n.Sequence, err)
	}
	return nil
}

// EnsureStream creates the outbound events stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "MARKET_EVENTS",
		Subjects:  []string{"market.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create events stream: %w", err)
	}
	return nil
}
