package broadcast

import (
	"MarketLedger/internal/event"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis Pub/Sub channel layout. Per-item channels let UI clients follow
// one listing; the firehose channel carries everything, including gate
// and withdrawal notifications that have no item context.
const (
	itemChannelPrefix = "market_events:"
	firehoseChannel   = "market_events:all"
)

func itemChannel(itemID int64) string {
	return fmt.Sprintf("%s%d", itemChannelPrefix, itemID)
}

// RedisPublisher fans committed notifications out over Redis Pub/Sub.
// Running websocket hubs on any replica subscribe and forward to their
// connected clients.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(addr, password string, db int) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisPublisher{client: rdb}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, n event.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if n.ItemID != 0 {
		if err := p.client.Publish(ctx, itemChannel(n.ItemID), data).Err(); err != nil {
			return fmt.Errorf("publish item channel: %w", err)
		}
	}
	return p.client.Publish(ctx, firehoseChannel, data).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// RedisSubscriber feeds a websocket hub from the Redis Pub/Sub channels.
type RedisSubscriber struct {
	client *redis.Client
	hub    *Hub
	log    zerolog.Logger
}

func NewRedisSubscriber(addr, password string, db int, hub *Hub, log zerolog.Logger) (*RedisSubscriber, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisSubscriber{client: rdb, hub: hub, log: log}, nil
}

// Run subscribes to all market event channels and forwards messages to
// the hub until the context is cancelled.
func (s *RedisSubscriber) Run(ctx context.Context) error {
	pubsub := s.client.PSubscribe(ctx, itemChannelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg.Channel == firehoseChannel {
				s.hub.BroadcastAll([]byte(msg.Payload))
				continue
			}
			var itemID int64
			if _, err := fmt.Sscanf(msg.Channel, itemChannelPrefix+"%d", &itemID); err != nil {
				s.log.Warn().Str("channel", msg.Channel).Msg("unparseable pubsub channel")
				continue
			}
			s.hub.BroadcastItem(itemID, []byte(msg.Payload))
		}
	}
}

func (s *RedisSubscriber) Close() error {
	return s.client.Close()
}
