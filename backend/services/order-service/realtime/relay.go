package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultRelayChannel = "order-service:rooms"

type relayMessage struct {
	Room  string          `json:"room"`
	Frame json.RawMessage `json:"frame"`
}

// RedisRelay lets every order-service instance reach connections held by
// the others: broadcasts are published to one channel and each instance
// delivers what it receives to its local Hub.
type RedisRelay struct {
	client  *redis.Client
	hub     *Hub
	channel string
	logger  *zap.Logger
}

func NewRedisRelay(client *redis.Client, hub *Hub, channel string, logger *zap.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{client: client, hub: hub, channel: channel, logger: logger}
}

func (r *RedisRelay) Broadcast(ctx context.Context, room, event string, payload interface{}) error {
	frame, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}
	msg, err := json.Marshal(relayMessage{Room: room, Frame: frame})
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		return fmt.Errorf("relay publish to %s: %w", room, err)
	}
	return nil
}

// Run subscribes and feeds the local hub until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("relay subscribe: %w", err)
	}
	r.logger.Info("realtime relay subscribed", zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			r.dispatch(ctx, m.Payload)
		}
	}
}

func (r *RedisRelay) dispatch(ctx context.Context, payload string) {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil || msg.Room == "" {
		r.logger.Warn("discarding malformed relay message", zap.Error(err))
		return
	}
	if err := r.hub.deliver(ctx, msg.Room, msg.Frame); err != nil {
		r.logger.Warn("relay delivery interrupted", zap.String("room", msg.Room), zap.Error(err))
	}
}
