package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"classattend/internal/metrics"
)

// RedisHub publishes events on one Redis pub/sub channel per session so
// every API replica can serve live streams.
type RedisHub struct {
	client *redis.Client
	prefix string
}

// NewRedisHub builds a hub using channels named prefix:<session id>.
func NewRedisHub(client *redis.Client, prefix string) *RedisHub {
	if prefix == "" {
		prefix = "attendance:session"
	}
	return &RedisHub{client: client, prefix: prefix}
}

var _ Hub = (*RedisHub)(nil)

func (h *RedisHub) channel(sessionID int64) string {
	return fmt.Sprintf("%s:%d", h.prefix, sessionID)
}

// Publish sends evt as JSON.
func (h *RedisHub) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := h.client.Publish(ctx, h.channel(evt.SessionID), body).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe streams decoded events until ctx is done. Undecodable messages are skipped.
func (h *RedisHub) Subscribe(ctx context.Context, sessionID int64) (<-chan Event, error) {
	sub := h.client.Subscribe(ctx, h.channel(sessionID))
	// wait for the subscription confirmation so no event published after
	// Subscribe returns is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	metrics.Subscribers.Inc()

	out := make(chan Event)
	go func() {
		defer close(out)
		defer metrics.Subscribers.Dec()
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed event")
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
