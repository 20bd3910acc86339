package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/chative-genui/server/internal/agent/ui"
	errx "github.com/chative-genui/server/internal/core/error"
)

// RedisUIPublisher fans UI events out on a per-conversation pub/sub channel so a client
// can render them while the graph is still running.
type RedisUIPublisher struct {
	rdb redis.Cmdable
}

func NewRedisUIPublisher(rdb redis.Cmdable) *RedisUIPublisher {
	return &RedisUIPublisher{rdb: rdb}
}

// Channel returns the pub/sub channel name of a conversation.
func Channel(conversationID string) string {
	return fmt.Sprintf("conversation:%s:ui", conversationID)
}

// For returns the sink of one conversation.
func (p *RedisUIPublisher) For(conversationID string) ui.Sink {
	return &conversationSink{rdb: p.rdb, channel: Channel(conversationID)}
}

type conversationSink struct {
	rdb     redis.Cmdable
	channel string
}

func (s *conversationSink) Publish(ctx context.Context, ev ui.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal ui event: %w", err)
	}
	if err := s.rdb.Publish(ctx, s.channel, b).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}
