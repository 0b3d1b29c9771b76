package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mharkness/go-chatrelay/internal/types"
)

const resubscribeWait = time.Second

// RedisBus fans out envelopes over a single redis pub/sub channel. Every
// relay instance subscribes to the same channel, including the publisher:
// self-delivery is the only path by which an envelope reaches local clients.
type RedisBus struct {
	client  *redis.Client
	channel string
	log     *log.Logger
}

func NewRedisBus(addr, password, channel string, logger *log.Logger) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisBus{
		client:  client,
		channel: channel,
		log:     logger,
	}, nil
}

func (b *RedisBus) Publish(ctx context.Context, env types.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %q: %w", b.channel, err)
	}

	return nil
}

// Subscribe blocks until ctx is cancelled, invoking handler for each
// envelope received on the channel. If the pub/sub connection drops, it
// resubscribes after a short wait; envelopes published in the gap are lost,
// which is acceptable for live broadcast.
func (b *RedisBus) Subscribe(ctx context.Context, handler Handler) error {
	for {
		b.consume(ctx, handler)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(resubscribeWait):
			b.log.Printf("resubscribing to channel %q", b.channel)
		}
	}
}

// consume runs one subscription until the pub/sub channel closes or ctx is
// cancelled.
func (b *RedisBus) consume(ctx context.Context, handler Handler) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	b.log.Printf("subscribed to channel %q", b.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				b.log.Printf("pubsub channel %q closed", b.channel)
				return
			}

			var env types.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Println("discarding undecodable bus payload:", err)
				continue
			}

			handler(env)
		}
	}
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
