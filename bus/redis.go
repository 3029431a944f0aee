// Package bus carries chat envelopes between instances over redis pub/sub.
// Each logged-in user owns one channel, subscribed by whichever instance
// holds their session.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"chat-relay/domain"
)

// Handler consumes one inbound bus message: a payload published by another
// instance for a user this instance is subscribed for.
type Handler func(userID domain.UserID, payload []byte)

type RedisBus struct {
	client  *redis.Client
	sub     *redis.PubSub
	log     *slog.Logger
	timeout time.Duration
}

func channelFor(id domain.UserID) string {
	return fmt.Sprintf("chat:user:%d", id)
}

// NewRedisBus connects to redis and opens the pub/sub connection used for
// all per-user subscriptions.
func NewRedisBus(ctx context.Context, redisURL string, timeout time.Duration, log *slog.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	// Subscribe with no channels: channels are added per login.
	sub := client.Subscribe(ctx)

	return &RedisBus{client: client, sub: sub, log: log, timeout: timeout}, nil
}

func (b *RedisBus) Close() error {
	if err := b.sub.Close(); err != nil {
		_ = b.client.Close()
		return err
	}
	return b.client.Close()
}

func (b *RedisBus) Subscribe(ctx context.Context, id domain.UserID) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.sub.Subscribe(ctx, channelFor(id))
}

func (b *RedisBus) Unsubscribe(ctx context.Context, id domain.UserID) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.sub.Unsubscribe(ctx, channelFor(id))
}

func (b *RedisBus) Publish(ctx context.Context, id domain.UserID, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.client.Publish(ctx, channelFor(id), payload).Err()
}

// Run drains the subscription until the context ends, handing each message
// to the handler. Malformed channel names are logged and skipped; the loop
// itself never fails.
func (b *RedisBus) Run(ctx context.Context, handle Handler) {
	ch := b.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			id, err := parseChannel(msg.Channel)
			if err != nil {
				b.log.Error("bus message on unexpected channel", "channel", msg.Channel, "error", err)
				continue
			}
			handle(id, []byte(msg.Payload))
		}
	}
}

func parseChannel(channel string) (domain.UserID, error) {
	raw, ok := strings.CutPrefix(channel, "chat:user:")
	if !ok {
		return 0, fmt.Errorf("missing channel prefix")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return domain.UserID(id), nil
}
