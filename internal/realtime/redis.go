package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev ChangeEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// Feed is the subscribe side of the change channel.
type Feed struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

func NewFeed(client *redis.Client, channel string, logger zerolog.Logger) *Feed {
	return &Feed{client: client, channel: channel, logger: logger}
}

// Run delivers every event on the channel to handle until ctx is done.
// Undecodable payloads are still delivered, as an event with an empty table,
// since consumers only need to know that something changed.
func (f *Feed) Run(ctx context.Context, handle func(ChangeEvent)) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed so no publish is missed
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", f.channel, err)
	}

	f.logger.Info().Str("channel", f.channel).Msg("listening for change events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				f.logger.Warn().Err(err).Msg("undecodable change event")
				ev = ChangeEvent{At: time.Now().UTC()}
			}
			handle(ev)
		}
	}
}
