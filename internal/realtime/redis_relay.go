package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisRelay mirrors events between instances over a Redis pub/sub channel.
// Every instance tags what it forwards with its own origin id and ignores its
// own messages when they come back.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	broker  *Broker
}

// NewRedisRelay builds a relay for broker and installs it.
func NewRedisRelay(client *redis.Client, channel string, broker *Broker) *RedisRelay {
	r := &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		broker:  broker,
	}
	broker.SetRelay(r)
	return r
}

// NewRedisClient parses url (redis://[:password@]host:port/db) and checks
// the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Forward publishes e on the relay channel.
func (r *RedisRelay) Forward(ctx context.Context, e Event) error {
	data, err := r.encode(e)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Run consumes the relay channel until ctx is done, delivering foreign
// events to the local broker.
func (r *RedisRelay) Run(ctx context.Context) {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handle(msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (r *RedisRelay) encode(e Event) ([]byte, error) {
	e.Origin = r.origin
	return json.Marshal(e)
}

// handle decodes one payload and delivers it unless it is our own echo.
func (r *RedisRelay) handle(payload string) bool {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		log.Warn().Err(err).Msg("realtime relay: bad payload")
		return false
	}
	if e.Origin == r.origin {
		return false
	}
	r.broker.Deliver(e)
	return true
}
