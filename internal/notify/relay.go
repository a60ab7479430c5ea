package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultChannel = "radar:tasks"

// RedisRelay spreads events across server instances. Notify publishes to a
// Redis channel; every instance subscribed with Start forwards what it
// receives to its local hub, so each viewer sees one event per mutation no
// matter which instance handled it.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     Broadcaster
	log     *logrus.Logger

	mu   sync.Mutex
	sub  *redis.PubSub
	done chan struct{}
}

func NewRedisRelay(redisAddr, channel string, hub Broadcaster, logger *logrus.Logger) (*RedisRelay, error) {
	if hub == nil {
		return nil, errors.New("relay requires a broadcaster")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisRelay{
		client:  client,
		channel: channel,
		hub:     hub,
		log:     logger,
	}, nil
}

func (r *RedisRelay) Channel() string {
	return r.channel
}

func (r *RedisRelay) Notify(ctx context.Context) error {
	payload, err := TasksChanged().Encode()
	if err != nil {
		return err
	}

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Start subscribes to the relay channel and returns once the subscription is
// confirmed. Received events are forwarded until Close.
func (r *RedisRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sub != nil {
		return errors.New("relay already started")
	}

	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	r.sub = sub
	r.done = make(chan struct{})
	go r.forward(sub.Channel(), r.done)

	r.log.WithField("channel", r.channel).Info("relay subscribed")
	return nil
}

func (r *RedisRelay) forward(messages <-chan *redis.Message, done chan struct{}) {
	defer close(done)

	for msg := range messages {
		e, err := DecodeEvent([]byte(msg.Payload))
		if err != nil {
			r.log.WithError(err).WithField("channel", msg.Channel).Warn("ignoring malformed relay message")
			continue
		}

		r.hub.Broadcast(e)
	}
}

func (r *RedisRelay) Close() error {
	r.mu.Lock()
	sub, done := r.sub, r.done
	r.sub = nil
	r.mu.Unlock()

	if sub != nil {
		if err := sub.Close(); err != nil {
			r.log.WithError(err).Warn("failed to close relay subscription")
		}
		<-done
	}

	return r.client.Close()
}
