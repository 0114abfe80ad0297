package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultRedisChannel = "notepilot-events"
	redisDialTimeout    = 5 * time.Second
)

var (
	errMissingRedisAddress = errors.New("realtime: redis address is required")
	errMissingDispatcher   = errors.New("realtime: dispatcher is required")
)

type RedisConfig struct {
	Address string
	Channel string
}

// RedisBus publishes events on a Redis channel and forwards every event received on it to the
// local dispatcher, so each API instance reaches its own subscribers.
type RedisBus struct {
	client     *goredis.Client
	channel    string
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewRedisBus connects to Redis and verifies the connection.
func NewRedisBus(ctx context.Context, cfg RedisConfig, dispatcher *Dispatcher, logger *zap.Logger) (*RedisBus, error) {
	address := strings.TrimSpace(cfg.Address)
	if address == "" {
		return nil, errMissingRedisAddress
	}
	if dispatcher == nil {
		return nil, errMissingDispatcher
	}
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = defaultRedisChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:        address,
		DialTimeout: redisDialTimeout,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBus{
		client:     client,
		channel:    channel,
		dispatcher: dispatcher,
		logger:     logger.With(zap.String("component", "realtime_redis_bus")),
	}, nil
}

// Publish sends event to every instance, this one included.
func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	if !event.valid() {
		return ErrInvalidEvent
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, raw).Err()
}

// Start subscribes to the channel and forwards events until ctx is done.
func (b *RedisBus) Start(ctx context.Context) error {
	subscription := b.client.Subscribe(ctx, b.channel)
	if _, err := subscription.Receive(ctx); err != nil {
		_ = subscription.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer subscription.Close()
		messages := subscription.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case message, ok := <-messages:
				if !ok || message == nil {
					return
				}
				b.forward(message.Payload)
			}
		}
	}()
	return nil
}

// Close releases the Redis connection.
func (b *RedisBus) Close() error {
	return b.client.Close()
}

func (b *RedisBus) forward(payload string) {
	event, err := decodeEvent(payload)
	if err != nil {
		b.logger.Warn("dropping realtime payload", zap.Error(err))
		return
	}
	b.dispatcher.Deliver(event)
}

func decodeEvent(payload string) (Event, error) {
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return Event{}, err
	}
	if !event.valid() {
		return Event{}, ErrInvalidEvent
	}
	return event, nil
}
