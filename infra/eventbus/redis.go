package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/checkoutflow/pkg/config"
	"github.com/amirasaad/checkoutflow/pkg/eventbus"

	"github.com/redis/go-redis/v9"
)

// RedisEventBus publishes events to a single Redis Stream. Each registered
// event type reads the stream through its own consumer group.
type RedisEventBus struct {
	client *redis.Client
	stream string
	group  string
	types  eventbus.TypeRegistry
	block  time.Duration
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWithRedis connects to url and creates a Redis Streams event bus.
func NewWithRedis(
	url string,
	cfg *config.RedisStream,
	types eventbus.TypeRegistry,
	logger *slog.Logger,
) (*RedisEventBus, error) {
	if url == "" {
		return nil, fmt.Errorf("redis event bus: url is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis event bus: invalid URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis event bus: connection failed: %w", err)
	}
	return NewWithRedisClient(client, cfg, types, logger), nil
}

// NewWithRedisClient creates a Redis Streams event bus over an existing client.
func NewWithRedisClient(
	client *redis.Client,
	cfg *config.RedisStream,
	types eventbus.TypeRegistry,
	logger *slog.Logger,
) *RedisEventBus {
	if cfg == nil {
		cfg = &config.RedisStream{Stream: "checkoutflow:events", Group: "checkoutflow"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client: client,
		stream: cfg.Stream,
		group:  cfg.Group,
		types:  types,
		block:  5 * time.Second,
		logger: logger.With("component", "redis-event-bus"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Emit publishes an event to the Redis stream.
func (b *RedisEventBus) Emit(ctx context.Context, event eventbus.Event) error {
	if b.client == nil {
		return fmt.Errorf("redis event bus: client not initialized")
	}

	envBytes, err := encodeEnvelope(event)
	if err != nil {
		b.logger.Error("failed to encode event", "error", err, "type", event.Type())
		return fmt.Errorf("redis event bus: %w", err)
	}

	if _, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]any{"event": string(envBytes)},
	}).Result(); err != nil {
		b.logger.Error("failed to emit event", "error", err, "type", event.Type())
		return fmt.Errorf("redis event bus: emit failed: %w", err)
	}

	b.logger.Debug("event emitted successfully", "type", event.Type())
	return nil
}

// Register starts a consumer that calls handler for every event of eventType.
func (b *RedisEventBus) Register(eventType string, handler eventbus.HandlerFunc) {
	group := b.groupFor(eventType)
	consumer := fmt.Sprintf("consumer-%s-%d", eventType, time.Now().UnixNano())
	if err := b.client.XGroupCreateMkStream(b.ctx, b.stream, group, "$").Err(); err != nil &&
		!isBusyGroup(err) {
		b.logger.Error("failed to create consumer group", "error", err, "group", group)
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consumeLoop(group, consumer, eventType, handler)
	}()
	b.logger.Info("handler registered successfully", "event_type", eventType, "consumer", consumer)
}

func (b *RedisEventBus) consumeLoop(group, consumer, eventType string, handler eventbus.HandlerFunc) {
	for {
		if b.ctx.Err() != nil {
			return
		}
		res, err := b.client.XReadGroup(b.ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{b.stream, ">"},
			Count:    10,
			Block:    b.block,
		}).Result()
		if err != nil {
			if b.ctx.Err() != nil {
				return
			}
			if !errors.Is(err, redis.Nil) {
				b.logger.Error("error reading from stream", "error", err, "consumer", consumer)
				time.Sleep(time.Second)
			}
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				b.handleMessage(b.ctx, eventType, handler, msg)
				if err := b.client.XAck(b.ctx, b.stream, group, msg.ID).Err(); err != nil {
					b.logger.Error("failed to acknowledge message", "error", err, "msg_id", msg.ID)
				}
			}
		}
	}
}

// handleMessage runs handler for msg when it carries eventType. Messages
// that cannot be decoded or whose handler fails go to the DLQ stream.
func (b *RedisEventBus) handleMessage(
	ctx context.Context,
	eventType string,
	handler eventbus.HandlerFunc,
	msg redis.XMessage,
) {
	raw, ok := msg.Values["event"].(string)
	if !ok {
		b.logger.Error("message without event field", "msg_id", msg.ID)
		b.pushToDLQ(ctx, msg.Values)
		return
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		b.logger.Error("failed to unmarshal envelope", "error", err, "msg_id", msg.ID)
		b.pushToDLQ(ctx, msg.Values)
		return
	}
	if env.Type != eventType {
		return
	}

	evt, err := decodeEnvelope([]byte(raw), b.types)
	if err != nil {
		b.logger.Error("failed to decode event", "error", err, "msg_id", msg.ID)
		b.pushToDLQ(ctx, msg.Values)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panic recovered", "panic", r, "event_type", eventType)
			b.pushToDLQ(ctx, msg.Values)
		}
	}()
	if err := handler(ctx, evt); err != nil {
		b.logger.Error("handler error", "error", err, "event_type", eventType)
		b.pushToDLQ(ctx, msg.Values)
	}
}

// pushToDLQ copies the raw message to the DLQ stream for inspection or reprocessing.
func (b *RedisEventBus) pushToDLQ(ctx context.Context, values map[string]any) {
	dlqStream := dlqStreamName(b.stream)
	if _, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: dlqStream,
		Values: values,
	}).Result(); err != nil {
		b.logger.Error("failed to push to DLQ", "error", err, "stream", dlqStream)
		return
	}
	b.logger.Warn("event pushed to DLQ", "stream", dlqStream)
}

func (b *RedisEventBus) groupFor(eventType string) string {
	return b.group + ":" + eventType
}

// Close stops the consumers. The client stays open for its owner to close.
func (b *RedisEventBus) Close() error {
	b.cancel()
	b.wg.Wait()
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

var _ eventbus.Bus = (*RedisEventBus)(nil)
