package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/config"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements checkout.Store using Redis, one JSON document per session.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

var _ checkout.Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore from the redis configuration.
func NewRedisStore(cfg *config.Redis, logger *slog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis session store: invalid URL: %w", err)
	}
	opt.PoolSize = cfg.PoolSize
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout
	return NewRedisStoreWithClient(redis.NewClient(opt), cfg.KeyPrefix, logger), nil
}

// NewRedisStoreWithClient creates a RedisStore over an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) Get(ctx context.Context, id string) (checkout.Session, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("Redis session miss", "session_id", id)
		return checkout.Session{}, checkout.ErrSessionNotFound
	}
	if err != nil {
		r.logger.Error("Redis session get error", "session_id", id, "error", err)
		return checkout.Session{}, err
	}
	s, err := checkout.FromJSON(val)
	if err != nil {
		r.logger.Error("Redis session unmarshal error", "session_id", id, "error", err)
		return checkout.Session{}, err
	}
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, s checkout.Session, ttl time.Duration) error {
	data, err := s.ToJSON()
	if err != nil {
		r.logger.Error("Redis session marshal error", "session_id", s.ID, "error", err)
		return err
	}
	if err := r.client.Set(ctx, r.key(s.ID), data, ttl).Err(); err != nil {
		r.logger.Error("Redis session set error", "session_id", s.ID, "error", err)
		return err
	}
	r.logger.Debug("Redis session saved", "session_id", s.ID, "state", s.State, "ttl", ttl)
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		r.logger.Error("Redis session delete error", "session_id", id, "error", err)
		return err
	}
	r.logger.Debug("Redis session deleted", "session_id", id)
	return nil
}

// Ping checks the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
