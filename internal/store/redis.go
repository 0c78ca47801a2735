package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nhle/tempvortex/internal/model"
)

// RedisStore implements Store on a Redis key, for deployments where
// several engine instances share one session.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	return NewRedisStoreFromClient(client), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, key: SessionKey}
}

// LoadSession returns the saved session, or nil when none exists.
func (s *RedisStore) LoadSession(ctx context.Context) (*model.Session, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var rec model.Session
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &rec, nil
}

// SaveSession replaces the saved session.
func (s *RedisStore) SaveSession(ctx context.Context, rec *model.Session) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
