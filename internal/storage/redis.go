package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisDocumentKey = "oktaguard:document"

// RedisStore keeps the document serialized under a single Redis key.
// Durability follows the Redis persistence configuration.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a Redis-backed document store.
func NewRedisStore(addr, password string, db int) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		key: redisDocumentKey,
	}
}

// Load reads the document key, materializing empty defaults on cold start.
func (s *RedisStore) Load(ctx context.Context) (*Database, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewDatabase(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	var db Database
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	db.ensureDefaults()
	return &db, nil
}

// Save overwrites the document key, last writer wins.
func (s *RedisStore) Save(ctx context.Context, db *Database) error {
	data, err := json.Marshal(db)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
