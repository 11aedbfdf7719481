package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const transcriptKeyPrefix = "personapal:transcript:"

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func transcriptKey(key string) string {
	return transcriptKeyPrefix + key
}

// Get returns the transcript id remembered for a session key. Reads refresh
// the TTL so active sessions keep their binding.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	id, err := s.rdb.GetEx(ctx, transcriptKey(key), s.ttl).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *Store) Set(ctx context.Context, key, id string) error {
	return s.rdb.Set(ctx, transcriptKey(key), id, s.ttl).Err()
}
