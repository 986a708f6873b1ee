package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const eventKeyPrefix = "webhook-event:"

// EventStore remembers which provider webhook events were already handled.
type EventStore interface {
	// Claim reports whether eventID is seen for the first time and reserves it.
	Claim(ctx context.Context, eventID string) (bool, error)
	// Release drops a claim so a redelivery can be processed again.
	Release(ctx context.Context, eventID string) error
}

// Client is the subset of *redis.Client used here.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisEventStore struct {
	rdb Client
	ttl time.Duration
}

func NewRedisEventStore(rdb Client, ttl time.Duration) EventStore {
	return &redisEventStore{rdb: rdb, ttl: ttl}
}

func (s *redisEventStore) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, eventKeyPrefix+eventID, "processing", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache: failed to claim event %s: %w", eventID, err)
	}
	return ok, nil
}

func (s *redisEventStore) Release(ctx context.Context, eventID string) error {
	if err := s.rdb.Del(ctx, eventKeyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("cache: failed to release event %s: %w", eventID, err)
	}
	return nil
}

type noopEventStore struct{}

// NewNoopEventStore claims every event; used when Redis is not configured.
func NewNoopEventStore() EventStore {
	return noopEventStore{}
}

func (noopEventStore) Claim(ctx context.Context, eventID string) (bool, error) {
	return true, nil
}

func (noopEventStore) Release(ctx context.Context, eventID string) error {
	return nil
}
