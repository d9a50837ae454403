package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pixelpop/server/internal/domain"
)

const (
	// Records not consumed or read within this horizon are reclaimed by Redis.
	defaultRecordTTL = 24 * time.Hour
	// How long a single Pop blocks before reporting an empty queue.
	defaultPopTimeout = time.Second
)

// RedisBackend stores records in Redis: pending lists as RPUSH/BLPOP lists,
// records as plain keys with a bounded TTL. State survives restarts and is
// visible to every process sharing the Redis instance; atomicity of the
// individual key operations is Redis's own.
type RedisBackend struct {
	client     redis.Cmdable
	recordTTL  time.Duration
	popTimeout time.Duration
}

// NewRedisBackend wraps an established Redis client with the default record
// TTL and pop timeout.
func NewRedisBackend(client redis.Cmdable) *RedisBackend {
	return &RedisBackend{
		client:     client,
		recordTTL:  defaultRecordTTL,
		popTimeout: defaultPopTimeout,
	}
}

// Push appends the record to the tail of the named list.
func (b *RedisBackend) Push(ctx context.Context, queue string, record []byte) error {
	if err := b.client.RPush(ctx, queue, record).Err(); err != nil {
		return fmt.Errorf("queue: rpush %s: %w", queue, err)
	}
	return nil
}

// Pop blocks up to the pop timeout for the oldest record, then reports an
// empty queue so the caller's poll loop keeps its own cadence.
func (b *RedisBackend) Pop(ctx context.Context, queue string) ([]byte, error) {
	res, err := b.client.BLPop(ctx, b.popTimeout, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrEmptyQueue
		}
		return nil, fmt.Errorf("queue: blpop %s: %w", queue, err)
	}
	// BLPOP replies [key, value].
	if len(res) < 2 {
		return nil, domain.ErrEmptyQueue
	}
	return []byte(res[1]), nil
}

// Set stores the record under key with the backend's TTL.
func (b *RedisBackend) Set(ctx context.Context, key string, record []byte) error {
	if err := b.client.Set(ctx, key, record, b.recordTTL).Err(); err != nil {
		return fmt.Errorf("queue: set %s: %w", key, err)
	}
	return nil
}

// Get returns the record stored under key. Expired records surface as
// domain.ErrNotFound, same as ids that never existed.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	record, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("queue: get %s: %w", key, err)
	}
	return record, nil
}

var _ Backend = (*RedisBackend)(nil)
