package queue

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelpop/server/internal/domain"
)

// stubRedis fakes the four commands the backend issues. Everything else on
// redis.Cmdable panics via the embedded nil interface, which is exactly what
// we want from a test double.
type stubRedis struct {
	redis.Cmdable

	lists   map[string][]string
	records map[string]string
	ttls    map[string]time.Duration
}

func newStubRedis() *stubRedis {
	return &stubRedis{
		lists:   make(map[string][]string),
		records: make(map[string]string),
		ttls:    make(map[string]time.Duration),
	}
}

func (s *stubRedis) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	for _, v := range values {
		s.lists[key] = append(s.lists[key], string(v.([]byte)))
	}
	return redis.NewIntResult(int64(len(s.lists[key])), nil)
}

func (s *stubRedis) BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	for _, key := range keys {
		if pending := s.lists[key]; len(pending) > 0 {
			head := pending[0]
			s.lists[key] = pending[1:]
			return redis.NewStringSliceResult([]string{key, head}, nil)
		}
	}
	return redis.NewStringSliceResult(nil, redis.Nil)
}

func (s *stubRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	s.records[key] = string(value.([]byte))
	s.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := s.records[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

// expire simulates Redis reclaiming a record whose TTL elapsed.
func (s *stubRedis) expire(key string) {
	delete(s.records, key)
}

func TestRedisBackendPopEmptyQueue(t *testing.T) {
	b := NewRedisBackend(newStubRedis())

	_, err := b.Pop(context.Background(), QueueName)
	assert.ErrorIs(t, err, domain.ErrEmptyQueue)
}

func TestRedisBackendPushPopFIFO(t *testing.T) {
	b := NewRedisBackend(newStubRedis())
	ctx := context.Background()

	require.NoError(t, b.Push(ctx, QueueName, []byte("a")))
	require.NoError(t, b.Push(ctx, QueueName, []byte("b")))

	first, err := b.Pop(ctx, QueueName)
	require.NoError(t, err)
	second, err := b.Pop(ctx, QueueName)
	require.NoError(t, err)

	assert.Equal(t, "a", string(first))
	assert.Equal(t, "b", string(second))

	_, err = b.Pop(ctx, QueueName)
	assert.ErrorIs(t, err, domain.ErrEmptyQueue)
}

func TestRedisBackendGetMissingKey(t *testing.T) {
	b := NewRedisBackend(newStubRedis())

	_, err := b.Get(context.Background(), "job:nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedisBackendSetAppliesRecordTTL(t *testing.T) {
	stub := newStubRedis()
	b := NewRedisBackend(stub)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "job:abc", []byte("record")))

	got, err := b.Get(ctx, "job:abc")
	require.NoError(t, err)
	assert.Equal(t, "record", string(got))
	assert.Equal(t, defaultRecordTTL, stub.ttls["job:abc"])
}

func TestRedisBackendExpiredRecordIsNotFound(t *testing.T) {
	stub := newStubRedis()
	b := NewRedisBackend(stub)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "job:abc", []byte("record")))
	stub.expire("job:abc")

	_, err := b.Get(ctx, "job:abc")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// shortReplyRedis returns a BLPOP reply missing the value element.
type shortReplyRedis struct {
	*stubRedis
}

func (s *shortReplyRedis) BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	return redis.NewStringSliceResult([]string{QueueName}, nil)
}

func TestRedisBackendPopTruncatedReply(t *testing.T) {
	b := NewRedisBackend(&shortReplyRedis{stubRedis: newStubRedis()})

	_, err := b.Pop(context.Background(), QueueName)
	assert.ErrorIs(t, err, domain.ErrEmptyQueue)
}

func TestManagerMergeUpdateOverRedisBackend(t *testing.T) {
	m := NewManager(NewRedisBackend(newStubRedis()))
	ctx := context.Background()

	id, err := m.Enqueue(ctx, "a tiny boat", domain.Params{"quality": "low"}, 9)
	require.NoError(t, err)

	processing := domain.JobStatusProcessing
	require.NoError(t, m.Update(ctx, id, domain.JobUpdate{Status: &processing}))

	job, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, job.Status)
	assert.Equal(t, "a tiny boat", job.Prompt)
	assert.Equal(t, "low", job.Parameters.Quality())
}
