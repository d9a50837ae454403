package queue

import (
	"context"
	"sync"

	"pixelpop/server/internal/domain"
)

// MemoryBackend keeps records and pending lists in process memory. State does
// not survive a restart and is invisible to other processes; it exists for
// single-machine deployments and tests. Safe for concurrent producers and a
// consumer.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string][]byte
	pending map[string][][]byte
}

// NewMemoryBackend initializes an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records: make(map[string][]byte),
		pending: make(map[string][][]byte),
	}
}

// Push appends the record to the tail of the named list.
func (b *MemoryBackend) Push(ctx context.Context, queue string, record []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[queue] = append(b.pending[queue], append([]byte(nil), record...))
	return nil
}

// Pop removes and returns the oldest record without blocking.
func (b *MemoryBackend) Pop(ctx context.Context, queue string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.pending[queue]
	if len(list) == 0 {
		return nil, domain.ErrEmptyQueue
	}
	record := list[0]
	b.pending[queue] = list[1:]
	return record, nil
}

// Set stores the record under key.
func (b *MemoryBackend) Set(ctx context.Context, key string, record []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[key] = append([]byte(nil), record...)
	return nil
}

// Get returns the record stored under key.
func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	record, ok := b.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), record...), nil
}

var _ Backend = (*MemoryBackend)(nil)
