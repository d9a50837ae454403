package queue

import "context"

// Backend stores serialized job records keyed by id plus an ordered pending
// list per queue. The in-memory and Redis implementations are interchangeable
// from the caller's point of view; the manager owns serialization and key
// naming so backends only ever see opaque bytes.
type Backend interface {
	// Push appends a record to the tail of the named pending list.
	Push(ctx context.Context, queue string, record []byte) error
	// Pop removes and returns the oldest record from the named pending list.
	// Returns domain.ErrEmptyQueue when there is nothing to consume.
	Pop(ctx context.Context, queue string) ([]byte, error)
	// Set stores a record under the given key, overwriting any previous value.
	Set(ctx context.Context, key string, record []byte) error
	// Get returns the record stored under key, or domain.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
}
