package storage

import "context"

// BlobStore persists artifact bytes under a key and returns a durable public
// URL. Implementations may throw on transient unavailability; recovery is the
// sink's concern.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
