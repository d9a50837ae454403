package storage

import (
	"context"
	"encoding/base64"
	"errors"

	"pixelpop/server/internal/infra"
)

// Sink delivers final artifact bytes. A store outage never fails the job: the
// bytes are embedded as a base64 data URL instead, and when no bytes exist at
// all the provider's own URL is passed through.
type Sink struct {
	store  BlobStore
	logger infra.Logger
}

// NewSink wraps the blob store. A nil store always falls back.
func NewSink(store BlobStore, logger infra.Logger) *Sink {
	return &Sink{store: store, logger: logger}
}

// Store uploads the bytes under key and returns a usable URL, degrading to an
// inline data URL and finally to sourceURL.
func (s *Sink) Store(ctx context.Context, key string, data []byte, contentType, sourceURL string) (string, error) {
	if contentType == "" {
		contentType = "image/png"
	}

	if len(data) > 0 && s.store != nil {
		url, err := s.store.Put(ctx, key, data, contentType)
		if err == nil {
			return url, nil
		}
		s.logger.Warn().Err(err).Str("key", key).Msg("storage: upload failed, falling back to data url")
	}

	if len(data) > 0 {
		return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	}
	if sourceURL != "" {
		return sourceURL, nil
	}
	return "", errors.New("storage: no artifact bytes or source url")
}
