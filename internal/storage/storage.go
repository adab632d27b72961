package storage

import "context"

// ObjectStore is the durable store for uploaded images and produced
// videos/thumbnails. Put returns a stable public URL for the key.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// PublicURL returns the URL a key would be served from without touching
	// the backend.
	PublicURL(key string) string
}
