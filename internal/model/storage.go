package model

import "context"

// KeyValueStore is persistent blob storage that survives process restarts.
type KeyValueStore interface {
	Write(ctx context.Context, key string, blob []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Erase(ctx context.Context, key string) error
}
