package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Medium.Get when the key holds no value.
var ErrNotFound = errors.New("storage: key not found")

// Medium is a shared key/value space visible to every context of the game.
// Implementations must notify watchers of every change to the watched key,
// including changes made through the same Medium.
type Medium interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	// Watch calls fn with the new value each time key changes. value is nil
	// when the key was removed. The returned stop func is idempotent.
	Watch(ctx context.Context, key string, fn func(value []byte)) (stop func(), err error)
	Close() error
}
