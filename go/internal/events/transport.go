package events

import (
	"context"
	"errors"

	"github.com/mcdev12/pasapalabra/go/internal/storage"
)

// Transport carries serialized events between contexts through a single
// overwritten slot.
type Transport interface {
	// Publish overwrites the slot with data.
	Publish(ctx context.Context, data []byte) error
	// Last returns the slot content, or nil when it is empty.
	Last(ctx context.Context) ([]byte, error)
	Clear(ctx context.Context) error
	// Watch calls fn for every change of the slot. data is nil when cleared.
	Watch(ctx context.Context, fn func(data []byte)) (stop func(), err error)
	Close() error
}

// MediumTransport keeps the slot under a key of a shared storage.Medium and
// relies on the medium's change notification for delivery.
type MediumTransport struct {
	medium storage.Medium
	key    string
}

// NewMediumTransport creates a transport on medium. An empty key uses storage.DefaultSyncKey.
func NewMediumTransport(medium storage.Medium, key string) *MediumTransport {
	if key == "" {
		key = storage.DefaultSyncKey
	}
	return &MediumTransport{medium: medium, key: key}
}

func (t *MediumTransport) Publish(ctx context.Context, data []byte) error {
	return t.medium.Set(ctx, t.key, data)
}

func (t *MediumTransport) Last(ctx context.Context) ([]byte, error) {
	data, err := t.medium.Get(ctx, t.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (t *MediumTransport) Clear(ctx context.Context) error {
	return t.medium.Remove(ctx, t.key)
}

func (t *MediumTransport) Watch(ctx context.Context, fn func([]byte)) (func(), error) {
	return t.medium.Watch(ctx, t.key, fn)
}

// Close is a no-op: the medium belongs to the caller.
func (t *MediumTransport) Close() error {
	return nil
}
