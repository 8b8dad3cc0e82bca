// Package natskv keeps the shared medium in a JetStream KeyValue bucket so
// contexts on different hosts observe each other's writes.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pasapalabra/go/internal/storage"
)

type Config struct {
	URL           string
	Bucket        string
	MaxReconnects int
	ReconnectWait time.Duration
	Replicas      int
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Bucket:        "PASAPALABRA",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		Replicas:      1,
	}
}

// Medium is a storage.Medium backed by a JetStream KeyValue bucket.
type Medium struct {
	nc *nats.Conn
	kv jetstream.KeyValue

	mu      sync.Mutex
	closed  bool
	cancels []context.CancelFunc
}

// Connect dials NATS and creates the bucket if it does not exist.
func Connect(ctx context.Context, cfg Config) (*Medium, error) {
	opts := []nats.Option{
		nats.Name("pasapalabra"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "Pasapalabra shared game state",
		History:     1,
		Replicas:    cfg.Replicas,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", cfg.Bucket, err)
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("bucket", cfg.Bucket).
		Msg("connected to NATS key-value bucket")

	return &Medium{nc: nc, kv: kv}, nil
}

func (m *Medium) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := m.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return entry.Value(), nil
}

func (m *Medium) Set(ctx context.Context, key string, value []byte) error {
	if _, err := m.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (m *Medium) Remove(ctx context.Context, key string) error {
	err := m.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (m *Medium) Watch(ctx context.Context, key string, fn func([]byte)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("natskv: closed")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	watcher, err := m.kv.Watch(watchCtx, key, jetstream.UpdatesOnly())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", key, err)
	}
	m.cancels = append(m.cancels, cancel)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-watchCtx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if entry == nil {
					continue
				}
				switch entry.Operation() {
				case jetstream.KeyValuePut:
					fn(entry.Value())
				case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
					fn(nil)
				}
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			if err := watcher.Stop(); err != nil {
				log.Debug().Err(err).Str("key", key).Msg("stopping key watcher")
			}
			<-done
		})
	}
	return stop, nil
}

// Close cancels every watch and drains the NATS connection.
func (m *Medium) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cancels := m.cancels
	m.cancels = nil
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if err := m.nc.Drain(); err != nil {
		m.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}

var _ storage.Medium = (*Medium)(nil)
