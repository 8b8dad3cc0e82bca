// Package sqlitemedium keeps the shared medium in an embedded SQLite file.
// SQLite has no change notification, so watches poll a per-key version.
package sqlitemedium

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/mcdev12/pasapalabra/go/internal/storage"
)

const DefaultPollInterval = 250 * time.Millisecond

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key     TEXT PRIMARY KEY,
	value   BLOB,
	version INTEGER NOT NULL DEFAULT 1
)`

// Medium is a storage.Medium backed by SQLite. Removed keys keep a
// tombstone row so the version keeps increasing.
type Medium struct {
	db           *sql.DB
	clock        clockwork.Clock
	pollInterval time.Duration

	mu      sync.Mutex
	closed  bool
	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

type Option func(*Medium)

func WithClock(c clockwork.Clock) Option {
	return func(m *Medium) { m.clock = c }
}

func WithPollInterval(d time.Duration) Option {
	return func(m *Medium) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// Open opens (or creates) the SQLite database at path.
func Open(path string, opts ...Option) (*Medium, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}

	m := &Medium{
		db:           db,
		clock:        clockwork.NewRealClock(),
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Medium) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := m.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ? AND value IS NOT NULL`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (m *Medium) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, version) VALUES (?, ?, 1)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, version = kv.version + 1`,
		key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (m *Medium) Remove(ctx context.Context, key string) error {
	_, err := m.db.ExecContext(ctx,
		`UPDATE kv SET value = NULL, version = version + 1 WHERE key = ? AND value IS NOT NULL`, key)
	if err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (m *Medium) version(ctx context.Context, key string) (int64, error) {
	var v int64
	err := m.db.QueryRowContext(ctx, `SELECT version FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

func (m *Medium) Watch(ctx context.Context, key string, fn func([]byte)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("sqlitemedium: closed")
	}

	last, err := m.version(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read version of %s: %w", key, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	m.cancels = append(m.cancels, cancel)
	done := make(chan struct{})
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		defer close(done)

		ticker := m.clock.NewTicker(m.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.Chan():
				v, err := m.version(watchCtx, key)
				if err != nil {
					if watchCtx.Err() == nil {
						log.Warn().Err(err).Str("key", key).Msg("failed to poll version")
					}
					continue
				}
				if v == last {
					continue
				}
				last = v

				value, err := m.Get(watchCtx, key)
				if errors.Is(err, storage.ErrNotFound) {
					value = nil
				} else if err != nil {
					log.Warn().Err(err).Str("key", key).Msg("failed to read changed value")
					continue
				}
				fn(value)
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	return stop, nil
}

// Close stops all polling and closes the database.
func (m *Medium) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for _, cancel := range m.cancels {
		cancel()
	}
	m.cancels = nil
	m.mu.Unlock()

	m.wg.Wait()
	return m.db.Close()
}

var _ storage.Medium = (*Medium)(nil)
