// Package pgmedium keeps the shared medium in a Postgres table and uses
// LISTEN/NOTIFY as the change notification.
package pgmedium

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pasapalabra/go/internal/sqlutil"
	"github.com/mcdev12/pasapalabra/go/internal/storage"
)

type Config struct {
	DatabaseURL   string        // Postgres DSN, also used for LISTEN
	NotifyChannel string        // Channel name to LISTEN on
	PingInterval  time.Duration // How often to ping the listener connection
}

func DefaultConfig() Config {
	return Config{
		NotifyChannel: "pasapalabra_kv_changed",
		PingInterval:  90 * time.Second,
	}
}

type subscription struct {
	key string
	fn  func([]byte)
}

// Medium is a storage.Medium backed by Postgres.
type Medium struct {
	db  *sql.DB
	q   *queries
	cfg Config

	mu       sync.Mutex
	listener *pq.Listener
	subs     map[int]subscription
	nextID   int
	cancel   context.CancelFunc
	done     chan struct{}
	closed   bool
}

// Open connects to Postgres and creates the table if needed.
func Open(ctx context.Context, cfg Config) (*Medium, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	q := newQueries(db)
	if err := q.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	return &Medium{
		db:   db,
		q:    q,
		cfg:  cfg,
		subs: make(map[int]subscription),
	}, nil
}

func (m *Medium) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := m.q.getValue(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	if value == nil {
		return nil, storage.ErrNotFound
	}
	return value, nil
}

// Set upserts the value and notifies listeners in the same transaction, so
// a notification is never delivered for a write that rolled back.
func (m *Medium) Set(ctx context.Context, key string, value []byte) error {
	err := sqlutil.Run(ctx, m.db, newQueries, func(q *queries) error {
		if err := q.upsertValue(ctx, key, value); err != nil {
			return err
		}
		return q.notify(ctx, m.cfg.NotifyChannel, key)
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (m *Medium) Remove(ctx context.Context, key string) error {
	err := sqlutil.Run(ctx, m.db, newQueries, func(q *queries) error {
		n, err := q.deleteValue(ctx, key)
		if err != nil || n == 0 {
			return err
		}
		return q.notify(ctx, m.cfg.NotifyChannel, key)
	})
	if err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (m *Medium) Watch(ctx context.Context, key string, fn func([]byte)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("pgmedium: closed")
	}
	if m.listener == nil {
		if err := m.startListener(); err != nil {
			return nil, err
		}
	}

	id := m.nextID
	m.nextID++
	m.subs[id] = subscription{key: key, fn: fn}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
	return stop, nil
}

// startListener must be called with m.mu held.
func (m *Medium) startListener() error {
	l := pq.NewListener(
		m.cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(m.cfg.NotifyChannel); err != nil {
		l.Close()
		return fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", m.cfg.NotifyChannel).
		Msg("listening for notifications")

	ctx, cancel := context.WithCancel(context.Background())
	m.listener = l
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.listen(ctx, l, m.done)
	return nil
}

func (m *Medium) listen(ctx context.Context, l *pq.Listener, done chan struct{}) {
	defer close(done)

	interval := m.cfg.PingInterval
	if interval <= 0 {
		interval = DefaultConfig().PingInterval
	}
	pingTicker := time.NewTicker(interval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case note := <-l.Notify:
			if note == nil {
				// nil notification means the connection was re-established
				continue
			}
			m.dispatch(ctx, note.Extra)
		case <-pingTicker.C:
			if err := l.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (m *Medium) dispatch(ctx context.Context, key string) {
	m.mu.Lock()
	var fns []func([]byte)
	for id := 0; id < m.nextID; id++ {
		if s, ok := m.subs[id]; ok && s.key == key {
			fns = append(fns, s.fn)
		}
	}
	m.mu.Unlock()
	if len(fns) == 0 {
		return
	}

	value, err := m.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		value = nil
	} else if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to fetch changed value")
		return
	}
	for _, fn := range fns {
		fn(value)
	}
}

// Close stops the listener and closes the database.
func (m *Medium) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	l, cancel, done := m.listener, m.cancel, m.done
	m.subs = map[int]subscription{}
	m.mu.Unlock()

	var errs []error
	if l != nil {
		cancel()
		<-done
		errs = append(errs, l.Close())
	}
	errs = append(errs, m.db.Close())
	return errors.Join(errs...)
}

var _ storage.Medium = (*Medium)(nil)
