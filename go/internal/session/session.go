// Package session wires one execution context: the shared medium, the
// persistent store, the event bus and the settings and game apps.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pasapalabra/go/internal/config"
	"github.com/mcdev12/pasapalabra/go/internal/events"
	"github.com/mcdev12/pasapalabra/go/internal/game"
	"github.com/mcdev12/pasapalabra/go/internal/metrics"
	"github.com/mcdev12/pasapalabra/go/internal/settings"
	"github.com/mcdev12/pasapalabra/go/internal/storage"
	"github.com/mcdev12/pasapalabra/go/internal/storage/filemedium"
	"github.com/mcdev12/pasapalabra/go/internal/storage/memory"
	"github.com/mcdev12/pasapalabra/go/internal/storage/natskv"
	"github.com/mcdev12/pasapalabra/go/internal/storage/pgmedium"
	"github.com/mcdev12/pasapalabra/go/internal/storage/sqlitemedium"
)

// Session is one context. Its Games and Settings apps are the only writers
// of the context's in-memory state.
type Session struct {
	Config   config.Config
	Medium   storage.Medium
	Store    *storage.Store
	Bus      *events.Bus
	Settings *settings.App
	Games    *game.App

	transport  events.Transport
	reconciler *Reconciler
	detach     func()
	ownsMedium bool
	closeOnce  sync.Once
	closeErr   error
}

type options struct {
	medium  storage.Medium
	metrics metrics.Collector
	clock   clockwork.Clock
	origin  string
}

type Option func(*options)

// WithMedium uses m instead of opening the configured medium. The caller
// keeps ownership of m.
func WithMedium(m storage.Medium) Option {
	return func(o *options) { o.medium = m }
}

func WithMetrics(c metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithOrigin fixes the context id stamped on emitted events.
func WithOrigin(origin string) Option {
	return func(o *options) { o.origin = origin }
}

// Open builds a context from cfg, loads the persisted state and starts
// listening to the other contexts.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Session, error) {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	m := metrics.OrNoOp(o.metrics)

	s := &Session{Config: cfg, Medium: o.medium}
	if s.Medium == nil {
		medium, err := OpenMedium(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.Medium = medium
		s.ownsMedium = true
	}

	transport, err := openTransport(ctx, cfg, s.Medium)
	if err != nil {
		s.closeMedium()
		return nil, err
	}
	s.transport = transport

	s.Store = storage.NewStore(s.Medium, storage.WithKey(cfg.Storage.DataKey), storage.WithMetrics(m))
	s.Bus = events.NewBus(transport,
		events.WithOrigin(o.origin),
		events.WithClock(o.clock),
		events.WithMetrics(m),
	)
	s.Settings = settings.NewApp(s.Store)
	s.Games = game.NewApp(s.Store, s.Bus, s.Settings,
		game.WithClock(o.clock),
		game.WithMetrics(m),
	)

	s.Reload(ctx)
	s.detach = s.Games.Attach(s.Bus)
	if err := s.Bus.Start(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to start event bus: %w", err)
	}

	if cfg.Reconcile > 0 {
		r, err := NewReconciler(cfg.Reconcile, s.Reload)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.reconciler = r
		r.Start()
	}

	log.Info().
		Str("medium", cfg.Storage.Medium).
		Str("transport", cfg.Sync.Transport).
		Str("origin", s.Bus.Origin()).
		Int("games", len(s.Games.Games())).
		Msg("session opened")
	return s, nil
}

// Reload reads settings and games from the store.
func (s *Session) Reload(ctx context.Context) {
	s.Settings.LoadSettings(ctx)
	s.Games.LoadGames(ctx)
}

// Close stops the reconciler, the bus watch and the transport, then closes
// the medium if the session opened it. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.reconciler != nil {
			errs = append(errs, s.reconciler.Stop())
		}
		if s.detach != nil {
			s.detach()
		}
		errs = append(errs, s.Bus.Close(), s.transport.Close())
		errs = append(errs, s.closeMedium())
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

func (s *Session) closeMedium() error {
	if !s.ownsMedium {
		return nil
	}
	if err := s.Medium.Close(); err != nil {
		return fmt.Errorf("failed to close medium: %w", err)
	}
	return nil
}

// OpenMedium opens the medium named by cfg.Storage.Medium.
func OpenMedium(ctx context.Context, cfg config.Config) (storage.Medium, error) {
	switch cfg.Storage.Medium {
	case config.MediumMemory:
		return memory.New().Handle(), nil
	case config.MediumFile:
		m, err := filemedium.New(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open file medium: %w", err)
		}
		return m, nil
	case config.MediumSQLite:
		m, err := sqlitemedium.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite medium: %w", err)
		}
		return m, nil
	case config.MediumNATS:
		natsCfg := natskv.DefaultConfig()
		natsCfg.URL = cfg.Storage.NATSURL
		natsCfg.Bucket = cfg.Storage.NATSBucket
		m, err := natskv.Connect(ctx, natsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect nats medium: %w", err)
		}
		return m, nil
	case config.MediumPostgres:
		pgCfg := pgmedium.DefaultConfig()
		pgCfg.DatabaseURL = cfg.PostgresURL()
		m, err := pgmedium.Open(ctx, pgCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres medium: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown medium %q", cfg.Storage.Medium)
	}
}

func openTransport(ctx context.Context, cfg config.Config, medium storage.Medium) (events.Transport, error) {
	switch cfg.Sync.Transport {
	case config.TransportWebSocket:
		t, err := events.DialWebSocket(ctx, cfg.Sync.GatewayURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open websocket transport: %w", err)
		}
		return t, nil
	case config.TransportMedium, "":
		return events.NewMediumTransport(medium, cfg.Storage.SyncKey), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Sync.Transport)
	}
}
