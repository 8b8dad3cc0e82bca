package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pasapalabra/go/internal/metrics"
	"github.com/mcdev12/pasapalabra/go/internal/models"
)

// ErrInvalidImport is returned by Import for payloads lacking a version or games field.
var ErrInvalidImport = errors.New("storage: import requires version and games")

// Store persists the envelope on a Medium under a single key. Every write
// replaces the whole envelope; concurrent writers from different contexts
// race and the last physical write wins.
type Store struct {
	medium  Medium
	key     string
	metrics metrics.Collector
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKey overrides the key the envelope is stored under.
func WithKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithMetrics records write outcomes on c.
func WithMetrics(c metrics.Collector) StoreOption {
	return func(s *Store) {
		s.metrics = metrics.OrNoOp(c)
	}
}

// NewStore creates a Store on medium.
func NewStore(medium Medium, opts ...StoreOption) *Store {
	s := &Store{
		medium:  medium,
		key:     DefaultDataKey,
		metrics: metrics.NoOp{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the key the envelope is stored under.
func (s *Store) Key() string {
	return s.key
}

// Load reads and migrates the persisted envelope. Missing or corrupt data
// yields DefaultEnvelope.
func (s *Store) Load(ctx context.Context) Envelope {
	raw, err := s.medium.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Str("key", s.key).Msg("failed to read envelope, using defaults")
		}
		return DefaultEnvelope()
	}
	return Migrate(raw)
}

// Save merges the provided top-level fields onto a freshly loaded envelope
// and overwrites the persisted copy.
func (s *Store) Save(ctx context.Context, p Partial) error {
	env := s.Load(ctx)
	if p.Games != nil {
		env.Games = *p.Games
		if env.Games == nil {
			env.Games = make(map[string]models.Game)
		}
	}
	if p.Settings != nil {
		env.Settings = *p.Settings
	}
	return s.write(ctx, "save", env)
}

// Delete removes one game in a single read-modify-write cycle. It returns
// ErrNotFound when the game is not persisted.
func (s *Store) Delete(ctx context.Context, id string) error {
	env := s.Load(ctx)
	if _, ok := env.Games[id]; !ok {
		return fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	delete(env.Games, id)
	return s.write(ctx, "delete", env)
}

// Clear removes the persisted envelope.
func (s *Store) Clear(ctx context.Context) error {
	err := s.medium.Remove(ctx, s.key)
	s.metrics.RecordStoreWrite("clear", err == nil)
	if err != nil {
		return fmt.Errorf("failed to clear envelope: %w", err)
	}
	return nil
}

// Export serializes the current envelope as indented JSON.
func (s *Store) Export(ctx context.Context) (string, error) {
	data, err := json.MarshalIndent(s.Load(ctx), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return string(data), nil
}

// Import replaces the persisted games, and the settings when present, with
// the contents of an exported envelope.
func (s *Store) Import(ctx context.Context, data string) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	var version any
	if err := json.Unmarshal(doc["version"], &version); err != nil || !truthy(version) {
		return ErrInvalidImport
	}
	if _, ok := doc["games"]; !ok {
		return ErrInvalidImport
	}

	env := Migrate([]byte(data))
	p := Partial{Games: &env.Games}
	if _, ok := doc["settings"]; ok {
		p.Settings = &env.Settings
	}
	if err := s.Save(ctx, p); err != nil {
		return err
	}

	log.Info().Int("games", len(env.Games)).Interface("version", version).Msg("imported envelope")
	return nil
}

func (s *Store) write(ctx context.Context, op string, env Envelope) error {
	env.Version = CurrentVersion
	data, err := json.Marshal(env)
	if err != nil {
		s.metrics.RecordStoreWrite(op, false)
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := s.medium.Set(ctx, s.key, data); err != nil {
		s.metrics.RecordStoreWrite(op, false)
		return fmt.Errorf("failed to write envelope: %w", err)
	}
	s.metrics.RecordStoreWrite(op, true)
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	}
	return true
}
