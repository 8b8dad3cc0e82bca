package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pasapalabra/go/internal/metrics"
	"github.com/mcdev12/pasapalabra/go/internal/models"
)

// Handler receives events of the type it was subscribed to.
type Handler func(Event)

type subscriber struct {
	id uint64
	fn Handler
}

// Bus is the per-context publish/subscribe hub. Local subscribers are called
// synchronously by Emit. Events from other contexts arrive through the
// transport watch started by Start.
type Bus struct {
	transport Transport
	origin    string
	clock     clockwork.Clock
	metrics   metrics.Collector

	mu           sync.RWMutex
	handlers     map[EventType][]subscriber
	nextID       uint64
	lastRemoteID string
	stopWatch    func()
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithOrigin sets the context id stamped on emitted events. Defaults to a random UUID.
func WithOrigin(origin string) BusOption {
	return func(b *Bus) {
		if origin != "" {
			b.origin = origin
		}
	}
}

func WithClock(c clockwork.Clock) BusOption {
	return func(b *Bus) { b.clock = c }
}

func WithMetrics(c metrics.Collector) BusOption {
	return func(b *Bus) { b.metrics = metrics.OrNoOp(c) }
}

// NewBus creates a bus on transport.
func NewBus(transport Transport, opts ...BusOption) *Bus {
	b := &Bus{
		transport: transport,
		origin:    uuid.NewString(),
		clock:     clockwork.NewRealClock(),
		metrics:   metrics.NoOp{},
		handlers:  make(map[EventType][]subscriber),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Origin returns the id of this context.
func (b *Bus) Origin() string {
	return b.origin
}

// Subscribe registers fn for eventType. The returned func removes exactly
// this registration and may be called more than once.
func (b *Bus) Subscribe(eventType EventType, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.handlers[eventType]
			for i, s := range subs {
				if s.id == id {
					b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(b.handlers[eventType]) == 0 {
				delete(b.handlers, eventType)
			}
		})
	}
}

// Emit writes e to the shared slot and then calls local subscribers. If the
// write fails, no subscriber is called.
func (b *Bus) Emit(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Origin = b.origin
	if e.Timestamp == 0 {
		e.Timestamp = b.clock.Now().UnixMilli()
	}

	data, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(e.Type)).Msg("error encoding event")
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.transport.Publish(ctx, data); err != nil {
		log.Error().Err(err).Str("event_type", string(e.Type)).Str("game_id", e.GameID).Msg("error emitting event")
		b.metrics.RecordEventDropped("publish_failed")
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.metrics.RecordEventEmitted(string(e.Type))
	b.dispatch(e)
	return nil
}

func (b *Bus) emitPayload(ctx context.Context, eventType EventType, gameID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return b.Emit(ctx, Event{Type: eventType, GameID: gameID, Data: data})
}

func (b *Bus) EmitLetterChanged(ctx context.Context, gameID, letter string, state models.LetterState) error {
	return b.emitPayload(ctx, EventTypeLetterChanged, gameID, LetterChangedPayload{Letter: letter, State: state})
}

func (b *Bus) EmitPlayerAdded(ctx context.Context, gameID, player string) error {
	return b.emitPayload(ctx, EventTypePlayerAdded, gameID, PlayerAddedPayload{Player: player})
}

func (b *Bus) EmitGameUpdated(ctx context.Context, gameID string, updates map[string]any) error {
	return b.emitPayload(ctx, EventTypeGameUpdated, gameID, GameUpdatedPayload{Updates: updates})
}

func (b *Bus) EmitTimerTick(ctx context.Context, gameID string, currentTime int) error {
	return b.emitPayload(ctx, EventTypeTimerTick, gameID, TimerTickPayload{CurrentTime: currentTime})
}

// Last returns the event currently held by the shared slot.
func (b *Bus) Last(ctx context.Context) (Event, bool) {
	data, err := b.transport.Last(ctx)
	if err != nil {
		log.Error().Err(err).Msg("error getting last event")
		return Event{}, false
	}
	if data == nil {
		return Event{}, false
	}

	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		log.Error().Err(err).Msg("error decoding last event")
		return Event{}, false
	}
	return e, true
}

// Clear empties the shared slot.
func (b *Bus) Clear(ctx context.Context) error {
	if err := b.transport.Clear(ctx); err != nil {
		log.Error().Err(err).Msg("error clearing events")
		return fmt.Errorf("failed to clear events: %w", err)
	}
	return nil
}

// Start begins delivering events written by other contexts. Calling it
// again while started is a no-op.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopWatch != nil {
		return nil
	}

	stop, err := b.transport.Watch(ctx, b.handleRemote)
	if err != nil {
		return fmt.Errorf("failed to watch sync channel: %w", err)
	}
	b.stopWatch = stop

	log.Debug().Str("origin", b.origin).Msg("event bus started")
	return nil
}

// Close stops remote delivery. Subscriptions are kept.
func (b *Bus) Close() error {
	b.mu.Lock()
	stop := b.stopWatch
	b.stopWatch = nil
	b.mu.Unlock()

	if stop != nil {
		stop()
	}
	return nil
}

func (b *Bus) handleRemote(data []byte) {
	if data == nil {
		return
	}

	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		log.Warn().Err(err).Msg("error handling sync change")
		b.metrics.RecordEventDropped("decode")
		return
	}
	if e.Origin != "" && e.Origin == b.origin {
		b.metrics.RecordEventDropped("own_origin")
		return
	}

	b.mu.Lock()
	if e.ID != "" && e.ID == b.lastRemoteID {
		b.mu.Unlock()
		b.metrics.RecordEventDropped("duplicate")
		return
	}
	b.lastRemoteID = e.ID
	b.mu.Unlock()

	b.metrics.RecordEventReceived(string(e.Type))
	b.dispatch(e)
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	subs := make([]subscriber, len(b.handlers[e.Type]))
	copy(subs, b.handlers[e.Type])
	b.mu.RUnlock()

	for _, s := range subs {
		b.invoke(s, e)
	}
}

func (b *Bus) invoke(s subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("event_type", string(e.Type)).
				Str("game_id", e.GameID).
				Msg("error in sync handler")
			b.metrics.RecordHandlerFailure(string(e.Type))
		}
	}()
	s.fn(e)
}
