package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/pasapalabra/go/internal/models"
)

// EventType represents the type of sync event
type EventType string

const (
	EventTypeLetterChanged EventType = "letter_changed"
	EventTypePlayerAdded   EventType = "player_added"
	EventTypeGameUpdated   EventType = "game_updated"
	EventTypeTimerTick     EventType = "timer_tick"
)

// AllTypes lists every event type in a stable order.
var AllTypes = []EventType{
	EventTypeLetterChanged,
	EventTypePlayerAdded,
	EventTypeGameUpdated,
	EventTypeTimerTick,
}

// Event is the message written to the shared broadcast slot. Only the latest
// one is retained. Receivers treat it as a signal to refresh from the store.
type Event struct {
	ID        string          `json:"id,omitempty"`     // Event UUID
	Origin    string          `json:"origin,omitempty"` // Context that emitted it
	Type      EventType       `json:"type"`
	GameID    string          `json:"gameId"`
	Data      json.RawMessage `json:"data,omitempty"` // Event-specific payload
	Timestamp int64           `json:"timestamp"`      // Unix milliseconds
}

// Time returns the emission time.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// LetterChangedPayload is the payload for a letter_changed event
type LetterChangedPayload struct {
	Letter string             `json:"letter"`
	State  models.LetterState `json:"state"`
}

// PlayerAddedPayload is the payload for a player_added event
type PlayerAddedPayload struct {
	Player string `json:"player"`
}

// GameUpdatedPayload is the payload for a game_updated event. Updates holds
// only the fields that were applied.
type GameUpdatedPayload struct {
	Updates map[string]any `json:"updates"`
}

// TimerTickPayload is the payload for a timer_tick event
type TimerTickPayload struct {
	CurrentTime int `json:"currentTime"`
}

// ParsePayload parses event data into the appropriate payload struct
func ParsePayload(e Event) (any, error) {
	switch e.Type {
	case EventTypeLetterChanged:
		var payload LetterChangedPayload
		if err := json.Unmarshal(e.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypePlayerAdded:
		var payload PlayerAddedPayload
		if err := json.Unmarshal(e.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeGameUpdated:
		var payload GameUpdatedPayload
		if err := json.Unmarshal(e.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeTimerTick:
		var payload TimerTickPayload
		if err := json.Unmarshal(e.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("unknown event type: %s", e.Type)
	}
}
