package storage

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pasapalabra/go/internal/models"
)

const (
	// CurrentVersion is stamped on every envelope written by this package.
	CurrentVersion = "1.0.0"

	DefaultDataKey = "pasapalabra_data"
	DefaultSyncKey = "pasapalabra_sync"
)

// Envelope is the single persisted document holding every game and the settings.
type Envelope struct {
	Version  string                 `json:"version"`
	Games    map[string]models.Game `json:"games"`
	Settings models.GameSettings    `json:"settings"`
}

// Partial selects which top-level fields of the envelope a Save replaces.
// Nil fields keep their persisted value.
type Partial struct {
	Games    *map[string]models.Game
	Settings *models.GameSettings
}

// DefaultEnvelope returns an empty envelope with default settings.
func DefaultEnvelope() Envelope {
	return Envelope{
		Version:  CurrentVersion,
		Games:    make(map[string]models.Game),
		Settings: models.DefaultSettings(),
	}
}

// Migrate normalizes a raw persisted document into the current envelope
// shape. It never fails: anything unreadable falls back to defaults.
func Migrate(raw []byte) (env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("envelope migration failed, using defaults")
			env = DefaultEnvelope()
		}
	}()

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		if err != nil {
			log.Warn().Err(err).Msg("persisted envelope is not an object, using defaults")
		}
		return DefaultEnvelope()
	}

	env = DefaultEnvelope()
	env.Games = migrateGames(doc["games"])
	if rawSettings, ok := doc["settings"]; ok {
		env.Settings = migrateSettings(rawSettings)
	}
	return env
}

func migrateGames(raw json.RawMessage) map[string]models.Game {
	games := make(map[string]models.Game)
	if len(raw) == 0 {
		return games
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		log.Warn().Err(err).Msg("persisted games are not an object, resetting")
		return games
	}

	for id, entry := range entries {
		var g models.Game
		if err := json.Unmarshal(entry, &g); err != nil {
			log.Warn().Err(err).Str("game_id", id).Msg("dropping undecodable game")
			continue
		}
		if g.ID == "" {
			g.ID = id
		}
		games[id] = g
	}
	return games
}

// migrateSettings defaults each numeric field on its own, so one bad field
// never discards the rest of the record.
func migrateSettings(raw json.RawMessage) models.GameSettings {
	settings := models.DefaultSettings()

	var s map[string]any
	if err := json.Unmarshal(raw, &s); err != nil || s == nil {
		return settings
	}

	if v, ok := number(s["timeLimit"]); ok {
		settings.TimeLimit = v
	} else if v, ok := number(s["defaultTimeLimit"]); ok {
		settings.TimeLimit = v
	}

	scoring, ok := s["scoring"].(map[string]any)
	if !ok {
		return settings
	}
	if v, ok := number(scoring["correct"]); ok {
		settings.Scoring.Correct = v
	}
	if v, ok := number(scoring["incorrect"]); ok {
		settings.Scoring.Incorrect = v
	}
	if v, ok := number(scoring["pasapalabra"]); ok {
		settings.Scoring.Pasapalabra = v
	}
	return settings
}

func number(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}
