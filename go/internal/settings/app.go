package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pasapalabra/go/internal/models"
	"github.com/mcdev12/pasapalabra/go/internal/storage"
)

// ErrInvalidTimeLimit is returned when a default time limit is out of range.
var ErrInvalidTimeLimit = fmt.Errorf("time limit must be between %d and %d seconds",
	models.MinTimeLimit, models.MaxTimeLimit)

// App holds the process-wide game settings and persists them.
type App struct {
	store Store

	mu       sync.RWMutex
	settings models.GameSettings
	lastErr  string
}

// NewApp creates a settings App with default settings. Call LoadSettings to
// read the persisted ones.
func NewApp(store Store) *App {
	return &App{
		store:    store,
		settings: models.DefaultSettings(),
	}
}

func (a *App) Settings() models.GameSettings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

// Scoring returns the current point deltas. Score computation reads it at
// call time, so changes apply to existing games too.
func (a *App) Scoring() models.Scoring {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings.Scoring
}

func (a *App) DefaultTimeLimit() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings.TimeLimit
}

// UpdateSettings merges u into the current settings and persists them.
func (a *App) UpdateSettings(ctx context.Context, u Update) error {
	if u.TimeLimit != nil && (*u.TimeLimit < models.MinTimeLimit || *u.TimeLimit > models.MaxTimeLimit) {
		a.setError(msgUpdateSettings)
		return ErrInvalidTimeLimit
	}

	a.mu.Lock()
	if u.TimeLimit != nil {
		a.settings.TimeLimit = *u.TimeLimit
	}
	if u.Scoring != nil {
		a.settings.Scoring = u.Scoring.apply(a.settings.Scoring)
	}
	snapshot := a.settings
	a.mu.Unlock()

	return a.save(ctx, snapshot, msgUpdateSettings)
}

// UpdateScoring merges u into the current scoring and persists the settings.
func (a *App) UpdateScoring(ctx context.Context, u ScoringUpdate) error {
	a.mu.Lock()
	a.settings.Scoring = u.apply(a.settings.Scoring)
	snapshot := a.settings
	a.mu.Unlock()

	return a.save(ctx, snapshot, msgUpdateScoring)
}

// ResetToDefaults restores and persists the default settings.
func (a *App) ResetToDefaults(ctx context.Context) error {
	a.mu.Lock()
	a.settings = models.DefaultSettings()
	snapshot := a.settings
	a.mu.Unlock()

	return a.save(ctx, snapshot, msgReset)
}

// LoadSettings replaces the in-memory settings with the persisted ones.
func (a *App) LoadSettings(ctx context.Context) {
	env := a.store.Load(ctx)

	a.mu.Lock()
	a.settings = env.Settings
	a.mu.Unlock()
}

func (a *App) LastError() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastErr
}

func (a *App) ClearError() {
	a.setError("")
}

func (a *App) save(ctx context.Context, s models.GameSettings, msg string) error {
	if err := a.store.Save(ctx, storage.Partial{Settings: &s}); err != nil {
		log.Error().Err(err).Msg("failed to save settings")
		a.setError(msg)
		return errors.Join(errors.New(msg), err)
	}
	a.setError("")
	return nil
}

func (a *App) setError(msg string) {
	a.mu.Lock()
	a.lastErr = msg
	a.mu.Unlock()
}

func (u ScoringUpdate) apply(s models.Scoring) models.Scoring {
	if u.Correct != nil {
		s.Correct = *u.Correct
	}
	if u.Incorrect != nil {
		s.Incorrect = *u.Incorrect
	}
	if u.Pasapalabra != nil {
		s.Pasapalabra = *u.Pasapalabra
	}
	return s
}
