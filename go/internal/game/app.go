package game

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pasapalabra/go/internal/events"
	"github.com/mcdev12/pasapalabra/go/internal/metrics"
	"github.com/mcdev12/pasapalabra/go/internal/models"
	"github.com/mcdev12/pasapalabra/go/internal/storage"
)

// App owns the in-memory games of one context. Every mutation is written
// through the store and then announced on the broadcaster.
//
// Writers hold saveMu from the in-memory change through the store write, so
// the saves of one context land in the order its changes were made. Neither
// mutex is held while broadcasting: media may call watchers synchronously,
// and those watchers reload other Apps.
type App struct {
	store   Store
	bus     Broadcaster
	scoring ScoringProvider
	clock   clockwork.Clock
	metrics metrics.Collector
	newID   func() string

	saveMu    sync.Mutex
	mu        sync.RWMutex
	games     map[string]models.Game
	currentID string
	lastErr   string
	origin    string
}

// Option configures an App.
type Option func(*App)

func WithClock(c clockwork.Clock) Option {
	return func(a *App) { a.clock = c }
}

func WithMetrics(c metrics.Collector) Option {
	return func(a *App) { a.metrics = metrics.OrNoOp(c) }
}

// WithIDGenerator replaces the UUID generator used for new games.
func WithIDGenerator(fn func() string) Option {
	return func(a *App) { a.newID = fn }
}

// NewApp creates a new game App. Call LoadGames to read the persisted games.
func NewApp(store Store, bus Broadcaster, scoring ScoringProvider, opts ...Option) *App {
	a := &App{
		store:   store,
		bus:     bus,
		scoring: scoring,
		clock:   clockwork.NewRealClock(),
		metrics: metrics.NoOp{},
		newID:   uuid.NewString,
		games:   make(map[string]models.Game),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CreateGame validates the request and creates a paused game with a fresh
// rosco. The new game becomes the current one.
func (a *App) CreateGame(ctx context.Context, name string, timeLimit int) (models.Game, error) {
	if err := validationError(ValidateGameName(name), ValidateTimeLimit(timeLimit)); err != nil {
		a.setError(err.Error())
		return models.Game{}, err
	}

	now := a.now()
	game := models.Game{
		ID:          a.newID(),
		Name:        strings.TrimSpace(name),
		Status:      models.GameStatusPaused,
		TimeLimit:   timeLimit,
		CurrentTime: timeLimit,
		Alphabet:    models.NewAlphabet(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	a.saveMu.Lock()
	a.mu.Lock()
	a.games[game.ID] = game
	a.currentID = game.ID
	a.mu.Unlock()
	err := a.persist(ctx)
	a.saveMu.Unlock()
	if err != nil {
		return game.Clone(), err
	}

	log.Info().Str("game_id", game.ID).Str("name", game.Name).Int("time_limit", timeLimit).Msg("created game")
	a.announce(a.bus.EmitGameUpdated(ctx, game.ID, map[string]any{
		"created":     true,
		"name":        game.Name,
		"status":      string(game.Status),
		"timeLimit":   game.TimeLimit,
		"currentTime": game.CurrentTime,
	}))
	return game.Clone(), nil
}

// UpdateGame merges u into the game, persists and broadcasts game_updated
// with the applied fields.
func (a *App) UpdateGame(ctx context.Context, id string, u Update) (models.Game, error) {
	if err := u.validate(); err != nil {
		a.setError(err.Error())
		return models.Game{}, err
	}

	game, err := a.update(ctx, id, func(g *models.Game) error {
		u.apply(g)
		return nil
	})
	if err != nil {
		return game, err
	}

	fields := u.Fields()
	if u.TimeLimit != nil || u.CurrentTime != nil {
		fields["currentTime"] = game.CurrentTime
	}
	a.announce(a.bus.EmitGameUpdated(ctx, id, fields))
	return game, nil
}

// StartGame marks the game active.
func (a *App) StartGame(ctx context.Context, id string) (models.Game, error) {
	return a.UpdateGame(ctx, id, StatusUpdate(models.GameStatusActive))
}

// PauseGame marks the game paused.
func (a *App) PauseGame(ctx context.Context, id string) (models.Game, error) {
	return a.UpdateGame(ctx, id, StatusUpdate(models.GameStatusPaused))
}

// FinishGame marks the game finished.
func (a *App) FinishGame(ctx context.Context, id string) (models.Game, error) {
	return a.UpdateGame(ctx, id, StatusUpdate(models.GameStatusFinished))
}

// UpdateLetterState records the outcome of one letter. The letter is matched
// case-insensitively against the alphabet.
func (a *App) UpdateLetterState(ctx context.Context, id, char string, state models.LetterState) (models.Game, error) {
	if !state.Valid() {
		err := &ValidationError{Errors: []string{msgInvalidState}}
		a.setError(err.Error())
		return models.Game{}, err
	}

	letter := models.NormalizeLetter(char)
	game, err := a.update(ctx, id, func(g *models.Game) error {
		i := g.LetterIndex(letter)
		if i < 0 {
			return ErrInvalidLetter
		}
		g.Alphabet[i].State = state
		return nil
	})
	if errors.Is(err, ErrInvalidLetter) {
		a.setError(msgInvalidLetter)
		return models.Game{}, fmt.Errorf("%w: %q", ErrInvalidLetter, char)
	}
	if err != nil {
		return game, err
	}

	a.announce(a.bus.EmitLetterChanged(ctx, id, letter, state))
	return game, nil
}

// SetPlayer records the player of the game and broadcasts player_added.
func (a *App) SetPlayer(ctx context.Context, id, player string) (models.Game, error) {
	player = strings.TrimSpace(player)
	game, err := a.update(ctx, id, func(g *models.Game) error {
		g.PlayerName = player
		return nil
	})
	if err != nil {
		return game, err
	}

	a.announce(a.bus.EmitPlayerAdded(ctx, id, player))
	return game, nil
}

// SyncTimer stores the remaining time of the game, clamped to
// [0, TimeLimit], and broadcasts timer_tick.
func (a *App) SyncTimer(ctx context.Context, id string, seconds int) (models.Game, error) {
	game, err := a.update(ctx, id, func(g *models.Game) error {
		g.CurrentTime = min(max(seconds, 0), g.TimeLimit)
		return nil
	})
	if err != nil {
		return game, err
	}

	// Ticks only record failures so an earlier error stays readable.
	if err := a.bus.EmitTimerTick(ctx, id, game.CurrentTime); err != nil {
		a.setError(msgSync)
	}
	return game, nil
}

// DeleteGame removes the game from memory and from the store. When it was
// the current game, the oldest remaining game becomes current.
func (a *App) DeleteGame(ctx context.Context, id string) error {
	a.saveMu.Lock()
	a.mu.Lock()
	if _, ok := a.games[id]; !ok {
		a.lastErr = msgGameNotFound
		a.mu.Unlock()
		a.saveMu.Unlock()
		return fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	delete(a.games, id)
	if a.currentID == id {
		a.currentID = firstID(a.games)
	}
	a.mu.Unlock()

	err := a.store.Delete(ctx, id)
	a.saveMu.Unlock()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Error().Err(err).Str("game_id", id).Msg("failed to delete game from storage")
		a.setError(msgDelete)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	log.Info().Str("game_id", id).Msg("deleted game")
	a.announce(a.bus.EmitGameUpdated(ctx, id, map[string]any{"deleted": true}))
	return nil
}

// SetCurrentGame selects the game shown by default.
func (a *App) SetCurrentGame(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.games[id]; !ok {
		a.lastErr = msgGameNotFound
		return fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	a.currentID = id
	a.lastErr = ""
	return nil
}

// CurrentGame returns the current game, if any.
func (a *App) CurrentGame() (models.Game, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	g, ok := a.games[a.currentID]
	return g.Clone(), ok
}

func (a *App) CurrentGameID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.currentID
}

func (a *App) Game(id string) (models.Game, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	g, ok := a.games[id]
	return g.Clone(), ok
}

// Games returns every game, oldest first.
func (a *App) Games() []models.Game {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.Game, 0, len(a.games))
	for _, g := range a.games {
		out = append(out, g.Clone())
	}
	slices.SortFunc(out, compareGames)
	return out
}

// ActiveGames returns the games whose status is active, oldest first.
func (a *App) ActiveGames() []models.Game {
	var out []models.Game
	for _, g := range a.Games() {
		if g.Status == models.GameStatusActive {
			out = append(out, g)
		}
	}
	return out
}

// CalculateScore sums the configured points of every answered letter. The
// scoring is read at call time.
func (a *App) CalculateScore(g models.Game) int {
	scoring := models.DefaultSettings().Scoring
	if a.scoring != nil {
		scoring = a.scoring.Scoring()
	}

	score := 0
	for _, l := range g.Alphabet {
		switch l.State {
		case models.LetterStateCorrect:
			score += scoring.Correct
		case models.LetterStateIncorrect:
			score += scoring.Incorrect
		case models.LetterStatePasapalabra:
			score += scoring.Pasapalabra
		}
	}
	return score
}

// LoadGames replaces the in-memory games with the persisted ones. When no
// valid current game is set, the oldest game becomes current.
func (a *App) LoadGames(ctx context.Context) {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	env := a.store.Load(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.games = env.Games
	if a.games == nil {
		a.games = make(map[string]models.Game)
	}
	if _, ok := a.games[a.currentID]; !ok {
		a.currentID = firstID(a.games)
	}
}

// HandleSyncEvent refreshes the games after another context changed them.
// The event payload is informational; the store is the source of truth.
func (a *App) HandleSyncEvent(e events.Event) {
	a.mu.RLock()
	own := a.origin != "" && e.Origin == a.origin
	a.mu.RUnlock()
	if own {
		return
	}

	log.Debug().Str("event_type", string(e.Type)).Str("game_id", e.GameID).Msg("reloading games after sync event")
	a.LoadGames(context.Background())
}

// Attach subscribes the App to every sync event type on bus. Events emitted
// by bus itself are ignored. The returned func detaches the App.
func (a *App) Attach(bus *events.Bus) (detach func()) {
	a.mu.Lock()
	a.origin = bus.Origin()
	a.mu.Unlock()

	unsubs := make([]func(), 0, len(events.AllTypes))
	for _, t := range events.AllTypes {
		unsubs = append(unsubs, bus.Subscribe(t, a.HandleSyncEvent))
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func (a *App) LastError() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastErr
}

func (a *App) ClearError() {
	a.setError("")
}

// update applies fn to the game and persists all games under saveMu.
func (a *App) update(ctx context.Context, id string, fn func(g *models.Game) error) (models.Game, error) {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	game, err := a.mutate(id, fn)
	if err != nil {
		return models.Game{}, err
	}
	return game, a.persist(ctx)
}

// mutate applies fn to a copy of the game and stores it.
func (a *App) mutate(id string, fn func(g *models.Game) error) (models.Game, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	current, ok := a.games[id]
	if !ok {
		a.lastErr = msgGameNotFound
		return models.Game{}, fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}

	g := current.Clone()
	if err := fn(&g); err != nil {
		return models.Game{}, err
	}
	g.UpdatedAt = a.now()
	a.games[id] = g
	return g.Clone(), nil
}

// persist writes the current games. The caller holds saveMu. On failure the
// in-memory state is kept.
func (a *App) persist(ctx context.Context) error {
	a.mu.RLock()
	games := maps.Clone(a.games)
	a.mu.RUnlock()

	if err := a.store.Save(ctx, storage.Partial{Games: &games}); err != nil {
		log.Error().Err(err).Int("games", len(games)).Msg("failed to save games")
		a.setError(msgSave)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// announce records the outcome of a broadcast. The change is already
// persisted, so a failed broadcast only shows up in LastError.
func (a *App) announce(err error) {
	if err != nil {
		a.setError(msgSync)
		return
	}
	a.setError("")
}

func (a *App) setError(msg string) {
	a.mu.Lock()
	a.lastErr = msg
	a.mu.Unlock()
}

// now is truncated to milliseconds so timestamps survive a JSON round trip
// through other clients unchanged.
func (a *App) now() time.Time {
	return a.clock.Now().UTC().Truncate(time.Millisecond)
}

func compareGames(x, y models.Game) int {
	if c := x.CreatedAt.Compare(y.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(x.ID, y.ID)
}

func firstID(games map[string]models.Game) string {
	if len(games) == 0 {
		return ""
	}
	all := slices.Collect(maps.Values(games))
	return slices.MinFunc(all, compareGames).ID
}
