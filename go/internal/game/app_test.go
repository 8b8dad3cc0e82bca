package game_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/pasapalabra/go/internal/events"
	"github.com/mcdev12/pasapalabra/go/internal/game"
	"github.com/mcdev12/pasapalabra/go/internal/models"
	"github.com/mcdev12/pasapalabra/go/internal/settings"
	"github.com/mcdev12/pasapalabra/go/internal/storage"
	"github.com/mcdev12/pasapalabra/go/internal/storage/memory"
)

type testContext struct {
	app      *game.App
	settings *settings.App
	store    *storage.Store
	bus      *events.Bus
	events   []events.Event
}

func sequence(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// newContext wires one simulated context onto the shared medium.
func newContext(t *testing.T, shared *memory.Medium, clock clockwork.Clock, ids func() string) *testContext {
	t.Helper()
	h := shared.Handle()
	store := storage.NewStore(h)
	bus := events.NewBus(events.NewMediumTransport(h, ""), events.WithClock(clock))
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() {
		_ = bus.Close()
		_ = h.Close()
	})

	tc := &testContext{store: store, bus: bus, settings: settings.NewApp(store)}
	tc.app = game.NewApp(store, bus, tc.settings, game.WithClock(clock), game.WithIDGenerator(ids))
	tc.app.Attach(bus)
	for _, typ := range events.AllTypes {
		bus.Subscribe(typ, func(e events.Event) { tc.events = append(tc.events, e) })
	}
	tc.settings.LoadSettings(context.Background())
	tc.app.LoadGames(context.Background())
	return tc
}

func newSingle(t *testing.T) (*testContext, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return newContext(t, memory.New(), clock, sequence("game")), clock
}

func TestCreateGameValid(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		timeLimit int
		wantName  string
	}{
		{name: "defaults", input: "Ronda final", timeLimit: 300, wantName: "Ronda final"},
		{name: "trimmed", input: "   abc   ", timeLimit: 60, wantName: "abc"},
		{name: "max length", input: strings.Repeat("a", 50), timeLimit: 3600, wantName: strings.Repeat("a", 50)},
		{name: "multibyte", input: "Ñandú", timeLimit: 120, wantName: "Ñandú"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			tc, _ := newSingle(t)

			g, err := tc.app.CreateGame(ctx, tt.input, tt.timeLimit)
			require.NoError(t, err)

			assert.Equal(t, tt.wantName, g.Name)
			assert.Equal(t, models.GameStatusPaused, g.Status)
			assert.Equal(t, tt.timeLimit, g.TimeLimit)
			assert.Equal(t, tt.timeLimit, g.CurrentTime)
			require.Len(t, g.Alphabet, 27)
			for i, l := range g.Alphabet {
				assert.Equal(t, models.LetterStatePending, l.State)
				assert.Equal(t, i, l.Position)
			}

			assert.Equal(t, g.ID, tc.app.CurrentGameID())
			assert.Empty(t, tc.app.LastError())

			persisted := tc.store.Load(ctx).Games
			require.Contains(t, persisted, g.ID)
			assert.Equal(t, g, persisted[g.ID])
		})
	}
}

func TestCreateGameInvalid(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		timeLimit int
		want      string
	}{
		{name: "empty name", input: "   ", timeLimit: 300, want: "Game name is required"},
		{name: "short name", input: "ab", timeLimit: 300, want: "Game name must have at least 3 characters"},
		{name: "long name", input: strings.Repeat("x", 51), timeLimit: 300, want: "Game name cannot exceed 50 characters"},
		{name: "short time", input: "Ronda", timeLimit: 59, want: "Time limit must be at least 1 minute (60 seconds)"},
		{name: "long time", input: "Ronda", timeLimit: 3601, want: "Time limit cannot exceed 1 hour (3600 seconds)"},
		{
			name:      "zero time",
			input:     "Ronda",
			timeLimit: 0,
			want:      "Time limit must be greater than 0, Time limit must be at least 1 minute (60 seconds)",
		},
		{
			name:      "combined",
			input:     "x",
			timeLimit: 4000,
			want:      "Game name must have at least 3 characters, Time limit cannot exceed 1 hour (3600 seconds)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			tc, _ := newSingle(t)
			before, err := tc.store.Export(ctx)
			require.NoError(t, err)

			_, err = tc.app.CreateGame(ctx, tt.input, tt.timeLimit)

			var verr *game.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.want, verr.Error())
			assert.Equal(t, tt.want, tc.app.LastError())

			after, err := tc.store.Export(ctx)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.Empty(t, tc.app.Games())
			assert.Empty(t, tc.events)
		})
	}
}

func TestUpdateLetterState(t *testing.T) {
	ctx := context.Background()
	tc, _ := newSingle(t)
	g, err := tc.app.CreateGame(ctx, "Ronda", 300)
	require.NoError(t, err)
	tc.events = nil

	updated, err := tc.app.UpdateLetterState(ctx, g.ID, "ñ", models.LetterStateCorrect)
	require.NoError(t, err)
	assert.Equal(t, models.LetterStateCorrect, updated.Alphabet[14].State)
	assert.Equal(t, "Ñ", updated.Alphabet[14].Char)
	assert.Equal(t, updated, tc.store.Load(ctx).Games[g.ID])

	require.Len(t, tc.events, 1)
	payload, err := events.ParsePayload(tc.events[0])
	require.NoError(t, err)
	assert.Equal(t, events.LetterChangedPayload{Letter: "Ñ", State: models.LetterStateCorrect}, payload)
}

func TestUpdateLetterStateRejectsUnknownLetters(t *testing.T) {
	for _, char := range []string{"", "1", "AB", "ch", "ç", "?"} {
		t.Run(fmt.Sprintf("%q", char), func(t *testing.T) {
			ctx := context.Background()
			tc, _ := newSingle(t)
			g, err := tc.app.CreateGame(ctx, "Ronda", 300)
			require.NoError(t, err)
			tc.events = nil

			_, err = tc.app.UpdateLetterState(ctx, g.ID, char, models.LetterStateIncorrect)
			require.ErrorIs(t, err, game.ErrInvalidLetter)
			assert.Equal(t, "Invalid letter", tc.app.LastError())

			got, ok := tc.app.Game(g.ID)
			require.True(t, ok)
			assert.Equal(t, g.Alphabet, got.Alphabet)
			assert.Equal(t, g, tc.store.Load(ctx).Games[g.ID])
			assert.Empty(t, tc.events)
		})
	}
}

func TestUpdateLetterStateErrors(t *testing.T) {
	ctx := context.Background()
	tc, _ := newSingle(t)
	g, err := tc.app.CreateGame(ctx, "Ronda", 300)
	require.NoError(t, err)

	_, err = tc.app.UpdateLetterState(ctx, "missing", "A", models.LetterStateCorrect)
	require.ErrorIs(t, err, game.ErrGameNotFound)
	assert.Equal(t, "Game not found", tc.app.LastError())

	_, err = tc.app.UpdateLetterState(ctx, g.ID, "A", models.LetterState("skipped"))
	var verr *game.ValidationError
	require.ErrorAs(t, err, &verr)

	tc.app.ClearError()
	assert.Empty(t, tc.app.LastError())
}

func TestStatusTransitionsArePersisted(t *testing.T) {
	ctx := context.Background()
	tc, _ := newSingle(t)
	g, err := tc.app.CreateGame(ctx, "Ronda", 300)
	require.NoError(t, err)

	steps := []struct {
		op   func(context.Context, string) (models.Game, error)
		want models.GameStatus
	}{
		{op: tc.app.StartGame, want: models.GameStatusActive},
		{op: tc.app.PauseGame, want: models.GameStatusPaused},
		{op: tc.app.StartGame, want: models.GameStatusActive},
		{op: tc.app.FinishGame, want: models.GameStatusFinished},
	}
	for _, step := range steps {
		got, err := step.op(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, step.want, got.Status)
		assert.Equal(t, step.want, tc.store.Load(ctx).Games[g.ID].Status)
	}

	_, err = tc.app.StartGame(ctx, "missing")
	assert.ErrorIs(t, err, game.ErrGameNotFound)
}

func TestUpdateGame(t *testing.T) {
	ctx := context.Background()
	tc, clock := newSingle(t)
	g, err := tc.app.CreateGame(ctx, "Ronda", 300)
	require.NoError(t, err)
	tc.events = nil

	clock.Advance(time.Minute)
	name, current := "  Semifinal ", 9999
	updated, err := tc.app.UpdateGame(ctx, g.ID, game.Update{Name: &name, CurrentTime: &current})
	require.NoError(t, err)
	assert.Equal(t, "Semifinal", updated.Name)
	assert.Equal(t, 300, updated.CurrentTime, "currentTime is clamped to the time limit")
	assert.Equal(t, g.CreatedAt.Add(time.Minute), updated.UpdatedAt)

	require.Len(t, tc.events, 1)
	assert.Equal(t, events.EventTypeGameUpdated, tc.events[0].Type)
	payload, err := events.ParsePayload(tc.events[0])
	require.NoError(t, err)
	assert.Equal(t, events.GameUpdatedPayload{Updates: map[string]any{
		"name":        "Semifinal",
		"currentTime": float64(300),
	}}, payload)

	bad := "no"
	_, err = tc.app.UpdateGame(ctx, g.ID, game.Update{Name: &bad})
	var verr *game.ValidationError
	require.ErrorAs(t, err, &verr)
	got, _ := tc.app.Game(g.ID)
	assert.Equal(t, "Semifinal", got.Name)

	status := models.GameStatus("running")
	_, err = tc.app.UpdateGame(ctx, g.ID, game.Update{Status: &status})
	require.ErrorAs(t, err, &verr)
}

func TestDeleteGameReassignsCurrent(t *testing.T) {
	ctx := context.Background()
	tc, clock := newSingle(t)

	var ids []string
	for _, name := range []string{"Primera", "Segunda", "Tercera"} {
		g, err := tc.app.CreateGame(ctx, name, 300)
		require.NoError(t, err)
		ids = append(ids, g.ID)
		clock.Advance(time.Second)
	}
	require.Equal(t, ids[2], tc.app.CurrentGameID())

	require.NoError(t, tc.app.DeleteGame(ctx, ids[0]))
	assert.Equal(t, ids[2], tc.app.CurrentGameID(), "deleting another game keeps the current one")

	require.NoError(t, tc.app.DeleteGame(ctx, ids[2]))
	assert.Equal(t, ids[1], tc.app.CurrentGameID())

	require.NoError(t, tc.app.DeleteGame(ctx, ids[1]))
	assert.Empty(t, tc.app.CurrentGameID())
	_, ok := tc.app.CurrentGame()
	assert.False(t, ok)
	assert.Empty(t, tc.store.Load(ctx).Games)

	err := tc.app.DeleteGame(ctx, ids[1])
	require.ErrorIs(t, err, game.ErrGameNotFound)
	assert.Equal(t, "Game not found", tc.app.LastError())
}

func TestSetCurrentGame(t *testing.T) {
	ctx := context.Background()
	tc, _ := newSingle(t)
	first, err := tc.app.CreateGame(ctx, "Primera", 300)
	require.NoError(t, err)
	_, err = tc.app.CreateGame(ctx, "Segunda", 300)
	require.NoError(t, err)

	require.NoError(t, tc.app.SetCurrentGame(first.ID))
	current, ok := tc.app.CurrentGame()
	require.True(t, ok)
	assert.Equal(t, first.ID, current.ID)

	assert.ErrorIs(t, tc.app.SetCurrentGame("missing"), game.ErrGameNotFound)
	assert.Equal(t, first.ID, tc.app.CurrentGameID())
}

func TestGamesAndActiveGames(t *testing.T) {
	ctx := context.Background()
	tc, clock := newSingle(t)

	a, err := tc.app.CreateGame(ctx, "Primera", 300)
	require.NoError(t, err)
	clock.Advance(time.Second)
	b, err := tc.app.CreateGame(ctx, "Segunda", 300)
	require.NoError(t, err)
	_, err = tc.app.StartGame(ctx, b.ID)
	require.NoError(t, err)

	games := tc.app.Games()
	require.Len(t, games, 2)
	assert.Equal(t, a.ID, games[0].ID)
	assert.Equal(t, b.ID, games[1].ID)

	active := tc.app.ActiveGames()
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)
}

func TestCalculateScore(t *testing.T) {
	ctx := context.Background()
	tc, _ := newSingle(t)

	g := models.Game{Alphabet: models.NewAlphabet()}
	for i := range g.Alphabet {
		switch {
		case i < 10:
			g.Alphabet[i].State = models.LetterStateCorrect
		case i < 15:
			g.Alphabet[i].State = models.LetterStateIncorrect
		}
	}
	require.Equal(t, 12, g.CountByState()[models.LetterStatePending])
	assert.Equal(t, 75, tc.app.CalculateScore(g))

	correct := 20
	require.NoError(t, tc.settings.UpdateScoring(ctx, settings.ScoringUpdate{Correct: &correct}))
	assert.Equal(t, 175, tc.app.CalculateScore(g), "scoring is read at call time")

	pending := models.Game{Alphabet: models.NewAlphabet()}
	assert.Zero(t, tc.app.CalculateScore(pending))
}

func TestSetPlayerAndSyncTimer(t *testing.T) {
	ctx := context.Background()
	tc, _ := newSingle(t)
	g, err := tc.app.CreateGame(ctx, "Ronda", 120)
	require.NoError(t, err)
	tc.events = nil

	got, err := tc.app.SetPlayer(ctx, g.ID, "  Ana ")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.PlayerName)
	require.Len(t, tc.events, 1)
	payload, err := events.ParsePayload(tc.events[0])
	require.NoError(t, err)
	assert.Equal(t, events.PlayerAddedPayload{Player: "Ana"}, payload)

	tests := []struct {
		seconds int
		want    int
	}{
		{seconds: 90, want: 90},
		{seconds: -1, want: 0},
		{seconds: 500, want: 120},
	}
	for _, tt := range tests {
		got, err := tc.app.SyncTimer(ctx, g.ID, tt.seconds)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.CurrentTime)
		assert.Equal(t, tt.want, tc.store.Load(ctx).Games[g.ID].CurrentTime)
	}

	last, ok := tc.bus.Last(ctx)
	require.True(t, ok)
	assert.Equal(t, events.EventTypeTimerTick, last.Type)

	_, err = tc.app.SyncTimer(ctx, "missing", 10)
	assert.ErrorIs(t, err, game.ErrGameNotFound)
}

func TestLoadGamesPicksOldestAsCurrent(t *testing.T) {
	ctx := context.Background()
	shared := memory.New()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	ids := sequence("game")

	writer := newContext(t, shared, clock, ids)
	first, err := writer.app.CreateGame(ctx, "Primera", 300)
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = writer.app.CreateGame(ctx, "Segunda", 300)
	require.NoError(t, err)

	reader := newContext(t, shared, clock, ids)
	assert.Len(t, reader.app.Games(), 2)
	assert.Equal(t, first.ID, reader.app.CurrentGameID())
}

func TestCrossContextSync(t *testing.T) {
	ctx := context.Background()
	shared := memory.New()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	ids := sequence("game")

	a := newContext(t, shared, clock, ids)
	b := newContext(t, shared, clock, ids)

	g, err := a.app.CreateGame(ctx, "Compartida", 300)
	require.NoError(t, err)

	got, ok := b.app.Game(g.ID)
	require.True(t, ok, "the other context reloads after the broadcast")
	assert.Equal(t, g, got)
	assert.Equal(t, g.ID, b.app.CurrentGameID())

	_, err = a.app.UpdateLetterState(ctx, g.ID, "b", models.LetterStatePasapalabra)
	require.NoError(t, err)
	got, _ = b.app.Game(g.ID)
	assert.Equal(t, models.LetterStatePasapalabra, got.Alphabet[1].State)

	require.NoError(t, b.app.DeleteGame(ctx, g.ID))
	_, ok = a.app.Game(g.ID)
	assert.False(t, ok)
	assert.Empty(t, a.app.CurrentGameID())
}

type failingStore struct {
	game.Store
}

func (failingStore) Save(context.Context, storage.Partial) error {
	return errors.New("quota exceeded")
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	h := memory.New().Handle()
	store := failingStore{Store: storage.NewStore(h)}
	bus := events.NewBus(events.NewMediumTransport(h, ""))
	app := game.NewApp(store, bus, nil)

	g, err := app.CreateGame(ctx, "Ronda", 300)
	require.ErrorIs(t, err, game.ErrPersist)
	assert.Equal(t, "Error saving data", app.LastError())

	got, ok := app.Game(g.ID)
	require.True(t, ok, "memory is not rolled back")
	assert.Equal(t, g, got)
	assert.Equal(t, 0, app.CalculateScore(got))
}
