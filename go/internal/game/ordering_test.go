package game_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/pasapalabra/go/internal/events"
	"github.com/mcdev12/pasapalabra/go/internal/game"
	"github.com/mcdev12/pasapalabra/go/internal/models"
	"github.com/mcdev12/pasapalabra/go/internal/storage"
	"github.com/mcdev12/pasapalabra/go/internal/storage/memory"
)

// gatedStore blocks the first Save after it is armed until release is closed.
type gatedStore struct {
	game.Store
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) Save(ctx context.Context, p storage.Partial) error {
	if s.armed.CompareAndSwap(true, false) {
		close(s.entered)
		<-s.release
	}
	return s.Store.Save(ctx, p)
}

func newBareApp(t *testing.T, wrap func(game.Store) game.Store) (*game.App, *storage.Store) {
	t.Helper()
	h := memory.New().Handle()
	t.Cleanup(func() { _ = h.Close() })

	store := storage.NewStore(h)
	var s game.Store = store
	if wrap != nil {
		s = wrap(store)
	}
	bus := events.NewBus(events.NewMediumTransport(h, ""))
	return game.NewApp(s, bus, nil), store
}

func TestSavesLandInTheOrderOfChanges(t *testing.T) {
	ctx := context.Background()
	gated := &gatedStore{entered: make(chan struct{}), release: make(chan struct{})}
	app, store := newBareApp(t, func(s game.Store) game.Store {
		gated.Store = s
		return gated
	})

	g, err := app.CreateGame(ctx, "Ronda", 300)
	require.NoError(t, err)

	gated.armed.Store(true)
	tickDone := make(chan error, 1)
	go func() {
		_, err := app.SyncTimer(ctx, g.ID, 250)
		tickDone <- err
	}()
	<-gated.entered

	letterDone := make(chan error, 1)
	go func() {
		_, err := app.UpdateLetterState(ctx, g.ID, "a", models.LetterStateCorrect)
		letterDone <- err
	}()
	select {
	case <-letterDone:
		t.Fatal("letter update saved while the tick save was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(gated.release)
	require.NoError(t, <-tickDone)
	require.NoError(t, <-letterDone)

	persisted := store.Load(ctx).Games[g.ID]
	assert.Equal(t, models.LetterStateCorrect, persisted.Alphabet[0].State)
	assert.Equal(t, 250, persisted.CurrentTime)

	app.LoadGames(ctx)
	reloaded, ok := app.Game(g.ID)
	require.True(t, ok)
	assert.Equal(t, models.LetterStateCorrect, reloaded.Alphabet[0].State)
	assert.Equal(t, 250, reloaded.CurrentTime)
}

func TestConcurrentTicksAndLettersMatchStore(t *testing.T) {
	ctx := context.Background()
	app, store := newBareApp(t, nil)

	g, err := app.CreateGame(ctx, "Ronda", 300)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for s := 299; s >= 200; s-- {
			_, err := app.SyncTimer(ctx, g.ID, s)
			assert.NoError(t, err)
		}
	}()
	for _, l := range g.Alphabet {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := app.UpdateLetterState(ctx, g.ID, l.Char, models.LetterStateCorrect)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	inMemory, ok := app.Game(g.ID)
	require.True(t, ok)
	persisted := store.Load(ctx).Games[g.ID]
	assert.Equal(t, inMemory, persisted)
	assert.Equal(t, 200, persisted.CurrentTime)
	assert.Equal(t, 27, persisted.CountByState()[models.LetterStateCorrect])

	app.LoadGames(ctx)
	reloaded, _ := app.Game(g.ID)
	assert.Equal(t, inMemory, reloaded)
}

type failingBroadcaster struct{}

var errBroadcast = errors.New("sync channel unavailable")

func (failingBroadcaster) EmitLetterChanged(context.Context, string, string, models.LetterState) error {
	return errBroadcast
}

func (failingBroadcaster) EmitPlayerAdded(context.Context, string, string) error {
	return errBroadcast
}

func (failingBroadcaster) EmitGameUpdated(context.Context, string, map[string]any) error {
	return errBroadcast
}

func (failingBroadcaster) EmitTimerTick(context.Context, string, int) error {
	return errBroadcast
}

func TestBroadcastFailureIsReported(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStore(memory.New().Handle())
	app := game.NewApp(store, failingBroadcaster{}, nil)

	g, err := app.CreateGame(ctx, "Ronda", 300)
	require.NoError(t, err, "the game is persisted even when the broadcast fails")
	assert.Equal(t, "Error syncing changes", app.LastError())

	tests := []struct {
		name string
		run  func() error
	}{
		{name: "letter", run: func() error {
			_, err := app.UpdateLetterState(ctx, g.ID, "b", models.LetterStateIncorrect)
			return err
		}},
		{name: "player", run: func() error {
			_, err := app.SetPlayer(ctx, g.ID, "Ana")
			return err
		}},
		{name: "status", run: func() error {
			_, err := app.StartGame(ctx, g.ID)
			return err
		}},
		{name: "tick", run: func() error {
			_, err := app.SyncTimer(ctx, g.ID, 120)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.ClearError()
			require.NoError(t, tt.run())
			assert.Equal(t, "Error syncing changes", app.LastError())
		})
	}

	persisted := store.Load(ctx).Games[g.ID]
	assert.Equal(t, models.LetterStateIncorrect, persisted.Alphabet[1].State)
	assert.Equal(t, "Ana", persisted.PlayerName)
	assert.Equal(t, models.GameStatusActive, persisted.Status)
	assert.Equal(t, 120, persisted.CurrentTime)

	app.ClearError()
	require.NoError(t, app.DeleteGame(ctx, g.ID))
	assert.Equal(t, "Error syncing changes", app.LastError())
}
