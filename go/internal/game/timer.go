package game

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pasapalabra/go/internal/timer"
)

// NewGameTimer creates a countdown bound to the game. It starts from the
// game's stored remaining time, stores every tick through SyncTimer and
// finishes the game when it reaches zero. Callbacks in opts still run after
// the game has been updated. opts.Duration is replaced by the time limit.
func (a *App) NewGameTimer(ctx context.Context, id string, opts timer.Options) (*timer.CountdownTimer, error) {
	g, ok := a.Game(id)
	if !ok {
		a.setError(msgGameNotFound)
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}

	onTick, onFinish := opts.OnTick, opts.OnFinish
	autoStart := opts.AutoStart

	opts.Duration = g.TimeLimit
	opts.AutoStart = false
	opts.OnTick = func(remaining int) {
		if _, err := a.SyncTimer(ctx, id, remaining); err != nil {
			log.Warn().Err(err).Str("game_id", id).Int("remaining", remaining).Msg("failed to sync timer")
		}
		if onTick != nil {
			onTick(remaining)
		}
	}
	opts.OnFinish = func() {
		a.metrics.RecordTimerFinished()
		if _, err := a.FinishGame(ctx, id); err != nil {
			log.Warn().Err(err).Str("game_id", id).Msg("failed to finish game")
		}
		log.Info().Str("game_id", id).Msg("game timer finished")
		if onFinish != nil {
			onFinish()
		}
	}

	t := timer.New(opts)
	t.SetTime(g.CurrentTime)
	if autoStart {
		t.Start()
	}
	return t, nil
}
