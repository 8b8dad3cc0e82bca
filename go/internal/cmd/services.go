package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mcdev12/pasapalabra/go/internal/config"
	"github.com/mcdev12/pasapalabra/go/internal/game"
	"github.com/mcdev12/pasapalabra/go/internal/models"
	"github.com/mcdev12/pasapalabra/go/internal/session"
)

// Runtime is what every command receives after flag parsing.
type Runtime struct {
	Config config.Config
	Out    io.Writer
	In     io.Reader
}

// Open starts a context for the command. Short-lived commands do not need
// the reconciler.
func (rt *Runtime) Open(ctx context.Context) (*session.Session, error) {
	cfg := rt.Config
	cfg.Reconcile = 0
	return session.Open(ctx, cfg)
}

// OpenLive starts a context that keeps reconciling until closed.
func (rt *Runtime) OpenLive(ctx context.Context) (*session.Session, error) {
	return session.Open(ctx, rt.Config)
}

// GameRef selects a game by id or unique id prefix.
type GameRef struct {
	Game string `short:"g" help:"Game id or unique id prefix (optional when only one game exists)"`
}

var errAmbiguousGame = errors.New("game reference is ambiguous")

func resolveGame(s *session.Session, ref string) (models.Game, error) {
	games := s.Games.Games()
	if ref == "" {
		switch len(games) {
		case 0:
			return models.Game{}, errors.New("no games yet, create one first")
		case 1:
			return games[0], nil
		default:
			return models.Game{}, fmt.Errorf("%d games exist, pass --game", len(games))
		}
	}

	if g, ok := s.Games.Game(ref); ok {
		return g, nil
	}
	var matches []models.Game
	for _, g := range games {
		if strings.HasPrefix(g.ID, ref) {
			matches = append(matches, g)
		}
	}
	switch len(matches) {
	case 0:
		return models.Game{}, fmt.Errorf("%w: %s", game.ErrGameNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return models.Game{}, fmt.Errorf("%w: %s matches %d games", errAmbiguousGame, ref, len(matches))
	}
}
