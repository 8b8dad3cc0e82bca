package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mcdev12/pasapalabra/go/internal/models"
	"github.com/mcdev12/pasapalabra/go/internal/session"
	"github.com/mcdev12/pasapalabra/go/internal/timer"
)

// CreateCmd implements the 'create' command.
type CreateCmd struct {
	Name      string `arg:"" help:"Game name (3 to 50 characters)"`
	TimeLimit int    `name:"time-limit" short:"t" help:"Time limit in seconds (defaults to the settings)"`
}

func (c *CreateCmd) Run(ctx context.Context, rt *Runtime) error {
	s, err := rt.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	limit := c.TimeLimit
	if limit == 0 {
		limit = s.Settings.DefaultTimeLimit()
	}
	g, err := s.Games.CreateGame(ctx, c.Name, limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(rt.Out, g.ID)
	return nil
}

// ListCmd implements the 'list' command.
type ListCmd struct {
	Active bool `help:"Only list active games"`
}

func (c *ListCmd) Run(ctx context.Context, rt *Runtime) error {
	s, err := rt.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	games := s.Games.Games()
	if c.Active {
		games = s.Games.ActiveGames()
	}

	w := tabwriter.NewWriter(rt.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tTIME\tSCORE\tPLAYER")
	for _, g := range games {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			g.ID, g.Name, g.Status, timer.FormatTime(g.CurrentTime), s.Games.CalculateScore(g), g.PlayerName)
	}
	return w.Flush()
}

// ShowCmd implements the 'show' command.
type ShowCmd struct {
	GameRef `embed:""`
}

func (c *ShowCmd) Run(ctx context.Context, rt *Runtime) error {
	s, err := rt.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	g, err := resolveGame(s, c.Game)
	if err != nil {
		return err
	}
	printGame(rt.Out, s, g)
	return nil
}

// LetterCmd implements the 'letter' command.
type LetterCmd struct {
	GameRef `embed:""`
	Letter string `arg:"" help:"Letter of the rosco (case-insensitive)"`
	State  string `arg:"" help:"New state" enum:"correct,incorrect,pasapalabra,pending"`
}

func (c *LetterCmd) Run(ctx context.Context, rt *Runtime) error {
	return withGame(ctx, rt, c.Game, func(s *session.Session, g models.Game) error {
		updated, err := s.Games.UpdateLetterState(ctx, g.ID, c.Letter, models.LetterState(c.State))
		if err != nil {
			return err
		}
		fmt.Fprintf(rt.Out, "%s %s (score %d)\n",
			models.NormalizeLetter(c.Letter), c.State, s.Games.CalculateScore(updated))
		return nil
	})
}

// StartCmd implements the 'start' command.
type StartCmd struct {
	GameRef `embed:""`
}

func (c *StartCmd) Run(ctx context.Context, rt *Runtime) error {
	return withGame(ctx, rt, c.Game, func(s *session.Session, g models.Game) error {
		return printStatus(rt.Out)(s.Games.StartGame(ctx, g.ID))
	})
}

// PauseCmd implements the 'pause' command.
type PauseCmd struct {
	GameRef `embed:""`
}

func (c *PauseCmd) Run(ctx context.Context, rt *Runtime) error {
	return withGame(ctx, rt, c.Game, func(s *session.Session, g models.Game) error {
		return printStatus(rt.Out)(s.Games.PauseGame(ctx, g.ID))
	})
}

// FinishCmd implements the 'finish' command.
type FinishCmd struct {
	GameRef `embed:""`
}

func (c *FinishCmd) Run(ctx context.Context, rt *Runtime) error {
	return withGame(ctx, rt, c.Game, func(s *session.Session, g models.Game) error {
		return printStatus(rt.Out)(s.Games.FinishGame(ctx, g.ID))
	})
}

// PlayerCmd implements the 'player' command.
type PlayerCmd struct {
	GameRef `embed:""`
	Name string `arg:"" help:"Player name"`
}

func (c *PlayerCmd) Run(ctx context.Context, rt *Runtime) error {
	return withGame(ctx, rt, c.Game, func(s *session.Session, g models.Game) error {
		updated, err := s.Games.SetPlayer(ctx, g.ID, c.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(rt.Out, "%s plays %s\n", updated.PlayerName, updated.Name)
		return nil
	})
}

// DeleteCmd implements the 'delete' command.
type DeleteCmd struct {
	GameRef `embed:""`
}

func (c *DeleteCmd) Run(ctx context.Context, rt *Runtime) error {
	return withGame(ctx, rt, c.Game, func(s *session.Session, g models.Game) error {
		if err := s.Games.DeleteGame(ctx, g.ID); err != nil {
			return err
		}
		fmt.Fprintf(rt.Out, "deleted %s\n", g.ID)
		return nil
	})
}

// ScoreCmd implements the 'score' command.
type ScoreCmd struct {
	GameRef `embed:""`
}

func (c *ScoreCmd) Run(ctx context.Context, rt *Runtime) error {
	return withGame(ctx, rt, c.Game, func(s *session.Session, g models.Game) error {
		fmt.Fprintln(rt.Out, s.Games.CalculateScore(g))
		return nil
	})
}

func withGame(ctx context.Context, rt *Runtime, ref string, fn func(*session.Session, models.Game) error) error {
	s, err := rt.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	g, err := resolveGame(s, ref)
	if err != nil {
		return err
	}
	return fn(s, g)
}

func printStatus(out io.Writer) func(models.Game, error) error {
	return func(g models.Game, err error) error {
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s is %s\n", g.Name, g.Status)
		return nil
	}
}

var stateSymbols = map[models.LetterState]string{
	models.LetterStatePending:     "·",
	models.LetterStateCorrect:     "✓",
	models.LetterStateIncorrect:   "✗",
	models.LetterStatePasapalabra: "↻",
}

func printGame(out io.Writer, s *session.Session, g models.Game) {
	counts := g.CountByState()
	fmt.Fprintf(out, "%s (%s)\n", g.Name, g.ID)
	if g.PlayerName != "" {
		fmt.Fprintf(out, "player:  %s\n", g.PlayerName)
	}
	fmt.Fprintf(out, "status:  %s\n", g.Status)
	fmt.Fprintf(out, "time:    %s / %s (%d%%)\n",
		timer.FormatTime(g.CurrentTime), timer.FormatTime(g.TimeLimit), timer.Percentage(g.CurrentTime, g.TimeLimit))
	fmt.Fprintf(out, "score:   %d\n", s.Games.CalculateScore(g))
	fmt.Fprintf(out, "letters: %d correct, %d incorrect, %d pasapalabra, %d pending\n",
		counts[models.LetterStateCorrect], counts[models.LetterStateIncorrect],
		counts[models.LetterStatePasapalabra], counts[models.LetterStatePending])

	cells := make([]string, 0, len(g.Alphabet))
	for _, l := range g.Alphabet {
		cells = append(cells, l.Char+stateSymbols[l.State])
	}
	fmt.Fprintln(out, strings.Join(cells, " "))
}
