package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mcdev12/pasapalabra/go/internal/events"
	"github.com/mcdev12/pasapalabra/go/internal/gateway"
	"github.com/mcdev12/pasapalabra/go/internal/metrics"
	"github.com/mcdev12/pasapalabra/go/internal/models"
	"github.com/mcdev12/pasapalabra/go/internal/session"
	"github.com/mcdev12/pasapalabra/go/internal/timer"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct{}

func (c *WatchCmd) Run(ctx context.Context, rt *Runtime) error {
	s, err := rt.OpenLive(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, t := range events.AllTypes {
		s.Bus.Subscribe(t, func(e events.Event) {
			fmt.Fprintln(rt.Out, formatEvent(e))
		})
	}
	fmt.Fprintf(rt.Out, "watching %s sync events, press Ctrl+C to stop\n", rt.Config.Storage.Medium)

	<-ctx.Done()
	return nil
}

func formatEvent(e events.Event) string {
	ts := e.Time().Local().Format(time.TimeOnly)
	gameID := e.GameID
	if gameID == "" {
		gameID = "-"
	}
	return fmt.Sprintf("%s %-14s game=%s %s", ts, e.Type, gameID, string(e.Data))
}

// PlayCmd implements the 'play' command.
type PlayCmd struct {
	GameRef `embed:""`
}

const playHelp = `commands: <letter> <c|i|p|u>  pause  resume  +N  -N  quit`

func (c *PlayCmd) Run(ctx context.Context, rt *Runtime) error {
	s, err := rt.OpenLive(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	g, err := resolveGame(s, c.Game)
	if err != nil {
		return err
	}
	if g.Status == models.GameStatusFinished || g.CurrentTime == 0 {
		return fmt.Errorf("game %s is already finished", g.Name)
	}

	finished := make(chan struct{})
	var once sync.Once
	ct, err := s.Games.NewGameTimer(ctx, g.ID, timer.Options{
		OnTick: func(remaining int) {
			fmt.Fprintf(rt.Out, "\r%s ", timer.FormatTime(remaining))
		},
		OnFinish: func() { once.Do(func() { close(finished) }) },
	})
	if err != nil {
		return err
	}
	defer ct.Close()

	if _, err := s.Games.StartGame(ctx, g.ID); err != nil {
		return err
	}
	ct.Start()
	fmt.Fprintf(rt.Out, "%s: %s left\n%s\n", g.Name, ct.Formatted(), playHelp)

	lines := readLines(ctx, rt.In)
	for {
		select {
		case <-ctx.Done():
			return c.stop(context.WithoutCancel(ctx), s, ct, g.ID)
		case <-finished:
			final, _ := s.Games.Game(g.ID)
			fmt.Fprintf(rt.Out, "\ntime is up, final score %d\n", s.Games.CalculateScore(final))
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			quit, err := c.handle(ctx, rt.Out, s, ct, g.ID, line)
			if err != nil {
				fmt.Fprintln(rt.Out, "error:", err)
			}
			if quit {
				return c.stop(ctx, s, ct, g.ID)
			}
		}
	}
}

var stateShortcuts = map[string]models.LetterState{
	"c": models.LetterStateCorrect, "correct": models.LetterStateCorrect,
	"i": models.LetterStateIncorrect, "incorrect": models.LetterStateIncorrect,
	"p": models.LetterStatePasapalabra, "pasapalabra": models.LetterStatePasapalabra,
	"u": models.LetterStatePending, "pending": models.LetterStatePending,
}

func (c *PlayCmd) handle(ctx context.Context, out io.Writer, s *session.Session, ct *timer.CountdownTimer, id, line string) (quit bool, err error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false, nil
	}

	switch cmd := fields[0]; {
	case cmd == "quit" || cmd == "q":
		return true, nil
	case cmd == "pause":
		ct.Pause()
		_, err = s.Games.PauseGame(ctx, id)
		fmt.Fprintf(out, "paused at %s\n", ct.Formatted())
		return false, err
	case cmd == "resume":
		if _, err = s.Games.StartGame(ctx, id); err != nil {
			return false, err
		}
		ct.Resume()
		return false, nil
	case strings.HasPrefix(cmd, "+") || strings.HasPrefix(cmd, "-"):
		n, convErr := strconv.Atoi(cmd[1:])
		if convErr != nil {
			return false, fmt.Errorf("invalid seconds %q", cmd)
		}
		if cmd[0] == '+' {
			ct.AddTime(n)
		} else {
			ct.SubtractTime(n)
		}
		_, err = s.Games.SyncTimer(ctx, id, ct.Remaining())
		fmt.Fprintf(out, "%s left\n", ct.Formatted())
		return false, err
	case len(fields) == 2:
		state, ok := stateShortcuts[fields[1]]
		if !ok {
			return false, fmt.Errorf("unknown state %q", fields[1])
		}
		g, err := s.Games.UpdateLetterState(ctx, id, fields[0], state)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "%s %s, score %d\n", models.NormalizeLetter(fields[0]), state, s.Games.CalculateScore(g))
		return false, nil
	default:
		return false, errors.New(playHelp)
	}
}

// stop pauses the game so the remaining time is kept for the next session.
func (c *PlayCmd) stop(ctx context.Context, s *session.Session, ct *timer.CountdownTimer, id string) error {
	ct.Pause()
	if _, err := s.Games.SyncTimer(ctx, id, ct.Remaining()); err != nil {
		return err
	}
	_, err := s.Games.PauseGame(ctx, id)
	return err
}

// readLines delivers lines from r until EOF or ctx is done.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// GatewayCmd implements the 'gateway' command.
type GatewayCmd struct {
	Addr string `help:"Listen address (defaults to the configured one)"`
}

func (c *GatewayCmd) Run(ctx context.Context, rt *Runtime) error {
	cfg := gateway.DefaultConfig()
	cfg.Addr = rt.Config.Gateway.Addr
	if c.Addr != "" {
		cfg.Addr = c.Addr
	}

	var m *metrics.Prometheus
	if rt.Config.Metrics {
		m = metrics.NewPrometheus(prometheus.NewRegistry())
	}
	return gateway.Run(ctx, cfg, m)
}
