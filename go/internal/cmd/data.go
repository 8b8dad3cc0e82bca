package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mcdev12/pasapalabra/go/internal/settings"
)

// SettingsCmd groups the settings subcommands.
type SettingsCmd struct {
	Show  SettingsShowCmd  `cmd:"" default:"1" help:"Show the settings"`
	Set   SettingsSetCmd   `cmd:"" help:"Change the settings"`
	Reset SettingsResetCmd `cmd:"" help:"Restore the default settings"`
}

type SettingsShowCmd struct{}

func (c *SettingsShowCmd) Run(ctx context.Context, rt *Runtime) error {
	s, err := rt.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	printSettings(rt.Out, s.Settings)
	return nil
}

type SettingsSetCmd struct {
	TimeLimit   *int `name:"time-limit" help:"Default time limit in seconds"`
	Correct     *int `help:"Points for a correct letter"`
	Incorrect   *int `help:"Points for an incorrect letter"`
	Pasapalabra *int `help:"Points for a skipped letter"`
}

func (c *SettingsSetCmd) Run(ctx context.Context, rt *Runtime) error {
	s, err := rt.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	u := settings.Update{TimeLimit: c.TimeLimit}
	if c.Correct != nil || c.Incorrect != nil || c.Pasapalabra != nil {
		u.Scoring = &settings.ScoringUpdate{
			Correct:     c.Correct,
			Incorrect:   c.Incorrect,
			Pasapalabra: c.Pasapalabra,
		}
	}
	if err := s.Settings.UpdateSettings(ctx, u); err != nil {
		return err
	}
	printSettings(rt.Out, s.Settings)
	return nil
}

type SettingsResetCmd struct{}

func (c *SettingsResetCmd) Run(ctx context.Context, rt *Runtime) error {
	s, err := rt.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Settings.ResetToDefaults(ctx); err != nil {
		return err
	}
	printSettings(rt.Out, s.Settings)
	return nil
}

func printSettings(out io.Writer, app *settings.App) {
	st := app.Settings()
	fmt.Fprintf(out, "time limit:  %ds\n", st.TimeLimit)
	fmt.Fprintf(out, "correct:     %+d\n", st.Scoring.Correct)
	fmt.Fprintf(out, "incorrect:   %+d\n", st.Scoring.Incorrect)
	fmt.Fprintf(out, "pasapalabra: %+d\n", st.Scoring.Pasapalabra)
}

// ExportCmd implements the 'export' command.
type ExportCmd struct {
	Output string `short:"o" help:"Write to this file instead of stdout"`
}

func (c *ExportCmd) Run(ctx context.Context, rt *Runtime) error {
	s, err := rt.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	data, err := s.Store.Export(ctx)
	if err != nil {
		return err
	}
	if c.Output == "" {
		_, err = fmt.Fprintln(rt.Out, data)
		return err
	}
	if err := os.WriteFile(c.Output, []byte(data+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// ImportCmd implements the 'import' command.
type ImportCmd struct {
	File string `arg:"" help:"File to import, or - for stdin"`
}

func (c *ImportCmd) Run(ctx context.Context, rt *Runtime) error {
	var (
		data []byte
		err  error
	)
	if c.File == "-" {
		data, err = io.ReadAll(rt.In)
	} else {
		data, err = os.ReadFile(c.File)
	}
	if err != nil {
		return fmt.Errorf("failed to read import: %w", err)
	}

	s, err := rt.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Store.Import(ctx, string(data)); err != nil {
		return err
	}
	s.Reload(ctx)
	_ = s.Bus.EmitGameUpdated(ctx, "", map[string]any{"imported": true})

	fmt.Fprintf(rt.Out, "imported %d games\n", len(s.Games.Games()))
	return nil
}

// ClearCmd implements the 'clear' command.
type ClearCmd struct {
	Force bool `help:"Confirm that every game and setting should be removed"`
}

func (c *ClearCmd) Run(ctx context.Context, rt *Runtime) error {
	if !c.Force {
		return errors.New("refusing to clear without --force")
	}

	s, err := rt.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Store.Clear(ctx); err != nil {
		return err
	}
	if err := s.Bus.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(rt.Out, "cleared")
	return nil
}
