package main

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pasapalabra/go/internal/config"
)

var version = "dev"

// CLI definition & global flags
type CLI struct {
	Config   string           `short:"c" help:"Configuration file path (defaults to ./pasapalabra.yaml when present)"`
	EnvFile  []string         `name:"env-file" help:"Files to load into the environment" default:".env"`
	LogLevel string           `name:"log-level" help:"Override the configured log level"`
	Medium   string           `help:"Override the storage medium (memory, file, sqlite, nats, postgres)"`
	DataDir  string           `name:"data-dir" help:"Override the data directory of the file medium"`
	Version  kong.VersionFlag `name:"version" help:"Show version and exit"`

	Create   CreateCmd   `cmd:"" help:"Create a game"`
	List     ListCmd     `cmd:"" help:"List games"`
	Show     ShowCmd     `cmd:"" help:"Show a game and its rosco"`
	Letter   LetterCmd   `cmd:"" help:"Record the outcome of a letter"`
	Start    StartCmd    `cmd:"" help:"Mark a game active"`
	Pause    PauseCmd    `cmd:"" help:"Mark a game paused"`
	Finish   FinishCmd   `cmd:"" help:"Mark a game finished"`
	Player   PlayerCmd   `cmd:"" help:"Set the player of a game"`
	Delete   DeleteCmd   `cmd:"" help:"Delete a game"`
	Score    ScoreCmd    `cmd:"" help:"Print the score of a game"`
	Settings SettingsCmd `cmd:"" help:"Show or change the game settings"`
	Export   ExportCmd   `cmd:"" help:"Export the stored data as JSON"`
	Import   ImportCmd   `cmd:"" help:"Import data exported with 'export'"`
	Clear    ClearCmd    `cmd:"" help:"Remove all stored data"`
	Watch    WatchCmd    `cmd:"" help:"Print sync events from other contexts"`
	Play     PlayCmd     `cmd:"" help:"Run the countdown of a game interactively"`
	Gateway  GatewayCmd  `cmd:"" help:"Run the websocket sync gateway"`
}

// loadConfig layers the global flags over the configuration file and env.
func (c *CLI) loadConfig() (config.Config, error) {
	config.LoadDotEnv(c.EnvFile...)

	cfg, err := config.Load(c.Config)
	if err != nil {
		return config.Config{}, err
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
	if c.Medium != "" {
		cfg.Storage.Medium = c.Medium
	}
	if c.DataDir != "" {
		cfg.Storage.DataDir = c.DataDir
	}
	return cfg, cfg.Validate()
}

func setupLogging(cfg config.Config) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(cfg.Level())
}

// run parses args and executes the selected command.
func run(ctx context.Context, args []string, stdout io.Writer, stdin io.Reader) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("pasapalabra"),
		kong.Description("Manage timed Pasapalabra games shared between terminals."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.Writers(stdout, os.Stderr),
	)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	rt := &Runtime{
		Config: cfg,
		Out:    &lockedWriter{w: stdout},
		In:     stdin,
	}
	kctx.BindTo(ctx, (*context.Context)(nil))
	return kctx.Run(rt)
}

// lockedWriter serializes writes from timer callbacks and the command loop.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
