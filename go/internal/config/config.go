package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/pasapalabra/go/internal/storage"
)

// DefaultPath is the YAML file read when no path is given.
const DefaultPath = "pasapalabra.yaml"

// Medium kinds.
const (
	MediumMemory   = "memory"
	MediumFile     = "file"
	MediumSQLite   = "sqlite"
	MediumNATS     = "nats"
	MediumPostgres = "postgres"
)

// Transport kinds.
const (
	TransportMedium    = "medium"
	TransportWebSocket = "websocket"
)

var (
	mediums    = []string{MediumMemory, MediumFile, MediumSQLite, MediumNATS, MediumPostgres}
	transports = []string{TransportMedium, TransportWebSocket}
)

type Config struct {
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	Storage   StorageConfig `yaml:"storage"`
	Sync      SyncConfig    `yaml:"sync"`
	Gateway   GatewayConfig `yaml:"gateway"`
	Reconcile time.Duration `yaml:"reconcile_interval" env:"PASAPALABRA_RECONCILE_INTERVAL"`
	Metrics   bool          `yaml:"metrics_enabled" env:"PASAPALABRA_METRICS_ENABLED"`

	// DB is read from the DB_* variables.
	DB DBConfig `yaml:"-"`
}

type StorageConfig struct {
	Medium      string `yaml:"medium" env:"PASAPALABRA_MEDIUM"`
	DataDir     string `yaml:"data_dir" env:"PASAPALABRA_DATA_DIR"`
	SQLitePath  string `yaml:"sqlite_path" env:"PASAPALABRA_SQLITE_PATH"`
	NATSURL     string `yaml:"nats_url" env:"NATS_URL"`
	NATSBucket  string `yaml:"nats_bucket" env:"PASAPALABRA_NATS_BUCKET"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	DataKey     string `yaml:"data_key" env:"PASAPALABRA_DATA_KEY"`
	SyncKey     string `yaml:"sync_key" env:"PASAPALABRA_SYNC_KEY"`
}

type SyncConfig struct {
	Transport  string `yaml:"transport" env:"PASAPALABRA_TRANSPORT"`
	GatewayURL string `yaml:"gateway_url" env:"PASAPALABRA_GATEWAY_URL"`
}

type GatewayConfig struct {
	Addr string `yaml:"addr" env:"PASAPALABRA_GATEWAY_ADDR"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		LogLevel: "info",
		Storage: StorageConfig{
			Medium:     MediumFile,
			DataDir:    ".pasapalabra",
			SQLitePath: "pasapalabra.db",
			NATSURL:    "nats://127.0.0.1:4222",
			NATSBucket: "PASAPALABRA",
			DataKey:    storage.DefaultDataKey,
			SyncKey:    storage.DefaultSyncKey,
		},
		Sync: SyncConfig{
			Transport:  TransportMedium,
			GatewayURL: "http://localhost:8090",
		},
		Gateway: GatewayConfig{
			Addr: ":8090",
		},
		Reconcile: 30 * time.Second,
		DB:        DefaultDBConfig(),
	}
}

// LoadDotEnv loads .env style files into the environment. A missing file is
// logged and ignored.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}
}

// Load builds the configuration from defaults, the YAML file at path and the
// environment, in that order. An empty path reads DefaultPath if it exists.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the medium and transport kinds and their required settings.
func (c Config) Validate() error {
	var errs []error
	if !slices.Contains(mediums, c.Storage.Medium) {
		errs = append(errs, fmt.Errorf("unknown medium %q (want one of %s)", c.Storage.Medium, strings.Join(mediums, ", ")))
	}
	if !slices.Contains(transports, c.Sync.Transport) {
		errs = append(errs, fmt.Errorf("unknown transport %q (want one of %s)", c.Sync.Transport, strings.Join(transports, ", ")))
	}
	if c.Sync.Transport == TransportWebSocket && c.Sync.GatewayURL == "" {
		errs = append(errs, errors.New("websocket transport requires a gateway url"))
	}
	if c.Storage.Medium == MediumFile && c.Storage.DataDir == "" {
		errs = append(errs, errors.New("file medium requires a data dir"))
	}
	if c.Storage.Medium == MediumSQLite && c.Storage.SQLitePath == "" {
		errs = append(errs, errors.New("sqlite medium requires a path"))
	}
	if c.Reconcile < 0 {
		errs = append(errs, errors.New("reconcile interval must not be negative"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// PostgresURL returns DatabaseURL, or the DSN built from the DB_* settings.
func (c Config) PostgresURL() string {
	if c.Storage.DatabaseURL != "" {
		return c.Storage.DatabaseURL
	}
	return c.DB.DSN()
}

// Level returns the zerolog level, defaulting to info.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
