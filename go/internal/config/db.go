package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// DBConfig holds Postgres connection settings read from the DB_* variables.
type DBConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Database string `env:"DB_NAME" envDefault:"pasapalabra"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

func DefaultDBConfig() DBConfig {
	return DBConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "pasapalabra",
		SSLMode:  "disable",
	}
}

// ParseDB reads only the DB_* variables, for tools that need nothing else.
func ParseDB() (DBConfig, error) {
	var c DBConfig
	if err := env.Parse(&c); err != nil {
		return DBConfig{}, fmt.Errorf("failed to parse db env: %w", err)
	}
	return c, nil
}

// DSN returns the Postgres connection URL.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}
