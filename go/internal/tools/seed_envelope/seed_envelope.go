package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/pasapalabra/go/internal/config"
	"github.com/mcdev12/pasapalabra/go/internal/storage"
	"github.com/mcdev12/pasapalabra/go/internal/storage/pgmedium"
)

const defaultSnapshot = "pasapalabra-export.json"

// loadEnvelope reads an export file and normalizes it the same way the
// store does on load.
func loadEnvelope(path string) (storage.Envelope, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return storage.Envelope{}, nil, fmt.Errorf("read JSON: %w", err)
	}
	if !json.Valid(raw) {
		return storage.Envelope{}, nil, fmt.Errorf("%s is not valid JSON", path)
	}
	env := storage.Migrate(raw)
	data, err := json.Marshal(env)
	if err != nil {
		return storage.Envelope{}, nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return env, data, nil
}

func main() {
	path := defaultSnapshot
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	key := os.Getenv("PASAPALABRA_DATA_KEY")
	if key == "" {
		key = storage.DefaultDataKey
	}

	// 1) Load the JSON snapshot
	env, data, err := loadEnvelope(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// 2) Connect using the shared DB_* settings
	ctx := context.Background()
	cfg, err := config.ParseDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Upsert the envelope and wake up listening contexts
	if _, err := pool.Exec(ctx, pgmedium.CreateTableSQL); err != nil {
		fmt.Fprintf(os.Stderr, "create table: %v\n", err)
		os.Exit(1)
	}
	cmdTag, err := pool.Exec(ctx, pgmedium.UpsertValueSQL, key, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error writing %s: %v\n", key, err)
		os.Exit(1)
	}
	if _, err := pool.Exec(ctx, pgmedium.NotifyChangeSQL, pgmedium.DefaultConfig().NotifyChannel, key); err != nil {
		fmt.Fprintf(os.Stderr, "notify: %v\n", err)
	}

	// 4) Print summary
	fmt.Printf(
		"Envelope seed complete: key %s, %d games, time limit %ds, %d rows affected\n",
		key, len(env.Games), env.Settings.TimeLimit, cmdTag.RowsAffected(),
	)
}
