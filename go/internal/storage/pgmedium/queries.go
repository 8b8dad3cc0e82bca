package pgmedium

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/pasapalabra/go/internal/sqlutil"
)

// CreateTableSQL creates the key/value table shared by every context.
const CreateTableSQL = `
CREATE TABLE IF NOT EXISTS pasapalabra_kv (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const getValue = `SELECT value FROM pasapalabra_kv WHERE key = $1`

// UpsertValueSQL writes one key.
const UpsertValueSQL = `
INSERT INTO pasapalabra_kv (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

const deleteValue = `DELETE FROM pasapalabra_kv WHERE key = $1`

const NotifyChangeSQL = `SELECT pg_notify($1, $2)`

type queries struct {
	db sqlutil.DBTX
}

func newQueries(db sqlutil.DBTX) *queries {
	return &queries{db: db}
}

func (q *queries) createTable(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, CreateTableSQL)
	return err
}

// getValue returns nil with no error when the key is absent.
func (q *queries) getValue(ctx context.Context, key string) ([]byte, error) {
	var value pqtype.NullRawMessage
	err := q.db.QueryRowContext(ctx, getValue, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sqlutil.FromNullRawMessage(value), nil
}

func (q *queries) upsertValue(ctx context.Context, key string, value []byte) error {
	_, err := q.db.ExecContext(ctx, UpsertValueSQL, key, sqlutil.ToNullRawMessage(value))
	return err
}

func (q *queries) deleteValue(ctx context.Context, key string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteValue, key)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *queries) notify(ctx context.Context, channel, key string) error {
	_, err := q.db.ExecContext(ctx, NotifyChangeSQL, channel, key)
	return err
}
