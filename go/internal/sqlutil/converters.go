package sqlutil

import (
	"encoding/json"

	"github.com/sqlc-dev/pqtype"
)

// ToNullRawMessage wraps a JSON document for a nullable JSONB column.
// Empty input maps to SQL NULL.
func ToNullRawMessage(val []byte) pqtype.NullRawMessage {
	if len(val) == 0 {
		return pqtype.NullRawMessage{Valid: false}
	}
	return pqtype.NullRawMessage{RawMessage: json.RawMessage(val), Valid: true}
}

// FromNullRawMessage converts a nullable JSONB column to bytes, nil when NULL.
func FromNullRawMessage(val pqtype.NullRawMessage) []byte {
	if !val.Valid {
		return nil
	}
	return []byte(val.RawMessage)
}
