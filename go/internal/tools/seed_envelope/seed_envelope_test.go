package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvelope(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	t.Run("export with partial settings", func(t *testing.T) {
		p := write("export.json", `{"version":"1.0","games":{},"settings":{"timeLimit":120}}`)
		env, data, err := loadEnvelope(p)
		require.NoError(t, err)
		assert.Empty(t, env.Games)
		assert.Equal(t, 120, env.Settings.TimeLimit)
		assert.Equal(t, 10, env.Settings.Scoring.Correct)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Contains(t, doc, "games")
		assert.Contains(t, doc, "settings")
	})

	t.Run("invalid json", func(t *testing.T) {
		_, _, err := loadEnvelope(write("bad.json", `{"games":`))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := loadEnvelope(filepath.Join(dir, "nope.json"))
		assert.Error(t, err)
	})
}
