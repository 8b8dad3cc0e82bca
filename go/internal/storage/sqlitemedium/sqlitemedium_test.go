package sqlitemedium

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/pasapalabra/go/internal/storage"
	"github.com/mcdev12/pasapalabra/go/internal/storage/storagetest"
)

func TestContract(t *testing.T) {
	storagetest.RunContract(t, func(t *testing.T) (storage.Medium, storage.Medium) {
		path := filepath.Join(t.TempDir(), "pasapalabra.db")

		a, err := Open(path, WithPollInterval(10*time.Millisecond))
		require.NoError(t, err)
		b, err := Open(path, WithPollInterval(10*time.Millisecond))
		require.NoError(t, err)

		t.Cleanup(func() {
			assert.NoError(t, a.Close())
			assert.NoError(t, b.Close())
		})
		return a, b
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestVersionSurvivesRemoval(t *testing.T) {
	ctx := context.Background()
	m, err := Open(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Set(ctx, "k", []byte("a")))
	require.NoError(t, m.Remove(ctx, "k"))
	require.NoError(t, m.Set(ctx, "k", []byte("a")))

	v, err := m.version(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	require.NoError(t, m.Remove(ctx, "missing"))
	v, err = m.version(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, v)
}
