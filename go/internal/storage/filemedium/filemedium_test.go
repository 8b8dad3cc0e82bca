package filemedium

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/pasapalabra/go/internal/storage"
	"github.com/mcdev12/pasapalabra/go/internal/storage/storagetest"
)

func TestGetSetRemove(t *testing.T) {
	ctx := context.Background()
	m, err := New(t.TempDir())
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Get(ctx, "pasapalabra_data")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, m.Set(ctx, "pasapalabra_data", []byte(`{"version":"1.0.0"}`)))
	got, err := m.Get(ctx, "pasapalabra_data")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"1.0.0"}`, string(got))

	entries, err := os.ReadDir(m.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "pasapalabra_data.json", entries[0].Name())

	require.NoError(t, m.Remove(ctx, "pasapalabra_data"))
	require.NoError(t, m.Remove(ctx, "pasapalabra_data"))
	_, err = m.Get(ctx, "pasapalabra_data")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKeysAreSanitized(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, filepath.Join(m.Dir(), "a_b.json"), m.path("a/b"))
}

func TestWatchSeesOtherProcessWrites(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	reader, err := New(dir)
	require.NoError(t, err)
	defer reader.Close()
	writer, err := New(dir)
	require.NoError(t, err)
	defer writer.Close()

	var mu sync.Mutex
	var seen []string
	stop, err := reader.Watch(ctx, "pasapalabra_sync", func(v []byte) {
		mu.Lock()
		defer mu.Unlock()
		if v == nil {
			seen = append(seen, "<removed>")
			return
		}
		seen = append(seen, string(v))
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, writer.Set(ctx, "unrelated", []byte("x")))
	require.NoError(t, writer.Set(ctx, "pasapalabra_sync", []byte("e1")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1] == "e1"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, writer.Remove(ctx, "pasapalabra_sync"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[len(seen)-1] == "<removed>"
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	for _, v := range seen {
		assert.Contains(t, []string{"e1", "<removed>"}, v)
	}
	mu.Unlock()

	stop()
	stop()
}

func TestContract(t *testing.T) {
	storagetest.RunContract(t, func(t *testing.T) (storage.Medium, storage.Medium) {
		dir := t.TempDir()
		a, err := New(dir)
		require.NoError(t, err)
		b, err := New(dir)
		require.NoError(t, err)
		t.Cleanup(func() {
			assert.NoError(t, a.Close())
			assert.NoError(t, b.Close())
		})
		return a, b
	})
}
