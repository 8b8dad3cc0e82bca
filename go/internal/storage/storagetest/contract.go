// Package storagetest holds the behaviour every storage.Medium must share.
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/pasapalabra/go/internal/storage"
)

// Factory returns two media that share the same backing space, as two
// contexts would.
type Factory func(t *testing.T) (a, b storage.Medium)

// RunContract exercises the storage.Medium contract against media built by newMedia.
func RunContract(t *testing.T, newMedia Factory) {
	t.Run("get missing key", func(t *testing.T) {
		a, _ := newMedia(t)
		_, err := a.Get(context.Background(), "missing_key")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("set is visible to the other context", func(t *testing.T) {
		ctx := context.Background()
		a, b := newMedia(t)

		require.NoError(t, a.Set(ctx, "shared_key", []byte(`{"n":1}`)))
		got, err := b.Get(ctx, "shared_key")
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":1}`, string(got))

		require.NoError(t, b.Set(ctx, "shared_key", []byte(`{"n":2}`)))
		got, err = a.Get(ctx, "shared_key")
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":2}`, string(got))
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		ctx := context.Background()
		a, b := newMedia(t)

		require.NoError(t, a.Set(ctx, "gone_key", []byte(`{}`)))
		require.NoError(t, b.Remove(ctx, "gone_key"))
		require.NoError(t, b.Remove(ctx, "gone_key"))
		_, err := a.Get(ctx, "gone_key")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("watch reports sets and removals", func(t *testing.T) {
		ctx := context.Background()
		a, b := newMedia(t)

		var mu sync.Mutex
		var seen []string
		stop, err := a.Watch(ctx, "watched_key", func(v []byte) {
			mu.Lock()
			defer mu.Unlock()
			if v == nil {
				seen = append(seen, "<nil>")
				return
			}
			seen = append(seen, string(v))
		})
		require.NoError(t, err)
		defer stop()

		last := func() string {
			mu.Lock()
			defer mu.Unlock()
			if len(seen) == 0 {
				return ""
			}
			return seen[len(seen)-1]
		}

		require.NoError(t, b.Set(ctx, "watched_key", []byte(`"v1"`)))
		require.Eventually(t, func() bool { return last() == `"v1"` }, 3*time.Second, 10*time.Millisecond)

		require.NoError(t, a.Set(ctx, "watched_key", []byte(`"v2"`)))
		require.Eventually(t, func() bool { return last() == `"v2"` }, 3*time.Second, 10*time.Millisecond)

		require.NoError(t, b.Remove(ctx, "watched_key"))
		require.Eventually(t, func() bool { return last() == "<nil>" }, 3*time.Second, 10*time.Millisecond)

		stop()
		stop()
	})
}
