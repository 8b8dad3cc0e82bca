package natskv

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/pasapalabra/go/internal/storage"
	"github.com/mcdev12/pasapalabra/go/internal/storage/storagetest"
)

// Set PASAPALABRA_TEST_NATS_URL to run against a live JetStream server.
func TestContract(t *testing.T) {
	url := os.Getenv("PASAPALABRA_TEST_NATS_URL")
	if url == "" {
		t.Skip("PASAPALABRA_TEST_NATS_URL not set")
	}

	storagetest.RunContract(t, func(t *testing.T) (storage.Medium, storage.Medium) {
		cfg := DefaultConfig()
		cfg.URL = url
		cfg.Bucket = fmt.Sprintf("PASAPALABRA_TEST_%d", time.Now().UnixNano())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		a, err := Connect(ctx, cfg)
		require.NoError(t, err)
		b, err := Connect(ctx, cfg)
		require.NoError(t, err)
		t.Cleanup(func() {
			assert.NoError(t, a.Close())
			assert.NoError(t, b.Close())
		})
		return a, b
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, nats.DefaultURL, cfg.URL)
	assert.Equal(t, "PASAPALABRA", cfg.Bucket)
	assert.Equal(t, -1, cfg.MaxReconnects)
	assert.Equal(t, 1, cfg.Replicas)
}
