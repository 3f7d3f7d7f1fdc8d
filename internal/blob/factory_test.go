package blob

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"cabinet/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlobStoreFromConfig(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("memory", func(t *testing.T) {
		store, closer, err := NewBlobStoreFromConfig(ctx, &config.Config{BlobBackend: "memory"}, logger)
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, store)
		assert.NoError(t, closer.Close())
	})

	t.Run("filesystem", func(t *testing.T) {
		store, _, err := NewBlobStoreFromConfig(ctx, &config.Config{BlobBackend: "filesystem", BlobFSRoot: t.TempDir()}, logger)
		require.NoError(t, err)
		assert.IsType(t, &FileSystemStore{}, store)
	})

	t.Run("filesystem without root", func(t *testing.T) {
		_, _, err := NewBlobStoreFromConfig(ctx, &config.Config{BlobBackend: "filesystem"}, logger)
		assert.Error(t, err)
	})

	t.Run("badger", func(t *testing.T) {
		store, closer, err := NewBlobStoreFromConfig(ctx, &config.Config{BlobBackend: "badger", BadgerDir: t.TempDir()}, logger)
		require.NoError(t, err)
		assert.IsType(t, &BadgerStore{}, store)
		assert.NoError(t, closer.Close())
	})

	t.Run("s3 without bucket", func(t *testing.T) {
		_, _, err := NewBlobStoreFromConfig(ctx, &config.Config{BlobBackend: "s3"}, logger)
		assert.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := NewBlobStoreFromConfig(ctx, &config.Config{BlobBackend: "tape"}, logger)
		assert.Error(t, err)
	})
}
