package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"cabinet/internal/domain/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const badgerKeyPrefix = "blob:"

// BadgerStore keeps content in an embedded BadgerDB. Suited to small files
// on a single node; values are read fully into memory on Get.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewBadgerStore opens (or creates) a BadgerDB at dir
func NewBadgerStore(dir string, logger *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", dir, err)
	}
	logger.Debug("badger blob store opened", "dir", dir)
	return &BadgerStore{db: db, logger: logger}, nil
}

func badgerKey(key string) []byte {
	return []byte(badgerKeyPrefix + key)
}

// Put stores content under key
func (s *BadgerStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := checkKey(key); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("blob %s: read content: %w", key, err)
	}
	if int64(len(data)) != size {
		return sizeMismatch(key, size, int64(len(data)))
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(key), data)
	})
}

// Get returns the content under key
func (s *BadgerStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("blob %s: %w", key, services.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes key
func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(key))
	})
}

// Close closes the database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
