// Package memory keeps namespace metadata in process memory. It mirrors the
// Postgres schema's uniqueness and cascade rules so services behave the same
// against either backend; it backs the service tests and STORE_BACKEND=memory.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	models "cabinet/internal/domain/models/namespace"
	"cabinet/internal/domain/repositories"
)

// Store holds every table. Repositories created from the same Store share data.
type Store struct {
	mu         sync.RWMutex
	partitions map[int]models.Partition
	folders    map[string]models.Folder
	files      map[string]models.File
	versions   map[string][]models.FileVersion // file ID -> chain

	// txMu serializes writers: a transaction holds it for its whole
	// duration, a write outside a transaction holds it for one call.
	txMu   sync.Mutex
	logger *slog.Logger
}

// NewStore creates an empty store
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		partitions: make(map[int]models.Partition),
		folders:    make(map[string]models.Folder),
		files:      make(map[string]models.File),
		versions:   make(map[string][]models.FileVersion),
		logger:     logger,
	}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// write runs fn with exclusive access, joining the caller's transaction
// when there is one.
func (s *Store) write(ctx context.Context, fn func() error) error {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *Store) read(fn func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

type snapshot struct {
	partitions map[int]models.Partition
	folders    map[string]models.Folder
	files      map[string]models.File
	versions   map[string][]models.FileVersion
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		partitions: make(map[int]models.Partition, len(s.partitions)),
		folders:    make(map[string]models.Folder, len(s.folders)),
		files:      make(map[string]models.File, len(s.files)),
		versions:   make(map[string][]models.FileVersion, len(s.versions)),
	}
	for k, v := range s.partitions {
		snap.partitions[k] = v
	}
	for k, v := range s.folders {
		snap.folders[k] = cloneFolder(v)
	}
	for k, v := range s.files {
		snap.files[k] = cloneFile(v)
	}
	for k, v := range s.versions {
		snap.versions[k] = append([]models.FileVersion(nil), v...)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitions = snap.partitions
	s.folders = snap.folders
	s.files = snap.files
	s.versions = snap.versions
}

// TransactionManager runs functions atomically against a Store by
// snapshotting it and restoring the snapshot when fn fails.
type TransactionManager struct {
	store *Store
}

// NewTransactionManager creates a transaction manager for store
func NewTransactionManager(store *Store) repositories.TransactionManager {
	return &TransactionManager{store: store}
}

// ExecTx executes fn within a transaction
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	tm.store.txMu.Lock()
	defer tm.store.txMu.Unlock()

	snap := tm.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		tm.store.restore(snap)
		tm.store.logger.Debug("memory transaction rolled back", "error", err)
		return err
	}
	return nil
}

func cloneFolder(f models.Folder) models.Folder {
	if f.ParentID != nil {
		id := *f.ParentID
		f.ParentID = &id
	}
	return f
}

func cloneFile(f models.File) models.File {
	if f.FolderID != nil {
		id := *f.FolderID
		f.FolderID = &id
	}
	return f
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// stamp fills zero timestamps the way column defaults would
func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated != nil && updated.IsZero() {
		*updated = *created
	}
}
