package namespace

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"cabinet/internal/domain"
	models "cabinet/internal/domain/models/namespace"
	nsRepo "cabinet/internal/domain/repositories/namespace"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogFile []byte

type catalog struct {
	Partitions []models.Partition `yaml:"partitions"`
}

// Registry is the catalog of the three system partitions. The catalog is
// static and read-only after NewRegistry, so lookups need no locking and
// work before Bootstrap has persisted it.
type Registry struct {
	repo       nsRepo.PartitionRepository
	folderRepo nsRepo.FolderRepository
	logger     *slog.Logger

	byID   map[int]models.Partition
	byType map[models.PartitionType]models.Partition
	order  []models.Partition
}

// NewRegistry creates a registry from the embedded partition catalog
func NewRegistry(
	repo nsRepo.PartitionRepository,
	folderRepo nsRepo.FolderRepository,
	logger *slog.Logger,
) (*Registry, error) {
	var c catalog
	if err := yaml.Unmarshal(catalogFile, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal partition catalog: %w", err)
	}
	if err := checkCatalog(c.Partitions); err != nil {
		return nil, err
	}

	r := &Registry{
		repo:       repo,
		folderRepo: folderRepo,
		logger:     logger,
		byID:       make(map[int]models.Partition, len(c.Partitions)),
		byType:     make(map[models.PartitionType]models.Partition, len(c.Partitions)),
		order:      c.Partitions,
	}
	for _, p := range c.Partitions {
		r.byID[p.ID] = p
		r.byType[p.Type] = p
	}
	return r, nil
}

// checkCatalog pins the catalog to the closed enumeration and its stable IDs
func checkCatalog(partitions []models.Partition) error {
	want := map[models.PartitionType]int{
		models.PartitionGeneral: models.GeneralPartitionID,
		models.PartitionPrivate: models.PrivatePartitionID,
		models.PartitionShared:  models.SharedPartitionID,
	}
	if len(partitions) != len(want) {
		return fmt.Errorf("partition catalog: expected %d partitions, got %d", len(want), len(partitions))
	}
	for _, p := range partitions {
		id, ok := want[p.Type]
		if !ok {
			return fmt.Errorf("partition catalog: unknown type %q", p.Type)
		}
		if id != p.ID {
			return fmt.Errorf("partition catalog: %s must have id %d, got %d", p.Type, id, p.ID)
		}
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("partition catalog: %s has no name", p.Type)
		}
		delete(want, p.Type)
	}
	return nil
}

// Bootstrap persists the partitions if absent. Safe to call on every start.
func (r *Registry) Bootstrap(ctx context.Context) error {
	if err := r.repo.EnsureAll(ctx, r.List()); err != nil {
		return fmt.Errorf("bootstrap partitions: %w", err)
	}

	stored, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap partitions: %w", err)
	}
	for _, p := range stored {
		want, ok := r.byID[p.ID]
		if !ok || want.Type != p.Type {
			return fmt.Errorf("bootstrap partitions: stored partition %d (%s) does not match the catalog", p.ID, p.Type)
		}
		if want.Name != p.Name {
			r.logger.Warn("stored partition name differs from catalog",
				"partition_id", p.ID,
				"stored", p.Name,
				"catalog", want.Name,
			)
		}
	}

	r.logger.Debug("partitions bootstrapped", "count", len(stored))
	return nil
}

// List returns the partitions in display order
func (r *Registry) List() []models.Partition {
	return append([]models.Partition(nil), r.order...)
}

// Resolve maps a partition type to its stable ID
func (r *Registry) Resolve(t models.PartitionType) (int, error) {
	p, ok := r.byType[t]
	if !ok {
		return 0, domain.NewValidation("unknown partition %q", t)
	}
	return p.ID, nil
}

// Get returns the partition with the given ID
func (r *Registry) Get(id int) (models.Partition, error) {
	p, ok := r.byID[id]
	if !ok {
		return models.Partition{}, domain.NewNotFound("partition", strconv.Itoa(id))
	}
	return p, nil
}

// ParsePartitionRef resolves a numeric partition ID or a partition type name.
// ok is false when ref names no partition (callers then treat it as a folder ID).
func (r *Registry) ParsePartitionRef(ref string) (models.Partition, bool) {
	if id, err := strconv.Atoi(strings.TrimSpace(ref)); err == nil {
		p, err := r.Get(id)
		return p, err == nil
	}
	t, ok := models.ParsePartitionType(ref)
	if !ok {
		return models.Partition{}, false
	}
	p, ok := r.byType[t]
	return p, ok
}

// IsPartitionRoot reports whether a folder is the system folder of its
// partition: no parent and named exactly like the partition.
func (r *Registry) IsPartitionRoot(ctx context.Context, folderID string) (bool, error) {
	folder, err := r.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return false, err
	}
	return r.isRootFolder(folder), nil
}

func (r *Registry) isRootFolder(f *models.Folder) bool {
	if !f.IsPartitionLevel() {
		return false
	}
	p, err := r.Get(f.PartitionID)
	return err == nil && p.Name == f.Name
}
