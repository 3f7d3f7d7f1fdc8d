package memory

import (
	"context"
	"sort"

	models "cabinet/internal/domain/models/namespace"
	nsRepo "cabinet/internal/domain/repositories/namespace"
)

// PartitionRepository implements nsRepo.PartitionRepository in memory
type PartitionRepository struct {
	store *Store
}

// NewPartitionRepository creates a partition repository backed by store
func NewPartitionRepository(store *Store) nsRepo.PartitionRepository {
	return &PartitionRepository{store: store}
}

// EnsureAll inserts partitions that are not present yet
func (r *PartitionRepository) EnsureAll(ctx context.Context, partitions []models.Partition) error {
	return r.store.write(ctx, func() error {
		for _, p := range partitions {
			if _, ok := r.store.partitions[p.ID]; ok {
				continue
			}
			r.store.partitions[p.ID] = p
			r.store.logger.Info("partition bootstrapped", "id", p.ID, "type", p.Type, "name", p.Name)
		}
		return nil
	})
}

// List returns all partitions ordered by ID
func (r *PartitionRepository) List(ctx context.Context) ([]models.Partition, error) {
	var out []models.Partition
	r.store.read(func() {
		for _, p := range r.store.partitions {
			out = append(out, p)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
