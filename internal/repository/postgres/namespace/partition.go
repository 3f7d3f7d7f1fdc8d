package namespace

import (
	"context"
	"fmt"
	"log/slog"

	models "cabinet/internal/domain/models/namespace"
	nsRepo "cabinet/internal/domain/repositories/namespace"
	"cabinet/internal/repository/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPartitionRepository implements the PartitionRepository interface
type PostgresPartitionRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewPartitionRepository creates a new partition repository
func NewPartitionRepository(config *postgres.RepositoryConfig) nsRepo.PartitionRepository {
	return &PostgresPartitionRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// EnsureAll inserts partitions that are not present yet
func (r *PostgresPartitionRepository) EnsureAll(ctx context.Context, partitions []models.Partition) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, type, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, r.tables.Partitions)

	executor := postgres.GetExecutor(ctx, r.pool)
	for _, p := range partitions {
		tag, err := executor.Exec(ctx, query, p.ID, string(p.Type), p.Name)
		if err != nil {
			return fmt.Errorf("ensure partition %s: %w", p.Type, err)
		}
		if tag.RowsAffected() > 0 {
			r.logger.Info("partition bootstrapped", "id", p.ID, "type", p.Type, "name", p.Name)
		}
	}
	return nil
}

// List returns all partitions ordered by ID
func (r *PostgresPartitionRepository) List(ctx context.Context) ([]models.Partition, error) {
	query := fmt.Sprintf(`SELECT id, type, name FROM %s ORDER BY id ASC`, r.tables.Partitions)

	rows, err := postgres.GetExecutor(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	defer rows.Close()

	var partitions []models.Partition
	for rows.Next() {
		var p models.Partition
		var typ string
		if err := rows.Scan(&p.ID, &typ, &p.Name); err != nil {
			return nil, fmt.Errorf("scan partition: %w", err)
		}
		p.Type = models.PartitionType(typ)
		partitions = append(partitions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partitions: %w", err)
	}
	return partitions, nil
}
