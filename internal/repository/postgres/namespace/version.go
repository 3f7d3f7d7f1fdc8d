package namespace

import (
	"context"
	"fmt"
	"log/slog"

	"cabinet/internal/domain"
	models "cabinet/internal/domain/models/namespace"
	nsRepo "cabinet/internal/domain/repositories/namespace"
	"cabinet/internal/repository/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
)

const versionColumns = `id, file_id, version, storage_key, size, mime_type, uploaded_by, created_at`

// PostgresVersionRepository implements the VersionRepository interface
type PostgresVersionRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewVersionRepository creates a new file version repository
func NewVersionRepository(config *postgres.RepositoryConfig) nsRepo.VersionRepository {
	return &PostgresVersionRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create appends a version row
func (r *PostgresVersionRepository) Create(ctx context.Context, v *models.FileVersion) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (file_id, version, storage_key, size, mime_type, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, r.tables.FileVersions)

	err := postgres.GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		v.FileID,
		v.Version,
		v.StorageKey,
		v.Size,
		v.MimeType,
		v.UploadedBy,
		v.CreatedAt,
	).Scan(&v.ID, &v.CreatedAt)

	if err != nil {
		if postgres.IsPgDuplicateOn(err, r.tables.FileVersionUniqueConstraint()) {
			return fmt.Errorf("file %s version %d: %w", v.FileID, v.Version, nsRepo.ErrVersionExists)
		}
		return fmt.Errorf("create file version: %w", err)
	}
	return nil
}

// Get retrieves one version of a file
func (r *PostgresVersionRepository) Get(ctx context.Context, fileID string, version int) (*models.FileVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE file_id = $1 AND version = $2`,
		versionColumns, r.tables.FileVersions)

	var v models.FileVersion
	err := postgres.GetExecutor(ctx, r.pool).QueryRow(ctx, query, fileID, version).Scan(
		&v.ID,
		&v.FileID,
		&v.Version,
		&v.StorageKey,
		&v.Size,
		&v.MimeType,
		&v.UploadedBy,
		&v.CreatedAt,
	)
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidTextError(err) {
			return nil, &domain.NotFoundError{
				Message:      "file version not found",
				ResourceType: "file_version",
				ResourceID:   fmt.Sprintf("%s@%d", fileID, version),
			}
		}
		return nil, fmt.Errorf("get file version: %w", err)
	}
	return &v, nil
}

// ListByFile returns the version chain ordered ascending
func (r *PostgresVersionRepository) ListByFile(ctx context.Context, fileID string) ([]models.FileVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE file_id = $1 ORDER BY version ASC`,
		versionColumns, r.tables.FileVersions)

	rows, err := postgres.GetExecutor(ctx, r.pool).Query(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("list file versions: %w", err)
	}
	defer rows.Close()

	versions := []models.FileVersion{}
	for rows.Next() {
		var v models.FileVersion
		if err := rows.Scan(
			&v.ID,
			&v.FileID,
			&v.Version,
			&v.StorageKey,
			&v.Size,
			&v.MimeType,
			&v.UploadedBy,
			&v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan file version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file versions: %w", err)
	}
	return versions, nil
}

// DeleteByFile removes every version row of a file
func (r *PostgresVersionRepository) DeleteByFile(ctx context.Context, fileID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE file_id = $1`, r.tables.FileVersions)

	if _, err := postgres.GetExecutor(ctx, r.pool).Exec(ctx, query, fileID); err != nil {
		return fmt.Errorf("delete file versions: %w", err)
	}
	return nil
}
