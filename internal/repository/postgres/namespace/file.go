package namespace

import (
	"context"
	"fmt"
	"log/slog"

	"cabinet/internal/domain"
	models "cabinet/internal/domain/models/namespace"
	nsRepo "cabinet/internal/domain/repositories/namespace"
	"cabinet/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const fileColumns = `id, name, folder_id, owner_id, size, mime_type, current_version, permission_bits, created_at, updated_at`

// PostgresFileRepository implements the FileRepository interface
type PostgresFileRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewFileRepository creates a new file repository
func NewFileRepository(config *postgres.RepositoryConfig) nsRepo.FileRepository {
	return &PostgresFileRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create creates a new file row
func (r *PostgresFileRepository) Create(ctx context.Context, file *models.File) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, folder_id, owner_id, size, mime_type, current_version, permission_bits, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, r.tables.Files)

	err := postgres.GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		file.Name,
		file.FolderID,
		file.OwnerID,
		file.Size,
		file.MimeType,
		file.CurrentVersion,
		file.PermissionBits,
		file.CreatedAt,
		file.UpdatedAt,
	).Scan(&file.ID, &file.CreatedAt, &file.UpdatedAt)

	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("a file named %q already exists in this folder", file.Name),
				ResourceType: "file",
			}
		}
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

// GetByID retrieves a file by ID
func (r *PostgresFileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, fileColumns, r.tables.Files)
	return r.getOne(ctx, query, id)
}

// GetForUpdate retrieves a file and locks the row for the current transaction
func (r *PostgresFileRepository) GetForUpdate(ctx context.Context, id string) (*models.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 FOR UPDATE`, fileColumns, r.tables.Files)
	return r.getOne(ctx, query, id)
}

func (r *PostgresFileRepository) getOne(ctx context.Context, query, id string) (*models.File, error) {
	file, err := scanFile(postgres.GetExecutor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidTextError(err) {
			return nil, domain.NewNotFound("file", id)
		}
		if postgres.IsPgLockConflictError(err) {
			return nil, &domain.ConflictError{
				Message:      "file is being modified concurrently, try again",
				ResourceType: "file",
				ResourceID:   id,
			}
		}
		return nil, fmt.Errorf("get file: %w", err)
	}
	return file, nil
}

// Update updates mutable file metadata
func (r *PostgresFileRepository) Update(ctx context.Context, file *models.File) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, folder_id = $2, size = $3, mime_type = $4, current_version = $5,
		    permission_bits = $6, updated_at = $7
		WHERE id = $8
	`, r.tables.Files)

	result, err := postgres.GetExecutor(ctx, r.pool).Exec(ctx, query,
		file.Name,
		file.FolderID,
		file.Size,
		file.MimeType,
		file.CurrentVersion,
		file.PermissionBits,
		file.UpdatedAt,
		file.ID,
	)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("a file named %q already exists in this folder", file.Name),
				ResourceType: "file",
			}
		}
		return fmt.Errorf("update file: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFound("file", file.ID)
	}
	return nil
}

// Delete deletes a file row
func (r *PostgresFileRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Files)

	result, err := postgres.GetExecutor(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFound("file", id)
	}
	return nil
}

// FindByName returns the file occupying a name in a folder scope
func (r *PostgresFileRepository) FindByName(ctx context.Context, scope nsRepo.FileScope) (*models.File, error) {
	var query string
	args := []any{scope.FolderID, scope.Name}

	if scope.OwnerID == nil {
		query = fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE folder_id = $1 AND name = $2
			ORDER BY created_at ASC
			LIMIT 1
		`, fileColumns, r.tables.Files)
	} else {
		query = fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE folder_id = $1 AND name = $2 AND owner_id = $3
		`, fileColumns, r.tables.Files)
		args = append(args, *scope.OwnerID)
	}

	file, err := scanFile(postgres.GetExecutor(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find file by name: %w", err)
	}
	return file, nil
}

// ListByFolder lists files directly inside a folder
func (r *PostgresFileRepository) ListByFolder(ctx context.Context, folderID string) ([]models.File, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE folder_id = $1
		ORDER BY name ASC
	`, fileColumns, r.tables.Files)

	rows, err := postgres.GetExecutor(ctx, r.pool).Query(ctx, query, folderID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	files := []models.File{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, *file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return files, nil
}

// SumSizeByFolder sums sizes of files directly inside a folder
func (r *PostgresFileRepository) SumSizeByFolder(ctx context.Context, folderID string) (int64, error) {
	query := fmt.Sprintf(`SELECT COALESCE(SUM(size), 0) FROM %s WHERE folder_id = $1`, r.tables.Files)

	var total int64
	if err := postgres.GetExecutor(ctx, r.pool).QueryRow(ctx, query, folderID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum file sizes: %w", err)
	}
	return total, nil
}

func scanFile(row pgx.Row) (*models.File, error) {
	var file models.File
	err := row.Scan(
		&file.ID,
		&file.Name,
		&file.FolderID,
		&file.OwnerID,
		&file.Size,
		&file.MimeType,
		&file.CurrentVersion,
		&file.PermissionBits,
		&file.CreatedAt,
		&file.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &file, nil
}
