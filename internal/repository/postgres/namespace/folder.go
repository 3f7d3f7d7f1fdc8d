package namespace

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cabinet/internal/domain"
	models "cabinet/internal/domain/models/namespace"
	nsRepo "cabinet/internal/domain/repositories/namespace"
	"cabinet/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const folderColumns = `id, name, path, parent_id, owner_id, partition_id, permission_bits, created_at, updated_at`

// PostgresFolderRepository implements the FolderRepository interface
type PostgresFolderRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(config *postgres.RepositoryConfig) nsRepo.FolderRepository {
	return &PostgresFolderRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create creates a new folder
func (r *PostgresFolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, path, parent_id, owner_id, partition_id, permission_bits, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, r.tables.Folders)

	err := postgres.GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		folder.Name,
		folder.Path,
		folder.ParentID,
		folder.OwnerID,
		folder.PartitionID,
		folder.PermissionBits,
		folder.CreatedAt,
		folder.UpdatedAt,
	).Scan(&folder.ID, &folder.CreatedAt, &folder.UpdatedAt)

	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("a folder named %q already exists in this location", folder.Name),
				ResourceType: "folder",
			}
		}
		return fmt.Errorf("create folder: %w", err)
	}

	return nil
}

// GetByID retrieves a folder by ID
func (r *PostgresFolderRepository) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, folderColumns, r.tables.Folders)
	return r.getOne(ctx, query, id)
}

// GetForUpdate retrieves a folder and locks the row for the current transaction
func (r *PostgresFolderRepository) GetForUpdate(ctx context.Context, id string) (*models.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 FOR UPDATE`, folderColumns, r.tables.Folders)
	return r.getOne(ctx, query, id)
}

func (r *PostgresFolderRepository) getOne(ctx context.Context, query, id string) (*models.Folder, error) {
	folder, err := scanFolder(postgres.GetExecutor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidTextError(err) {
			return nil, domain.NewNotFound("folder", id)
		}
		if postgres.IsPgLockConflictError(err) {
			return nil, &domain.ConflictError{
				Message:      "folder is being modified concurrently, try again",
				ResourceType: "folder",
				ResourceID:   id,
			}
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}
	return folder, nil
}

// Update updates a folder
func (r *PostgresFolderRepository) Update(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, path = $2, parent_id = $3, permission_bits = $4, updated_at = $5
		WHERE id = $6
	`, r.tables.Folders)

	result, err := postgres.GetExecutor(ctx, r.pool).Exec(ctx, query,
		folder.Name,
		folder.Path,
		folder.ParentID,
		folder.PermissionBits,
		folder.UpdatedAt,
		folder.ID,
	)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("a folder named %q already exists in this location", folder.Name),
				ResourceType: "folder",
			}
		}
		return fmt.Errorf("update folder: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFound("folder", folder.ID)
	}
	return nil
}

// Delete deletes a folder
func (r *PostgresFolderRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Folders)

	result, err := postgres.GetExecutor(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFound("folder", id)
	}
	return nil
}

// ListChildren lists immediate child folders
func (r *PostgresFolderRepository) ListChildren(ctx context.Context, parentID string) ([]models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE parent_id = $1
		ORDER BY name ASC
	`, folderColumns, r.tables.Folders)

	return r.list(ctx, query, parentID)
}

// ListPartitionLevel lists folders without a parent in a partition
func (r *PostgresFolderRepository) ListPartitionLevel(ctx context.Context, partitionID int, ownerID *string) ([]models.Folder, error) {
	if ownerID == nil {
		query := fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE partition_id = $1 AND parent_id IS NULL
			ORDER BY name ASC
		`, folderColumns, r.tables.Folders)
		return r.list(ctx, query, partitionID)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE partition_id = $1 AND parent_id IS NULL AND owner_id = $2
		ORDER BY name ASC
	`, folderColumns, r.tables.Folders)
	return r.list(ctx, query, partitionID, *ownerID)
}

// FindSibling returns the folder occupying a name within a scope
func (r *PostgresFolderRepository) FindSibling(ctx context.Context, scope nsRepo.SiblingScope) (*models.Folder, error) {
	conditions := []string{"partition_id = $1", "name = $2"}
	args := []any{scope.PartitionID, scope.Name}

	if scope.ParentID == nil {
		conditions = append(conditions, "parent_id IS NULL")
	} else {
		args = append(args, *scope.ParentID)
		conditions = append(conditions, fmt.Sprintf("parent_id = $%d", len(args)))
	}
	if scope.OwnerID != nil {
		args = append(args, *scope.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s LIMIT 1`,
		folderColumns, r.tables.Folders, strings.Join(conditions, " AND "))

	folder, err := scanFolder(postgres.GetExecutor(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, nil // Not found, not an error
		}
		return nil, fmt.Errorf("find sibling folder: %w", err)
	}
	return folder, nil
}

func (r *PostgresFolderRepository) list(ctx context.Context, query string, args ...any) ([]models.Folder, error) {
	rows, err := postgres.GetExecutor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	folders := []models.Folder{}
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, *folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return folders, nil
}

func scanFolder(row pgx.Row) (*models.Folder, error) {
	var folder models.Folder
	err := row.Scan(
		&folder.ID,
		&folder.Name,
		&folder.Path,
		&folder.ParentID,
		&folder.OwnerID,
		&folder.PartitionID,
		&folder.PermissionBits,
		&folder.CreatedAt,
		&folder.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &folder, nil
}
