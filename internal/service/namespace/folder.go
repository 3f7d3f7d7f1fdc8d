package namespace

import (
	"context"
	"fmt"
	"time"

	"cabinet/internal/config"
	"cabinet/internal/domain"
	models "cabinet/internal/domain/models/namespace"
	nsRepo "cabinet/internal/domain/repositories/namespace"
	"cabinet/internal/domain/services"
	nsSvc "cabinet/internal/domain/services/namespace"
	"cabinet/internal/service/policy"
)

// folderService implements the FolderService interface
type folderService struct {
	base
}

// NewFolderService creates a new folder service
func NewFolderService(deps *Dependencies) nsSvc.FolderService {
	return &folderService{base: newBase(deps)}
}

// CreateFolder creates a folder. The partition comes from the parent when
// one is given, else from the request, else defaults to Private.
func (s *folderService) CreateFolder(ctx context.Context, req *nsSvc.CreateFolderRequest) (*models.Folder, error) {
	// Normalize empty string to nil for partition-level folders
	if req.ParentID != nil && *req.ParentID == "" {
		req.ParentID = nil
	}
	if err := validateCreateFolder(req); err != nil {
		return nil, err
	}
	if req.PermissionBits == "" {
		req.PermissionBits = config.DefaultFolderPermissions
	}

	var folder *models.Folder
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var parent *models.Folder
		var partition models.Partition
		var err error

		if req.ParentID != nil {
			parent, partition, err = s.folderPartition(txCtx, *req.ParentID)
			if err != nil {
				return err
			}
			if req.Partition != nil && *req.Partition != partition.Type {
				return domain.NewInvalidPlacement("parent folder is in partition %s, not %s", partition.Type, *req.Partition)
			}
		} else {
			partitionType := models.PartitionPrivate
			if req.Partition != nil {
				partitionType = *req.Partition
			}
			id, err := s.partitions.Resolve(partitionType)
			if err != nil {
				return err
			}
			if partition, err = s.partitions.Get(id); err != nil {
				return err
			}
			if req.Name == partition.Name {
				return domain.NewInvalidPlacement("%q is reserved for the system folder", req.Name)
			}
		}

		if err := s.placement(txCtx, req.OwnerID, partition, policy.OpCreate); err != nil {
			return err
		}
		if parent != nil && partition.Type != models.PartitionGeneral && parent.OwnerID != req.OwnerID {
			return domain.NewForbidden("access denied: parent folder belongs to another account")
		}

		if err := s.ensureFolderNameFree(txCtx, partition, req.ParentID, req.OwnerID, req.Name, ""); err != nil {
			return err
		}

		parentPath := ""
		if parent != nil {
			parentPath = parent.Path
		}
		now := time.Now().UTC()
		folder = &models.Folder{
			Name:           req.Name,
			Path:           models.JoinPath(parentPath, req.Name),
			ParentID:       copyID(req.ParentID),
			OwnerID:        req.OwnerID,
			PartitionID:    partition.ID,
			PermissionBits: req.PermissionBits,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return s.folderRepo.Create(txCtx, folder)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder created",
		"id", folder.ID,
		"name", folder.Name,
		"owner_id", folder.OwnerID,
		"partition_id", folder.PartitionID,
		"parent_id", folder.ParentID,
		"path", folder.Path,
	)
	s.publish(ctx, folderEvent(services.EventFolderCreated, req.OwnerID, folder))

	return folder, nil
}

// GetFolder retrieves a folder the actor can see
func (s *folderService) GetFolder(ctx context.Context, actorID, folderID string) (*models.Folder, error) {
	folder, partition, err := s.folderPartition(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if !canRead(actorID, folder.OwnerID, partition) {
		return nil, domain.NewForbidden("access denied: folder belongs to another account")
	}
	return folder, nil
}

// UpdateFolder renames, moves or changes permission bits of a folder.
// The whole read-validate-write sequence runs in one transaction. The folder
// row is locked, and a move also locks every folder on the destination's
// parent chain, so two moves touching the same chain are serialized.
func (s *folderService) UpdateFolder(ctx context.Context, actorID, folderID string, req *nsSvc.UpdateFolderRequest) (*models.Folder, error) {
	if err := validateUpdateFolder(req); err != nil {
		return nil, err
	}

	var folder *models.Folder
	var moved bool
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		folder, err = s.folderRepo.GetForUpdate(txCtx, folderID)
		if err != nil {
			return err
		}
		partition, err := s.partitions.Get(folder.PartitionID)
		if err != nil {
			return err
		}
		if err := s.authorizeWrite(txCtx, actorID, folder.OwnerID, partition, policy.OpUpdate); err != nil {
			return err
		}

		renaming := req.Name != nil && *req.Name != folder.Name
		moved = req.ParentID.Present && !sameID(req.ParentID.Value, folder.ParentID)
		if (renaming || moved) && s.partitions.isRootFolder(folder) {
			return domain.NewInvalidPlacement("cannot modify system folder")
		}

		if moved {
			if err := s.validateMove(txCtx, actorID, folder, partition, req.ParentID.Value); err != nil {
				return err
			}
			folder.ParentID = copyID(req.ParentID.Value)
		}
		if renaming {
			folder.Name = *req.Name
		}
		if (renaming || moved) && folder.IsPartitionLevel() && folder.Name == partition.Name {
			return domain.NewInvalidPlacement("%q is reserved for the system folder", folder.Name)
		}
		if req.PermissionBits != nil {
			folder.PermissionBits = *req.PermissionBits
		}

		pathChanged := false
		if renaming || moved {
			if err := s.ensureFolderNameFree(txCtx, partition, folder.ParentID, folder.OwnerID, folder.Name, folder.ID); err != nil {
				return err
			}
			parentPath, err := s.parentPath(txCtx, folder.ParentID)
			if err != nil {
				return err
			}
			newPath := models.JoinPath(parentPath, folder.Name)
			pathChanged = newPath != folder.Path
			folder.Path = newPath
		}

		folder.UpdatedAt = time.Now().UTC()
		if err := s.folderRepo.Update(txCtx, folder); err != nil {
			return err
		}

		if pathChanged {
			visited := map[string]bool{folder.ID: true}
			if err := s.rewriteDescendantPaths(txCtx, folder, visited, 1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder updated",
		"id", folder.ID,
		"name", folder.Name,
		"parent_id", folder.ParentID,
		"path", folder.Path,
		"moved", moved,
	)
	kind := services.EventFolderUpdated
	if moved {
		kind = services.EventFolderMoved
	}
	s.publish(ctx, folderEvent(kind, actorID, folder))

	return folder, nil
}

// validateMove checks a move to newParentID (nil = partition level) against
// the structural rules and then the same policy and ownership as create
func (s *folderService) validateMove(ctx context.Context, actorID string, folder *models.Folder, partition models.Partition, newParentID *string) error {
	if newParentID != nil {
		parent, err := s.folderRepo.GetForUpdate(ctx, *newParentID)
		if err != nil {
			return err
		}

		cycle, err := s.walkAncestors(ctx, folder.ID, parent.ID, s.folderRepo.GetForUpdate)
		if err != nil {
			return err
		}
		if cycle {
			return domain.NewInvalidPlacement("cannot move folder into its own descendant")
		}

		// Partition is fixed at creation
		if parent.PartitionID != folder.PartitionID {
			return domain.NewInvalidPlacement("cannot move folder to another partition")
		}
		if partition.Type != models.PartitionGeneral && parent.OwnerID != actorID {
			return domain.NewForbidden("access denied: destination folder belongs to another account")
		}
	}

	return s.placement(ctx, actorID, partition, policy.OpMove)
}

// rewriteDescendantPaths walks the subtree depth-first setting
// child.Path = parent.Path + "/" + child.Name
func (s *folderService) rewriteDescendantPaths(ctx context.Context, parent *models.Folder, visited map[string]bool, depth int) error {
	if depth > config.MaxTreeDepth {
		return fmt.Errorf("folder %s: tree deeper than %d levels", parent.ID, config.MaxTreeDepth)
	}

	children, err := s.folderRepo.ListChildren(ctx, parent.ID)
	if err != nil {
		return fmt.Errorf("list children of %s: %w", parent.ID, err)
	}

	for i := range children {
		child := &children[i]
		if visited[child.ID] {
			s.logger.Warn("folder cycle detected during path rewrite", "folder_id", child.ID, "parent_id", parent.ID)
			continue
		}
		visited[child.ID] = true

		child.Path = models.JoinPath(parent.Path, child.Name)
		if err := s.folderRepo.Update(ctx, child); err != nil {
			return fmt.Errorf("rewrite path of %s: %w", child.ID, err)
		}
		if err := s.rewriteDescendantPaths(ctx, child, visited, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// DeleteFolder deletes a folder together with every descendant folder,
// file and version. Content bytes are removed after the commit.
func (s *folderService) DeleteFolder(ctx context.Context, actorID, folderID string) error {
	var folder *models.Folder
	var keys []string
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		folder, err = s.folderRepo.GetForUpdate(txCtx, folderID)
		if err != nil {
			return err
		}
		if s.partitions.isRootFolder(folder) {
			return domain.NewInvalidPlacement("cannot modify system folder")
		}
		if folder.OwnerID != actorID {
			return domain.NewForbidden("access denied: folder belongs to another account")
		}
		partition, err := s.partitions.Get(folder.PartitionID)
		if err != nil {
			return err
		}
		if err := s.placement(txCtx, actorID, partition, policy.OpDelete); err != nil {
			return err
		}

		keys, err = s.deleteSubtree(txCtx, folder.ID, map[string]bool{}, 1)
		return err
	})
	if err != nil {
		return err
	}

	s.removeBlobs(ctx, keys)

	s.logger.Info("folder deleted",
		"id", folder.ID,
		"path", folder.Path,
		"blobs_removed", len(keys),
	)
	s.publish(ctx, folderEvent(services.EventFolderDeleted, actorID, folder))

	return nil
}

// deleteSubtree removes children bottom-up and returns the storage keys of
// every deleted version
func (s *folderService) deleteSubtree(ctx context.Context, folderID string, visited map[string]bool, depth int) ([]string, error) {
	if depth > config.MaxTreeDepth {
		return nil, fmt.Errorf("folder %s: tree deeper than %d levels", folderID, config.MaxTreeDepth)
	}
	visited[folderID] = true

	var keys []string
	children, err := s.folderRepo.ListChildren(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", folderID, err)
	}
	for _, child := range children {
		if visited[child.ID] {
			continue
		}
		childKeys, err := s.deleteSubtree(ctx, child.ID, visited, depth+1)
		if err != nil {
			return nil, err
		}
		keys = append(keys, childKeys...)
	}

	files, err := s.fileRepo.ListByFolder(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("list files of %s: %w", folderID, err)
	}
	for _, file := range files {
		fileKeys, err := deleteFileRows(ctx, s.fileRepo, s.versions, file.ID)
		if err != nil {
			return nil, err
		}
		keys = append(keys, fileKeys...)
	}

	if err := s.folderRepo.Delete(ctx, folderID); err != nil {
		return nil, err
	}
	return keys, nil
}

// GetFolderChildren lists one level of the namespace. A partition reference
// lists the partition-level folders (everyone's in General, the actor's
// elsewhere); a folder reference lists its child folders and files.
func (s *folderService) GetFolderChildren(ctx context.Context, actorID, ref string) (*models.FolderContents, error) {
	if partition, ok := s.partitions.ParsePartitionRef(ref); ok {
		folders, err := s.folderRepo.ListPartitionLevel(ctx, partition.ID, ownerScope(partition, actorID))
		if err != nil {
			return nil, err
		}
		return &models.FolderContents{
			Partition: &partition,
			Folders:   folders,
			Files:     []models.File{},
		}, nil
	}

	folder, partition, err := s.folderPartition(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !canRead(actorID, folder.OwnerID, partition) {
		return nil, domain.NewForbidden("access denied: folder belongs to another account")
	}

	folders, err := s.folderRepo.ListChildren(ctx, folder.ID)
	if err != nil {
		return nil, err
	}
	files, err := s.fileRepo.ListByFolder(ctx, folder.ID)
	if err != nil {
		return nil, err
	}

	contents := &models.FolderContents{Folder: folder, Folders: folders, Files: files}
	if partition.Type != models.PartitionGeneral {
		contents.Folders = contents.Folders[:0]
		for _, f := range folders {
			if f.OwnerID == actorID {
				contents.Folders = append(contents.Folders, f)
			}
		}
		contents.Files = contents.Files[:0]
		for _, f := range files {
			if f.OwnerID == actorID {
				contents.Files = append(contents.Files, f)
			}
		}
	}
	return contents, nil
}

// IsAncestor walks up from startID through parent links until it finds
// candidateID or reaches the partition level
func (s *folderService) IsAncestor(ctx context.Context, candidateID, startID string) (bool, error) {
	return s.walkAncestors(ctx, candidateID, startID, s.folderRepo.GetByID)
}

// walkAncestors loads each folder on the chain with load. Moves pass
// GetForUpdate so the chain they validated cannot change before commit.
func (s *folderService) walkAncestors(ctx context.Context, candidateID, startID string, load func(context.Context, string) (*models.Folder, error)) (bool, error) {
	seen := make(map[string]bool)
	currentID := startID
	for depth := 0; depth <= config.MaxTreeDepth; depth++ {
		if currentID == candidateID {
			return true, nil
		}
		if seen[currentID] {
			return false, fmt.Errorf("folder %s: parent chain loops", currentID)
		}
		seen[currentID] = true

		current, err := load(ctx, currentID)
		if err != nil {
			return false, err
		}
		if current.IsPartitionLevel() {
			return false, nil
		}
		currentID = *current.ParentID
	}
	return false, fmt.Errorf("folder %s: parent chain deeper than %d levels", startID, config.MaxTreeDepth)
}

// ensureFolderNameFree fails with a ConflictError when another folder
// already uses name in the sibling scope
func (s *folderService) ensureFolderNameFree(ctx context.Context, partition models.Partition, parentID *string, ownerID, name, selfID string) error {
	existing, err := s.folderRepo.FindSibling(ctx, nsRepo.SiblingScope{
		PartitionID: partition.ID,
		ParentID:    parentID,
		OwnerID:     ownerScope(partition, ownerID),
		Name:        name,
	})
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("a folder named %q already exists in this location", name),
			ResourceType: "folder",
			ResourceID:   existing.ID,
		}
	}
	return nil
}

func (s *folderService) parentPath(ctx context.Context, parentID *string) (string, error) {
	if parentID == nil {
		return "", nil
	}
	parent, err := s.folderRepo.GetByID(ctx, *parentID)
	if err != nil {
		return "", err
	}
	return parent.Path, nil
}

func folderEvent(kind services.EventKind, actorID string, f *models.Folder) services.Event {
	return services.Event{
		Kind:        kind,
		ActorID:     actorID,
		ResourceID:  f.ID,
		PartitionID: f.PartitionID,
		ParentID:    copyID(f.ParentID),
		Name:        f.Name,
		Path:        f.Path,
	}
}
