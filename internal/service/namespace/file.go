package namespace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cabinet/internal/config"
	"cabinet/internal/domain"
	models "cabinet/internal/domain/models/namespace"
	nsRepo "cabinet/internal/domain/repositories/namespace"
	"cabinet/internal/domain/services"
	nsSvc "cabinet/internal/domain/services/namespace"
	"cabinet/internal/service/policy"

	"github.com/google/uuid"
)

// fileService implements the FileService interface
type fileService struct {
	base
}

// NewFileService creates a new file service
func NewFileService(deps *Dependencies) nsSvc.FileService {
	return &fileService{base: newBase(deps)}
}

// uploadResult is what one upload attempt committed
type uploadResult struct {
	file    *models.File
	version *models.FileVersion
	created bool
}

// UploadFile stores content under (folder, owner, name). An existing file
// gets a new version; otherwise a file is created at version 1.
func (s *fileService) UploadFile(ctx context.Context, req *nsSvc.UploadFileRequest) (*models.File, error) {
	if req.FolderID == nil || *req.FolderID == "" {
		return nil, domain.NewInvalidPlacement("files must live inside a folder in Private or General")
	}
	if err := validateUpload(req); err != nil {
		return nil, err
	}
	if req.PermissionBits == "" {
		req.PermissionBits = config.DefaultFilePermissions
	}

	content, err := newReplayable(req.Content, req.Size)
	if err != nil {
		return nil, err
	}

	res, err := s.withVersionRetry(ctx, content, func(txCtx context.Context) (*uploadResult, error) {
		return s.placeUpload(txCtx, req, content)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("file uploaded",
		"id", res.file.ID,
		"name", res.file.Name,
		"folder_id", res.file.FolderID,
		"owner_id", res.file.OwnerID,
		"version", res.version.Version,
		"size", res.version.Size,
	)
	kind := services.EventFileVersionAdded
	if res.created {
		kind = services.EventFileCreated
	}
	s.publish(ctx, fileEvent(kind, req.OwnerID, s.partitionOf(ctx, res.file), res.file, res.version))

	return res.file, nil
}

// placeUpload runs inside one transaction attempt
func (s *fileService) placeUpload(ctx context.Context, req *nsSvc.UploadFileRequest, content *replayable) (*uploadResult, error) {
	folder, partition, err := s.folderPartition(ctx, *req.FolderID)
	if err != nil {
		return nil, err
	}
	if partition.Type != models.PartitionGeneral && folder.OwnerID != req.OwnerID {
		return nil, domain.NewForbidden("access denied: folder belongs to another account")
	}
	if err := s.placement(ctx, req.OwnerID, partition, policy.OpUpload); err != nil {
		return nil, err
	}

	existing, err := s.fileRepo.FindByName(ctx, nsRepo.FileScope{
		FolderID: folder.ID,
		OwnerID:  ownerScope(partition, req.OwnerID),
		Name:     req.Name,
	})
	if err != nil {
		return nil, err
	}

	if existing != nil {
		file, err := s.fileRepo.GetForUpdate(ctx, existing.ID)
		if err != nil {
			return nil, err
		}
		version, err := s.appendVersion(ctx, file, req.OwnerID, req.MimeType, content)
		if err != nil {
			return nil, err
		}
		return &uploadResult{file: file, version: version}, nil
	}

	now := time.Now().UTC()
	file := &models.File{
		Name:           req.Name,
		FolderID:       &folder.ID,
		OwnerID:        req.OwnerID,
		Size:           content.size,
		MimeType:       req.MimeType,
		CurrentVersion: 1,
		PermissionBits: req.PermissionBits,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.fileRepo.Create(ctx, file); err != nil {
		return nil, err
	}
	version, err := s.writeVersion(ctx, file, req.OwnerID, content)
	if err != nil {
		return nil, err
	}
	return &uploadResult{file: file, version: version, created: true}, nil
}

// appendVersion bumps currentVersion on a locked file row and records the
// new version
func (s *fileService) appendVersion(ctx context.Context, file *models.File, actorID, mimeType string, content *replayable) (*models.FileVersion, error) {
	file.CurrentVersion++
	file.Size = content.size
	if mimeType != "" {
		file.MimeType = mimeType
	}
	file.UpdatedAt = time.Now().UTC()
	if err := s.fileRepo.Update(ctx, file); err != nil {
		return nil, err
	}
	return s.writeVersion(ctx, file, actorID, content)
}

// writeVersion inserts the version row before writing bytes, so an upload
// that lost the race on (file_id, version) never touches the winner's key.
func (s *fileService) writeVersion(ctx context.Context, file *models.File, actorID string, content *replayable) (*models.FileVersion, error) {
	version := &models.FileVersion{
		FileID:     file.ID,
		Version:    file.CurrentVersion,
		StorageKey: storageKey(file.OwnerID, file.ID, file.CurrentVersion),
		Size:       content.size,
		MimeType:   file.MimeType,
		UploadedBy: actorID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.versions.Create(ctx, version); err != nil {
		return nil, err
	}

	content.stored = append(content.stored, version.StorageKey)
	if err := s.blobs.Put(ctx, version.StorageKey, content.r, content.size); err != nil {
		return nil, fmt.Errorf("store content for %s v%d: %w", file.ID, version.Version, err)
	}
	return version, nil
}

// withVersionRetry runs attempt in a transaction, retrying when a
// concurrent upload claimed the same version number or file name first.
// Bytes written by an attempt that did not commit are deleted again.
func (s *fileService) withVersionRetry(ctx context.Context, content *replayable, attempt func(context.Context) (*uploadResult, error)) (*uploadResult, error) {
	var res *uploadResult
	for try := 1; ; try++ {
		content.stored = nil
		err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
			var err error
			res, err = attempt(txCtx)
			return err
		})
		if err == nil {
			return res, nil
		}
		s.removeBlobs(ctx, content.stored)
		if !isUploadRace(err) || try >= config.MaxVersionRetries {
			return nil, err
		}

		s.logger.Debug("upload lost a race, retrying", "attempt", try, "error", err)
		if err := content.rewind(); err != nil {
			return nil, err
		}
	}
}

func isUploadRace(err error) bool {
	return errors.Is(err, nsRepo.ErrVersionExists) || errors.Is(err, domain.ErrConflict)
}

// UploadFiles uploads every item of a batch into one folder. A failing item
// is logged and skipped; only the files that succeeded are returned.
func (s *fileService) UploadFiles(ctx context.Context, req *nsSvc.BatchUploadRequest) ([]*models.File, error) {
	if err := validateBatch(req); err != nil {
		return nil, err
	}

	batchID := uuid.NewString()
	uploaded := make([]*models.File, 0, len(req.Items))
	for i, item := range req.Items {
		file, err := s.UploadFile(ctx, &nsSvc.UploadFileRequest{
			Name:           item.Name,
			FolderID:       req.FolderID,
			OwnerID:        req.OwnerID,
			Content:        item.Content,
			MimeType:       item.MimeType,
			Size:           item.Size,
			PermissionBits: item.PermissionBits,
		})
		if err != nil {
			s.logger.Warn("batch upload item skipped",
				"batch_id", batchID,
				"index", i,
				"name", item.Name,
				"error", err,
			)
			continue
		}
		uploaded = append(uploaded, file)
	}

	s.logger.Info("batch upload finished",
		"batch_id", batchID,
		"folder_id", req.FolderID,
		"requested", len(req.Items),
		"uploaded", len(uploaded),
	)
	return uploaded, nil
}

// UploadNewVersion appends a version to an existing file owned by the actor.
// Placement is not re-validated; the folder was checked when the file was created.
func (s *fileService) UploadNewVersion(ctx context.Context, actorID, fileID string, req *nsSvc.NewVersionRequest) (*models.File, error) {
	if err := validateNewVersion(req); err != nil {
		return nil, err
	}

	content, err := newReplayable(req.Content, req.Size)
	if err != nil {
		return nil, err
	}

	res, err := s.withVersionRetry(ctx, content, func(txCtx context.Context) (*uploadResult, error) {
		file, err := s.fileRepo.GetForUpdate(txCtx, fileID)
		if err != nil {
			return nil, err
		}
		if file.OwnerID != actorID {
			return nil, domain.NewForbidden("access denied: file belongs to another account")
		}
		version, err := s.appendVersion(txCtx, file, actorID, req.MimeType, content)
		if err != nil {
			return nil, err
		}
		return &uploadResult{file: file, version: version}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("file version added",
		"id", res.file.ID,
		"version", res.version.Version,
		"size", res.version.Size,
	)
	s.publish(ctx, fileEvent(services.EventFileVersionAdded, actorID, s.partitionOf(ctx, res.file), res.file, res.version))

	return res.file, nil
}

// GetFile retrieves file metadata the actor can see
func (s *fileService) GetFile(ctx context.Context, actorID, fileID string) (*models.File, error) {
	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actorID, file); err != nil {
		return nil, err
	}
	return file, nil
}

// ListVersions returns the version chain, oldest first
func (s *fileService) ListVersions(ctx context.Context, actorID, fileID string) ([]models.FileVersion, error) {
	file, err := s.GetFile(ctx, actorID, fileID)
	if err != nil {
		return nil, err
	}
	return s.versions.ListByFile(ctx, file.ID)
}

// GetFileContent opens one version of a file, the current one when version is nil
func (s *fileService) GetFileContent(ctx context.Context, actorID, fileID string, version *int) (*nsSvc.FileContent, error) {
	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}

	number := file.CurrentVersion
	if version != nil {
		number = *version
	}
	v, err := s.versions.Get(ctx, file.ID, number)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeRead(ctx, actorID, file); err != nil {
		return nil, err
	}

	body, err := s.blobs.Get(ctx, v.StorageKey)
	if err != nil {
		if errors.Is(err, services.ErrBlobNotFound) {
			return nil, &domain.NotFoundError{
				Message:      "file content not found",
				ResourceType: "file_version",
				ResourceID:   v.ID,
			}
		}
		return nil, fmt.Errorf("read content of %s v%d: %w", file.ID, v.Version, err)
	}

	return &nsSvc.FileContent{File: file, Version: v, Body: body}, nil
}

// UpdateFile renames, moves or changes permission bits of a file. Like
// UpdateFolder, any General writer may edit a General file. A move is
// checked against the destination exactly like an upload into it.
func (s *fileService) UpdateFile(ctx context.Context, actorID, fileID string, req *nsSvc.UpdateFileRequest) (*models.File, error) {
	if err := validateUpdateFile(req); err != nil {
		return nil, err
	}

	var file *models.File
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		file, err = s.fileRepo.GetForUpdate(txCtx, fileID)
		if err != nil {
			return err
		}
		if file.FolderID == nil {
			if file.OwnerID != actorID {
				return domain.NewForbidden("access denied: file belongs to another account")
			}
			return domain.NewInvalidPlacement("files must live inside a folder in Private or General")
		}

		current, partition, err := s.folderPartition(txCtx, *file.FolderID)
		if err != nil {
			return err
		}
		if err := s.authorizeWrite(txCtx, actorID, file.OwnerID, partition, policy.OpUpdate); err != nil {
			return err
		}

		renaming := req.Name != nil && *req.Name != file.Name
		moving := req.FolderID != nil && *req.FolderID != current.ID

		if moving {
			dest, destPartition, err := s.folderPartition(txCtx, *req.FolderID)
			if err != nil {
				return err
			}
			if destPartition.Type != models.PartitionGeneral && dest.OwnerID != actorID {
				return domain.NewForbidden("access denied: destination folder belongs to another account")
			}
			// Only General is shared; elsewhere the file must stay with its owner
			if destPartition.Type != models.PartitionGeneral && file.OwnerID != actorID {
				return domain.NewForbidden("access denied: file belongs to another account")
			}
			if err := s.placement(txCtx, actorID, destPartition, policy.OpMove); err != nil {
				return err
			}
			file.FolderID = &dest.ID
			partition = destPartition
		}
		if renaming {
			file.Name = *req.Name
		}
		if req.PermissionBits != nil {
			file.PermissionBits = *req.PermissionBits
		}

		if renaming || moving {
			existing, err := s.fileRepo.FindByName(txCtx, nsRepo.FileScope{
				FolderID: *file.FolderID,
				OwnerID:  ownerScope(partition, file.OwnerID),
				Name:     file.Name,
			})
			if err != nil {
				return err
			}
			if existing != nil && existing.ID != file.ID {
				return &domain.ConflictError{
					Message:      fmt.Sprintf("a file named %q already exists in this folder", file.Name),
					ResourceType: "file",
					ResourceID:   existing.ID,
				}
			}
		}

		file.UpdatedAt = time.Now().UTC()
		return s.fileRepo.Update(txCtx, file)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("file updated",
		"id", file.ID,
		"name", file.Name,
		"folder_id", file.FolderID,
	)
	s.publish(ctx, fileEvent(services.EventFileUpdated, actorID, s.partitionOf(ctx, file), file, nil))

	return file, nil
}

// DeleteFile deletes the version rows and the file row in one transaction,
// then the content bytes
func (s *fileService) DeleteFile(ctx context.Context, actorID, fileID string) error {
	var file *models.File
	var keys []string
	var partitionID int
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		file, err = s.fileRepo.GetForUpdate(txCtx, fileID)
		if err != nil {
			return err
		}
		if file.OwnerID != actorID {
			return domain.NewForbidden("access denied: file belongs to another account")
		}
		if file.FolderID != nil {
			_, partition, err := s.folderPartition(txCtx, *file.FolderID)
			if err != nil {
				return err
			}
			if err := s.placement(txCtx, actorID, partition, policy.OpDelete); err != nil {
				return err
			}
			partitionID = partition.ID
		}

		keys, err = deleteFileRows(txCtx, s.fileRepo, s.versions, file.ID)
		return err
	})
	if err != nil {
		return err
	}

	s.removeBlobs(ctx, keys)

	s.logger.Info("file deleted",
		"id", file.ID,
		"name", file.Name,
		"versions", len(keys),
	)
	s.publish(ctx, fileEvent(services.EventFileDeleted, actorID, partitionID, file, nil))

	return nil
}

// authorizeRead applies the visibility rule through the file's folder
func (s *fileService) authorizeRead(ctx context.Context, actorID string, file *models.File) error {
	if file.OwnerID == actorID {
		return nil
	}
	if file.FolderID != nil {
		_, partition, err := s.folderPartition(ctx, *file.FolderID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if err == nil && canRead(actorID, file.OwnerID, partition) {
			return nil
		}
	}
	return domain.NewForbidden("access denied: file belongs to another account")
}

// deleteFileRows removes a file's versions and then the file, returning the
// storage keys whose bytes should go too
func deleteFileRows(ctx context.Context, files nsRepo.FileRepository, versions nsRepo.VersionRepository, fileID string) ([]string, error) {
	chain, err := versions.ListByFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", fileID, err)
	}
	keys := make([]string, 0, len(chain))
	for _, v := range chain {
		keys = append(keys, v.StorageKey)
	}

	if err := versions.DeleteByFile(ctx, fileID); err != nil {
		return nil, err
	}
	if err := files.Delete(ctx, fileID); err != nil {
		return nil, err
	}
	return keys, nil
}

// partitionOf looks up the partition of a file's folder for event payloads; 0 when unknown
func (s *fileService) partitionOf(ctx context.Context, file *models.File) int {
	if file.FolderID == nil {
		return 0
	}
	folder, err := s.folderRepo.GetByID(ctx, *file.FolderID)
	if err != nil {
		return 0
	}
	return folder.PartitionID
}

func fileEvent(kind services.EventKind, actorID string, partitionID int, f *models.File, v *models.FileVersion) services.Event {
	event := services.Event{
		Kind:        kind,
		ActorID:     actorID,
		ResourceID:  f.ID,
		PartitionID: partitionID,
		ParentID:    copyID(f.FolderID),
		Name:        f.Name,
		Version:     f.CurrentVersion,
		Size:        f.Size,
	}
	if v != nil {
		event.Version = v.Version
		event.Size = v.Size
	}
	return event
}
