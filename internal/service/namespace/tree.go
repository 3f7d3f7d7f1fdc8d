package namespace

import (
	"context"
	"errors"
	"fmt"

	"cabinet/internal/config"
	"cabinet/internal/domain"
	models "cabinet/internal/domain/models/namespace"
	nsSvc "cabinet/internal/domain/services/namespace"
)

// treeService implements the TreeService interface
type treeService struct {
	base
}

// NewTreeService creates a new tree service
func NewTreeService(deps *Dependencies) nsSvc.TreeService {
	return &treeService{base: newBase(deps)}
}

// GetFolderTree returns one virtual root per partition. Each root holds the
// owner's partition-level folders (everyone's in General), expanded
// recursively with sizes. Virtual roots are built per call, never stored.
func (s *treeService) GetFolderTree(ctx context.Context, ownerID string) ([]*models.TreeNode, error) {
	partitions := s.partitions.List()
	roots := make([]*models.TreeNode, 0, len(partitions))
	folderCount := 0

	for _, partition := range partitions {
		root := models.NewVirtualRoot(partition)

		folders, err := s.folderRepo.ListPartitionLevel(ctx, partition.ID, ownerScope(partition, ownerID))
		if err != nil {
			return nil, fmt.Errorf("list %s folders: %w", partition.Type, err)
		}

		visited := make(map[string]bool)
		for i := range folders {
			node, err := s.buildNode(ctx, &folders[i], partition, visited, 1)
			if err != nil {
				return nil, err
			}
			if node == nil {
				continue
			}
			root.Children = append(root.Children, node)
			root.Size += node.Size
		}
		folderCount += len(visited)
		roots = append(roots, root)
	}

	s.logger.Info("folder tree built",
		"owner_id", ownerID,
		"folder_count", folderCount,
	)
	return roots, nil
}

// buildNode expands a folder with its children. The node size is the sum of
// direct file sizes plus the children's sizes, the same quantity
// CalculateFolderSize returns. A nil node means the folder was deleted after
// its parent was listed.
func (s *treeService) buildNode(ctx context.Context, folder *models.Folder, partition models.Partition, visited map[string]bool, depth int) (*models.TreeNode, error) {
	if depth > config.MaxTreeDepth {
		return nil, fmt.Errorf("folder %s: tree deeper than %d levels", folder.ID, config.MaxTreeDepth)
	}
	visited[folder.ID] = true

	if _, err := s.folderRepo.GetByID(ctx, folder.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Debug("folder vanished during tree build", "folder_id", folder.ID)
			return nil, nil
		}
		return nil, err
	}
	node := models.NewFolderNode(folder, partition)

	size, err := s.fileRepo.SumSizeByFolder(ctx, folder.ID)
	if err != nil {
		return nil, fmt.Errorf("sum files of %s: %w", folder.ID, err)
	}
	node.Size = size

	children, err := s.folderRepo.ListChildren(ctx, folder.ID)
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", folder.ID, err)
	}
	for i := range children {
		if visited[children[i].ID] {
			s.logger.Warn("folder cycle detected during tree build", "folder_id", children[i].ID)
			continue
		}
		child, err := s.buildNode(ctx, &children[i], partition, visited, depth+1)
		if err != nil {
			return nil, err
		}
		if child == nil {
			continue
		}
		node.Children = append(node.Children, child)
		node.Size += child.Size
	}
	return node, nil
}

// CalculateFolderSize sums the size of every file in the folder's subtree.
// Nothing is memoized. A descendant deleted mid-walk counts as zero.
func (s *treeService) CalculateFolderSize(ctx context.Context, folderID string) (int64, error) {
	if _, err := s.folderRepo.GetByID(ctx, folderID); err != nil {
		return 0, err
	}
	return s.subtreeSize(ctx, folderID, make(map[string]bool), 1)
}

func (s *treeService) subtreeSize(ctx context.Context, folderID string, visited map[string]bool, depth int) (int64, error) {
	if depth > config.MaxTreeDepth {
		return 0, fmt.Errorf("folder %s: tree deeper than %d levels", folderID, config.MaxTreeDepth)
	}
	visited[folderID] = true

	total, err := s.fileRepo.SumSizeByFolder(ctx, folderID)
	if err != nil {
		return 0, fmt.Errorf("sum files of %s: %w", folderID, err)
	}

	children, err := s.folderRepo.ListChildren(ctx, folderID)
	if err != nil {
		return 0, fmt.Errorf("list children of %s: %w", folderID, err)
	}
	for _, child := range children {
		if visited[child.ID] {
			s.logger.Warn("folder cycle detected during size walk", "folder_id", child.ID)
			continue
		}
		size, err := s.subtreeSize(ctx, child.ID, visited, depth+1)
		if err != nil {
			return 0, err
		}
		total += size
	}
	return total, nil
}
