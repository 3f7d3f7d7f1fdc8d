package namespace

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cabinet/internal/domain"
	models "cabinet/internal/domain/models/namespace"
	"cabinet/internal/domain/repositories"
	nsRepo "cabinet/internal/domain/repositories/namespace"
	"cabinet/internal/domain/services"
	"cabinet/internal/service/policy"

	"github.com/google/uuid"
)

// Dependencies bundles the collaborators shared by the namespace services
type Dependencies struct {
	TxManager  repositories.TransactionManager
	Partitions *Registry
	Folders    nsRepo.FolderRepository
	Files      nsRepo.FileRepository
	Versions   nsRepo.VersionRepository
	Policy     *policy.Evaluator
	Roles      services.RoleProvider
	Blobs      services.BlobStore
	Notifier   services.Notifier // optional
	Logger     *slog.Logger
}

// base carries the helpers every namespace service needs
type base struct {
	txManager  repositories.TransactionManager
	partitions *Registry
	folderRepo nsRepo.FolderRepository
	fileRepo   nsRepo.FileRepository
	versions   nsRepo.VersionRepository
	policy     *policy.Evaluator
	roles      services.RoleProvider
	blobs      services.BlobStore
	notifier   services.Notifier
	logger     *slog.Logger
}

func newBase(deps *Dependencies) base {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = discardNotifier{}
	}
	return base{
		txManager:  deps.TxManager,
		partitions: deps.Partitions,
		folderRepo: deps.Folders,
		fileRepo:   deps.Files,
		versions:   deps.Versions,
		policy:     deps.Policy,
		roles:      deps.Roles,
		blobs:      deps.Blobs,
		notifier:   notifier,
		logger:     deps.Logger,
	}
}

type discardNotifier struct{}

func (discardNotifier) Publish(context.Context, services.Event) {}

// placement asks the policy evaluator with the actor's current roles.
// Roles are fetched on every call and never cached.
func (b *base) placement(ctx context.Context, actorID string, partition models.Partition, op policy.Operation) error {
	roles, err := b.roles.Roles(ctx, actorID)
	if err != nil {
		return fmt.Errorf("resolve roles for %s: %w", actorID, err)
	}

	decision := b.policy.CanPlace(roles, partition.Type, op)
	if !decision.Allowed {
		b.logger.Debug("placement denied",
			"actor_id", actorID,
			"partition", partition.Type,
			"operation", op,
			"reason", decision.Reason,
		)
	}
	return decision.Err()
}

// authorizeWrite combines ownership with placement policy. Inside General
// the policy alone decides; everywhere else the actor must also own the node.
func (b *base) authorizeWrite(ctx context.Context, actorID, ownerID string, partition models.Partition, op policy.Operation) error {
	if partition.Type != models.PartitionGeneral && ownerID != actorID {
		return domain.NewForbidden("access denied: owned by another account")
	}
	return b.placement(ctx, actorID, partition, op)
}

// canRead applies the visibility rule: General is readable by everyone,
// everything else only by its owner.
func canRead(actorID, ownerID string, partition models.Partition) bool {
	return partition.Type == models.PartitionGeneral || ownerID == actorID
}

// ownerScope returns the owner filter for uniqueness and listing inside a
// partition; General is scoped across all owners.
func ownerScope(partition models.Partition, ownerID string) *string {
	if partition.Type == models.PartitionGeneral {
		return nil
	}
	return &ownerID
}

// folderPartition loads a folder and the partition it belongs to
func (b *base) folderPartition(ctx context.Context, folderID string) (*models.Folder, models.Partition, error) {
	folder, err := b.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return nil, models.Partition{}, err
	}
	partition, err := b.partitions.Get(folder.PartitionID)
	if err != nil {
		return nil, models.Partition{}, fmt.Errorf("folder %s: %w", folder.ID, err)
	}
	return folder, partition, nil
}

func (b *base) publish(ctx context.Context, event services.Event) {
	event.OccurredAt = time.Now().UTC()
	b.notifier.Publish(ctx, event)
}

// removeBlobs deletes content after the metadata is gone. Failures only
// leave unreferenced bytes behind, so they are logged and skipped.
func (b *base) removeBlobs(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := b.blobs.Delete(ctx, key); err != nil {
			b.logger.Warn("failed to delete blob", "key", key, "error", err)
		}
	}
}

// storageKey is where the bytes of one version live. The random suffix keeps
// a rolled-back attempt and the attempt that later claims the same version
// number from sharing a key.
func storageKey(ownerID, fileID string, version int) string {
	return fmt.Sprintf("files/%s/%s/v%d-%s", ownerID, fileID, version, uuid.NewString())
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
