package namespace

import (
	"errors"
	"regexp"

	"cabinet/internal/config"
	"cabinet/internal/domain"
	models "cabinet/internal/domain/models/namespace"
	nsSvc "cabinet/internal/domain/services/namespace"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	namePattern       = regexp.MustCompile(`^[^/]+$`)
	permissionPattern = regexp.MustCompile(`^[0-7]{3,4}$`)
)

func folderNameRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(1, config.MaxFolderNameLength),
		validation.Match(namePattern).Error("folder name cannot contain slashes"),
		validation.NotIn(".", "..").Error("folder name cannot be . or .."),
	}
}

func fileNameRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(1, config.MaxFileNameLength),
		validation.Match(namePattern).Error("file name cannot contain slashes"),
		validation.NotIn(".", "..").Error("file name cannot be . or .."),
	}
}

var permissionRule = validation.Match(permissionPattern).Error("permission bits must be 3 or 4 octal digits")

var sizeRule = validation.Min(int64(0)).Error("size cannot be negative")

// asValidation converts ozzo errors into the domain taxonomy
func asValidation(err error) error {
	if err == nil {
		return nil
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return err
	}
	return domain.NewValidation("%v", err)
}

func knownPartition(value any) error {
	if t, _ := value.(*models.PartitionType); t != nil && !t.Valid() {
		return errors.New("unknown partition")
	}
	return nil
}

func validateCreateFolder(req *nsSvc.CreateFolderRequest) error {
	return asValidation(validation.ValidateStruct(req,
		validation.Field(&req.Name, folderNameRules()...),
		validation.Field(&req.OwnerID, validation.Required),
		validation.Field(&req.Partition, validation.By(knownPartition)),
		validation.Field(&req.PermissionBits, permissionRule),
	))
}

func validateUpdateFolder(req *nsSvc.UpdateFolderRequest) error {
	if req.Name == nil && !req.ParentID.Present && req.PermissionBits == nil {
		return domain.NewValidation("at least one field must be provided")
	}

	rules := []*validation.FieldRules{}
	if req.Name != nil {
		rules = append(rules, validation.Field(&req.Name, folderNameRules()...))
	}
	if req.PermissionBits != nil {
		rules = append(rules, validation.Field(&req.PermissionBits, validation.Required, permissionRule))
	}
	return asValidation(validation.ValidateStruct(req, rules...))
}

func validateUpload(req *nsSvc.UploadFileRequest) error {
	return asValidation(validation.ValidateStruct(req,
		validation.Field(&req.Name, fileNameRules()...),
		validation.Field(&req.OwnerID, validation.Required),
		validation.Field(&req.Content, validation.NotNil.Error("content is required")),
		validation.Field(&req.Size, sizeRule),
		validation.Field(&req.PermissionBits, permissionRule),
	))
}

func validateBatch(req *nsSvc.BatchUploadRequest) error {
	return asValidation(validation.ValidateStruct(req,
		validation.Field(&req.OwnerID, validation.Required),
		validation.Field(&req.Items, validation.Required.Error("at least one file is required")),
	))
}

func validateNewVersion(req *nsSvc.NewVersionRequest) error {
	return asValidation(validation.ValidateStruct(req,
		validation.Field(&req.Content, validation.NotNil.Error("content is required")),
		validation.Field(&req.Size, sizeRule),
	))
}

func validateUpdateFile(req *nsSvc.UpdateFileRequest) error {
	if req.Name == nil && req.FolderID == nil && req.PermissionBits == nil {
		return domain.NewValidation("at least one field must be provided")
	}

	rules := []*validation.FieldRules{}
	if req.Name != nil {
		rules = append(rules, validation.Field(&req.Name, fileNameRules()...))
	}
	if req.FolderID != nil {
		rules = append(rules, validation.Field(&req.FolderID, validation.Required.Error("destination folder is required")))
	}
	if req.PermissionBits != nil {
		rules = append(rules, validation.Field(&req.PermissionBits, validation.Required, permissionRule))
	}
	return asValidation(validation.ValidateStruct(req, rules...))
}
