package namespace

import "strings"

// PartitionType identifies one of the three system folders
type PartitionType string

const (
	PartitionGeneral PartitionType = "general" // shared, admin-write
	PartitionPrivate PartitionType = "private" // "My Folders", per-owner
	PartitionShared  PartitionType = "shared"  // "Shared With Me", read-only
)

// Stable partition identifiers. These are persisted in folder rows and
// must never be renumbered.
const (
	GeneralPartitionID = 1
	PrivatePartitionID = 2
	SharedPartitionID  = 3
)

// Partition is a logical root anchor. Partitions are bootstrapped, never
// created, renamed or deleted by users.
type Partition struct {
	ID   int           `json:"id" db:"id" yaml:"id"`
	Type PartitionType `json:"type" db:"type" yaml:"type"`
	Name string        `json:"name" db:"name" yaml:"name"`
}

// Valid reports whether t is one of the known partition types
func (t PartitionType) Valid() bool {
	switch t {
	case PartitionGeneral, PartitionPrivate, PartitionShared:
		return true
	}
	return false
}

// ParsePartitionType accepts the canonical type plus a few aliases used by
// callers ("my-folders", "shared-with-me").
func ParsePartitionType(s string) (PartitionType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "general":
		return PartitionGeneral, true
	case "private", "my-folders", "my_folders":
		return PartitionPrivate, true
	case "shared", "shared-with-me", "shared_with_me":
		return PartitionShared, true
	}
	return "", false
}
