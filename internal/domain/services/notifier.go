package services

import (
	"context"
	"time"
)

// EventKind names a committed namespace mutation
type EventKind string

const (
	EventFolderCreated    EventKind = "folder.created"
	EventFolderUpdated    EventKind = "folder.updated"
	EventFolderMoved      EventKind = "folder.moved"
	EventFolderDeleted    EventKind = "folder.deleted"
	EventFileCreated      EventKind = "file.created"
	EventFileVersionAdded EventKind = "file.version_added"
	EventFileUpdated      EventKind = "file.updated"
	EventFileDeleted      EventKind = "file.deleted"
)

// Event is the payload handed to the notifier after a mutation commits
type Event struct {
	Kind        EventKind `json:"kind"`
	ActorID     string    `json:"actor_id"`
	ResourceID  string    `json:"resource_id"`
	PartitionID int       `json:"partition_id"`
	ParentID    *string   `json:"parent_id,omitempty"` // parent folder (folders) or containing folder (files)
	Name        string    `json:"name"`
	Path        string    `json:"path,omitempty"`
	Version     int       `json:"version,omitempty"`
	Size        int64     `json:"size,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Notifier is the outbound port for change events.
// Publish is fire-and-forget: it must not block on the transport and a
// failed delivery never fails the mutation that produced the event.
type Notifier interface {
	Publish(ctx context.Context, event Event)
}
