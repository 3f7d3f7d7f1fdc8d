package notify

import (
	"context"
	"log/slog"

	"cabinet/internal/domain/services"
)

// LogPublisher writes each event as a structured log line
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher that logs to logger
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Send logs the event
func (p *LogPublisher) Send(ctx context.Context, event services.Event) error {
	p.logger.InfoContext(ctx, "namespace event",
		"kind", event.Kind,
		"actor_id", event.ActorID,
		"resource_id", event.ResourceID,
		"partition_id", event.PartitionID,
		"parent_id", event.ParentID,
		"name", event.Name,
		"path", event.Path,
		"version", event.Version,
		"size", event.Size,
		"occurred_at", event.OccurredAt,
	)
	return nil
}
