// Package notify delivers committed namespace changes to an outbound
// transport without ever blocking or failing the mutation.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"cabinet/internal/config"
	"cabinet/internal/domain/services"
)

// Publisher is the transport an AsyncNotifier hands events to
type Publisher interface {
	Send(ctx context.Context, event services.Event) error
}

// AsyncNotifier queues events on a bounded channel drained by one
// background goroutine. A full queue drops the event with a warning.
type AsyncNotifier struct {
	events    chan services.Event
	publisher Publisher
	logger    *slog.Logger

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
	mu        sync.RWMutex
}

// NewAsyncNotifier starts the background publisher. buffer <= 0 uses the default.
func NewAsyncNotifier(publisher Publisher, buffer int, logger *slog.Logger) *AsyncNotifier {
	if buffer <= 0 {
		buffer = config.DefaultNotifyBuffer
	}
	n := &AsyncNotifier{
		events:    make(chan services.Event, buffer),
		publisher: publisher,
		logger:    logger,
		closed:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	go n.run()
	return n
}

// Publish enqueues event without blocking
func (n *AsyncNotifier) Publish(ctx context.Context, event services.Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	select {
	case <-n.closed:
		n.logger.Warn("notifier closed, event dropped", "kind", event.Kind, "resource_id", event.ResourceID)
		return
	default:
	}

	select {
	case n.events <- event:
	default:
		n.logger.Warn("notifier queue full, event dropped", "kind", event.Kind, "resource_id", event.ResourceID)
	}
}

func (n *AsyncNotifier) run() {
	defer close(n.done)
	for event := range n.events {
		// Delivery is detached from the request that produced the event
		if err := n.publisher.Send(context.Background(), event); err != nil {
			n.logger.Warn("failed to publish event",
				"kind", event.Kind,
				"resource_id", event.ResourceID,
				"error", err,
			)
		}
	}
}

// Close stops accepting events and waits until queued ones are delivered
// or ctx ends
func (n *AsyncNotifier) Close(ctx context.Context) error {
	n.closeOnce.Do(func() {
		close(n.closed)
		// Wait out in-flight Publish calls before closing the channel
		n.mu.Lock()
		close(n.events)
		n.mu.Unlock()
	})

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
