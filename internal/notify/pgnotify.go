package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cabinet/internal/domain/services"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgNotifyLimit is the Postgres NOTIFY payload limit (8000 bytes minus slack)
const pgNotifyLimit = 7900

// Execer is the part of a pgx pool or connection PgPublisher needs
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgPublisher sends events through pg_notify so LISTEN clients on the
// channel receive them as JSON
type PgPublisher struct {
	db      Execer
	channel string
}

// NewPgPublisher creates a publisher for channel
func NewPgPublisher(db Execer, channel string) *PgPublisher {
	return &PgPublisher{db: db, channel: channel}
}

// Send marshals event and notifies the channel
func (p *PgPublisher) Send(ctx context.Context, event services.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if len(payload) > pgNotifyLimit {
		return fmt.Errorf("event payload of %d bytes exceeds the NOTIFY limit", len(payload))
	}

	if _, err := p.db.Exec(ctx, `SELECT pg_notify($1, $2)`, p.channel, string(payload)); err != nil {
		return fmt.Errorf("pg_notify %s: %w", p.channel, err)
	}
	return nil
}
