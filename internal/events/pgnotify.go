package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pkordes/tripvote/internal/domain"
)

// maxNotifyPayload is Postgres' limit on a NOTIFY payload, minus a byte for
// the terminator.
const maxNotifyPayload = 7999

// execer is satisfied by *pgxpool.Pool.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGNotifySink publishes events with pg_notify so that any connection
// LISTENing on the channel receives them.
type PGNotifySink struct {
	db      execer
	channel string
}

// NewPGNotifySink returns a sink that notifies channel through db.
func NewPGNotifySink(db execer, channel string) *PGNotifySink {
	return &PGNotifySink{db: db, channel: channel}
}

// Publish sends the event as JSON. Events whose payload would exceed the
// NOTIFY limit (a merge carrying a large itinerary) are sent without Data;
// listeners re-read the trip instead.
func (s *PGNotifySink) Publish(ctx context.Context, e domain.Event) error {
	payload, err := encode(e)
	if err != nil {
		return err
	}
	if len(payload) > maxNotifyPayload {
		e.Data = nil
		if payload, err = encode(e); err != nil {
			return err
		}
	}

	if _, err := s.db.Exec(ctx, `SELECT pg_notify($1, $2)`, s.channel, string(payload)); err != nil {
		return fmt.Errorf("events.PGNotifySink.Publish: %w", err)
	}
	return nil
}
