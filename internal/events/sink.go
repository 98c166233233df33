// Package events delivers committed domain events to whoever is listening.
// The proposal lifecycle only knows about the Sink interface; the concrete
// sinks fan events out to the log, to Postgres LISTEN/NOTIFY, or to Redis
// pub/sub, where the client notification transport picks them up.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pkordes/tripvote/internal/domain"
)

// Sink receives events after the state change they describe has committed.
// Publish must not be called inside a database transaction.
type Sink interface {
	Publish(ctx context.Context, e domain.Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, domain.Event) error { return nil }

// Multi publishes to every sink in order. One failing sink does not stop the
// others; all failures are joined into the returned error.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, e domain.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes each event as a structured log line at info level.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink returns a Sink that logs events to log.
func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Publish(ctx context.Context, e domain.Event) error {
	attrs := []any{
		"type", string(e.Type),
		"trip_id", e.TripID.String(),
		"actor_id", e.ActorID.String(),
	}
	if e.ProposalID != nil {
		attrs = append(attrs, "proposal_id", e.ProposalID.String())
	}
	s.log.InfoContext(ctx, "domain event", attrs...)
	return nil
}

// encode serialises an event for the wire sinks.
func encode(e domain.Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("events: encode %s: %w", e.Type, err)
	}
	return b, nil
}
