// Package service contains the business logic for the trip proposal API.
// Services enforce roles, validate inputs, and orchestrate repo calls inside
// transactions. No SQL lives here: services depend on repo interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/pkordes/tripvote/internal/domain"
	"github.com/pkordes/tripvote/internal/events"
	"github.com/pkordes/tripvote/internal/repo"
)

// DefaultMaxRetries bounds how often a conflicting transaction is re-run.
const DefaultMaxRetries = 3

// deps is shared by every service.
type deps struct {
	store      repo.Store
	sink       events.Sink
	log        *slog.Logger
	now        func() time.Time
	maxRetries uint64
}

// Option configures a service.
type Option func(*deps)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

// WithMaxRetries bounds retries of transactions that lost a race on the trip
// version or hit a Postgres serialization failure.
func WithMaxRetries(n uint64) Option {
	return func(d *deps) { d.maxRetries = n }
}

func newDeps(store repo.Store, sink events.Sink, log *slog.Logger, opts []Option) deps {
	if sink == nil {
		sink = events.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	d := deps{
		store:      store,
		sink:       sink,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// inTxRetry runs fn in a transaction, re-running it from scratch when it
// fails with a version conflict or a retryable database error. Once retries
// are exhausted the last error is returned as is.
func (d deps) inTxRetry(ctx context.Context, fn func(repo.Repos) error) error {
	backoff := retry.WithMaxRetries(d.maxRetries, retry.NewExponential(10*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := d.store.InTx(ctx, fn)
		if errors.Is(err, domain.ErrVersionConflict) || repo.IsRetryable(err) {
			d.log.DebugContext(ctx, "retrying transaction", "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

// emit publishes committed events. Delivery failures are logged and never
// undo or fail the operation that produced them.
func (d deps) emit(ctx context.Context, evts ...domain.Event) {
	for _, e := range evts {
		if err := d.sink.Publish(ctx, e); err != nil {
			d.log.WarnContext(ctx, "publish event", "type", string(e.Type), "trip_id", e.TripID.String(), "error", err)
		}
	}
}

func (d deps) event(t domain.EventType, tripID uuid.UUID, proposalID *uuid.UUID, actor uuid.UUID, data any) domain.Event {
	return domain.Event{
		Type:       t,
		TripID:     tripID,
		ProposalID: proposalID,
		ActorID:    actor,
		OccurredAt: d.now(),
		Data:       data,
	}
}

// requireMember resolves the caller's role and fails with ErrForbidden for
// non-members. The trip itself must already be known to exist.
func requireMember(ctx context.Context, members repo.MemberRepo, tripID, userID uuid.UUID) (domain.Role, error) {
	role, err := members.GetRole(ctx, tripID, userID)
	if err != nil {
		return domain.RoleNone, err
	}
	if !role.IsMember() {
		return domain.RoleNone, fmt.Errorf("%w: not a member of this trip", domain.ErrForbidden)
	}
	return role, nil
}
