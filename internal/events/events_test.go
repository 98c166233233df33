package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripvote/internal/domain"
	"github.com/pkordes/tripvote/internal/events"
)

// ---- helpers ---------------------------------------------------------------

func sampleEvent() domain.Event {
	pid := uuid.New()
	return domain.Event{
		Type:       domain.EventVoteCast,
		TripID:     uuid.New(),
		ProposalID: &pid,
		ActorID:    uuid.New(),
		OccurredAt: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
		Data:       map[string]int{"votes_for": 1},
	}
}

type recordingSink struct {
	got []domain.Event
	err error
}

func (s *recordingSink) Publish(_ context.Context, e domain.Event) error {
	s.got = append(s.got, e)
	return s.err
}

type fakePublisher struct {
	channel string
	message any
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.message = message
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

// ---- Multi -----------------------------------------------------------------

func TestMulti_PublishesToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	first := &recordingSink{err: boom}
	second := &recordingSink{}

	err := events.Multi{first, second}.Publish(context.Background(), sampleEvent())

	assert.ErrorIs(t, err, boom)
	assert.Len(t, first.got, 1)
	assert.Len(t, second.got, 1, "a failing sink does not stop the next one")
}

func TestNop(t *testing.T) {
	assert.NoError(t, events.Nop{}.Publish(context.Background(), sampleEvent()))
}

// ---- LogSink ---------------------------------------------------------------

func TestLogSink_WritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	sink := events.NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))
	e := sampleEvent()

	require.NoError(t, sink.Publish(context.Background(), e))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "domain event", line["msg"])
	assert.Equal(t, "proposal.vote_cast", line["type"])
	assert.Equal(t, e.ProposalID.String(), line["proposal_id"])
}

// ---- PGNotifySink ----------------------------------------------------------

func TestPGNotifySink_Publish(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	e := sampleEvent()
	mock.ExpectExec(`SELECT pg_notify`).
		WithArgs("trip_events", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	sink := events.NewPGNotifySink(mock, "trip_events")
	require.NoError(t, sink.Publish(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGNotifySink_DropsOversizedData(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	e := sampleEvent()
	e.Data = strings.Repeat("x", 9000)

	var payload string
	mock.ExpectExec(`SELECT pg_notify`).
		WithArgs("trip_events", argCapture{&payload}).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	sink := events.NewPGNotifySink(mock, "trip_events")
	require.NoError(t, sink.Publish(context.Background(), e))

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &got))
	assert.NotContains(t, got, "data")
	assert.Equal(t, e.TripID.String(), got["trip_id"])
}

// argCapture is a pgxmock argument matcher that records the value it sees.
type argCapture struct{ dst *string }

func (a argCapture) Match(v any) bool {
	s, ok := v.(string)
	if ok {
		*a.dst = s
	}
	return ok
}

// ---- RedisSink -------------------------------------------------------------

func TestRedisSink_PublishesToTripChannel(t *testing.T) {
	pub := &fakePublisher{}
	sink := events.NewRedisSink(pub, "trip_events")
	e := sampleEvent()

	require.NoError(t, sink.Publish(context.Background(), e))

	assert.Equal(t, "trip_events:"+e.TripID.String(), pub.channel)
	raw, ok := pub.message.([]byte)
	require.True(t, ok)
	var got domain.Event
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, e.Type, got.Type)
	assert.Equal(t, *e.ProposalID, *got.ProposalID)
}

func TestRedisSink_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection refused")}
	sink := events.NewRedisSink(pub, "trip_events")

	err := sink.Publish(context.Background(), sampleEvent())

	assert.ErrorContains(t, err, "connection refused")
}
